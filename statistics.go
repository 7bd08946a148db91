package protoclust

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Statistics summarises the samples beneath one cluster.
type Statistics struct {
	// Covariance is the unbiased covariance of the samples about the cluster
	// mean, normalised by max(count-1, 1).
	Covariance *mat.SymDense

	// Min and Max are the largest negative and positive offsets from the
	// cluster mean seen in each dimension. Both start at zero.
	Min, Max []float64

	// AvgVariance is the geometric mean of the covariance diagonal.
	AvgVariance float64
}

// Variance returns the diagonal covariance entry for dim.
func (s *Statistics) Variance(dim int) float64 { return s.Covariance.At(dim, dim) }

// computeStatistics walks every sample beneath id and accumulates offsets
// from the cluster mean. Circular offsets are wrapped into
// [-HalfRange, HalfRange] first, which is why no incremental formula is used.
func computeStatistics(t *clusterTree, desc []Dimension, id int) *Statistics {
	n := len(desc)
	c := &t.nodes[id]
	stats := &Statistics{
		Covariance: mat.NewSymDense(n, nil),
		Min:        make([]float64, n),
		Max:        make([]float64, n),
	}

	offset := make([]float64, n)
	x := mat.NewVecDense(n, offset)
	t.walkSamples(id, func(s int) bool {
		sample := t.nodes[s].mean
		for i, d := range desc {
			offset[i] = d.wrap(sample[i] - c.mean[i])
			if offset[i] < stats.Min[i] {
				stats.Min[i] = offset[i]
			}
			if offset[i] > stats.Max[i] {
				stats.Max[i] = offset[i]
			}
		}
		stats.Covariance.SymRankOne(stats.Covariance, 1, x)
		return true
	})

	denom := 1
	if c.count > 1 {
		denom = c.count - 1
	}
	stats.Covariance.ScaleSym(1/float64(denom), stats.Covariance)

	product := 1.0
	for i := 0; i < n; i++ {
		product *= stats.Covariance.At(i, i)
	}
	stats.AvgVariance = math.Pow(product, 1/float64(n))
	return stats
}
