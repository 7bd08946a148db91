package protoclust

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// bucketTableSize is the number of points in the discretised value
	// domain that samples are normalised onto. It must be even.
	bucketTableSize = 1024

	// normalExtent is how many standard deviations on either side of the
	// mean the normal domain covers.
	normalExtent = 3.0

	minBuckets          = 5
	minSamplesPerBucket = 5
	minSamples          = minBuckets * minSamplesPerBucket
	maxBuckets          = 39
)

// The discrete normal distribution that the bucket table is built from:
// x=0 is -normalExtent standard deviations, x=bucketTableSize is
// +normalExtent.
const (
	normalStdDev    = bucketTableSize / (2.0 * normalExtent)
	normalVariance  = (bucketTableSize * bucketTableSize) / (4.0 * normalExtent * normalExtent)
	normalMagnitude = (2.0 * normalExtent) / (sqrt2Pi * bucketTableSize)
	normalMean      = bucketTableSize / 2
	sqrt2Pi         = 2.506628275
)

// Optimum bucket counts for a chi-squared test at a 0.05 significance level
// (Bendat & Piersol, Measurement and Analysis of Random Data, table 4.1).
var (
	countTable   = [...]int{minSamples, 200, 400, 600, 800, 1000, 1500, 2000}
	bucketsTable = [...]int{minBuckets, 16, 20, 24, 27, 30, 35, maxBuckets}
)

// Distribution is the family a dimension is tested against.
type Distribution int

const (
	Normal Distribution = iota
	Uniform
	Random
)

func (d Distribution) String() string {
	switch d {
	case Normal:
		return "normal"
	case Uniform:
		return "uniform"
	case Random:
		return "random"
	default:
		return "unknown"
	}
}

// degreeOffset is the number of degrees of freedom lost to estimated
// parameters for each family.
func (d Distribution) degreeOffset() int {
	if d == Random {
		return 1
	}
	return 3
}

func (d Distribution) density(x int) float64 {
	if d == Normal {
		dist := float64(x) - normalMean
		return normalMagnitude * math.Exp(-0.5*dist*dist/normalVariance)
	}
	if x >= 0 && x <= bucketTableSize {
		return 1.0 / bucketTableSize
	}
	return 0
}

// optimumBuckets returns the histogram size to use for sampleCount samples,
// interpolating linearly between table entries and truncating.
func optimumBuckets(sampleCount int) int {
	if sampleCount < countTable[0] {
		return bucketsTable[0]
	}
	last := 0
	for next := 1; next < len(countTable); next++ {
		if sampleCount <= countTable[next] {
			slope := float64(bucketsTable[next]-bucketsTable[last]) /
				float64(countTable[next]-countTable[last])
			return int(float64(bucketsTable[last]) + slope*float64(sampleCount-countTable[last]))
		}
		last = next
	}
	return bucketsTable[last]
}

// degreesOfFreedom returns the degrees of freedom for a chi-squared test of
// dist over buckets cells, rounded up to the next even number. Rounding up
// makes the threshold slightly more lenient than optimum.
func degreesOfFreedom(dist Distribution, buckets int) int {
	dof := buckets - dist.degreeOffset()
	if dof%2 != 0 {
		dof++
	}
	return dof
}

// histogram maps normalised sample values to buckets of approximately equal
// expected frequency and holds the observed and expected counts used by the
// chi-squared test.
type histogram struct {
	dist        Distribution
	numBuckets  int
	sampleCount int
	confidence  float64
	chiSquared  float64
	bucket      [bucketTableSize]int
	count       []int
	expected    []float64
}

// newHistogram builds the bucket table for dist. Only the upper half of the
// domain is integrated (trapezoidal rule); every supported density is
// symmetric so the lower half is mirrored. Probability left over after the
// sweep is the tail beyond the domain and goes to the bucket reached last.
func newHistogram(dist Distribution, sampleCount int, confidence, chiSquared float64) *histogram {
	nb := optimumBuckets(sampleCount)
	h := &histogram{
		dist:        dist,
		numBuckets:  nb,
		sampleCount: sampleCount,
		confidence:  confidence,
		chiSquared:  chiSquared,
		count:       make([]int, nb),
		expected:    make([]float64, nb),
	}

	bucketProbability := 1.0 / float64(nb)
	current := nb / 2
	nextBoundary := bucketProbability
	if nb%2 != 0 {
		nextBoundary = bucketProbability / 2
	}

	probability := 0.0
	lastDensity := dist.density(bucketTableSize / 2)
	for i := bucketTableSize / 2; i < bucketTableSize; i++ {
		density := dist.density(i + 1)
		delta := (lastDensity + density) / 2
		probability += delta
		if probability > nextBoundary {
			if current < nb-1 {
				current++
			}
			nextBoundary += bucketProbability
		}
		h.bucket[i] = current
		h.expected[current] += delta * float64(sampleCount)
		lastDensity = density
	}
	h.expected[current] += (0.5 - probability) * float64(sampleCount)

	for i, j := 0, bucketTableSize-1; i < j; i, j = i+1, j-1 {
		h.bucket[i] = nb - h.bucket[j] - 1
	}
	for i, j := 0, nb-1; i <= j; i, j = i+1, j-1 {
		h.expected[i] += h.expected[j]
	}
	return h
}

// rescale adjusts the expected counts to a new sample count.
func (h *histogram) rescale(sampleCount int) {
	floats.Scale(float64(sampleCount)/float64(h.sampleCount), h.expected)
	h.sampleCount = sampleCount
}

func (h *histogram) reset() {
	for i := range h.count {
		h.count[i] = 0
	}
}

// fill counts the samples beneath cluster id into the histogram using
// dimension dim. For the normal family mean and stddev have their usual
// meaning; for uniform and random, mean is the centre of the range and
// stddev is half its width.
//
// A zero stddev cannot be normalised. Samples equal to the mean are then
// dealt round-robin across all buckets in traversal order, samples above the
// mean go to the last bucket and samples below it to the first.
func (h *histogram) fill(t *clusterTree, id, dim int, d Dimension, mean, stddev float64) {
	h.reset()

	if stddev == 0 {
		next := 0
		t.walkSamples(id, func(s int) bool {
			v := t.nodes[s].mean[dim]
			switch {
			case v > mean:
				h.count[h.numBuckets-1]++
			case v < mean:
				h.count[0]++
			default:
				h.count[next]++
			}
			next++
			if next >= h.numBuckets {
				next = 0
			}
			return true
		})
		return
	}

	t.walkSamples(id, func(s int) bool {
		v := t.nodes[s].mean[dim]
		var x int
		if h.dist == Normal {
			x = normalBucket(d, v, mean, stddev)
		} else {
			x = uniformBucket(d, v, mean, stddev)
		}
		h.count[h.bucket[x]]++
		return true
	})
}

// passes applies Pearson's chi-squared test to the filled histogram.
func (h *histogram) passes() bool {
	var total float64
	for i, observed := range h.count {
		diff := float64(observed) - h.expected[i]
		total += diff * diff / h.expected[i]
	}
	return total <= h.chiSquared
}

// wrapTo moves a circular value x by one range when it lies more than half a
// range from mean.
func wrapTo(d Dimension, x, mean float64) float64 {
	if !d.Circular {
		return x
	}
	return mean + d.wrap(x-mean)
}

func clipTable(x float64) int {
	if x < 0 {
		return 0
	}
	if x > bucketTableSize-1 {
		return bucketTableSize - 1
	}
	return int(math.Floor(x))
}

func normalBucket(d Dimension, x, mean, stddev float64) int {
	x = wrapTo(d, x, mean)
	return clipTable((x-mean)/stddev*normalStdDev + normalMean)
}

func uniformBucket(d Dimension, x, mean, stddev float64) int {
	x = wrapTo(d, x, mean)
	return clipTable((x-mean)/(2*stddev)*bucketTableSize + bucketTableSize/2.0)
}
