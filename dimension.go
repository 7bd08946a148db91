package protoclust

import (
	"fmt"
	"math"
)

// Dimension describes one axis of the feature space.
type Dimension struct {
	Min, Max float64

	// Circular dimensions wrap at Max back to Min (angles, for example).
	Circular bool

	// NonEssential dimensions are excluded from the independence check and
	// from the goodness-of-fit tests of spherical and elliptical prototypes.
	NonEssential bool
}

func (d Dimension) Range() float64     { return d.Max - d.Min }
func (d Dimension) HalfRange() float64 { return d.Range() / 2 }
func (d Dimension) MidRange() float64  { return (d.Max + d.Min) / 2 }

// normalize folds v into [Min, Max] on a circular dimension. On a linear
// dimension it reports false when v lies outside [Min, Max].
func (d Dimension) normalize(v float64) (float64, bool) {
	if v >= d.Min && v <= d.Max {
		return v, true
	}
	if !d.Circular {
		return v, false
	}
	v = math.Mod(v-d.Min, d.Range())
	if v < 0 {
		v += d.Range()
	}
	return d.Min + v, true
}

// wrap maps a difference between two values of this dimension onto the
// shorter arc when the dimension is circular.
func (d Dimension) wrap(delta float64) float64 {
	if !d.Circular {
		return delta
	}
	half := d.HalfRange()
	if delta > half {
		delta -= d.Range()
	} else if delta < -half {
		delta += d.Range()
	}
	return delta
}

func validateDimensions(desc []Dimension) error {
	for i, d := range desc {
		if math.IsNaN(d.Min) || math.IsNaN(d.Max) || math.IsInf(d.Min, 0) || math.IsInf(d.Max, 0) {
			return fmt.Errorf("protoclust: dimension %d has non-finite bounds [%v, %v]", i, d.Min, d.Max)
		}
		if d.Max <= d.Min {
			return fmt.Errorf("protoclust: dimension %d has empty range [%v, %v]", i, d.Min, d.Max)
		}
	}
	return nil
}

// mergeMeans writes the count-weighted mean of m1 and m2 into m and returns
// the combined count. On circular dimensions the upper mean is shifted down by
// one range when the two means lie more than half a range apart, and the
// result is moved back above Min if needed.
func mergeMeans(desc []Dimension, n1, n2 int, m, m1, m2 []float64) int {
	n := n1 + n2
	w1 := float64(n1)
	w2 := float64(n2)
	fn := float64(n)
	for i, d := range desc {
		if !d.Circular {
			m[i] = (w1*m1[i] + w2*m2[i]) / fn
			continue
		}
		switch {
		case m2[i]-m1[i] > d.HalfRange():
			m[i] = (w1*m1[i] + w2*(m2[i]-d.Range())) / fn
			if m[i] < d.Min {
				m[i] += d.Range()
			}
		case m1[i]-m2[i] > d.HalfRange():
			m[i] = (w1*(m1[i]-d.Range()) + w2*m2[i]) / fn
			if m[i] < d.Min {
				m[i] += d.Range()
			}
		default:
			m[i] = (w1*m1[i] + w2*m2[i]) / fn
		}
	}
	return n
}

// circularMetric is the Euclidean distance over a feature space where some
// axes wrap. ReducedDistance skips the square root for tree pruning.
type circularMetric struct {
	desc []Dimension
}

func (m circularMetric) Distance(a, b []float64) float64 {
	return math.Sqrt(m.ReducedDistance(a, b))
}

func (m circularMetric) ReducedDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := m.desc[i].wrap(a[i] - b[i])
		sum += d * d
	}
	return sum
}

// axisGap is the smallest per-axis distance from v to the interval [lo, hi].
// When the axis is circular the gap may also be taken around the wrap point.
func (m circularMetric) axisGap(axis int, v, lo, hi float64) float64 {
	var gap float64
	switch {
	case v < lo:
		gap = lo - v
	case v > hi:
		gap = v - hi
	default:
		return 0
	}
	d := m.desc[axis]
	if d.Circular {
		if around := d.Range() - (hi - lo) - gap; around < gap {
			gap = math.Max(around, 0)
		}
	}
	return gap
}
