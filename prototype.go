package protoclust

import (
	"fmt"
	"math"
)

// minVariance replaces variances that are smaller, which happens when every
// sample of a prototype is identical. It corresponds to a standard deviation
// of 0.002, 0.2% of the full scale of a unit-range dimension.
const minVariance = 0.000004

// Style selects the prototype shape produced by clustering.
type Style int

const (
	Spherical Style = iota
	Elliptical
	Mixed
	// Automatic tries spherical, then elliptical, then mixed.
	Automatic
)

func (s Style) String() string {
	switch s {
	case Spherical:
		return "spherical"
	case Elliptical:
		return "elliptical"
	case Mixed:
		return "mixed"
	case Automatic:
		return "automatic"
	default:
		return fmt.Sprintf("Style(%d)", int(s))
	}
}

// Shape holds the style-specific parameters of a prototype. It is
// implemented by SphericalShape, EllipticalShape and MixedShape only.
type Shape interface {
	// StandardDeviation returns the spread of the prototype along dim. For
	// uniform and random dimensions this is half the width of the range.
	StandardDeviation(dim int) float64

	shape()
}

// SphericalShape shares one normal variance across every dimension.
type SphericalShape struct {
	Variance  float64
	Magnitude float64
	Weight    float64
}

func (s *SphericalShape) StandardDeviation(int) float64 { return math.Sqrt(s.Variance) }
func (*SphericalShape) shape()                          {}

// EllipticalShape has an independent normal variance per dimension.
type EllipticalShape struct {
	Variance  []float64
	Magnitude []float64
	Weight    []float64
}

func (s *EllipticalShape) StandardDeviation(dim int) float64 { return math.Sqrt(s.Variance[dim]) }
func (*EllipticalShape) shape()                              {}

// MixedDim describes one dimension of a mixed prototype. For uniform and
// random dimensions Variance holds half the range width and Weight is zero.
type MixedDim struct {
	Distribution Distribution
	Variance     float64
	Magnitude    float64
	Weight       float64
}

// MixedShape picks a distribution family per dimension.
type MixedShape struct {
	Dims []MixedDim
}

func (s *MixedShape) StandardDeviation(dim int) float64 {
	d := s.Dims[dim]
	if d.Distribution == Normal {
		return math.Sqrt(d.Variance)
	}
	return d.Variance
}
func (*MixedShape) shape() {}

// Prototype is a compact statistical description of the samples of one
// cluster.
type Prototype struct {
	Style Style
	Mean  []float64

	// Significant is false when the prototype was built from too few samples
	// to be tested statistically.
	Significant bool

	NumSamples     int
	TotalMagnitude float64
	LogMagnitude   float64

	Shape Shape

	// Cluster refers back to the cluster the prototype was made from. It
	// stops resolving once the engine is disposed.
	Cluster ClusterRef
}

// StandardDeviation returns the spread of the prototype along dim.
func (p *Prototype) StandardDeviation(dim int) float64 { return p.Shape.StandardDeviation(dim) }

// Distribution returns the family used for dim.
func (p *Prototype) Distribution(dim int) Distribution {
	if m, ok := p.Shape.(*MixedShape); ok {
		return m.Dims[dim].Distribution
	}
	return Normal
}

func normalMagnitudeOf(variance float64) float64 {
	return 1 / math.Sqrt(2*math.Pi*variance)
}

func floorVariance(v float64) float64 {
	if v < minVariance {
		return minVariance
	}
	return v
}

func newSimplePrototype(c *node, ref ClusterRef) *Prototype {
	mean := make([]float64, len(c.mean))
	copy(mean, c.mean)
	return &Prototype{
		Mean:        mean,
		Significant: true,
		NumSamples:  c.count,
		Cluster:     ref,
	}
}

func newSphericalPrototype(c *node, ref ClusterRef, stats *Statistics) *Prototype {
	p := newSimplePrototype(c, ref)
	p.Style = Spherical
	s := &SphericalShape{Variance: floorVariance(stats.AvgVariance)}
	s.Magnitude = normalMagnitudeOf(s.Variance)
	s.Weight = 1 / s.Variance
	p.Shape = s
	p.TotalMagnitude = math.Pow(s.Magnitude, float64(len(p.Mean)))
	p.LogMagnitude = math.Log(p.TotalMagnitude)
	return p
}

func newEllipticalPrototype(c *node, ref ClusterRef, stats *Statistics) *Prototype {
	p := newSimplePrototype(c, ref)
	p.Style = Elliptical
	n := len(p.Mean)
	s := &EllipticalShape{
		Variance:  make([]float64, n),
		Magnitude: make([]float64, n),
		Weight:    make([]float64, n),
	}
	p.TotalMagnitude = 1
	for i := 0; i < n; i++ {
		s.Variance[i] = floorVariance(stats.Variance(i))
		s.Magnitude[i] = normalMagnitudeOf(s.Variance[i])
		s.Weight[i] = 1 / s.Variance[i]
		p.TotalMagnitude *= s.Magnitude[i]
	}
	p.Shape = s
	p.LogMagnitude = math.Log(p.TotalMagnitude)
	return p
}

// newMixedPrototype starts out as an elliptical prototype with every
// dimension normal; makeDimRandom and makeDimUniform change single
// dimensions afterwards.
func newMixedPrototype(c *node, ref ClusterRef, stats *Statistics) *Prototype {
	p := newSimplePrototype(c, ref)
	p.Style = Mixed
	n := len(p.Mean)
	s := &MixedShape{Dims: make([]MixedDim, n)}
	p.TotalMagnitude = 1
	for i := 0; i < n; i++ {
		v := floorVariance(stats.Variance(i))
		s.Dims[i] = MixedDim{
			Distribution: Normal,
			Variance:     v,
			Magnitude:    normalMagnitudeOf(v),
			Weight:       1 / v,
		}
		p.TotalMagnitude *= s.Dims[i].Magnitude
	}
	p.Shape = s
	p.LogMagnitude = math.Log(p.TotalMagnitude)
	return p
}

func (p *Prototype) setMixedMagnitude(i int, magnitude float64) {
	s := p.Shape.(*MixedShape)
	p.TotalMagnitude /= s.Dims[i].Magnitude
	s.Dims[i].Magnitude = magnitude
	p.TotalMagnitude *= magnitude
	p.LogMagnitude = math.Log(p.TotalMagnitude)
}

// makeDimRandom turns dimension i into a random dimension spanning the whole
// range of d.
func (p *Prototype) makeDimRandom(i int, d Dimension) {
	s := p.Shape.(*MixedShape)
	s.Dims[i].Distribution = Random
	s.Dims[i].Variance = d.HalfRange()
	s.Dims[i].Weight = 0
	p.Mean[i] = d.MidRange()
	p.setMixedMagnitude(i, 1/d.Range())
}

// makeDimUniform turns dimension i into a uniform dimension spanning the
// observed offsets of the cluster.
func (p *Prototype) makeDimUniform(i int, clusterMean float64, stats *Statistics) {
	s := p.Shape.(*MixedShape)
	s.Dims[i].Distribution = Uniform
	s.Dims[i].Variance = floorVariance((stats.Max[i] - stats.Min[i]) / 2)
	s.Dims[i].Weight = 0
	p.Mean[i] = clusterMean + (stats.Min[i]+stats.Max[i])/2
	p.setMixedMagnitude(i, 1/(2*s.Dims[i].Variance))
}
