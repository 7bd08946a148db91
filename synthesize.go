package protoclust

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
)

// synthesizer walks a finished cluster tree top-down and turns it into
// prototypes. A cluster that cannot be described by one prototype is split
// and both children are examined on their own.
type synthesizer struct {
	desc    []Dimension
	tree    *clusterTree
	cache   *statCache
	cfg     Config
	numChar int

	// seen and illegal hold character ids while a cluster is being filtered.
	seen, illegal *roaring.Bitmap

	splits int
}

// splitReason says why a cluster produced no prototype.
type splitReason int

const (
	splitNone splitReason = iota
	splitMultipleChars
	splitDependent
	splitNoFit
)

func (r splitReason) String() string {
	switch r {
	case splitMultipleChars:
		return "multiple samples per character"
	case splitDependent:
		return "dimensions not independent"
	case splitNoFit:
		return "no distribution fits"
	default:
		return "none"
	}
}

func (s *synthesizer) run() ([]*Prototype, error) {
	var protos []*Prototype
	stack := []int{s.tree.root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		proto, reason, err := s.makePrototype(id)
		if err != nil {
			return nil, err
		}
		if proto != nil {
			s.tree.nodes[id].hasPrototype = true
			protos = append(protos, proto)
			s.cfg.Logger.Debug("prototype",
				"cluster", id,
				"style", proto.Style.String(),
				"samples", proto.NumSamples,
				"significant", proto.Significant,
			)
			continue
		}

		n := &s.tree.nodes[id]
		s.splits++
		s.cfg.Logger.Debug("split cluster", "cluster", id, "samples", n.count, "reason", reason.String())
		stack = append(stack, n.right, n.left)
	}
	return protos, nil
}

// makePrototype tries to describe cluster id with a single prototype. It
// returns nil and the reason when the cluster has to be split.
func (s *synthesizer) makePrototype(id int) (*Prototype, splitReason, error) {
	c := &s.tree.nodes[id]
	ref := ClusterRef{tree: s.tree, id: id}

	if !c.isLeaf() && s.multipleCharSamples(id) {
		return nil, splitMultipleChars, nil
	}

	stats := computeStatistics(s.tree, s.desc, id)

	minSamples := int(s.cfg.MinSamples * float64(s.numChar))
	if minSamples < 1 {
		minSamples = 1
	}
	if c.isLeaf() || c.count < minSamples {
		return s.degeneratePrototype(c, ref, stats), splitNone, nil
	}

	if !independent(s.desc, stats, s.cfg.Independence) {
		return nil, splitDependent, nil
	}

	normal, err := s.cache.histogram(Normal, c.count, s.cfg.Confidence)
	if err != nil {
		return nil, splitNone, err
	}
	defer s.cache.release(normal)

	var proto *Prototype
	switch s.cfg.Style {
	case Spherical:
		proto = s.sphericalPrototype(id, ref, stats, normal)
	case Elliptical:
		proto = s.ellipticalPrototype(id, ref, stats, normal)
	case Mixed:
		proto, err = s.mixedPrototype(id, ref, stats, normal)
	case Automatic:
		proto = s.sphericalPrototype(id, ref, stats, normal)
		if proto == nil {
			proto = s.ellipticalPrototype(id, ref, stats, normal)
		}
		if proto == nil {
			proto, err = s.mixedPrototype(id, ref, stats, normal)
		}
	}
	if err != nil {
		return nil, splitNone, err
	}
	if proto == nil {
		return nil, splitNoFit, nil
	}
	return proto, splitNone, nil
}

// multipleCharSamples reports whether too many characters contribute more
// than one sample to cluster id. The fraction of offending characters is
// checked after every repeat so the walk stops as soon as it is exceeded.
func (s *synthesizer) multipleCharSamples(id int) bool {
	if s.seen == nil {
		s.seen, s.illegal = roaring.New(), roaring.New()
	}
	s.seen.Clear()
	s.illegal.Clear()

	numChar := s.tree.nodes[id].count
	numIllegal := 0
	rejected := false
	s.tree.walkSamples(id, func(sample int) bool {
		charID := uint32(s.tree.nodes[sample].charID)
		if s.seen.CheckedAdd(charID) {
			return true
		}
		if s.illegal.CheckedAdd(charID) {
			numIllegal++
		}
		numChar--
		if float64(numIllegal)/float64(numChar) > s.cfg.MaxIllegal {
			rejected = true
			return false
		}
		return true
	})
	return rejected
}

// degeneratePrototype describes a cluster too small to test. The automatic
// style falls back to elliptical.
func (s *synthesizer) degeneratePrototype(c *node, ref ClusterRef, stats *Statistics) *Prototype {
	var p *Prototype
	switch s.cfg.Style {
	case Spherical:
		p = newSphericalPrototype(c, ref, stats)
	case Mixed:
		p = newMixedPrototype(c, ref, stats)
	default:
		p = newEllipticalPrototype(c, ref, stats)
	}
	p.Significant = false
	return p
}

// independent reports whether every pair of essential dimensions has a
// correlation coefficient within bound. The coefficient is the fourth root
// of cov²/(var_i·var_j), and zero when either variance is zero.
func independent(desc []Dimension, stats *Statistics, bound float64) bool {
	n := len(desc)
	for i := 0; i < n; i++ {
		if desc[i].NonEssential {
			continue
		}
		vii := stats.Covariance.At(i, i)
		for j := i + 1; j < n; j++ {
			if desc[j].NonEssential {
				continue
			}
			vjj := stats.Covariance.At(j, j)
			var coeff float64
			if vii != 0 && vjj != 0 {
				cov := stats.Covariance.At(i, j)
				coeff = math.Sqrt(math.Sqrt(cov * cov / (vii * vjj)))
			}
			if coeff > bound {
				return false
			}
		}
	}
	return true
}

func (s *synthesizer) sphericalPrototype(id int, ref ClusterRef, stats *Statistics, h *histogram) *Prototype {
	c := &s.tree.nodes[id]
	stddev := math.Sqrt(stats.AvgVariance)
	for i, d := range s.desc {
		if d.NonEssential {
			continue
		}
		h.fill(s.tree, id, i, d, c.mean[i], stddev)
		if !h.passes() {
			return nil
		}
	}
	return newSphericalPrototype(c, ref, stats)
}

func (s *synthesizer) ellipticalPrototype(id int, ref ClusterRef, stats *Statistics, h *histogram) *Prototype {
	c := &s.tree.nodes[id]
	for i, d := range s.desc {
		if d.NonEssential {
			continue
		}
		h.fill(s.tree, id, i, d, c.mean[i], math.Sqrt(stats.Variance(i)))
		if !h.passes() {
			return nil
		}
	}
	return newEllipticalPrototype(c, ref, stats)
}

// mixedPrototype fits each essential dimension independently: normal first,
// then random over the whole dimension range, then uniform over the observed
// offsets. The random and uniform histograms are only fetched when needed.
func (s *synthesizer) mixedPrototype(id int, ref ClusterRef, stats *Statistics, normal *histogram) (*Prototype, error) {
	c := &s.tree.nodes[id]
	p := newMixedPrototype(c, ref, stats)
	shape := p.Shape.(*MixedShape)

	var random, uniform *histogram
	defer func() {
		s.cache.release(random)
		s.cache.release(uniform)
	}()

	var err error
	for i, d := range s.desc {
		if d.NonEssential {
			continue
		}

		normal.fill(s.tree, id, i, d, p.Mean[i], math.Sqrt(shape.Dims[i].Variance))
		if normal.passes() {
			continue
		}

		if random == nil {
			if random, err = s.cache.histogram(Random, c.count, s.cfg.Confidence); err != nil {
				return nil, err
			}
		}
		p.makeDimRandom(i, d)
		random.fill(s.tree, id, i, d, p.Mean[i], shape.Dims[i].Variance)
		if random.passes() {
			continue
		}

		if uniform == nil {
			if uniform, err = s.cache.histogram(Uniform, c.count, s.cfg.Confidence); err != nil {
				return nil, err
			}
		}
		p.makeDimUniform(i, c.mean[i], stats)
		uniform.fill(s.tree, id, i, d, p.Mean[i], shape.Dims[i].Variance)
		if uniform.passes() {
			continue
		}
		return nil, nil
	}
	return p, nil
}
