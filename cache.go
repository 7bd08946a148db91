package protoclust

import "sync"

type histogramKey struct {
	dist       Distribution
	numBuckets int
}

type chiKey struct {
	dof   int
	alpha float64
}

// statCache holds the histograms and chi-squared thresholds one engine has
// computed so far. Histograms are taken out of the pool while in use and
// handed back with release.
type statCache struct {
	mu    sync.Mutex
	pool  map[histogramKey][]*histogram
	chi   map[chiKey]float64
	built int // histograms constructed from scratch
}

func newStatCache() *statCache {
	return &statCache{
		pool: make(map[histogramKey][]*histogram),
		chi:  make(map[chiKey]float64),
	}
}

// chiSquared returns the memoised threshold for (dof, alpha), solving for it
// on first use. Callers hold c.mu.
func (c *statCache) chiSquared(dof int, alpha float64) (float64, error) {
	dof, alpha = normalizeChiArgs(dof, alpha)
	key := chiKey{dof: dof, alpha: alpha}
	if v, ok := c.chi[key]; ok {
		return v, nil
	}
	v, err := computeChiSquared(dof, alpha)
	if err != nil {
		return 0, err
	}
	c.chi[key] = v
	return v, nil
}

// histogram returns a zeroed histogram for testing dist over sampleCount
// samples at the given confidence. A pooled histogram with the same number of
// buckets is reused: its expected counts are rescaled when the sample count
// differs and its threshold recomputed when the confidence differs.
func (c *statCache) histogram(dist Distribution, sampleCount int, confidence float64) (*histogram, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := histogramKey{dist: dist, numBuckets: optimumBuckets(sampleCount)}
	if list := c.pool[key]; len(list) > 0 {
		h := list[len(list)-1]
		c.pool[key] = list[:len(list)-1]
		if sampleCount != h.sampleCount {
			h.rescale(sampleCount)
		}
		if confidence != h.confidence {
			chi, err := c.chiSquared(degreesOfFreedom(dist, h.numBuckets), confidence)
			if err != nil {
				c.pool[key] = append(c.pool[key], h)
				return nil, err
			}
			h.confidence = confidence
			h.chiSquared = chi
		}
		h.reset()
		return h, nil
	}

	chi, err := c.chiSquared(degreesOfFreedom(dist, key.numBuckets), confidence)
	if err != nil {
		return nil, err
	}
	c.built++
	return newHistogram(dist, sampleCount, confidence, chi), nil
}

// release returns h to the pool.
func (c *statCache) release(h *histogram) {
	if h == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := histogramKey{dist: h.dist, numBuckets: h.numBuckets}
	c.pool[key] = append(c.pool[key], h)
}

func (c *statCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pool = make(map[histogramKey][]*histogram)
	c.chi = make(map[chiKey]float64)
}
