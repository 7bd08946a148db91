package protoclust

import (
	"log/slog"
	"math"
)

// maxNeighborDistance bounds nearest-neighbor searches during tree building.
const maxNeighborDistance = math.MaxFloat32

// buildStats summarises one tree construction.
type buildStats struct {
	merges    int
	requeries int
	stale     int
}

// buildClusterTree agglomerates every entry of index into a binary tree
// inside t and returns the root id. Each entry and its nearest neighbor form
// a candidate pair keyed by distance; the closest pair is merged first.
// Candidates whose cluster was already merged are dropped, and candidates
// whose neighbor was merged are repaired with a fresh neighbor query.
func buildClusterTree(t *clusterTree, index SpatialIndex, desc []Dimension, logger *slog.Logger) int {
	var stats buildStats
	q := newCandidateQueue(index.Len())

	index.Walk(func(point []float64, id int) {
		if nb, d, ok := nearestOther(index, point, id); ok {
			q.Push(d, id, nb)
		}
	})

	for {
		c, ok := q.PopMin()
		if !ok {
			break
		}

		switch {
		case t.nodes[c.cluster].merged:
			stats.stale++
			continue

		case t.nodes[c.neighbor].merged:
			stats.requeries++
			if nb, d, ok := nearestOther(index, t.nodes[c.cluster].mean, c.cluster); ok {
				q.Push(d, c.cluster, nb)
			}

		default:
			merged := t.merge(desc, c.cluster, c.neighbor, c.key)
			index.Delete(t.nodes[c.cluster].mean, c.cluster)
			index.Delete(t.nodes[c.neighbor].mean, c.neighbor)
			index.Insert(t.nodes[merged].mean, merged)
			stats.merges++
			if nb, d, ok := nearestOther(index, t.nodes[merged].mean, merged); ok {
				q.Push(d, merged, nb)
			}
		}
	}

	root := -1
	index.Walk(func(_ []float64, id int) {
		root = id
	})

	samples := 0
	if root >= 0 {
		samples = t.nodes[root].count
	}
	logger.Debug("cluster tree built",
		"samples", samples,
		"merges", stats.merges,
		"requeries", stats.requeries,
		"stale", stats.stale,
	)
	return root
}

// nearestOther returns the closest live entry other than id itself. Two
// neighbors are requested because the query point is usually stored too.
func nearestOther(index SpatialIndex, point []float64, id int) (int, float64, bool) {
	best := -1
	bestDist := maxNeighborDistance
	for _, nb := range index.Nearest(point, 2, maxNeighborDistance) {
		if nb.ID != id && nb.Distance < bestDist {
			best = nb.ID
			bestDist = nb.Distance
		}
	}
	return best, bestDist, best >= 0
}
