package protoclust

import (
	"container/heap"
	"math"
	"sort"
)

// minRebuildSize is the smallest tree worth rebuilding after deletions.
const minRebuildSize = 32

// KDTree is a dynamic KD-tree over a possibly circular feature space.
// Nodes live in an arena and are addressed by index. Deleted entries stay in
// place as tombstones that still route searches; every node tracks how many
// live entries its subtree holds so that empty subtrees are skipped. When the
// tombstones outnumber the live entries the tree is rebuilt by median splits.
type KDTree struct {
	dims   int
	desc   []Dimension
	metric circularMetric
	nodes  []kdNode
	root   int
	live   int
	dead   int

	// search scratch: current bounding box of the subtree being visited
	lo, hi []float64
}

type kdNode struct {
	point       []float64
	id          int
	axis        int
	left, right int
	parent      int
	deleted     bool
	live        int // live entries in this subtree, including the node itself
}

var _ SpatialIndex = (*KDTree)(nil)

// NewKDTree creates an empty KD-tree over the given dimensions.
func NewKDTree(desc []Dimension) *KDTree {
	return &KDTree{
		dims:   len(desc),
		desc:   desc,
		metric: circularMetric{desc: desc},
		root:   -1,
		lo:     make([]float64, len(desc)),
		hi:     make([]float64, len(desc)),
	}
}

// Len returns the number of live entries.
func (t *KDTree) Len() int { return t.live }

// canonical folds circular coordinates of point into their dimension's
// range. point is returned as is when nothing needs folding.
func (t *KDTree) canonical(point []float64) []float64 {
	out := point
	for i, d := range t.desc {
		if !d.Circular {
			continue
		}
		v, _ := d.normalize(point[i])
		if v == point[i] {
			continue
		}
		if &out[0] == &point[0] {
			out = make([]float64, len(point))
			copy(out, point)
		}
		out[i] = v
	}
	return out
}

// Insert stores id at point. Circular coordinates outside their range are
// stored folded back into it.
func (t *KDTree) Insert(point []float64, id int) {
	point = t.canonical(point)
	idx := len(t.nodes)
	t.nodes = append(t.nodes, kdNode{point: point, id: id, left: -1, right: -1, parent: -1, live: 1})
	t.live++

	if t.root < 0 {
		t.root = idx
		return
	}

	cur := t.root
	for {
		n := &t.nodes[cur]
		n.live++
		next := &n.right
		if point[n.axis] < n.point[n.axis] {
			next = &n.left
		}
		if *next < 0 {
			*next = idx
			t.nodes[idx].parent = cur
			t.nodes[idx].axis = (n.axis + 1) % t.dims
			return
		}
		cur = *next
	}
}

// Delete removes the live entry for id stored at point.
func (t *KDTree) Delete(point []float64, id int) bool {
	if t.root < 0 {
		return false
	}
	point = t.canonical(point)
	cur := t.root
	for cur >= 0 {
		n := &t.nodes[cur]
		if n.id == id && !n.deleted && samePoint(n.point, point) {
			break
		}
		if point[n.axis] < n.point[n.axis] {
			cur = n.left
		} else {
			cur = n.right
		}
	}
	if cur < 0 {
		return false
	}

	t.nodes[cur].deleted = true
	for p := cur; p >= 0; p = t.nodes[p].parent {
		t.nodes[p].live--
	}
	t.live--
	t.dead++

	if t.dead > t.live && len(t.nodes) >= minRebuildSize {
		t.rebuild()
	}
	return true
}

func samePoint(a, b []float64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Walk visits every live entry in preorder.
func (t *KDTree) Walk(visit func(point []float64, id int)) {
	if t.root < 0 {
		return
	}
	stack := []int{t.root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := &t.nodes[cur]
		if n.live == 0 {
			continue
		}
		if !n.deleted {
			visit(n.point, n.id)
		}
		if n.right >= 0 {
			stack = append(stack, n.right)
		}
		if n.left >= 0 {
			stack = append(stack, n.left)
		}
	}
}

// Nearest finds up to k live entries within maxDistance of point.
func (t *KDTree) Nearest(point []float64, k int, maxDistance float64) []Neighbor {
	if k <= 0 || t.root < 0 || t.live == 0 {
		return nil
	}
	point = t.canonical(point)
	for i, d := range t.desc {
		if d.Circular {
			t.lo[i], t.hi[i] = d.Min, d.Max
		} else {
			t.lo[i], t.hi[i] = math.Inf(-1), math.Inf(1)
		}
	}

	h := &knnHeap{}
	t.knnSearch(t.root, point, k, maxDistance, h)

	out := make([]Neighbor, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		item := heap.Pop(h).(knnItem)
		n := &t.nodes[item.node]
		out[i] = Neighbor{ID: n.id, Point: n.point, Distance: item.dist}
	}
	return out
}

func (t *KDTree) knnSearch(cur int, query []float64, k int, maxDistance float64, h *knnHeap) {
	n := &t.nodes[cur]
	if n.live == 0 {
		return
	}

	if !n.deleted {
		d := t.metric.Distance(query, n.point)
		if d <= maxDistance {
			if h.Len() < k {
				heap.Push(h, knnItem{node: cur, dist: d})
			} else if d < (*h)[0].dist {
				(*h)[0] = knnItem{node: cur, dist: d}
				heap.Fix(h, 0)
			}
		}
	}

	axis := n.axis
	split := n.point[axis]
	near, far := n.left, n.right
	nearIsLeft := true
	if query[axis] >= split {
		near, far = n.right, n.left
		nearIsLeft = false
	}

	if near >= 0 {
		t.visitChild(near, nearIsLeft, axis, split, query, k, maxDistance, h)
	}
	if far >= 0 {
		t.visitChild(far, !nearIsLeft, axis, split, query, k, maxDistance, h)
	}
}

// visitChild narrows the search box to the child's half-space and descends
// only if the box can still hold something closer than the current k-th best.
func (t *KDTree) visitChild(child int, isLeft bool, axis int, split float64, query []float64, k int, maxDistance float64, h *knnHeap) {
	if t.nodes[child].live == 0 {
		return
	}
	var saved float64
	if isLeft {
		saved = t.hi[axis]
		t.hi[axis] = split
	} else {
		saved = t.lo[axis]
		t.lo[axis] = split
	}

	bound := t.boxDistance(query)
	if bound <= maxDistance && (h.Len() < k || bound < (*h)[0].dist) {
		t.knnSearch(child, query, k, maxDistance, h)
	}

	if isLeft {
		t.hi[axis] = saved
	} else {
		t.lo[axis] = saved
	}
}

// boxDistance is a lower bound on the distance from query to any point in
// the current search box.
func (t *KDTree) boxDistance(query []float64) float64 {
	var sum float64
	for j := 0; j < t.dims; j++ {
		g := t.metric.axisGap(j, query[j], t.lo[j], t.hi[j])
		sum += g * g
	}
	return math.Sqrt(sum)
}

// rebuild discards tombstones and rebuilds a balanced tree from the live
// entries by splitting at the median of the widest axis.
func (t *KDTree) rebuild() {
	type entry struct {
		point []float64
		id    int
	}
	entries := make([]entry, 0, t.live)
	t.Walk(func(point []float64, id int) {
		entries = append(entries, entry{point: point, id: id})
	})

	t.nodes = make([]kdNode, 0, len(entries))
	t.root = -1
	t.live = len(entries)
	t.dead = 0
	if len(entries) == 0 {
		return
	}

	points := make([][]float64, len(entries))
	ids := make([]int, len(entries))
	for i, e := range entries {
		points[i] = e.point
		ids[i] = e.id
	}
	t.root = t.buildNode(points, ids, -1)
}

func (t *KDTree) buildNode(points [][]float64, ids []int, parent int) int {
	if len(points) == 0 {
		return -1
	}

	// Find dimension with greatest spread.
	axis := 0
	maxSpread := -1.0
	for d := 0; d < t.dims; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range points {
			lo = math.Min(lo, p[d])
			hi = math.Max(hi, p[d])
		}
		if hi-lo > maxSpread {
			maxSpread = hi - lo
			axis = d
		}
	}

	sort.Stable(byAxis{points: points, ids: ids, axis: axis})

	// Entries equal to the split value must sit on the right so that Delete
	// can follow the same path Insert took.
	mid := len(points) / 2
	for mid > 0 && points[mid-1][axis] == points[mid][axis] {
		mid--
	}

	idx := len(t.nodes)
	t.nodes = append(t.nodes, kdNode{
		point:  points[mid],
		id:     ids[mid],
		axis:   axis,
		parent: parent,
		live:   len(points),
	})
	left := t.buildNode(points[:mid], ids[:mid], idx)
	right := t.buildNode(points[mid+1:], ids[mid+1:], idx)
	t.nodes[idx].left = left
	t.nodes[idx].right = right
	return idx
}

type byAxis struct {
	points [][]float64
	ids    []int
	axis   int
}

func (b byAxis) Len() int           { return len(b.points) }
func (b byAxis) Less(i, j int) bool { return b.points[i][b.axis] < b.points[j][b.axis] }
func (b byAxis) Swap(i, j int) {
	b.points[i], b.points[j] = b.points[j], b.points[i]
	b.ids[i], b.ids[j] = b.ids[j], b.ids[i]
}

// --- max-heap for KNN queries ---

type knnItem struct {
	node int
	dist float64
}

// knnHeap is a max-heap of knnItem (largest distance on top) used as a
// bounded priority queue for KNN queries.
type knnHeap []knnItem

func (h knnHeap) Len() int           { return len(h) }
func (h knnHeap) Less(i, j int) bool { return h[i].dist > h[j].dist } // max-heap
func (h knnHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *knnHeap) Push(x any)        { *h = append(*h, x.(knnItem)) }
func (h *knnHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
