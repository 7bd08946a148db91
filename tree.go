package protoclust

// node is one entry of the cluster arena. Samples occupy the first n slots in
// insertion order; merged clusters are appended in merge order.
type node struct {
	mean         []float64
	count        int
	left, right  int // -1 for samples
	charID       int // -1 for merged clusters
	distance     float64
	merged       bool
	hasPrototype bool
}

func (n *node) isLeaf() bool { return n.left < 0 }

// clusterTree owns every sample and cluster of one engine. A nil nodes slice
// after dispose makes every outstanding ClusterRef resolve to nothing.
type clusterTree struct {
	nodes    []node
	root     int
	disposed bool
}

func newClusterTree(capacity int) *clusterTree {
	return &clusterTree{nodes: make([]node, 0, capacity), root: -1}
}

func (t *clusterTree) addSample(mean []float64, charID int) int {
	t.nodes = append(t.nodes, node{mean: mean, count: 1, left: -1, right: -1, charID: charID})
	return len(t.nodes) - 1
}

// merge appends a new cluster with children a and b. a and b are marked
// merged; the caller removes them from the spatial index.
func (t *clusterTree) merge(desc []Dimension, a, b int, distance float64) int {
	l, r := &t.nodes[a], &t.nodes[b]
	mean := make([]float64, len(desc))
	count := mergeMeans(desc, l.count, r.count, mean, l.mean, r.mean)
	l.merged = true
	r.merged = true
	t.nodes = append(t.nodes, node{
		mean:     mean,
		count:    count,
		left:     a,
		right:    b,
		charID:   -1,
		distance: distance,
	})
	return len(t.nodes) - 1
}

// walkSamples visits the samples beneath id left to right, using an explicit
// stack so that arbitrarily deep trees are safe. It stops early when visit
// returns false.
func (t *clusterTree) walkSamples(id int, visit func(sample int) bool) {
	stack := make([]int, 0, 32)
	stack = append(stack, id)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for {
			n := &t.nodes[cur]
			if n.isLeaf() {
				if !visit(cur) {
					return
				}
				break
			}
			stack = append(stack, n.right)
			cur = n.left
		}
	}
}

func (t *clusterTree) clearPrototypes() {
	for i := range t.nodes {
		t.nodes[i].hasPrototype = false
	}
}

func (t *clusterTree) dispose() {
	t.nodes = nil
	t.root = -1
	t.disposed = true
}

// ClusterRef is a weak reference to a node of an engine's cluster tree. It
// stays valid until the engine is disposed, after which Resolve reports false.
// The zero value refers to nothing.
type ClusterRef struct {
	tree *clusterTree
	id   int
}

// Valid reports whether the reference still resolves.
func (r ClusterRef) Valid() bool {
	return r.tree != nil && !r.tree.disposed && r.id >= 0 && r.id < len(r.tree.nodes)
}

// ID returns the arena index of the referenced cluster, or -1 if the
// reference no longer resolves.
func (r ClusterRef) ID() int {
	if !r.Valid() {
		return -1
	}
	return r.id
}

// Resolve returns a snapshot of the referenced cluster.
func (r ClusterRef) Resolve() (Cluster, bool) {
	if !r.Valid() {
		return Cluster{}, false
	}
	n := &r.tree.nodes[r.id]
	c := Cluster{
		ID:           r.id,
		Mean:         n.mean,
		Count:        n.count,
		CharID:       n.charID,
		Distance:     n.distance,
		Merged:       n.merged,
		HasPrototype: n.hasPrototype,
	}
	if !n.isLeaf() {
		c.Left = ClusterRef{tree: r.tree, id: n.left}
		c.Right = ClusterRef{tree: r.tree, id: n.right}
	}
	return c, true
}

// Samples returns the ids of every sample beneath the referenced cluster in
// left-to-right order, or nil if the reference no longer resolves.
func (r ClusterRef) Samples() []int {
	if !r.Valid() {
		return nil
	}
	out := make([]int, 0, r.tree.nodes[r.id].count)
	r.tree.walkSamples(r.id, func(s int) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Cluster is a read-only snapshot of a cluster tree node. Mean aliases the
// engine's storage and must not be modified.
type Cluster struct {
	ID    int
	Mean  []float64
	Count int

	// Left and Right are the children of a merged cluster; both are zero
	// references for a sample.
	Left, Right ClusterRef

	// CharID is the character a sample came from, -1 for merged clusters.
	CharID int

	// Distance is the merge distance that created this cluster (0 for samples).
	Distance float64

	Merged       bool
	HasPrototype bool
}

// IsLeaf reports whether the cluster is a single sample.
func (c Cluster) IsLeaf() bool { return c.Left.tree == nil }
