package protoclust

// Linkage returns the merge history of the cluster tree as a dendrogram in
// scipy format: one [left, right, distance, size] row per merge, in merge
// order. Samples keep their ids 0..n-1 and the cluster created by row i has
// id n+i. Merges join centroids, so distances are not guaranteed to be
// monotone and tools that require a monotone linkage may reject the rows.
// It returns nil before the tree is built and after Dispose.
func (e *Engine) Linkage() [][4]float64 {
	if e.tree == nil || e.tree.disposed || e.tree.root < 0 {
		return nil
	}
	n := e.tree.nodes[e.tree.root].count
	rows := make([][4]float64, 0, n-1)
	for _, c := range e.tree.nodes[n:] {
		rows = append(rows, [4]float64{float64(c.left), float64(c.right), c.distance, float64(c.count)})
	}
	return rows
}
