package protoclust

// Neighbor is one result of a nearest-neighbor query.
type Neighbor struct {
	ID       int
	Point    []float64
	Distance float64
}

// SpatialIndex is the narrow interface the tree builder needs from a
// nearest-neighbor structure. Entries are identified by (point, id); the point
// passed to Delete must be the one passed to Insert.
type SpatialIndex interface {
	// Insert stores id at point. The index keeps a reference to point, so
	// callers must not modify it while the entry is stored.
	Insert(point []float64, id int)

	// Delete removes the entry stored for id at point and reports whether it
	// was found.
	Delete(point []float64, id int) bool

	// Nearest returns up to k live entries within maxDistance of point,
	// sorted by ascending distance.
	Nearest(point []float64, k int, maxDistance float64) []Neighbor

	// Walk calls visit once for every live entry.
	Walk(visit func(point []float64, id int))

	// Len returns the number of live entries.
	Len() int
}
