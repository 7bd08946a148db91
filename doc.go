// Package protoclust turns labelled training samples into statistical
// prototypes for a nearest-prototype classifier.
//
// Clustering runs in two stages. First every sample is agglomerated into a
// binary cluster tree by repeatedly merging the closest pair of clusters,
// found with a KD-tree and a priority queue of candidate pairs. Then the tree
// is walked from the root: each cluster is tested against a family of
// distributions with chi-squared goodness-of-fit tests and either becomes a
// prototype or is split into its two children.
//
// Basic usage:
//
//	desc := []protoclust.Dimension{{Min: 0, Max: 1}, {Min: 0, Max: 1}}
//	e, err := protoclust.New(len(desc), desc)
//	for _, s := range samples {
//		e.AddSample(s.Feature, s.CharID)
//	}
//	protos, err := e.Cluster(protoclust.DefaultConfig())
//	// ...
//	e.Dispose()
//
// # Prototype styles
//
// Config.Style picks the shape fitted to each cluster:
//
//	protoclust.Spherical   // one normal variance shared by every dimension
//	protoclust.Elliptical  // one normal variance per dimension
//	protoclust.Mixed       // normal, uniform or random per dimension
//	protoclust.Automatic   // spherical, then elliptical, then mixed
//
// Clusters smaller than Config.MinSamples (a fraction of the number of
// characters) are not tested; they become prototypes with Significant set to
// false.
//
// # Dimensions
//
// Circular dimensions wrap from Max back to Min, so distances, means and
// offsets are taken along the shorter arc. NonEssential dimensions are
// skipped by the independence check and the goodness-of-fit tests.
//
// For many independent training sets, ClusterJobs runs one engine per set in
// parallel. WritePrototypes and WriteCompressed store the result.
package protoclust
