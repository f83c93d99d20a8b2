// Package penetration finds where duct and pipe centerlines cross walls.
//
// A Locator casts a ray along each segment, keeps the hits that lie within
// the segment, collapses hits on the same physical wall into one and
// reports a PenetrationPoint per remaining wall. Nothing here logs or
// mutates a model; placement is left to the caller.
package penetration
