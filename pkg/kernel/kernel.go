// Package kernel defines the abstract geometry kernel interface.
// Implementations build the solids that stand in for wall bodies and
// answer signed-distance queries against them, which is all the ray
// index needs. The abstraction allows swapping backends without changing
// the rest of the system.
package kernel

// Solid is an opaque handle to a geometry kernel solid.
// Implementations wrap their internal representation.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max [3]float64)

	// Distance returns the signed distance from p to the solid's surface:
	// positive outside, negative inside, zero on the surface. It never
	// overestimates the true distance, so it is safe to step along a ray
	// by |Distance| without skipping a surface.
	Distance(p [3]float64) float64
}

// Kernel is the abstract geometry kernel interface.
type Kernel interface {
	// Box creates an x*y*z box with its minimum corner at the origin.
	Box(x, y, z float64) Solid

	// Transforms
	Translate(s Solid, x, y, z float64) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees
}
