package model

import "fmt"

// SurfaceRef is the identity of a wall surface: the model it lives in and
// its element id within that model. Two refs name the same physical wall
// iff both fields match.
type SurfaceRef struct {
	Container ContainerID `json:"container"`
	Element   ElementID   `json:"element"`
}

// LocalSurface returns a ref to an element of the host model.
func LocalSurface(id ElementID) SurfaceRef {
	return SurfaceRef{Container: LocalContainer, Element: id}
}

// LinkedSurface returns a ref to an element reached through link instance link.
func LinkedSurface(link ElementID, id ElementID) SurfaceRef {
	return SurfaceRef{Container: ContainerID(link), Element: id}
}

// Equal reports whether r and o name the same physical surface.
func (r SurfaceRef) Equal(o SurfaceRef) bool {
	return r.Container == o.Container && r.Element == o.Element
}

// Hash combines the container and element hashes with an order-sensitive
// multiply/xor, so that swapping the two fields does not trivially collide.
// Equal refs always hash equal.
func (r SurfaceRef) Hash() uint64 {
	return (hashID(int64(r.Container)) * 397) ^ hashID(int64(r.Element))
}

func (r SurfaceRef) String() string {
	return fmt.Sprintf("%s/%s", r.Container, r.Element)
}

// RayHit is a single candidate crossing reported by a ray index. A ray can
// report the same surface several times (entry and exit faces, coincident
// sub-faces).
type RayHit struct {
	Surface  SurfaceRef `json:"surface"`
	Distance float64    `json:"distance"` // from the ray origin along its direction, >= 0
}
