// Package raycast defines the ray intersection index the penetration
// locator queries, together with the narrowphase routines that turn a
// kernel solid into the distances at which a ray crosses its surface.
package raycast

import (
	"fmt"

	"github.com/chazu/sleeve/pkg/kernel"
	"github.com/chazu/sleeve/pkg/model"
)

// Index answers ray queries against a pre-built set of surfaces. An index
// is restricted at construction time to a single surface class and a
// single view. Find returns every hit along the ray, in ascending distance
// order, and applies no distance bound; callers filter. The same surface
// may appear more than once, for example at its entry and exit faces.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Index interface {
	Find(origin, direction model.Vec3) []model.RayHit
}

// IndexFunc adapts an ordinary function to the Index interface.
type IndexFunc func(origin, direction model.Vec3) []model.RayHit

// Find calls f(origin, direction).
func (f IndexFunc) Find(origin, direction model.Vec3) []model.RayHit {
	return f(origin, direction)
}

// Surface is one indexable target: its identity, its class and the solid
// that stands in for its body.
type Surface struct {
	Ref   model.SurfaceRef
	Class model.Class
	Solid kernel.Solid
}

// ConfigurationError reports that no usable 3D context exists for building
// an index. It is fatal to a run and is raised before any segment is
// processed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("raycast: configuration error: %s", e.Reason)
}
