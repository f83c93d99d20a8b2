package raycast

import (
	"math"

	"github.com/chazu/sleeve/pkg/kernel"
	"github.com/chazu/sleeve/pkg/model"
)

const (
	// SurfaceEpsilon is the distance at which a ray point counts as lying
	// on a surface.
	SurfaceEpsilon = 1e-7

	// skin is how far the tracer steps past a recorded crossing before it
	// resumes, so the same face is not reported twice.
	skin = 1e-4

	// maxSteps bounds the march along one ray through one solid.
	maxSteps = 10000

	// boxPad widens bounding boxes before clipping so faces lying exactly
	// on the box are not lost to rounding.
	boxPad = 1e-6
)

// ClipBox intersects the ray origin + t*dir with the axis-aligned box
// [min, max] using the slab method. It returns the parametric interval
// inside the box, or ok == false if the ray misses it or the box lies
// entirely behind the origin.
func ClipBox(min, max [3]float64, origin, dir model.Vec3) (tNear, tFar float64, ok bool) {
	o := origin.Array()
	d := dir.Array()
	tNear = math.Inf(-1)
	tFar = math.Inf(1)

	for i := 0; i < 3; i++ {
		if d[i] == 0 {
			// Parallel to the slab: inside it or not at all.
			if o[i] < min[i] || o[i] > max[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / d[i]
		t0 := (min[i] - o[i]) * inv
		t1 := (max[i] - o[i]) * inv
		if inv < 0 {
			t0, t1 = t1, t0
		}
		if t0 > tNear {
			tNear = t0
		}
		if t1 < tFar {
			tFar = t1
		}
		if tFar < tNear {
			return 0, 0, false
		}
	}
	if tFar < 0 {
		return 0, 0, false
	}
	return tNear, tFar, true
}

// Crossings returns the distances along the ray at which it meets the
// surface of s, in ascending order. Only points at t >= 0 are reported. A
// ray passing through a closed solid yields two crossings; a ray starting
// inside yields only the exit.
//
// The solid's distance field is sphere-traced within the solid's bounding
// box, so the ray never jumps over a face.
func Crossings(s kernel.Solid, origin, dir model.Vec3) []float64 {
	lo, hi := s.BoundingBox()
	for i := 0; i < 3; i++ {
		lo[i] -= boxPad
		hi[i] += boxPad
	}
	tNear, tFar, ok := ClipBox(lo, hi, origin, dir)
	if !ok {
		return nil
	}

	var out []float64
	t := math.Max(tNear, 0)
	for step := 0; step < maxSteps && t <= tFar; step++ {
		d := s.Distance(origin.Add(dir.Scale(t)).Array())
		ad := math.Abs(d)
		if ad <= SurfaceEpsilon {
			out = append(out, t)
			t += skin
			continue
		}
		t += ad
	}
	return out
}
