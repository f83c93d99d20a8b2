// Package rtree implements raycast.Index over an R-tree of surface
// bounding boxes. The tree narrows a ray query to the surfaces whose boxes
// overlap the ray's reach; each candidate is then traced exactly against
// its solid.
package rtree

import (
	"math"
	"slices"

	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/raycast"
	"github.com/dhconnelly/rtreego"
)

// Compile-time interface check.
var _ raycast.Index = (*Index)(nil)

// Tree branching factors.
const (
	minChildren = 25
	maxChildren = 50
)

// queryPad widens ray query boxes on every side.
const queryPad = 1e-3

// entry is one indexed surface.
type entry struct {
	surface raycast.Surface
	bounds  rtreego.Rect
	seq     int // insertion order, used to break distance ties
}

// Bounds implements rtreego.Spatial.
func (e *entry) Bounds() rtreego.Rect {
	return e.bounds
}

// Index is an R-tree backed ray intersection index. It is read-only once
// built and safe for concurrent queries.
type Index struct {
	tree   *rtreego.Rtree
	class  model.Class
	view   model.ElementID
	extent [2][3]float64
	size   int
}

// NewIndex builds an index over the surfaces of the given class that are
// visible in view. Surfaces of other classes are ignored. A missing or
// template view is a *raycast.ConfigurationError.
func NewIndex(view *model.View3D, class model.Class, surfaces []raycast.Surface) (*Index, error) {
	if view == nil {
		return nil, &raycast.ConfigurationError{Reason: "no 3D view available"}
	}
	if view.IsTemplate {
		return nil, &raycast.ConfigurationError{Reason: "view " + view.Name + " is a template"}
	}

	ix := &Index{
		tree:  rtreego.NewTree(3, minChildren, maxChildren),
		class: class,
		view:  view.ID,
	}
	for i := 0; i < 3; i++ {
		ix.extent[0][i] = math.Inf(1)
		ix.extent[1][i] = math.Inf(-1)
	}

	for _, s := range surfaces {
		if s.Class != class || s.Solid == nil || hidden(view, s.Ref) {
			continue
		}
		min, max := s.Solid.BoundingBox()
		r, err := rtreego.NewRectFromPoints(min[:], max[:])
		if err != nil {
			return nil, &raycast.ConfigurationError{Reason: "surface " + s.Ref.String() + ": " + err.Error()}
		}
		ix.tree.Insert(&entry{surface: s, bounds: r, seq: ix.size})
		ix.size++
		for i := 0; i < 3; i++ {
			ix.extent[0][i] = math.Min(ix.extent[0][i], min[i])
			ix.extent[1][i] = math.Max(ix.extent[1][i], max[i])
		}
	}
	return ix, nil
}

// hidden reports whether a surface is invisible in the view. Linked
// surfaces are hidden with their link instance.
func hidden(view *model.View3D, ref model.SurfaceRef) bool {
	if ref.Container.IsLocal() {
		return view.IsHidden(ref.Element)
	}
	return view.IsHidden(model.ElementID(ref.Container))
}

// Len returns the number of indexed surfaces.
func (ix *Index) Len() int {
	return ix.size
}

// Class returns the surface class the index is restricted to.
func (ix *Index) Class() model.Class {
	return ix.class
}

// View returns the id of the view the index was built for.
func (ix *Index) View() model.ElementID {
	return ix.view
}

type hit struct {
	model.RayHit
	seq int
}

// Find returns every crossing of the ray with an indexed surface in
// ascending distance order. Equal distances keep surface insertion order.
func (ix *Index) Find(origin, direction model.Vec3) []model.RayHit {
	if ix.size == 0 {
		return nil
	}
	dir := direction.Normalize()
	if dir == (model.Vec3{}) {
		return nil
	}

	query, err := ix.reachRect(origin, dir)
	if err != nil {
		return nil
	}

	var hits []hit
	for _, sp := range ix.tree.SearchIntersect(query) {
		e := sp.(*entry)
		for _, t := range raycast.Crossings(e.surface.Solid, origin, dir) {
			hits = append(hits, hit{
				RayHit: model.RayHit{Surface: e.surface.Ref, Distance: t},
				seq:    e.seq,
			})
		}
	}

	slices.SortStableFunc(hits, func(a, b hit) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return a.seq - b.seq
	})

	out := make([]model.RayHit, len(hits))
	for i, h := range hits {
		out[i] = h.RayHit
	}
	return out
}

// reachRect returns the box spanned by the ray from origin out to the
// farthest corner of the index extent.
func (ix *Index) reachRect(origin, dir model.Vec3) (rtreego.Rect, error) {
	var reach float64
	for _, x := range [2]float64{ix.extent[0][0], ix.extent[1][0]} {
		for _, y := range [2]float64{ix.extent[0][1], ix.extent[1][1]} {
			for _, z := range [2]float64{ix.extent[0][2], ix.extent[1][2]} {
				reach = math.Max(reach, model.Vec3{X: x, Y: y, Z: z}.Sub(origin).Length())
			}
		}
	}
	end := origin.Add(dir.Scale(reach))
	lo, hi := origin.Array(), end.Array()
	for i := 0; i < 3; i++ {
		if lo[i] > hi[i] {
			lo[i], hi[i] = hi[i], lo[i]
		}
		// The tree treats touching boxes as disjoint.
		lo[i] -= queryPad
		hi[i] += queryPad
	}
	return rtreego.NewRectFromPoints(lo[:], hi[:])
}
