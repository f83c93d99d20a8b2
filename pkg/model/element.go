package model

import "math"

// Class enumerates the element classes a document holds.
type Class int

const (
	ClassWall Class = iota
	ClassFloor
	ClassDuct
	ClassPipe
	ClassLevel
	ClassFamilySymbol
	ClassView3D
	ClassLinkInstance
)

func (c Class) String() string {
	switch c {
	case ClassWall:
		return "wall"
	case ClassFloor:
		return "floor"
	case ClassDuct:
		return "duct"
	case ClassPipe:
		return "pipe"
	case ClassLevel:
		return "level"
	case ClassFamilySymbol:
		return "family-symbol"
	case ClassView3D:
		return "view3d"
	case ClassLinkInstance:
		return "link-instance"
	default:
		return "unknown"
	}
}

// Level is a named elevation that hosts walls and openings.
type Level struct {
	ID        ElementID `json:"id"`
	Name      string    `json:"name"`
	Elevation float64   `json:"elevation"`
}

// Wall is a straight wall defined by its baseline. The wall body is
// centred on the baseline, Thickness wide, rising Height from its level's
// elevation plus BaseOffset.
type Wall struct {
	ID         ElementID `json:"id"`
	LevelID    ElementID `json:"level_id"`
	Start      Vec3      `json:"start"`
	End        Vec3      `json:"end"`
	Thickness  float64   `json:"thickness"`
	Height     float64   `json:"height"`
	BaseOffset float64   `json:"base_offset,omitempty"`
}

// Length returns the plan length of the baseline.
func (w Wall) Length() float64 {
	d := w.End.Sub(w.Start)
	return math.Hypot(d.X, d.Y)
}

// Heading returns the plan angle of the baseline in degrees from +X.
func (w Wall) Heading() float64 {
	d := w.End.Sub(w.Start)
	return math.Atan2(d.Y, d.X) * 180 / math.Pi
}

// Floor is a horizontal slab. Floors are indexable surfaces of a different
// class than walls and never receive openings.
type Floor struct {
	ID        ElementID `json:"id"`
	LevelID   ElementID `json:"level_id"`
	Min       Vec3      `json:"min"` // plan corner, Z ignored
	Max       Vec3      `json:"max"` // plan corner, Z ignored
	Thickness float64   `json:"thickness"`
}

// LinearKind distinguishes ducts from pipes.
type LinearKind int

const (
	KindDuct LinearKind = iota
	KindPipe
)

func (k LinearKind) String() string {
	switch k {
	case KindDuct:
		return "duct"
	case KindPipe:
		return "pipe"
	default:
		return "unknown"
	}
}

// LinearElement is a duct or pipe run with a round cross-section.
type LinearElement struct {
	ID       ElementID  `json:"id"`
	Kind     LinearKind `json:"kind"`
	Curve    Curve      `json:"-"`
	Diameter float64    `json:"diameter"`
}

// Segment converts the element's location curve to a straight segment.
func (e LinearElement) Segment() (Segment, error) {
	return SegmentFromCurve(e.ID, e.Curve)
}

// FamilySymbol is a loadable type that openings are instantiated from.
type FamilySymbol struct {
	ID         ElementID `json:"id"`
	FamilyName string    `json:"family_name"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
}

// CategoryGenericModel is the category opening families are loaded under.
const CategoryGenericModel = "generic-model"

// View3D is a 3D view. Ray queries run in the context of one view; template
// views cannot be used, and hidden elements are invisible to the query.
type View3D struct {
	ID         ElementID   `json:"id"`
	Name       string      `json:"name"`
	IsTemplate bool        `json:"is_template"`
	Hidden     []ElementID `json:"hidden,omitempty"`
}

// IsHidden reports whether id is hidden in the view.
func (v *View3D) IsHidden(id ElementID) bool {
	for _, h := range v.Hidden {
		if h == id {
			return true
		}
	}
	return false
}

// LinkInstance places another document inside the host model, shifted by
// Offset.
type LinkInstance struct {
	ID       ElementID `json:"id"`
	Document string    `json:"document"` // title of the linked document
	Offset   Vec3      `json:"offset,omitempty"`
}
