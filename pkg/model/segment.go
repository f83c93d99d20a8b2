package model

import (
	"errors"
	"fmt"
)

// unitTolerance bounds how far a segment direction may drift from unit length.
const unitTolerance = 1e-9

// ErrZeroLength is returned when a curve's endpoints coincide.
var ErrZeroLength = errors.New("model: segment has zero length")

// Segment is a straight duct or pipe centerline: a start point, a unit
// direction and a positive length. Segments are immutable values.
type Segment struct {
	Origin    Vec3    `json:"origin"`
	Direction Vec3    `json:"direction"`
	Length    float64 `json:"length"`
}

// NewSegment builds the segment running from start to end.
func NewSegment(start, end Vec3) (Segment, error) {
	d := end.Sub(start)
	l := d.Length()
	if l == 0 {
		return Segment{}, ErrZeroLength
	}
	return Segment{Origin: start, Direction: d.Scale(1 / l), Length: l}, nil
}

// At returns the point at distance t from the origin along the direction.
func (s Segment) At(t float64) Vec3 {
	return s.Origin.Add(s.Direction.Scale(t))
}

// End returns the far endpoint of the segment.
func (s Segment) End() Vec3 {
	return s.At(s.Length)
}

// Valid reports whether s has a unit direction and a positive length.
func (s Segment) Valid() bool {
	return s.Length > 0 && s.Direction.IsUnit(unitTolerance)
}

// ---------------------------------------------------------------------------
// Curves
// ---------------------------------------------------------------------------

// CurveKind distinguishes the location curves an element can carry.
type CurveKind int

const (
	CurveLine CurveKind = iota
	CurveArc
)

func (k CurveKind) String() string {
	switch k {
	case CurveLine:
		return "line"
	case CurveArc:
		return "arc"
	default:
		return "unknown"
	}
}

// Curve is the location curve of a linear element.
type Curve interface {
	Kind() CurveKind
	// Endpoints returns the start and end of the curve.
	Endpoints() (start, end Vec3)
}

// Line is a straight location curve.
type Line struct {
	Start Vec3 `json:"start"`
	End   Vec3 `json:"end"`
}

func (Line) Kind() CurveKind { return CurveLine }

func (l Line) Endpoints() (Vec3, Vec3) { return l.Start, l.End }

// Arc is a circular location curve through Start, Mid and End.
type Arc struct {
	Start Vec3 `json:"start"`
	Mid   Vec3 `json:"mid"`
	End   Vec3 `json:"end"`
}

func (Arc) Kind() CurveKind { return CurveArc }

func (a Arc) Endpoints() (Vec3, Vec3) { return a.Start, a.End }

// MalformedSegmentError reports a curve that cannot be treated as a single
// straight segment. Callers skip the element; they must subdivide curved
// runs themselves if they want them processed.
type MalformedSegmentError struct {
	Element ElementID
	Kind    CurveKind
	Reason  string
}

func (e *MalformedSegmentError) Error() string {
	if e.Element.IsValid() {
		return fmt.Sprintf("element %s: malformed segment (%s): %s", e.Element, e.Kind, e.Reason)
	}
	return fmt.Sprintf("malformed segment (%s): %s", e.Kind, e.Reason)
}

// SegmentFromCurve converts a location curve to a segment. Only straight
// lines are accepted; anything else yields a *MalformedSegmentError.
func SegmentFromCurve(id ElementID, c Curve) (Segment, error) {
	if c == nil {
		return Segment{}, &MalformedSegmentError{Element: id, Reason: "element has no location curve"}
	}
	if c.Kind() != CurveLine {
		return Segment{}, &MalformedSegmentError{
			Element: id,
			Kind:    c.Kind(),
			Reason:  "only straight lines are supported",
		}
	}
	start, end := c.Endpoints()
	seg, err := NewSegment(start, end)
	if err != nil {
		return Segment{}, &MalformedSegmentError{Element: id, Kind: CurveLine, Reason: err.Error()}
	}
	return seg, nil
}
