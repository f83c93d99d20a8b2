package penetration

import (
	"context"
	"fmt"

	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/raycast"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// PenetrationPoint is one deduplicated crossing of a segment with a wall.
type PenetrationPoint struct {
	Position       model.Vec3       `json:"position"`
	Surface        model.SurfaceRef `json:"surface"`
	Distance       float64          `json:"distance"` // from the segment origin
	SourceDiameter float64          `json:"source_diameter"`
}

// PlacementRequest asks for one opening on a host wall.
type PlacementRequest struct {
	Position model.Vec3       `json:"position"`
	Host     model.SurfaceRef `json:"host"`
	Width    float64          `json:"width"`
	Height   float64          `json:"height"`
}

// Request returns the placement for p. Openings are square, sized to the
// bounding box of the round element that passes through them.
func (p PenetrationPoint) Request() PlacementRequest {
	return PlacementRequest{
		Position: p.Position,
		Host:     p.Surface,
		Width:    p.SourceDiameter,
		Height:   p.SourceDiameter,
	}
}

// Locator finds the wall crossings of straight segments.
type Locator struct {
	index raycast.Index
}

// NewLocator returns a locator that queries index.
func NewLocator(index raycast.Index) *Locator {
	return &Locator{index: index}
}

// Locate casts a ray from the segment origin along its direction and
// returns one point per wall the segment crosses, nearest first. Hits past
// the segment end are not crossings of this segment. A segment that
// crosses nothing yields an empty slice.
func (l *Locator) Locate(seg model.Segment, diameter float64) []PenetrationPoint {
	hits := l.index.Find(seg.Origin, seg.Direction)

	within := lo.Filter(hits, func(h model.RayHit, _ int) bool {
		return h.Distance >= 0 && h.Distance <= seg.Length
	})

	return lo.Map(Dedup(within), func(h model.RayHit, _ int) PenetrationPoint {
		return PenetrationPoint{
			Position:       seg.At(h.Distance),
			Surface:        h.Surface,
			Distance:       h.Distance,
			SourceDiameter: diameter,
		}
	})
}

// ElementResult is the outcome of locating one linear element. Err is set,
// and Points empty, when the element's curve is not a straight segment.
type ElementResult struct {
	Element *model.LinearElement
	Segment model.Segment
	Points  []PenetrationPoint
	Err     error
}

// Skipped reports whether the element was rejected.
func (r ElementResult) Skipped() bool {
	return r.Err != nil
}

// LocateAll runs Locate for every element on up to workers goroutines and
// returns the results in input order. Malformed elements are reported in
// their ElementResult and do not stop the run; only cancellation of ctx
// does. workers <= 0 means no limit.
func (l *Locator) LocateAll(ctx context.Context, elements []*model.LinearElement, workers int) ([]ElementResult, error) {
	results := make([]ElementResult, len(elements))

	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}

	for i, e := range elements {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r := ElementResult{Element: e}
			seg, err := e.Segment()
			if err != nil {
				r.Err = err
			} else {
				r.Segment = seg
				r.Points = l.Locate(seg, e.Diameter)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("penetration: locate: %w", err)
	}
	return results, nil
}
