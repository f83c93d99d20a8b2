package rtree

import (
	"errors"
	"testing"

	"github.com/chazu/sleeve/pkg/kernel/sdfx"
	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/raycast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-5

// xWall returns a 0.2 thick wall crossing the X axis at x.
func xWall(ref model.SurfaceRef, x float64) raycast.Surface {
	k := sdfx.New()
	return raycast.Surface{
		Ref:   ref,
		Class: model.ClassWall,
		Solid: k.Translate(k.Box(0.2, 10, 10), x, -5, -5),
	}
}

func view() *model.View3D {
	return &model.View3D{ID: 500, Name: "{3D}"}
}

func TestNewIndexRequiresView(t *testing.T) {
	_, err := NewIndex(nil, model.ClassWall, nil)
	var ce *raycast.ConfigurationError
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Reason, "no 3D view")

	_, err = NewIndex(&model.View3D{ID: 1, Name: "tmpl", IsTemplate: true}, model.ClassWall, nil)
	require.True(t, errors.As(err, &ce))
	assert.Contains(t, ce.Reason, "template")
}

func TestFindOrdersByDistance(t *testing.T) {
	ix, err := NewIndex(view(), model.ClassWall, []raycast.Surface{
		xWall(model.LocalSurface(3), 6),
		xWall(model.LocalSurface(1), 2),
		xWall(model.LocalSurface(2), 4),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, ix.Len())

	hits := ix.Find(model.Vec3{}, model.Vec3{X: 1})
	require.Len(t, hits, 6, "entry and exit face per wall")

	wantIDs := []model.ElementID{1, 1, 2, 2, 3, 3}
	wantDist := []float64{2, 2.2, 4, 4.2, 6, 6.2}
	for i, h := range hits {
		assert.Equal(t, wantIDs[i], h.Surface.Element, "hit %d", i)
		assert.InDelta(t, wantDist[i], h.Distance, tol, "hit %d", i)
	}
}

func TestFindAppliesNoDistanceBound(t *testing.T) {
	ix, err := NewIndex(view(), model.ClassWall, []raycast.Surface{
		xWall(model.LocalSurface(1), 400),
	})
	require.NoError(t, err)
	hits := ix.Find(model.Vec3{}, model.Vec3{X: 1})
	require.NotEmpty(t, hits)
	assert.InDelta(t, 400, hits[0].Distance, tol)
}

func TestFindMissesAndEmpty(t *testing.T) {
	ix, err := NewIndex(view(), model.ClassWall, []raycast.Surface{
		xWall(model.LocalSurface(1), 2),
	})
	require.NoError(t, err)
	assert.Empty(t, ix.Find(model.Vec3{}, model.Vec3{X: -1}))
	assert.Empty(t, ix.Find(model.Vec3{Y: 20}, model.Vec3{X: 1}))
	assert.Empty(t, ix.Find(model.Vec3{}, model.Vec3{}))

	empty, err := NewIndex(view(), model.ClassWall, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Find(model.Vec3{}, model.Vec3{X: 1}))
}

func TestNewIndexFiltersClassAndVisibility(t *testing.T) {
	floor := xWall(model.LocalSurface(7), 3)
	floor.Class = model.ClassFloor

	v := view()
	v.Hidden = []model.ElementID{2, 900}

	ix, err := NewIndex(v, model.ClassWall, []raycast.Surface{
		xWall(model.LocalSurface(1), 2),
		xWall(model.LocalSurface(2), 4),       // hidden
		xWall(model.LinkedSurface(900, 5), 5), // hidden with its link
		xWall(model.LinkedSurface(901, 2), 6), // visible, shares id 2 with a hidden local wall
		floor,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, model.ClassWall, ix.Class())
	assert.Equal(t, model.ElementID(500), ix.View())

	var refs []model.SurfaceRef
	for _, h := range ix.Find(model.Vec3{}, model.Vec3{X: 1}) {
		refs = append(refs, h.Surface)
	}
	assert.Equal(t, []model.SurfaceRef{
		model.LocalSurface(1), model.LocalSurface(1),
		model.LinkedSurface(901, 2), model.LinkedSurface(901, 2),
	}, refs)
}

func TestFindConcurrent(t *testing.T) {
	ix, err := NewIndex(view(), model.ClassWall, []raycast.Surface{
		xWall(model.LocalSurface(1), 2),
		xWall(model.LocalSurface(2), 4),
	})
	require.NoError(t, err)

	done := make(chan int)
	for i := 0; i < 8; i++ {
		go func() {
			done <- len(ix.Find(model.Vec3{}, model.Vec3{X: 1}))
		}()
	}
	for i := 0; i < 8; i++ {
		assert.Equal(t, 4, <-done)
	}
}
