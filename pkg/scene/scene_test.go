package scene_test

import (
	"testing"

	"github.com/chazu/sleeve/pkg/kernel"
	"github.com/chazu/sleeve/pkg/kernel/sdfx"
	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/raycast/rtree"
	"github.com/chazu/sleeve/pkg/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tol = 1e-6

// newKernel returns a fresh sdfx kernel for testing.
func newKernel() kernel.Kernel {
	return sdfx.New()
}

func assertBounds(t *testing.T, s kernel.Solid, wantMin, wantMax [3]float64) {
	t.Helper()
	min, max := s.BoundingBox()
	for i := 0; i < 3; i++ {
		assert.InDelta(t, wantMin[i], min[i], tol, "min[%d]", i)
		assert.InDelta(t, wantMax[i], max[i], tol, "max[%d]", i)
	}
}

func hostProject() *model.Project {
	ar := model.NewDocument("AR")
	ar.Levels = []*model.Level{{ID: 1, Name: "L1", Elevation: 10}}
	ar.Walls = []*model.Wall{
		{ID: 10, LevelID: 1, Start: model.Vec3{}, End: model.Vec3{Y: 5}, Thickness: 0.2, Height: 3},
	}
	ar.Floors = []*model.Floor{
		{ID: 20, LevelID: 1, Min: model.Vec3{}, Max: model.Vec3{X: 4, Y: 3}, Thickness: 0.25},
	}
	p := model.NewProject()
	p.AddDocument(ar)
	return p
}

func TestWallSolidAlongX(t *testing.T) {
	w := &model.Wall{ID: 1, Start: model.Vec3{X: 1, Y: 2}, End: model.Vec3{X: 5, Y: 2}, Thickness: 0.3, Height: 2.5, BaseOffset: 0.5}
	s := scene.WallSolid(newKernel(), w, &model.Level{ID: 1, Elevation: 3}, model.Vec3{})
	assertBounds(t, s, [3]float64{1, 1.85, 3.5}, [3]float64{5, 2.15, 6})
}

func TestBuildHostDocument(t *testing.T) {
	surfaces, err := scene.Build(hostProject(), newKernel())
	require.NoError(t, err)
	require.Len(t, surfaces, 2)

	wall := surfaces[0]
	assert.Equal(t, model.LocalSurface(10), wall.Ref)
	assert.Equal(t, model.ClassWall, wall.Class)
	// A wall running along +Y is rotated a quarter turn about Z.
	assertBounds(t, wall.Solid, [3]float64{-0.1, 0, 10}, [3]float64{0.1, 5, 13})

	floor := surfaces[1]
	assert.Equal(t, model.LocalSurface(20), floor.Ref)
	assert.Equal(t, model.ClassFloor, floor.Class)
	assertBounds(t, floor.Solid, [3]float64{0, 0, 9.75}, [3]float64{4, 3, 10})
}

func TestBuildLinkedDocument(t *testing.T) {
	p := hostProject()
	p.Active().Links = []*model.LinkInstance{{ID: 900, Document: "AR-linked", Offset: model.Vec3{X: 100}}}

	linked := model.NewDocument("AR-linked")
	linked.Levels = []*model.Level{{ID: 1, Name: "L1"}}
	linked.Walls = []*model.Wall{
		{ID: 10, LevelID: 1, Start: model.Vec3{}, End: model.Vec3{X: 2}, Thickness: 0.2, Height: 3},
	}
	p.AddDocument(linked)

	surfaces, err := scene.Build(p, newKernel())
	require.NoError(t, err)
	require.Len(t, surfaces, 3)

	got := surfaces[2]
	assert.Equal(t, model.LinkedSurface(900, 10), got.Ref)
	assert.False(t, got.Ref.Equal(surfaces[0].Ref), "same element id in another container")
	assertBounds(t, got.Solid, [3]float64{100, -0.1, 0}, [3]float64{102, 0.1, 3})
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *model.Project)
		want   string
	}{
		{
			name:   "missing level",
			mutate: func(p *model.Project) { p.Active().Walls[0].LevelID = 99 },
			want:   "level 99 not found",
		},
		{
			name: "missing linked document",
			mutate: func(p *model.Project) {
				p.Active().Links = []*model.LinkInstance{{ID: 900, Document: "OV"}}
			},
			want: `document "OV" is not open`,
		},
		{
			name: "self link",
			mutate: func(p *model.Project) {
				p.Active().Links = []*model.LinkInstance{{ID: 900, Document: "AR"}}
			},
			want: "links to itself",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := hostProject()
			tt.mutate(p)
			_, err := scene.Build(p, newKernel())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuildEmptyProject(t *testing.T) {
	surfaces, err := scene.Build(model.NewProject(), newKernel())
	require.NoError(t, err)
	assert.Nil(t, surfaces)
}

func TestBuiltSurfacesAreIndexable(t *testing.T) {
	surfaces, err := scene.Build(hostProject(), newKernel())
	require.NoError(t, err)

	ix, err := rtree.NewIndex(&model.View3D{ID: 1, Name: "{3D}"}, model.ClassWall, surfaces)
	require.NoError(t, err)
	assert.Equal(t, 1, ix.Len(), "floors are filtered out of a wall index")

	hits := ix.Find(model.Vec3{X: -2, Y: 1, Z: 11}, model.Vec3{X: 1})
	require.Len(t, hits, 2)
	assert.InDelta(t, 1.9, hits[0].Distance, 1e-5)
	assert.InDelta(t, 2.1, hits[1].Distance, 1e-5)
}
