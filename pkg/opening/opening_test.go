package opening

import (
	"errors"
	"fmt"
	"testing"

	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/penetration"
	"github.com/chazu/sleeve/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProject() *model.Project {
	ar := model.NewDocument("AR")
	ar.Levels = []*model.Level{{ID: 1, Name: "L1"}}
	ar.Walls = []*model.Wall{{ID: 10, LevelID: 1, End: model.Vec3{X: 5}, Thickness: 0.2, Height: 3}}
	ar.Links = []*model.LinkInstance{{ID: 900, Document: "AR-2"}, {ID: 901, Document: "closed"}}

	linked := model.NewDocument("AR-2")
	linked.Levels = []*model.Level{{ID: 2, Name: "Linked L1"}}
	linked.Walls = []*model.Wall{
		{ID: 10, LevelID: 2, End: model.Vec3{Y: 5}, Thickness: 0.2, Height: 3},
		{ID: 11, LevelID: 77, End: model.Vec3{Y: 5}, Thickness: 0.2, Height: 3},
	}

	p := model.NewProject()
	p.AddDocument(ar)
	p.AddDocument(linked)
	return p
}

func TestProjectResolver(t *testing.T) {
	r := NewProjectResolver(testProject())

	wall, level, err := r.ResolveWall(model.LocalSurface(10))
	require.NoError(t, err)
	assert.Equal(t, model.ElementID(10), wall.ID)
	assert.Equal(t, "L1", level.Name)

	wall, level, err = r.ResolveWall(model.LinkedSurface(900, 10))
	require.NoError(t, err)
	assert.Equal(t, model.Vec3{Y: 5}, wall.End, "linked wall comes from the linked document")
	assert.Equal(t, "Linked L1", level.Name)

	tests := []struct {
		name string
		ref  model.SurfaceRef
		want error
	}{
		{"unknown local wall", model.LocalSurface(99), ErrWallNotFound},
		{"unknown link", model.LinkedSurface(555, 10), ErrWallNotFound},
		{"link to closed document", model.LinkedSurface(901, 10), ErrWallNotFound},
		{"dangling level", model.LinkedSurface(900, 11), ErrLevelNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := r.ResolveWall(tt.ref)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, _, err = NewProjectResolver(model.NewProject()).ResolveWall(model.LocalSurface(1))
	assert.ErrorIs(t, err, ErrWallNotFound)
}

// recordingSink captures calls in memory.
type recordingSink struct {
	created []*store.Opening
	params  map[string]map[string]float64
	failOn  string
}

func (s *recordingSink) CreateOpening(o *store.Opening) error {
	if s.failOn == "create" {
		return errors.New("disk full")
	}
	o.ID = fmt.Sprintf("o%d", len(s.created)+1)
	s.created = append(s.created, o)
	return nil
}

func (s *recordingSink) SetParameter(id, name string, v float64) error {
	if s.failOn == name {
		return errors.New("no such parameter")
	}
	if s.params == nil {
		s.params = make(map[string]map[string]float64)
	}
	if s.params[id] == nil {
		s.params[id] = make(map[string]float64)
	}
	s.params[id][name] = v
	return nil
}

var (
	symbol = &model.FamilySymbol{ID: 5, FamilyName: "Отверстия", Name: "Square", Category: model.CategoryGenericModel}
	params = Params{Width: "Ширина", Height: "Высота"}
	duct   = &model.LinearElement{ID: 20, Kind: model.KindDuct, Diameter: 0.2}
)

func TestPlace(t *testing.T) {
	p := NewPlacer(NewProjectResolver(testProject()), symbol, params, nil)
	sink := &recordingSink{}

	req := penetration.PlacementRequest{
		Position: model.Vec3{X: 2},
		Host:     model.LocalSurface(10),
		Width:    0.2,
		Height:   0.2,
	}
	o, err := p.Place(sink, req, duct)
	require.NoError(t, err)

	require.Len(t, sink.created, 1)
	assert.Same(t, o, sink.created[0])
	assert.Equal(t, model.ElementID(5), o.Symbol)
	assert.Equal(t, "Отверстия", o.Family)
	assert.Equal(t, model.Vec3{X: 2}, o.Position)
	assert.Equal(t, model.ElementID(1), o.Level)
	assert.Equal(t, model.ElementID(20), o.Source)
	assert.Equal(t, map[string]float64{"Ширина": 0.2, "Высота": 0.2}, sink.params[o.ID])
}

func TestPlaceFailures(t *testing.T) {
	req := penetration.PlacementRequest{Host: model.LocalSurface(10), Width: 0.1, Height: 0.1}

	tests := []struct {
		name   string
		req    penetration.PlacementRequest
		failOn string
		want   string
	}{
		{"unresolved host", penetration.PlacementRequest{Host: model.LocalSurface(99)}, "", "host wall not found"},
		{"create fails", req, "create", "disk full"},
		{"width fails", req, "Ширина", "no such parameter"},
		{"height fails", req, "Высота", "no such parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPlacer(NewProjectResolver(testProject()), symbol, params, nil)
			_, err := p.Place(&recordingSink{failOn: tt.failOn}, tt.req, duct)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPlaceIntoStore(t *testing.T) {
	s, err := store.Open(store.Options{InMemory: true})
	require.NoError(t, err)
	defer s.Close()

	p := NewPlacer(NewProjectResolver(testProject()), symbol, params, nil)
	txn := s.Begin()
	_, err = p.Place(txn, penetration.PlacementRequest{
		Position: model.Vec3{Y: 1},
		Host:     model.LinkedSurface(900, 10),
		Width:    0.05,
		Height:   0.05,
	}, duct)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	got, err := s.Openings()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.LinkedSurface(900, 10), got[0].Host)
	assert.Equal(t, model.ElementID(2), got[0].Level)
	assert.Equal(t, 0.05, got[0].Params["Высота"])
}
