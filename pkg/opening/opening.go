// Package opening turns placement requests into opening instances: it
// resolves the host wall and level of each request and writes a sized
// instance of the opening family to a sink.
package opening

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/penetration"
	"github.com/chazu/sleeve/pkg/store"
)

var (
	// ErrWallNotFound is returned when a surface ref names no wall.
	ErrWallNotFound = errors.New("opening: host wall not found")

	// ErrLevelNotFound is returned when a wall's level does not exist.
	ErrLevelNotFound = errors.New("opening: host level not found")
)

// WallResolver maps a surface ref to its wall and the level hosting it.
type WallResolver interface {
	ResolveWall(ref model.SurfaceRef) (*model.Wall, *model.Level, error)
}

// Sink accepts new openings and their parameter values.
type Sink interface {
	CreateOpening(o *store.Opening) error
	SetParameter(id, name string, v float64) error
}

// Compile-time check that a store transaction is a Sink.
var _ Sink = (*store.Txn)(nil)

// ProjectResolver resolves local refs against the host document and
// linked refs against the document their link instance points to.
type ProjectResolver struct {
	project *model.Project
}

// NewProjectResolver returns a resolver over p.
func NewProjectResolver(p *model.Project) *ProjectResolver {
	return &ProjectResolver{project: p}
}

// ResolveWall implements WallResolver.
func (r *ProjectResolver) ResolveWall(ref model.SurfaceRef) (*model.Wall, *model.Level, error) {
	doc := r.project.Active()
	if doc == nil {
		return nil, nil, fmt.Errorf("%w: %s: project is empty", ErrWallNotFound, ref)
	}
	if !ref.Container.IsLocal() {
		link := doc.Link(model.ElementID(ref.Container))
		if link == nil {
			return nil, nil, fmt.Errorf("%w: %s: no such link instance", ErrWallNotFound, ref)
		}
		doc = r.project.Document(link.Document)
		if doc == nil {
			return nil, nil, fmt.Errorf("%w: %s: document %q is not open", ErrWallNotFound, ref, link.Document)
		}
	}

	wall := doc.Wall(ref.Element)
	if wall == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrWallNotFound, ref)
	}
	level := doc.Level(wall.LevelID)
	if level == nil {
		return nil, nil, fmt.Errorf("%w: wall %s level %s", ErrLevelNotFound, ref, wall.LevelID)
	}
	return wall, level, nil
}

// Params names the family parameters that receive an opening's size.
type Params struct {
	Width  string
	Height string
}

// Placer creates sized openings from placement requests.
type Placer struct {
	resolver WallResolver
	symbol   *model.FamilySymbol
	params   Params
	logger   *slog.Logger
}

// NewPlacer returns a placer that instantiates symbol. A nil logger
// discards output.
func NewPlacer(resolver WallResolver, symbol *model.FamilySymbol, params Params, logger *slog.Logger) *Placer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Placer{
		resolver: resolver,
		symbol:   symbol,
		params:   params,
		logger:   logger,
	}
}

// Place resolves the host of req, creates an opening in sink at
// req.Position and sets its width and height. source is the duct or pipe
// that needs the opening. Any failure leaves the decision to roll back
// with the caller.
func (p *Placer) Place(sink Sink, req penetration.PlacementRequest, source *model.LinearElement) (*store.Opening, error) {
	wall, level, err := p.resolver.ResolveWall(req.Host)
	if err != nil {
		return nil, err
	}

	o := &store.Opening{
		Symbol:   p.symbol.ID,
		Family:   p.symbol.FamilyName,
		Position: req.Position,
		Host:     req.Host,
		Level:    level.ID,
		Source:   source.ID,
	}
	if err := sink.CreateOpening(o); err != nil {
		return nil, fmt.Errorf("opening: create on wall %s: %w", wall.ID, err)
	}
	if err := sink.SetParameter(o.ID, p.params.Width, req.Width); err != nil {
		return nil, fmt.Errorf("opening: %s: %w", o.ID, err)
	}
	if err := sink.SetParameter(o.ID, p.params.Height, req.Height); err != nil {
		return nil, fmt.Errorf("opening: %s: %w", o.ID, err)
	}
	o.Params = map[string]float64{p.params.Width: req.Width, p.params.Height: req.Height}

	p.logger.Debug("opening placed",
		"id", o.ID,
		"host", req.Host.String(),
		"level", level.Name,
		"source", source.ID.String(),
		"size", req.Width,
	)
	return o, nil
}
