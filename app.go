package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/chazu/sleeve/pkg/config"
	"github.com/chazu/sleeve/pkg/engine"
	"github.com/chazu/sleeve/pkg/kernel"
	"github.com/chazu/sleeve/pkg/kernel/sdfx"
	"github.com/chazu/sleeve/pkg/metrics"
	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/opening"
	"github.com/chazu/sleeve/pkg/penetration"
	"github.com/chazu/sleeve/pkg/raycast/rtree"
	"github.com/chazu/sleeve/pkg/scene"
	"github.com/chazu/sleeve/pkg/store"
)

var tracer = otel.Tracer("sleeve")

// UserError is a missing prerequisite reported to the user as a titled
// message. The model is left unmodified when one is returned.
type UserError struct {
	Title   string
	Message string
}

func (e *UserError) Error() string {
	return e.Title + ": " + e.Message
}

// App runs the opening placement command.
type App struct {
	cfg    *config.Config
	engine *engine.Engine
	kernel kernel.Kernel
	store  *store.Store
	logger *slog.Logger
}

// NewApp creates an App with the sdfx kernel. st may be nil for dry runs
// and checks. A nil logger discards output.
func NewApp(cfg *config.Config, st *store.Store, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &App{
		cfg:    cfg,
		engine: engine.NewEngine().WithTimeout(cfg.EvalTimeout),
		kernel: sdfx.New(),
		store:  st,
		logger: logger,
	}
}

// PlaceResult summarises one run.
type PlaceResult struct {
	Results  []penetration.ElementResult
	Openings []*store.Opening
	DryRun   bool
	Metrics  *metrics.Metrics
}

// Penetrations returns the number of wall crossings found.
func (r *PlaceResult) Penetrations() int {
	n := 0
	for _, er := range r.Results {
		n += len(er.Points)
	}
	return n
}

// Skipped returns the elements rejected for a malformed curve.
func (r *PlaceResult) Skipped() []penetration.ElementResult {
	var out []penetration.ElementResult
	for _, er := range r.Results {
		if er.Skipped() {
			out = append(out, er)
		}
	}
	return out
}

// Check evaluates and validates a model script without placing anything.
func (a *App) Check(source string) (engine.EvalResult, error) {
	return a.engine.Check(source)
}

// Place evaluates source, finds every wall crossing of every duct and
// pipe in the MEP model and, unless dryRun is set, creates one sized
// opening per crossing in a single store transaction. Either all openings
// are committed or none are.
func (a *App) Place(ctx context.Context, source string, dryRun bool) (*PlaceResult, error) {
	ctx, span := tracer.Start(ctx, "sleeve.Place")
	defer span.End()

	res, err := a.place(ctx, source, dryRun)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("sleeve.penetrations", res.Penetrations()),
		attribute.Int("sleeve.openings", len(res.Openings)),
		attribute.Bool("sleeve.dry_run", dryRun),
	)
	return res, nil
}

func (a *App) place(ctx context.Context, source string, dryRun bool) (*PlaceResult, error) {
	p, err := a.load(ctx, source)
	if err != nil {
		return nil, err
	}

	// Step 1: Locate the prerequisites.
	host := p.Active()
	if host == nil {
		return nil, &UserError{Title: "No model", Message: "the model script defines no documents"}
	}
	mep := p.FindByTitleContains(a.cfg.MEPTitleContains)
	if mep == nil {
		return nil, &UserError{
			Title:   "MEP model not found",
			Message: fmt.Sprintf("no open document title contains %q", a.cfg.MEPTitleContains),
		}
	}
	symbol := host.FindFamily(a.cfg.OpeningFamily, model.CategoryGenericModel)
	if symbol == nil {
		return nil, &UserError{
			Title:   "Opening family not found",
			Message: fmt.Sprintf("load the %q family into %q", a.cfg.OpeningFamily, host.Title),
		}
	}
	view := host.First3DView()
	if view == nil {
		return nil, &UserError{
			Title:   "No 3D view",
			Message: fmt.Sprintf("%q has no 3D view that is not a template", host.Title),
		}
	}

	// Step 2: Index the walls.
	index, err := a.index(ctx, p, view)
	if err != nil {
		return nil, err
	}

	// Step 3: Cast every segment.
	m := metrics.New()
	elements := mep.LinearElements()
	_, locSpan := tracer.Start(ctx, "sleeve.Locate",
		trace.WithAttributes(attribute.Int("sleeve.elements", len(elements))))
	results, err := penetration.NewLocator(index).LocateAll(ctx, elements, a.cfg.Workers)
	locSpan.End()
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		kind := r.Element.Kind.String()
		if r.Skipped() {
			m.RecordRejected(kind)
			a.logger.Warn("element skipped", "id", r.Element.ID.String(), "kind", kind, "error", r.Err)
			continue
		}
		m.RecordSegment(kind, len(r.Points))
	}

	res := &PlaceResult{Results: results, DryRun: dryRun, Metrics: m}
	a.logger.Info("penetrations located",
		"mep", mep.Title,
		"elements", len(elements),
		"penetrations", res.Penetrations(),
		"skipped", len(res.Skipped()),
	)

	// Step 4: Place the openings.
	if !dryRun {
		placer := opening.NewPlacer(
			opening.NewProjectResolver(p),
			symbol,
			opening.Params{Width: a.cfg.WidthParam, Height: a.cfg.HeightParam},
			a.logger,
		)
		if res.Openings, err = a.commit(ctx, placer, results); err != nil {
			return nil, err
		}
		m.RecordPlaced(len(res.Openings))
	}

	if a.cfg.MetricsTextfile != "" {
		if err := m.WriteTextfile(a.cfg.MetricsTextfile); err != nil {
			a.logger.Warn("metrics not written", "error", err)
		}
	}
	return res, nil
}

// load evaluates and validates the model script.
func (a *App) load(ctx context.Context, source string) (*model.Project, error) {
	_, span := tracer.Start(ctx, "sleeve.Evaluate")
	defer span.End()

	p, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		return nil, fmt.Errorf("evaluate model: %w", err)
	}
	if len(evalErrs) > 0 {
		msgs := make([]string, len(evalErrs))
		for i, e := range evalErrs {
			msgs[i] = e.Error()
		}
		return nil, &UserError{Title: "Model script error", Message: strings.Join(msgs, "; ")}
	}

	v := model.Validate(p)
	for _, w := range v.Warnings {
		a.logger.Warn("model warning", "finding", w.Error())
	}
	if !v.OK() {
		msgs := make([]string, len(v.Errors))
		for i, e := range v.Errors {
			msgs[i] = e.Error()
		}
		return nil, &UserError{Title: "Invalid model", Message: strings.Join(msgs, "; ")}
	}
	return p, nil
}

// index builds the wall index for view.
func (a *App) index(ctx context.Context, p *model.Project, view *model.View3D) (*rtree.Index, error) {
	_, span := tracer.Start(ctx, "sleeve.Index")
	defer span.End()

	surfaces, err := scene.Build(p, a.kernel)
	if err != nil {
		return nil, fmt.Errorf("build scene: %w", err)
	}
	index, err := rtree.NewIndex(view, model.ClassWall, surfaces)
	if err != nil {
		return nil, fmt.Errorf("index walls: %w", err)
	}
	span.SetAttributes(attribute.Int("sleeve.walls", index.Len()))
	a.logger.Debug("walls indexed", "view", view.Name, "walls", index.Len())
	return index, nil
}

// commit places every located point in one transaction. Any failure
// discards the transaction.
func (a *App) commit(ctx context.Context, placer *opening.Placer, results []penetration.ElementResult) ([]*store.Opening, error) {
	_, span := tracer.Start(ctx, "sleeve.Commit")
	defer span.End()

	if a.store == nil {
		return nil, fmt.Errorf("place openings: no store configured")
	}

	txn := a.store.Begin()
	var placed []*store.Opening
	for _, r := range results {
		for _, pt := range r.Points {
			o, err := placer.Place(txn, pt.Request(), r.Element)
			if err != nil {
				txn.Discard()
				return nil, fmt.Errorf("place openings: %w", err)
			}
			placed = append(placed, o)
		}
	}
	if err := txn.Commit(); err != nil {
		return nil, fmt.Errorf("place openings: %w", err)
	}
	return placed, nil
}
