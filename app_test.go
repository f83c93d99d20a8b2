package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chazu/sleeve/pkg/config"
	"github.com/chazu/sleeve/pkg/model"
	"github.com/chazu/sleeve/pkg/store"
)

func readOffice(t *testing.T) string {
	t.Helper()
	source, err := os.ReadFile("examples/office.sleeve")
	if err != nil {
		t.Fatalf("failed to read office.sleeve: %v", err)
	}
	return string(source)
}

func memStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(store.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func near(a, b model.Vec3) bool {
	const tol = 1e-3
	return math.Abs(a.X-b.X) < tol && math.Abs(a.Y-b.Y) < tol && math.Abs(a.Z-b.Z) < tol
}

// TestE2EOfficeExample exercises the full pipeline: model script → engine →
// project → scene → wall index → locator → placer → store.
func TestE2EOfficeExample(t *testing.T) {
	st := memStore(t)
	app := NewApp(config.DefaultConfig(), st, nil)

	res, err := app.Place(context.Background(), readOffice(t), false)
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	// The arc duct is the only rejected element.
	skipped := res.Skipped()
	if len(skipped) != 1 || skipped[0].Element.ID != 22 {
		t.Fatalf("expected duct 22 to be skipped, got %+v", skipped)
	}

	want := []struct {
		host   model.SurfaceRef
		source model.ElementID
		pos    model.Vec3
		size   float64
	}{
		{model.LocalSurface(10), 20, model.Vec3{X: 1.85, Z: 1.5}, 0.4},
		{model.LocalSurface(11), 20, model.Vec3{X: 5.85, Z: 1.5}, 0.4},
		{model.LinkedSurface(900, 10), 20, model.Vec3{X: 7.85, Z: 1.5}, 0.4},
		{model.LocalSurface(10), 21, model.Vec3{X: 1.85, Y: 1, Z: 1}, 0.05},
	}

	if res.Penetrations() != len(want) {
		t.Fatalf("expected %d penetrations, got %d", len(want), res.Penetrations())
	}

	openings, err := st.Openings()
	if err != nil {
		t.Fatalf("list openings: %v", err)
	}
	if len(openings) != len(want) || len(res.Openings) != len(want) {
		t.Fatalf("expected %d openings, got %d stored and %d returned",
			len(want), len(openings), len(res.Openings))
	}

	for i, w := range want {
		o := openings[i]
		if !o.Host.Equal(w.host) {
			t.Errorf("opening %d: host = %s, want %s", i, o.Host, w.host)
		}
		if o.Source != w.source {
			t.Errorf("opening %d: source = %s, want %s", i, o.Source, w.source)
		}
		if !near(o.Position, w.pos) {
			t.Errorf("opening %d: position = %v, want %v", i, o.Position, w.pos)
		}
		if o.Params["Ширина"] != w.size || o.Params["Высота"] != w.size {
			t.Errorf("opening %d: params = %v, want %g square", i, o.Params, w.size)
		}
		if o.Symbol != 5 || o.Family != "Отверстия" || o.Level != 1 {
			t.Errorf("opening %d: unexpected symbol/level: %+v", i, o)
		}
		if o.ID != res.Openings[i].ID {
			t.Errorf("opening %d: stored id %s, returned id %s", i, o.ID, res.Openings[i].ID)
		}
	}

	m := res.Metrics
	if got := testutil.ToFloat64(m.SegmentsProcessed.WithLabelValues("duct")); got != 1 {
		t.Errorf("ducts processed = %g, want 1", got)
	}
	if got := testutil.ToFloat64(m.SegmentsProcessed.WithLabelValues("pipe")); got != 2 {
		t.Errorf("pipes processed = %g, want 2", got)
	}
	if got := testutil.ToFloat64(m.SegmentsRejected.WithLabelValues("duct")); got != 1 {
		t.Errorf("ducts rejected = %g, want 1", got)
	}
	if got := testutil.ToFloat64(m.PenetrationsFound); got != 4 {
		t.Errorf("penetrations = %g, want 4", got)
	}
	if got := testutil.ToFloat64(m.OpeningsPlaced); got != 4 {
		t.Errorf("openings placed = %g, want 4", got)
	}
}

func TestE2EDryRun(t *testing.T) {
	app := NewApp(config.DefaultConfig(), nil, nil)

	res, err := app.Place(context.Background(), readOffice(t), true)
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if res.Penetrations() != 4 {
		t.Errorf("expected 4 penetrations, got %d", res.Penetrations())
	}
	if len(res.Openings) != 0 {
		t.Errorf("dry run placed %d openings", len(res.Openings))
	}

	var buf bytes.Buffer
	printPlaceResult(&buf, res)
	out := buf.String()
	if !strings.Contains(out, "4 penetrations found (dry run)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(out, "link:900/10") {
		t.Errorf("output should list the linked wall:\n%s", out)
	}
	if !strings.Contains(out, "skipped duct 22") {
		t.Errorf("output should list the skipped arc duct:\n%s", out)
	}
}

func TestE2ENoStore(t *testing.T) {
	app := NewApp(config.DefaultConfig(), nil, nil)
	_, err := app.Place(context.Background(), readOffice(t), false)
	if err == nil || !strings.Contains(err.Error(), "no store configured") {
		t.Fatalf("expected missing store error, got %v", err)
	}
}

func TestE2EUserErrors(t *testing.T) {
	templateOnly := `
(document "AR"
  (view3d :id 1 :template true)
  (family :id 2 :family "Отверстия"))
(document "AR-ОВ")
`
	tests := []struct {
		name   string
		source string
		mutate func(c *config.Config)
		title  string
	}{
		{name: "empty script", source: "", title: "No model"},
		{name: "comments only", source: ";; nothing here\n", title: "No model"},
		{name: "script error", source: "(document", title: "Model script error"},
		{
			name:   "invalid model",
			source: `(document "AR" (wall :id 1 :level 7 :from (vec3 0 0 0) :to (vec3 1 0 0) :thickness 0.2 :height 3))`,
			title:  "Invalid model",
		},
		{
			name:   "missing MEP model",
			mutate: func(c *config.Config) { c.MEPTitleContains = "ВК" },
			title:  "MEP model not found",
		},
		{
			name:   "missing family",
			mutate: func(c *config.Config) { c.OpeningFamily = "Двери" },
			title:  "Opening family not found",
		},
		{name: "template view only", source: templateOnly, title: "No 3D view"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			source := tt.source
			if tt.mutate != nil {
				source = readOffice(t)
			}

			st := memStore(t)
			_, err := NewApp(cfg, st, nil).Place(context.Background(), source, false)

			var ue *UserError
			if !errors.As(err, &ue) {
				t.Fatalf("expected *UserError, got %v", err)
			}
			if ue.Title != tt.title {
				t.Errorf("title = %q, want %q (message %q)", ue.Title, tt.title, ue.Message)
			}

			// Nothing is written when a prerequisite is missing.
			openings, err := st.Openings()
			if err != nil {
				t.Fatal(err)
			}
			if len(openings) != 0 {
				t.Errorf("expected no openings, got %d", len(openings))
			}

			var buf bytes.Buffer
			_ = reportError(&buf, ue)
			if !strings.HasPrefix(buf.String(), tt.title) {
				t.Errorf("report = %q", buf.String())
			}
		})
	}
}

func TestE2ERepeatedRunsAccumulate(t *testing.T) {
	st := memStore(t)
	app := NewApp(config.DefaultConfig(), st, nil)
	source := readOffice(t)

	for i := 0; i < 2; i++ {
		if _, err := app.Place(context.Background(), source, false); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	openings, err := st.Openings()
	if err != nil {
		t.Fatal(err)
	}
	if len(openings) != 8 {
		t.Errorf("expected 8 openings after two runs, got %d", len(openings))
	}
}

func TestE2EMetricsTextfile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "sleeve.prom")

	if _, err := NewApp(cfg, memStore(t), nil).Place(context.Background(), readOffice(t), false); err != nil {
		t.Fatalf("place: %v", err)
	}

	data, err := os.ReadFile(cfg.MetricsTextfile)
	if err != nil {
		t.Fatalf("read textfile: %v", err)
	}
	if !strings.Contains(string(data), "sleeve_openings_placed_total 4") {
		t.Errorf("textfile missing placed counter:\n%s", data)
	}
}

func TestE2ECheck(t *testing.T) {
	app := NewApp(config.DefaultConfig(), nil, nil)

	res, err := app.Check(readOffice(t))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !res.OK() {
		t.Fatalf("expected clean check, got errors %v %v", res.Errors, res.Validation.Errors)
	}
	// The arc duct is reported but does not fail the check.
	if len(res.Validation.Warnings) != 1 {
		t.Errorf("expected 1 warning, got %v", res.Validation.Warnings)
	}
	if len(res.Project.Documents) != 3 {
		t.Errorf("expected 3 documents, got %d", len(res.Project.Documents))
	}
}

func TestPrintOpenings(t *testing.T) {
	cfg := config.DefaultConfig()
	var buf bytes.Buffer
	printOpenings(&buf, []*store.Opening{{
		ID:       "abc",
		Host:     model.LinkedSurface(900, 10),
		Level:    1,
		Source:   20,
		Position: model.Vec3{X: 7.85, Z: 1.5},
		Params:   map[string]float64{"Ширина": 0.4, "Высота": 0.4},
	}}, cfg)

	out := buf.String()
	for _, want := range []string{"ID", "abc", "link:900/10", "7.850", "0.400"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
