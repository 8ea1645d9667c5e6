package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/paulmach/orb"

	"github.com/farmplat/farmmap/internal/farm"
)

type fakeSink struct {
	hasBoundary bool
	boundaries  []orb.Ring
	sections    []orb.Ring
}

func (f *fakeSink) HasBoundary(ctx context.Context, farmID string) (bool, error) {
	return f.hasBoundary, nil
}

func (f *fakeSink) SaveBoundary(ctx context.Context, farmID string, ring orb.Ring) (farm.FarmMapping, error) {
	f.boundaries = append(f.boundaries, ring)
	f.hasBoundary = true
	return farm.FarmMapping{FarmID: farmID}, nil
}

func (f *fakeSink) CreateSection(ctx context.Context, farmID string, ring orb.Ring) (farm.SectionData, farm.FarmMapping, error) {
	f.sections = append(f.sections, ring)
	return farm.SectionData{ID: "sec-1"}, farm.FarmMapping{FarmID: farmID}, nil
}

type fakeSurface struct {
	panEnabled bool
	panChanges []bool
	traces     []orb.LineString
	clears     int
}

func newFakeSurface() *fakeSurface { return &fakeSurface{panEnabled: true} }

func (f *fakeSurface) SetPanEnabled(on bool) {
	f.panEnabled = on
	f.panChanges = append(f.panChanges, on)
}

func (f *fakeSurface) ShowTrace(tr orb.LineString) { f.traces = append(f.traces, tr) }
func (f *fakeSurface) ClearTrace()                 { f.clears++ }

func drag(t *testing.T, c *Controller, pts ...orb.Point) {
	t.Helper()
	if !c.PointerDown(pts[0]) {
		t.Fatalf("pointer down did not start a trace")
	}
	for _, p := range pts[1:] {
		c.PointerMove(p)
	}
}

func TestFreehandSectionLifecycle(t *testing.T) {
	sink := &fakeSink{hasBoundary: true}
	surf := newFakeSurface()
	c := New("farm-1", sink, surf, nil)

	c.SetMode(ModeSection)
	c.SetFreehand(true)
	drag(t, c, orb.Point{0, 0}, orb.Point{0.01, 0}, orb.Point{0.01, 0.01}, orb.Point{0, 0.01})

	if surf.panEnabled {
		t.Fatalf("panning must be disabled while tracing")
	}
	if len(surf.traces) != 4 {
		t.Fatalf("expected a live preview per point, got %d", len(surf.traces))
	}

	res, err := c.PointerUp(context.Background())
	if err != nil {
		t.Fatalf("pointer up: %v", err)
	}
	if res.Kind != "section" || res.SectionID != "sec-1" || res.Discarded {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(sink.sections) != 1 {
		t.Fatalf("section not persisted")
	}
	ring := sink.sections[0]
	if ring[0] != ring[len(ring)-1] {
		t.Fatalf("finalized ring must be closed: %v", ring)
	}
	if !surf.panEnabled || surf.clears == 0 {
		t.Fatalf("surface not restored after finalize")
	}
	if c.Mode() != ModeIdle {
		t.Fatalf("mode should reset to idle, got %s", c.Mode())
	}
}

func TestShortTraceDiscardedSilently(t *testing.T) {
	sink := &fakeSink{}
	surf := newFakeSurface()
	c := New("farm-1", sink, surf, nil)

	c.SetFreehand(true)
	drag(t, c, orb.Point{0, 0}, orb.Point{0.01, 0})

	res, err := c.PointerUp(context.Background())
	if err != nil {
		t.Fatalf("pointer up: %v", err)
	}
	if !res.Discarded {
		t.Fatalf("two-point trace must be discarded, got %+v", res)
	}
	if len(sink.boundaries)+len(sink.sections) != 0 {
		t.Fatalf("nothing may be persisted for a discarded trace")
	}
	if !surf.panEnabled {
		t.Fatalf("panning must be re-enabled after a discard")
	}
}

func TestImplicitDefaultBoundaryThenSection(t *testing.T) {
	sink := &fakeSink{}
	surf := newFakeSurface()
	c := New("farm-1", sink, surf, nil)
	ctx := context.Background()

	square := orb.Ring{{0, 0}, {0.01, 0}, {0.01, 0.01}, {0, 0.01}}

	// No mode picked, no boundary yet: the polygon becomes the boundary.
	res, err := c.FinishPolygon(ctx, square)
	if err != nil {
		t.Fatalf("first finish: %v", err)
	}
	if res.Kind != "boundary" || len(sink.boundaries) != 1 {
		t.Fatalf("first polygon should become the boundary: %+v", res)
	}

	// Still no mode picked, boundary exists: the next one is a section.
	res, err = c.FinishPolygon(ctx, square)
	if err != nil {
		t.Fatalf("second finish: %v", err)
	}
	if res.Kind != "section" || len(sink.sections) != 1 {
		t.Fatalf("second polygon should become a section: %+v", res)
	}
}

func TestExplicitBoundaryModeWins(t *testing.T) {
	sink := &fakeSink{hasBoundary: true}
	c := New("farm-1", sink, newFakeSurface(), nil)

	c.SetMode(ModeBoundary)
	res, err := c.FinishPolygon(context.Background(), orb.Ring{{0, 0}, {1, 0}, {1, 1}})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if res.Kind != "boundary" || len(sink.boundaries) != 1 {
		t.Fatalf("explicit boundary mode must replace the boundary: %+v", res)
	}
}

func TestPointerIgnoredWithoutFreehand(t *testing.T) {
	surf := newFakeSurface()
	c := New("farm-1", &fakeSink{}, surf, nil)

	if c.PointerDown(orb.Point{0, 0}) {
		t.Fatalf("pointer down must be ignored with freehand off")
	}
	if len(surf.panChanges) != 0 {
		t.Fatalf("panning must be untouched, got %v", surf.panChanges)
	}
	if res, _ := c.PointerUp(context.Background()); res != (Result{}) {
		t.Fatalf("pointer up without a trace should do nothing, got %+v", res)
	}
}

func TestSetModeDiscardsActiveTrace(t *testing.T) {
	sink := &fakeSink{}
	surf := newFakeSurface()
	c := New("farm-1", sink, surf, nil)

	c.SetFreehand(true)
	drag(t, c, orb.Point{0, 0}, orb.Point{0.01, 0}, orb.Point{0.01, 0.01})
	c.SetMode(ModeBoundary)

	if !surf.panEnabled || surf.clears != 1 {
		t.Fatalf("mode switch must abort the trace and restore panning")
	}
	if res, _ := c.PointerUp(context.Background()); res != (Result{}) {
		t.Fatalf("aborted trace must not finalize, got %+v", res)
	}
	if len(sink.boundaries)+len(sink.sections) != 0 {
		t.Fatalf("aborted trace persisted something")
	}
}

func TestFinishPolygonWhileTracing(t *testing.T) {
	c := New("farm-1", &fakeSink{}, newFakeSurface(), nil)
	c.SetFreehand(true)
	drag(t, c, orb.Point{0, 0}, orb.Point{0.01, 0}, orb.Point{0.01, 0.01})

	_, err := c.FinishPolygon(context.Background(), orb.Ring{{0, 0}, {1, 0}, {1, 1}})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestCancelReturnsToIdle(t *testing.T) {
	surf := newFakeSurface()
	c := New("farm-1", &fakeSink{}, surf, nil)

	c.SetMode(ModeSection)
	c.SetFreehand(true)
	drag(t, c, orb.Point{0, 0}, orb.Point{0.01, 0}, orb.Point{0.01, 0.01})
	c.Cancel()

	if c.Mode() != ModeIdle {
		t.Fatalf("cancel should return to idle, got %s", c.Mode())
	}
	if !surf.panEnabled {
		t.Fatalf("cancel must restore panning")
	}
}

func TestDuplicatePointsSkipped(t *testing.T) {
	surf := newFakeSurface()
	c := New("farm-1", &fakeSink{}, surf, nil)

	c.SetFreehand(true)
	c.PointerDown(orb.Point{0, 0})
	c.PointerMove(orb.Point{0, 0})
	c.PointerMove(orb.Point{0, 0})

	if len(surf.traces) != 1 {
		t.Fatalf("stationary pointer must not grow the trace, got %d previews", len(surf.traces))
	}
}
