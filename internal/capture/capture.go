// Package capture implements the interactive drawing state machine for
// the farm map: boundary and section draw modes, vertex-click
// completion, and a freehand pointer trace. All drawing state lives on
// the controller instance, one per editing session.
package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/geomath"
)

// Mode selects what a completed polygon becomes. ModeIdle leaves the
// decision to the implicit default: boundary when none exists yet,
// otherwise a new section.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeBoundary Mode = "boundary"
	ModeSection  Mode = "section"
)

// ErrBusy is returned when a vertex-click completion arrives while a
// freehand trace is still in progress.
var ErrBusy = errors.New("freehand capture in progress")

// Surface is the map surface the controller drives. Implementations
// translate these calls for the rendering layer; the controller never
// touches the map library directly, so mouse and touch streams look
// the same to it.
type Surface interface {
	SetPanEnabled(enabled bool)
	ShowTrace(trace orb.LineString)
	ClearTrace()
}

// Sink persists finalized geometry. *service.FarmService satisfies it.
type Sink interface {
	HasBoundary(ctx context.Context, farmID string) (bool, error)
	SaveBoundary(ctx context.Context, farmID string, ring orb.Ring) (farm.FarmMapping, error)
	CreateSection(ctx context.Context, farmID string, ring orb.Ring) (farm.SectionData, farm.FarmMapping, error)
}

// Result reports what a completed gesture produced.
type Result struct {
	Kind      string // "boundary" or "section", empty when nothing happened
	SectionID string // set when Kind is "section"
	Discarded bool   // trace too short, nothing persisted
}

// Controller runs one farm's drawing session.
type Controller struct {
	mu       sync.Mutex
	farmID   string
	mode     Mode
	freehand bool
	tracing  bool
	trace    orb.LineString

	sink    Sink
	surface Surface
	logger  *zap.Logger
}

// New creates a controller for the farm, starting idle with freehand
// off.
func New(farmID string, sink Sink, surface Surface, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		farmID:  farmID,
		mode:    ModeIdle,
		sink:    sink,
		surface: surface,
		logger:  logger,
	}
}

// Mode returns the current draw mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Freehand reports whether freehand capture is enabled.
func (c *Controller) Freehand() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.freehand
}

// SetMode switches the draw mode. An in-progress freehand trace is
// discarded.
func (c *Controller) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortTrace()
	c.mode = m
}

// SetFreehand toggles freehand capture. Turning it off mid-trace
// discards the trace and re-enables panning.
func (c *Controller) SetFreehand(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !on {
		c.abortTrace()
	}
	c.freehand = on
}

// Cancel abandons any in-progress trace and returns to idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abortTrace()
	c.mode = ModeIdle
}

// abortTrace drops the trace and restores panning. Callers hold c.mu.
func (c *Controller) abortTrace() {
	if !c.tracing {
		return
	}
	c.tracing = false
	c.trace = nil
	c.surface.ClearTrace()
	c.surface.SetPanEnabled(true)
}

// PointerDown starts a freehand trace at p. It is ignored unless
// freehand is enabled; map panning stays on so the gesture drags the
// map instead. Reports whether a trace began.
func (c *Controller) PointerDown(p orb.Point) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.freehand || c.tracing {
		return false
	}
	c.tracing = true
	c.trace = orb.LineString{p}
	c.surface.SetPanEnabled(false)
	c.surface.ShowTrace(append(orb.LineString(nil), c.trace...))
	return true
}

// PointerMove extends the trace. Ignored when no trace is active.
func (c *Controller) PointerMove(p orb.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tracing {
		return
	}
	if last := c.trace[len(c.trace)-1]; last == p {
		return
	}
	c.trace = append(c.trace, p)
	c.surface.ShowTrace(append(orb.LineString(nil), c.trace...))
}

// PointerUp ends the trace. Traces with at least three points become a
// closed ring and are finalized per the current mode; shorter traces
// are discarded silently. Panning is restored either way.
func (c *Controller) PointerUp(ctx context.Context) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.tracing {
		return Result{}, nil
	}

	trace := c.trace
	c.tracing = false
	c.trace = nil
	c.surface.ClearTrace()
	c.surface.SetPanEnabled(true)

	if len(trace) < 3 {
		c.logger.Debug("freehand trace discarded",
			zap.String("farm", c.farmID), zap.Int("points", len(trace)))
		return Result{Discarded: true}, nil
	}
	return c.finalize(ctx, geomath.Close(orb.Ring(trace)))
}

// FinishPolygon accepts a polygon completed by vertex clicking on the
// surface and finalizes it per the current mode.
func (c *Controller) FinishPolygon(ctx context.Context, ring orb.Ring) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tracing {
		return Result{}, ErrBusy
	}
	return c.finalize(ctx, geomath.Close(ring))
}

// finalize persists the ring as a boundary or section and resets the
// mode. With no explicit mode the ring becomes the boundary when none
// exists yet, otherwise a new section. Callers hold c.mu.
func (c *Controller) finalize(ctx context.Context, ring orb.Ring) (Result, error) {
	kind := c.mode
	if kind == ModeIdle {
		has, err := c.sink.HasBoundary(ctx, c.farmID)
		if err != nil {
			return Result{}, err
		}
		if has {
			kind = ModeSection
		} else {
			kind = ModeBoundary
		}
	}

	switch kind {
	case ModeBoundary:
		if _, err := c.sink.SaveBoundary(ctx, c.farmID, ring); err != nil {
			return Result{}, err
		}
		c.mode = ModeIdle
		c.logger.Debug("boundary finalized", zap.String("farm", c.farmID))
		return Result{Kind: "boundary"}, nil
	default:
		sec, _, err := c.sink.CreateSection(ctx, c.farmID, ring)
		if err != nil {
			return Result{}, err
		}
		c.mode = ModeIdle
		c.logger.Debug("section finalized",
			zap.String("farm", c.farmID), zap.String("section", sec.ID))
		return Result{Kind: "section", SectionID: sec.ID}, nil
	}
}
