package editor

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/farmplat/farmmap/internal/capture"
	"github.com/farmplat/farmmap/internal/humastar"
)

// DrawHandler owns the drawing endpoints: mode and freehand toggles,
// the pointer stream, vertex-click completion, and cancel. The page
// posts Datastar signals; geometry refreshes arrive separately through
// the event stream once a shape persists.
type DrawHandler struct {
	humastar.Handler
	sessions *Sessions
}

// NewDrawHandler creates the draw handler.
func NewDrawHandler(sessions *Sessions, renderer *humastar.Renderer) *DrawHandler {
	return &DrawHandler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
	}
}

func (h *DrawHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/farms/{farmId}/state", h.State, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/farms/{farmId}/mode", h.SetMode, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/farms/{farmId}/pointer", h.Pointer, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/farms/{farmId}/finish", h.Finish, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/farms/{farmId}/cancel", h.Cancel, huma.OperationTags("editor"))
}

// FarmInput identifies the farm being edited.
type FarmInput struct {
	FarmID string `path:"farmId" doc:"Farm ID"`
}

// FarmSignalsInput carries the farm ID plus raw Datastar signals.
type FarmSignalsInput struct {
	FarmID string `path:"farmId" doc:"Farm ID"`
	humastar.SignalsInput
}

// State pushes the session's current draw state to the page signals.
func (h *DrawHandler) State(ctx context.Context, input *FarmInput) (*huma.StreamResponse, error) {
	sess := h.sessions.Get(input.FarmID)
	return h.Stream(func(sse humastar.SSE) {
		sse.Signals(drawSignals(sess))
	}), nil
}

// SetMode switches the draw mode and freehand toggle from signals.
// Switching discards any freehand trace in progress.
func (h *DrawHandler) SetMode(ctx context.Context, input *FarmSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	sess := h.sessions.Get(input.FarmID)
	return h.Stream(func(sse humastar.SSE) {
		sess.Bind(sse, func() {
			if signals.Has("drawmode") {
				mode, ok := parseMode(signals.String("drawmode"))
				if !ok {
					sse.Error("Unknown draw mode: " + signals.String("drawmode"))
					return
				}
				sess.Capture.SetMode(mode)
			}
			if signals.Has("freehand") {
				sess.Capture.SetFreehand(signals.Bool("freehand"))
			}
			sse.Signals(drawSignals(sess))
		})
	}), nil
}

// Pointer feeds one pointer event into the capture state machine. The
// phase signal selects down, move, or up; lng and lat carry the map
// coordinate under the pointer.
func (h *DrawHandler) Pointer(ctx context.Context, input *FarmSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	sess := h.sessions.Get(input.FarmID)
	return h.Stream(func(sse humastar.SSE) {
		sess.Bind(sse, func() {
			p := orb.Point{signals.Float("lng"), signals.Float("lat")}

			switch signals.String("phase") {
			case "down":
				sess.Capture.PointerDown(p)
			case "move":
				sess.Capture.PointerMove(p)
			case "up":
				res, err := sess.Capture.PointerUp(ctx)
				if err != nil {
					sse.Error(err.Error())
					return
				}
				reportResult(sse, res)
			default:
				sse.Error("Unknown pointer phase: " + signals.String("phase"))
				return
			}
			sse.Signals(drawSignals(sess))
		})
	}), nil
}

// Finish completes a vertex-click polygon. The ring signal holds the
// clicked vertices as [lng,lat] pairs.
func (h *DrawHandler) Finish(ctx context.Context, input *FarmSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	ring, ok := ringSignal(signals["ring"])
	if !ok || len(ring) < 3 {
		return nil, huma.Error400BadRequest("A polygon needs at least three vertices")
	}

	sess := h.sessions.Get(input.FarmID)
	return h.Stream(func(sse humastar.SSE) {
		sess.Bind(sse, func() {
			res, err := sess.Capture.FinishPolygon(ctx, ring)
			if errors.Is(err, capture.ErrBusy) {
				sse.Error("Finish the freehand stroke before completing a polygon")
				return
			}
			if err != nil {
				sse.Error(err.Error())
				return
			}
			reportResult(sse, res)
			sse.Signals(drawSignals(sess))
		})
	}), nil
}

// Cancel abandons any in-progress capture and returns the session to
// idle.
func (h *DrawHandler) Cancel(ctx context.Context, input *FarmInput) (*huma.StreamResponse, error) {
	sess := h.sessions.Get(input.FarmID)
	return h.Stream(func(sse humastar.SSE) {
		sess.Bind(sse, func() {
			sess.Capture.Cancel()
			sse.Signals(drawSignals(sess))
		})
	}), nil
}

// reportResult announces what a completed gesture produced. Discarded
// traces stay silent so an accidental tap never surfaces an error.
func reportResult(sse humastar.SSE, res capture.Result) {
	switch {
	case res.Discarded, res.Kind == "":
	case res.Kind == "boundary":
		sse.Success("Farm boundary saved")
	default:
		sse.Success("Section added")
		sse.Signals(map[string]any{"selectedsection": res.SectionID})
	}
}

// drawSignals snapshots the session state for the toolbar bindings.
func drawSignals(sess *Session) map[string]any {
	return map[string]any{
		"drawmode": string(sess.Capture.Mode()),
		"freehand": sess.Capture.Freehand(),
	}
}

func parseMode(s string) (capture.Mode, bool) {
	switch capture.Mode(s) {
	case capture.ModeIdle, capture.ModeBoundary, capture.ModeSection:
		return capture.Mode(s), true
	}
	return "", false
}

// ringSignal decodes a signal value holding [lng,lat] pairs.
func ringSignal(v any) (orb.Ring, bool) {
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	ring := make(orb.Ring, 0, len(raw))
	for _, el := range raw {
		pair, ok := el.([]any)
		if !ok || len(pair) < 2 {
			return nil, false
		}
		lng, lngOK := pair[0].(float64)
		lat, latOK := pair[1].(float64)
		if !lngOK || !latOK {
			return nil, false
		}
		ring = append(ring, orb.Point{lng, lat})
	}
	return ring, true
}
