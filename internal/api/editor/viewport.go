package editor

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/farmplat/farmmap/internal/humastar"
)

// ViewportHandler receives zoom changes and toggles section labels
// around the label threshold.
type ViewportHandler struct {
	humastar.Handler
	sessions *Sessions
}

// NewViewportHandler creates the viewport handler.
func NewViewportHandler(sessions *Sessions, renderer *humastar.Renderer) *ViewportHandler {
	return &ViewportHandler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
	}
}

func (h *ViewportHandler) RegisterRoutes(api huma.API) {
	huma.Post(api, "/api/v1/editor/farms/{farmId}/viewport", h.ZoomChanged, huma.OperationTags("editor"))
}

// ZoomChanged re-evaluates label visibility for every section at the
// new zoom level. The page posts the zoom signal on every zoomend.
func (h *ViewportHandler) ZoomChanged(ctx context.Context, input *FarmSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	zoom := signals.Float("zoom")

	sess := h.sessions.Get(input.FarmID)
	return h.Stream(func(sse humastar.SSE) {
		sess.Bind(sse, func() {
			sess.Labels.OnZoomChanged(zoom)
			sse.Signals(map[string]any{"labelsvisible": sess.Labels.Visible(zoom)})
		})
	}), nil
}
