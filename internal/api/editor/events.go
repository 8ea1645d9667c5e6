package editor

import (
	"context"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/farmplat/farmmap/internal/humastar"
	"github.com/farmplat/farmmap/internal/render"
	"github.com/farmplat/farmmap/internal/service"
)

// EventHandler streams farm mapping changes to the page over one
// long-lived SSE connection: GeoJSON refreshes for the map, list
// patches for the panels, and a custom event other scripts can hook.
type EventHandler struct {
	humastar.Handler
	farms *service.FarmService
}

// NewEventHandler creates the event stream handler.
func NewEventHandler(farms *service.FarmService, renderer *humastar.Renderer) *EventHandler {
	return &EventHandler{
		Handler: humastar.Handler{Renderer: renderer},
		farms:   farms,
	}
}

func (h *EventHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/farms/{farmId}/events", h.Events,
		huma.OperationTags("editor"),
	)
}

func (h *EventHandler) Events(ctx context.Context, input *FarmInput) (*huma.StreamResponse, error) {
	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ch := h.farms.Bus().Subscribe()
			defer h.farms.Bus().Unsubscribe(ch)

			// Prime a fresh page with everything it renders from.
			h.pushGeometry(ctx, sse, input.FarmID, true)
			h.pushPanels(ctx, sse, input.FarmID)
			h.pushStats(ctx, sse, input.FarmID)

			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-ch:
					if ev.FarmID != input.FarmID {
						continue
					}
					h.apply(ctx, sse, ev)
					sse.Event("farm-changed", map[string]any{
						"resource": ev.Resource,
						"action":   ev.Action,
						"id":       ev.ID,
					})
				}
			}
		},
	}, nil
}

// apply translates one bus event into page patches.
func (h *EventHandler) apply(ctx context.Context, sse humastar.SSE, ev service.Event) {
	if ev.Action == service.ActionSelected {
		sse.Signals(map[string]any{"selectedsection": ev.ID})
		return
	}

	switch ev.Resource {
	case service.ResourceBoundary:
		h.pushGeometry(ctx, sse, ev.FarmID, ev.Action == service.ActionDrawn)
	case service.ResourceSection:
		h.pushGeometry(ctx, sse, ev.FarmID, false)
		sh := &SectionHandler{Handler: humastar.Handler{Renderer: h.Renderer}, farms: h.farms}
		if m, err := h.farms.Mapping(ctx, ev.FarmID); err == nil {
			sse.Patch(sh.renderSectionList(m), "#section-list")
		}
	case service.ResourceWaterSources:
		h.pushGeometry(ctx, sse, ev.FarmID, false)
		wh := &WaterHandler{Handler: humastar.Handler{Renderer: h.Renderer}, farms: h.farms}
		if m, err := h.farms.Mapping(ctx, ev.FarmID); err == nil {
			sse.Patch(wh.renderWaterList(m), "#water-list")
		}
	case service.ResourceStats:
		h.pushStats(ctx, sse, ev.FarmID)
	}
}

// pushGeometry ships a full GeoJSON snapshot, optionally framing the
// farm afterwards.
func (h *EventHandler) pushGeometry(ctx context.Context, sse humastar.SSE, farmID string, fit bool) {
	m, err := h.farms.Mapping(ctx, farmID)
	if err != nil {
		return
	}
	sse.Event("map-geometry", render.Snapshot(m))
	if fit && (m.Boundary != nil || len(m.Sections) > 0) {
		b := render.FitBound(m)
		sse.Event("map-fit", map[string]any{
			"west": b.Min[0], "south": b.Min[1],
			"east": b.Max[0], "north": b.Max[1],
		})
	}
}

// pushPanels renders both side panel lists.
func (h *EventHandler) pushPanels(ctx context.Context, sse humastar.SSE, farmID string) {
	m, err := h.farms.Mapping(ctx, farmID)
	if err != nil {
		return
	}
	sh := &SectionHandler{Handler: humastar.Handler{Renderer: h.Renderer}, farms: h.farms}
	wh := &WaterHandler{Handler: humastar.Handler{Renderer: h.Renderer}, farms: h.farms}
	sse.Patch(sh.renderSectionList(m), "#section-list")
	sse.Patch(wh.renderWaterList(m), "#water-list")
}

// pushStats patches the stats bar fragment.
func (h *EventHandler) pushStats(ctx context.Context, sse humastar.SSE, farmID string) {
	stats, err := h.farms.Stats(ctx, farmID)
	if err != nil {
		return
	}
	sse.Patch(h.Renderer.MustRender("stats-bar", statsData(stats)), "#stats-bar")
}

// StatsBarData feeds the stats-bar fragment.
type StatsBarData struct {
	BoundaryAcres string
	SectionCount  int
	SectionAcres  string
	WaterCount    int
	FetchedAt     string
}

func statsData(s service.FarmStats) StatsBarData {
	d := StatsBarData{
		BoundaryAcres: fmt.Sprintf("%.2f", s.BoundaryAcres),
		SectionCount:  s.SectionCount,
		SectionAcres:  fmt.Sprintf("%.2f", s.SectionAcres),
		WaterCount:    s.WaterSourceCount,
	}
	if s.WaterFetchedAt != nil {
		d.FetchedAt = s.WaterFetchedAt.Format("Jan 2 15:04")
	}
	return d
}
