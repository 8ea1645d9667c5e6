package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/humastar"
	"github.com/farmplat/farmmap/internal/service"
	"github.com/farmplat/farmmap/internal/watersource"
)

// WaterHandler drives the water sources panel: the card list, the
// manual-add form, and provider refreshes.
type WaterHandler struct {
	humastar.Handler
	farms *service.FarmService
}

// NewWaterHandler creates the water panel handler.
func NewWaterHandler(farms *service.FarmService, renderer *humastar.Renderer) *WaterHandler {
	return &WaterHandler{
		Handler: humastar.Handler{Renderer: renderer},
		farms:   farms,
	}
}

func (h *WaterHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/farms/{farmId}/water", h.List, huma.OperationTags("editor"))
	huma.Get(api, "/api/v1/editor/water-types", h.TypeOptions, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/farms/{farmId}/water", h.Add, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/farms/{farmId}/water/refresh", h.Refresh, huma.OperationTags("editor"))
}

// List patches the water source card list into the page.
func (h *WaterHandler) List(ctx context.Context, input *FarmInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		m, err := h.farms.Mapping(ctx, input.FarmID)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.renderWaterList(m), "#water-list")
	}), nil
}

// TypeOptions patches the water type <select> options for the
// manual-add form.
func (h *WaterHandler) TypeOptions(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	options := make([]humastar.SelectOptionData, 0, len(farm.WaterSourceTypes))
	for _, t := range farm.WaterSourceTypes {
		options = append(options, humastar.SelectOptionData{
			Value: string(t),
			Label: string(t),
		})
	}
	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.RenderSelect("Select a type", options), "#water-type-select")
	}), nil
}

// Add records a manually entered water source from form signals.
func (h *WaterHandler) Add(ctx context.Context, input *FarmSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	typ, ok := farm.ParseWaterSourceType(signals.String("watertype"))
	if !ok {
		return nil, huma.Error400BadRequest("Unknown water source type")
	}
	if !signals.Has("waterlat") || !signals.Has("waterlng") {
		return nil, huma.Error400BadRequest("Latitude and longitude are required")
	}
	lat := signals.Float("waterlat")
	lng := signals.Float("waterlng")

	return h.Stream(func(sse humastar.SSE) {
		ws, m, err := h.farms.AddWaterSource(ctx, input.FarmID, signals.String("watername"), typ, lat, lng)
		if err != nil {
			sse.Error(err.Error())
			return
		}

		sse.Signals(map[string]any{
			"watername": "", "watertype": "", "waterlat": 0, "waterlng": 0,
			"success": fmt.Sprintf("Water source '%s' added", waterDisplayName(ws)),
		})
		sse.Patch(h.renderWaterList(m), "#water-list")
	}), nil
}

// Refresh pulls water sources from the provider. The force signal
// bypasses the cache freshness window.
func (h *WaterHandler) Refresh(ctx context.Context, input *FarmSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	force := signals.Bool("force")

	return h.Stream(func(sse humastar.SSE) {
		m, refreshed, err := h.farms.RefreshWaterSources(ctx, input.FarmID, force)
		if errors.Is(err, service.ErrNoBoundary) {
			sse.Error("Draw the farm boundary before fetching water sources")
			return
		}
		if errors.Is(err, watersource.ErrProvider) {
			sse.Error("Water source provider is unavailable, try again later")
			return
		}
		if err != nil {
			sse.Error(err.Error())
			return
		}

		if refreshed {
			sse.Success(fmt.Sprintf("Found %d water sources nearby", len(m.WaterSources)))
		} else {
			sse.Success("Water sources are up to date")
		}
		sse.Patch(h.renderWaterList(m), "#water-list")
	}), nil
}

// WaterCardData feeds the water-card fragment.
type WaterCardData struct {
	ID       string
	Name     string
	Type     string
	Source   string
	Position string
}

func (h *WaterHandler) renderWaterList(m farm.FarmMapping) string {
	items := make([]any, 0, len(m.WaterSources))
	for _, ws := range m.WaterSources {
		items = append(items, WaterCardData{
			ID:       ws.ID,
			Name:     waterDisplayName(ws),
			Type:     string(ws.Type),
			Source:   ws.Source,
			Position: fmt.Sprintf("%.4f, %.4f", ws.Lat, ws.Lon),
		})
	}
	return h.RenderList("water-card", items,
		"No water sources", "Fetch nearby sources or add one manually")
}
