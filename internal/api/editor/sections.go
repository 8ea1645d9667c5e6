package editor

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/humastar"
	"github.com/farmplat/farmmap/internal/service"
	"github.com/farmplat/farmmap/internal/store"
)

// SectionHandler drives the sections side panel: the card list, the
// selection detail form, metadata saves, and deletion.
type SectionHandler struct {
	humastar.Handler
	farms *service.FarmService
}

// NewSectionHandler creates the section panel handler.
func NewSectionHandler(farms *service.FarmService, renderer *humastar.Renderer) *SectionHandler {
	return &SectionHandler{
		Handler: humastar.Handler{Renderer: renderer},
		farms:   farms,
	}
}

func (h *SectionHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/editor/farms/{farmId}/sections", h.List, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/farms/{farmId}/sections/{sectionId}/select", h.Select, huma.OperationTags("editor"))
	huma.Post(api, "/api/v1/editor/farms/{farmId}/sections/{sectionId}/meta", h.SaveMeta, huma.OperationTags("editor"))
	huma.Delete(api, "/api/v1/editor/farms/{farmId}/sections/{sectionId}", h.Delete, huma.OperationTags("editor"))
}

// SectionInput identifies one section of a farm.
type SectionInput struct {
	FarmID    string `path:"farmId" doc:"Farm ID"`
	SectionID string `path:"sectionId" doc:"Section ID"`
}

// SectionSignalsInput carries section identity plus raw Datastar signals.
type SectionSignalsInput struct {
	FarmID    string `path:"farmId" doc:"Farm ID"`
	SectionID string `path:"sectionId" doc:"Section ID"`
	humastar.SignalsInput
}

// List patches the section card list into the page.
func (h *SectionHandler) List(ctx context.Context, input *FarmInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		m, err := h.farms.Mapping(ctx, input.FarmID)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sse.Patch(h.renderSectionList(m), "#section-list")
	}), nil
}

// Select marks a section active, fills the detail form, and announces
// the selection so the map can highlight the polygon.
func (h *SectionHandler) Select(ctx context.Context, input *SectionInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		m, err := h.farms.Mapping(ctx, input.FarmID)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		sec, ok := m.Section(input.SectionID)
		if !ok {
			sse.Error("Section not found")
			return
		}

		h.farms.SelectSection(input.FarmID, input.SectionID)

		sse.Patch(h.Renderer.MustRender("section-form", h.formData(input.FarmID, sec)), "#section-detail")
		sse.Signals(map[string]any{
			"selectedsection": sec.ID,
			"sectionname":     sec.Name,
			"sectioncrop":     sec.CropType,
			"sectionsoil":     sec.SoilType,
			"sectionirrig":    sec.IrrigationType,
		})
	}), nil
}

// SaveMeta persists the detail form fields for a section.
func (h *SectionHandler) SaveMeta(ctx context.Context, input *SectionSignalsInput) (*huma.StreamResponse, error) {
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}

	meta := service.SectionMeta{
		Name:           signals.String("sectionname"),
		CropType:       signals.String("sectioncrop"),
		SoilType:       signals.String("sectionsoil"),
		IrrigationType: signals.String("sectionirrig"),
	}

	return h.Stream(func(sse humastar.SSE) {
		m, err := h.farms.UpdateSectionMeta(ctx, input.FarmID, input.SectionID, meta)
		if errors.Is(err, store.ErrNotFound) {
			sse.Error("Section not found")
			return
		}
		if err != nil {
			sse.Error(err.Error())
			return
		}

		sse.Success("Section saved")
		sse.Patch(h.renderSectionList(m), "#section-list")
	}), nil
}

// Delete removes a section. Deleting one that is already gone is a
// no-op so double clicks and stale cards stay harmless.
func (h *SectionHandler) Delete(ctx context.Context, input *SectionInput) (*huma.StreamResponse, error) {
	return h.Stream(func(sse humastar.SSE) {
		_, removed, err := h.farms.DeleteSection(ctx, input.FarmID, input.SectionID)
		if err != nil {
			sse.Error(err.Error())
			return
		}
		if removed {
			sse.RemoveElementByID("section-" + input.SectionID)
			sse.Success("Section deleted")
		}
		sse.Patch("", "#section-detail")
		sse.Signals(map[string]any{"selectedsection": ""})
	}), nil
}

// SectionCardData feeds the section-card fragment.
type SectionCardData struct {
	FarmID    string
	ID        string
	Name      string
	Color     string
	AcresText string
	Crop      string
	WaterName string
}

// SectionFormData feeds the section-form fragment.
type SectionFormData struct {
	FarmID string
	ID     string
	Name   string
}

func (h *SectionHandler) formData(farmID string, sec farm.SectionData) SectionFormData {
	return SectionFormData{FarmID: farmID, ID: sec.ID, Name: sec.Name}
}

func (h *SectionHandler) renderSectionList(m farm.FarmMapping) string {
	items := make([]any, 0, len(m.Sections))
	for _, sec := range m.Sections {
		card := SectionCardData{
			FarmID:    m.FarmID,
			ID:        sec.ID,
			Name:      sec.Name,
			Color:     sec.Color,
			AcresText: fmt.Sprintf("%.2f", sec.AreaAcres),
			Crop:      sec.CropType,
		}
		if sec.NearestWaterSourceID != nil {
			if ws, ok := m.WaterSource(*sec.NearestWaterSourceID); ok {
				card.WaterName = waterDisplayName(ws)
			}
		}
		items = append(items, card)
	}
	return h.RenderList("section-card", items,
		"No sections yet", "Draw one on the map to get started")
}

// waterDisplayName falls back to the type when the feature is unnamed.
func waterDisplayName(ws farm.WaterSource) string {
	if ws.Name != "" {
		return ws.Name
	}
	return string(ws.Type)
}
