// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/humastar"
	"github.com/farmplat/farmmap/internal/render"
	"github.com/farmplat/farmmap/internal/service"
	"github.com/farmplat/farmmap/internal/store"
	"github.com/farmplat/farmmap/internal/watersource"
)

// Services holds the service dependencies for API handlers.
type Services struct {
	Farm *service.FarmService
}

// Types

type FarmInput struct {
	FarmID string `path:"farmId" doc:"Farm identifier" example:"farm-42"`
}

type SectionInput struct {
	FarmInput
	ID string `path:"id" doc:"Section ID" example:"a3c5e8f0-6b2d-4e1a-9c7f-2d8b4a6e0c13"`
}

type RingBody struct {
	Ring orb.Ring `json:"ring" doc:"Polygon vertices as [lon,lat] pairs"`
}

// MappingBody is the farm mapping response. Its hypermedia actions
// depend on whether the boundary has been drawn yet.
type MappingBody struct {
	farm.FarmMapping
}

var farmSetupActions = []humastar.ActionDef{
	{Rel: "draw-boundary", Pattern: "/api/v1/farms/%s/boundary", Method: "PUT", Title: "Draw the farm boundary"},
}

var farmEditActions = []humastar.ActionDef{
	{Rel: "add-section", Pattern: "/api/v1/farms/%s/sections", Method: "POST", Title: "Add a section"},
	{Rel: "refresh-water", Pattern: "/api/v1/farms/%s/water-sources/refresh", Method: "POST", Title: "Refresh water sources"},
	{Rel: "clear-boundary", Pattern: "/api/v1/farms/%s/boundary", Method: "DELETE", Title: "Clear the boundary"},
}

// Actions lists what a client can do next given the mapping state.
func (b MappingBody) Actions() []humastar.Action {
	if b.Boundary == nil {
		return humastar.ActionsFor(b.FarmID, farmSetupActions)
	}
	return humastar.ActionsFor(b.FarmID, farmEditActions)
}

type MappingOutput struct {
	Body MappingBody
}

type SectionOutput struct {
	Body farm.SectionData
}

type SectionsOutput struct {
	Body []farm.SectionData
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"1.0.0"`
}

type WaterSourcesBody struct {
	Sources     []farm.WaterSource `json:"sources" doc:"Known water sources"`
	LastFetched *time.Time         `json:"lastFetched,omitempty" doc:"When provider data was last refreshed"`
}

type RefreshInput struct {
	FarmInput
	Force bool `query:"force" doc:"Refresh even when the cached copy is fresh"`
}

type RefreshBody struct {
	Refreshed   bool       `json:"refreshed" doc:"Whether a provider fetch ran"`
	Count       int        `json:"count" doc:"Water sources now known"`
	LastFetched *time.Time `json:"lastFetched,omitempty" doc:"Fetch stamp after the refresh"`
}

type ManualSourceBody struct {
	Name string               `json:"name,omitempty" maxLength:"100" doc:"Display name" example:"Stock tank"`
	Type farm.WaterSourceType `json:"type" required:"true" enum:"river,lake,pond,reservoir,canal,stream,well,water_tower,spring,waterway" doc:"Kind of water feature"`
	Lat  float64              `json:"lat" required:"true" minimum:"-90" maximum:"90" doc:"Latitude"`
	Lon  float64              `json:"lon" required:"true" minimum:"-180" maximum:"180" doc:"Longitude"`
}

// RegisterRoutes registers every REST route group.
func RegisterRoutes(api huma.API, svc *Services, db *sql.DB, dataDir string) {
	h := NewAPIHandler(svc)
	h.RegisterHealth(api)
	h.RegisterMappings(api)
	h.RegisterSections(api)
	h.RegisterWaterSources(api)

	NewInfoHandler(dataDir, db).RegisterRoutes(api)
	NewDBHandler(db).RegisterRoutes(api)
}

// APIHandler holds all REST API handlers.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterMappings registers farm mapping routes.
func (h *APIHandler) RegisterMappings(api huma.API) {
	huma.Get(api, "/api/v1/farms/{farmId}/mapping", h.GetMapping, huma.OperationTags("mapping"))
	huma.Get(api, "/api/v1/farms/{farmId}/geojson", h.GetGeoJSON, huma.OperationTags("mapping"))
	huma.Get(api, "/api/v1/farms/{farmId}/stats", h.GetStats, huma.OperationTags("mapping"))
	huma.Put(api, "/api/v1/farms/{farmId}/boundary", h.PutBoundary, huma.OperationTags("boundary"))
	huma.Delete(api, "/api/v1/farms/{farmId}/boundary", h.DeleteBoundary, huma.OperationTags("boundary"))
}

// RegisterSections registers section CRUD routes.
func (h *APIHandler) RegisterSections(api huma.API) {
	huma.Get(api, "/api/v1/farms/{farmId}/sections", h.GetSections, huma.OperationTags("sections"))
	huma.Post(api, "/api/v1/farms/{farmId}/sections", h.CreateSection, huma.OperationTags("sections"))
	huma.Get(api, "/api/v1/farms/{farmId}/sections/{id}", h.GetSection, huma.OperationTags("sections"))
	huma.Put(api, "/api/v1/farms/{farmId}/sections/{id}", h.PutSectionMeta, huma.OperationTags("sections"))
	huma.Put(api, "/api/v1/farms/{farmId}/sections/{id}/ring", h.PutSectionRing, huma.OperationTags("sections"))
	huma.Delete(api, "/api/v1/farms/{farmId}/sections/{id}", h.DeleteSection, huma.OperationTags("sections"))
}

// RegisterWaterSources registers water source routes.
func (h *APIHandler) RegisterWaterSources(api huma.API) {
	huma.Get(api, "/api/v1/farms/{farmId}/water-sources", h.GetWaterSources, huma.OperationTags("water"))
	huma.Post(api, "/api/v1/farms/{farmId}/water-sources", h.AddWaterSource, huma.OperationTags("water"))
	huma.Post(api, "/api/v1/farms/{farmId}/water-sources/refresh", h.RefreshWaterSources, huma.OperationTags("water"))
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: "1.0.0"}}, nil
}

func (h *APIHandler) GetMapping(ctx context.Context, input *FarmInput) (*MappingOutput, error) {
	m, err := h.svc.Farm.Mapping(ctx, input.FarmID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load mapping", err)
	}
	return &MappingOutput{Body: MappingBody{FarmMapping: m}}, nil
}

func (h *APIHandler) GetGeoJSON(ctx context.Context, input *FarmInput) (*struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}, error) {
	m, err := h.svc.Farm.Mapping(ctx, input.FarmID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load mapping", err)
	}
	data, err := render.Snapshot(m).MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode snapshot", err)
	}
	return &struct {
		ContentType string `header:"Content-Type"`
		Body        []byte
	}{ContentType: "application/geo+json", Body: data}, nil
}

func (h *APIHandler) GetStats(ctx context.Context, input *FarmInput) (*struct{ Body service.FarmStats }, error) {
	st, err := h.svc.Farm.Stats(ctx, input.FarmID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to compute stats", err)
	}
	return &struct{ Body service.FarmStats }{Body: st}, nil
}

func (h *APIHandler) PutBoundary(ctx context.Context, input *struct {
	FarmInput
	Body RingBody
}) (*MappingOutput, error) {
	m, err := h.svc.Farm.SaveBoundary(ctx, input.FarmID, input.Body.Ring)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to save boundary", err)
	}
	return &MappingOutput{Body: MappingBody{FarmMapping: m}}, nil
}

func (h *APIHandler) DeleteBoundary(ctx context.Context, input *FarmInput) (*MappingOutput, error) {
	m, err := h.svc.Farm.ClearBoundary(ctx, input.FarmID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to clear boundary", err)
	}
	return &MappingOutput{Body: MappingBody{FarmMapping: m}}, nil
}

func (h *APIHandler) GetSections(ctx context.Context, input *FarmInput) (*SectionsOutput, error) {
	m, err := h.svc.Farm.Mapping(ctx, input.FarmID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load mapping", err)
	}
	return &SectionsOutput{Body: m.Sections}, nil
}

func (h *APIHandler) CreateSection(ctx context.Context, input *struct {
	FarmInput
	Body RingBody
}) (*SectionOutput, error) {
	sec, _, err := h.svc.Farm.CreateSection(ctx, input.FarmID, input.Body.Ring)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to create section", err)
	}
	return &SectionOutput{Body: sec}, nil
}

func (h *APIHandler) GetSection(ctx context.Context, input *SectionInput) (*SectionOutput, error) {
	sec, ok, err := h.svc.Farm.GetSection(ctx, input.FarmID, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load section", err)
	}
	if !ok {
		return nil, huma.Error404NotFound("section not found")
	}
	return &SectionOutput{Body: sec}, nil
}

func (h *APIHandler) PutSectionMeta(ctx context.Context, input *struct {
	SectionInput
	Body service.SectionMeta
}) (*SectionOutput, error) {
	m, err := h.svc.Farm.UpdateSectionMeta(ctx, input.FarmID, input.ID, input.Body)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("section not found")
		}
		return nil, huma.Error500InternalServerError("failed to update section", err)
	}
	sec, _ := m.Section(input.ID)
	return &SectionOutput{Body: sec}, nil
}

func (h *APIHandler) PutSectionRing(ctx context.Context, input *struct {
	SectionInput
	Body RingBody
}) (*SectionOutput, error) {
	m, err := h.svc.Farm.UpdateSectionRing(ctx, input.FarmID, input.ID, input.Body.Ring)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, huma.Error404NotFound("section not found")
		}
		return nil, huma.Error500InternalServerError("failed to update section ring", err)
	}
	sec, _ := m.Section(input.ID)
	return &SectionOutput{Body: sec}, nil
}

func (h *APIHandler) DeleteSection(ctx context.Context, input *SectionInput) (*struct{ Body MessageBody }, error) {
	_, removed, err := h.svc.Farm.DeleteSection(ctx, input.FarmID, input.ID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to delete section", err)
	}
	msg := "Section deleted"
	if !removed {
		msg = "Section already absent"
	}
	return &struct{ Body MessageBody }{Body: MessageBody{Message: msg}}, nil
}

func (h *APIHandler) GetWaterSources(ctx context.Context, input *FarmInput) (*struct{ Body WaterSourcesBody }, error) {
	m, err := h.svc.Farm.Mapping(ctx, input.FarmID)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to load mapping", err)
	}
	return &struct{ Body WaterSourcesBody }{Body: WaterSourcesBody{
		Sources:     m.WaterSources,
		LastFetched: m.WaterSourcesLastFetched,
	}}, nil
}

func (h *APIHandler) AddWaterSource(ctx context.Context, input *struct {
	FarmInput
	Body ManualSourceBody
}) (*struct{ Body farm.WaterSource }, error) {
	ws, _, err := h.svc.Farm.AddWaterSource(ctx, input.FarmID, input.Body.Name, input.Body.Type, input.Body.Lat, input.Body.Lon)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to add water source", err)
	}
	return &struct{ Body farm.WaterSource }{Body: ws}, nil
}

func (h *APIHandler) RefreshWaterSources(ctx context.Context, input *RefreshInput) (*struct{ Body RefreshBody }, error) {
	m, refreshed, err := h.svc.Farm.RefreshWaterSources(ctx, input.FarmID, input.Force)
	if err != nil {
		if errors.Is(err, service.ErrNoBoundary) {
			return nil, huma.Error409Conflict("draw the farm boundary before fetching water sources")
		}
		if errors.Is(err, watersource.ErrProvider) {
			return nil, huma.Error502BadGateway("water source provider unavailable", err)
		}
		return nil, huma.Error500InternalServerError("failed to refresh water sources", err)
	}
	return &struct{ Body RefreshBody }{Body: RefreshBody{
		Refreshed:   refreshed,
		Count:       len(m.WaterSources),
		LastFetched: m.WaterSourcesLastFetched,
	}}, nil
}
