package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/geomath"
	"github.com/farmplat/farmmap/internal/spatial"
	"github.com/farmplat/farmmap/internal/store"
	"github.com/farmplat/farmmap/internal/watersource"
)

// ErrNoBoundary is returned when an operation needs the farm boundary
// and none has been drawn yet.
var ErrNoBoundary = errors.New("farm has no boundary")

// FarmService owns all mapping mutations. Every write goes through the
// document store first; change events are published only after the
// store call succeeds.
type FarmService struct {
	store   *store.Store
	water   *watersource.Service
	matcher *spatial.Matcher
	bus     *EventBus
	logger  *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewFarmService wires the mapping service.
func NewFarmService(st *store.Store, water *watersource.Service, matcher *spatial.Matcher, bus *EventBus, logger *zap.Logger) *FarmService {
	if bus == nil {
		bus = NewEventBus()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FarmService{
		store:   st,
		water:   water,
		matcher: matcher,
		bus:     bus,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Bus exposes the event bus for subscribers.
func (s *FarmService) Bus() *EventBus { return s.bus }

func (s *FarmService) publish(resource, action, farmID, id string) {
	s.bus.Publish(Event{Resource: resource, Action: action, FarmID: farmID, ID: id})
}

// Mapping returns the farm's document, creating an empty one for farms
// that have never been mapped.
func (s *FarmService) Mapping(ctx context.Context, farmID string) (farm.FarmMapping, error) {
	return s.store.Initialize(ctx, farmID)
}

// GetSection returns one section. Absence is reported through ok.
func (s *FarmService) GetSection(ctx context.Context, farmID, sectionID string) (farm.SectionData, bool, error) {
	return s.store.GetSection(ctx, farmID, sectionID)
}

// HasBoundary reports whether the farm has a boundary drawn.
func (s *FarmService) HasBoundary(ctx context.Context, farmID string) (bool, error) {
	m, err := s.store.Load(ctx, farmID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Boundary != nil, nil
}

// SaveBoundary measures the ring and persists it as the farm boundary,
// replacing any previous one.
func (s *FarmService) SaveBoundary(ctx context.Context, farmID string, ring orb.Ring) (farm.FarmMapping, error) {
	ring = geomath.Close(ring)
	b := farm.BoundaryData{
		Ring:      ring,
		AreaAcres: geomath.AreaAcres(ring),
		Centroid:  geomath.Centroid(ring),
	}
	m, err := s.store.SaveBoundary(ctx, farmID, b)
	if err != nil {
		return farm.FarmMapping{}, err
	}
	s.publish(ResourceBoundary, ActionDrawn, farmID, "")
	s.publish(ResourceStats, ActionChanged, farmID, "")
	s.logger.Info("boundary saved",
		zap.String("farm", farmID), zap.Float64("acres", b.AreaAcres))
	return m, nil
}

// ClearBoundary removes the boundary. Sections are untouched.
func (s *FarmService) ClearBoundary(ctx context.Context, farmID string) (farm.FarmMapping, error) {
	m, err := s.store.ClearBoundary(ctx, farmID)
	if err != nil {
		return farm.FarmMapping{}, err
	}
	s.publish(ResourceBoundary, ActionDeleted, farmID, "")
	s.publish(ResourceStats, ActionChanged, farmID, "")
	return m, nil
}

// CreateSection measures the ring and adds a new section with the next
// default name, the next palette color, and the nearest known water
// source. The new section is also published as selected so the editor
// opens its detail panel.
func (s *FarmService) CreateSection(ctx context.Context, farmID string, ring orb.Ring) (farm.SectionData, farm.FarmMapping, error) {
	doc, err := s.store.Load(ctx, farmID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return farm.SectionData{}, farm.FarmMapping{}, err
	}

	ring = geomath.Close(ring)
	ordinal := len(doc.Sections)
	sec := farm.SectionData{
		ID:                   s.newID(),
		Name:                 farm.SectionName(ordinal),
		Ring:                 ring,
		AreaAcres:            geomath.AreaAcres(ring),
		Color:                farm.SectionColor(ordinal),
		CreatedAt:            s.now(),
		NearestWaterSourceID: spatial.MatchSection(farm.SectionData{Ring: ring}, doc.WaterSources),
	}

	m, err := s.store.SaveSection(ctx, farmID, sec)
	if err != nil {
		return farm.SectionData{}, farm.FarmMapping{}, err
	}
	s.publish(ResourceSection, ActionDrawn, farmID, sec.ID)
	s.publish(ResourceSection, ActionSelected, farmID, sec.ID)
	s.publish(ResourceStats, ActionChanged, farmID, "")
	s.logger.Info("section created",
		zap.String("farm", farmID), zap.String("section", sec.ID),
		zap.String("name", sec.Name), zap.Float64("acres", sec.AreaAcres))
	return sec, m, nil
}

// UpdateSectionRing replaces a section's geometry after vertex editing
// and remeasures it.
func (s *FarmService) UpdateSectionRing(ctx context.Context, farmID, sectionID string, ring orb.Ring) (farm.FarmMapping, error) {
	ring = geomath.Close(ring)
	m, err := s.store.Update(ctx, farmID, func(doc *farm.FarmMapping) error {
		for i := range doc.Sections {
			if doc.Sections[i].ID == sectionID {
				doc.Sections[i].Ring = ring
				doc.Sections[i].AreaAcres = geomath.AreaAcres(ring)
				doc.Sections[i].NearestWaterSourceID = spatial.MatchSection(doc.Sections[i], doc.WaterSources)
				return nil
			}
		}
		return store.ErrNotFound
	})
	if err != nil {
		return farm.FarmMapping{}, err
	}
	s.publish(ResourceSection, ActionUpdated, farmID, sectionID)
	s.publish(ResourceStats, ActionChanged, farmID, "")
	return m, nil
}

// SectionMeta carries the editable section details.
type SectionMeta struct {
	Name           string `json:"name" required:"true" minLength:"1" maxLength:"100" doc:"Display name" example:"North Field"`
	CropType       string `json:"cropType,omitempty" maxLength:"100" doc:"Crop grown in this section" example:"winter wheat"`
	SoilType       string `json:"soilType,omitempty" maxLength:"100" doc:"Soil classification" example:"silt loam"`
	IrrigationType string `json:"irrigationType,omitempty" maxLength:"100" doc:"Irrigation method" example:"center pivot"`
}

// UpdateSectionMeta replaces a section's editable details.
func (s *FarmService) UpdateSectionMeta(ctx context.Context, farmID, sectionID string, meta SectionMeta) (farm.FarmMapping, error) {
	m, err := s.store.Update(ctx, farmID, func(doc *farm.FarmMapping) error {
		for i := range doc.Sections {
			if doc.Sections[i].ID == sectionID {
				doc.Sections[i].Name = meta.Name
				doc.Sections[i].CropType = meta.CropType
				doc.Sections[i].SoilType = meta.SoilType
				doc.Sections[i].IrrigationType = meta.IrrigationType
				return nil
			}
		}
		return store.ErrNotFound
	})
	if err != nil {
		return farm.FarmMapping{}, err
	}
	s.publish(ResourceSection, ActionUpdated, farmID, sectionID)
	return m, nil
}

// DeleteSection removes a section. Deleting an unknown id is a no-op
// and publishes nothing.
func (s *FarmService) DeleteSection(ctx context.Context, farmID, sectionID string) (farm.FarmMapping, bool, error) {
	m, removed, err := s.store.DeleteSection(ctx, farmID, sectionID)
	if err != nil {
		return farm.FarmMapping{}, false, err
	}
	if removed {
		s.publish(ResourceSection, ActionDeleted, farmID, sectionID)
		s.publish(ResourceStats, ActionChanged, farmID, "")
	}
	return m, removed, nil
}

// SelectSection announces a selection to the editor. Selection is
// ephemeral UI state and is not persisted.
func (s *FarmService) SelectSection(farmID, sectionID string) {
	s.publish(ResourceSection, ActionSelected, farmID, sectionID)
}

// RefreshWaterSources fetches fresh provider data around the boundary
// centroid when the cached copy is stale (always when force is set),
// then rematches every section. Farms without a boundary cannot be
// refreshed.
func (s *FarmService) RefreshWaterSources(ctx context.Context, farmID string, force bool) (farm.FarmMapping, bool, error) {
	doc, err := s.store.Initialize(ctx, farmID)
	if err != nil {
		return farm.FarmMapping{}, false, err
	}
	if doc.Boundary == nil {
		return farm.FarmMapping{}, false, ErrNoBoundary
	}

	c := doc.Boundary.Centroid
	m, refreshed, err := s.water.Refresh(ctx, farmID, c[1], c[0], force)
	if err != nil {
		return farm.FarmMapping{}, false, err
	}
	if !refreshed {
		return m, false, nil
	}

	m, err = s.matcher.Rematch(ctx, farmID)
	if err != nil {
		return farm.FarmMapping{}, true, err
	}
	s.publish(ResourceWaterSources, ActionChanged, farmID, "")
	s.publish(ResourceStats, ActionChanged, farmID, "")
	return m, true, nil
}

// AddWaterSource records a manually placed water source. Manual
// entries survive only until the next provider refresh replaces the
// list wholesale.
func (s *FarmService) AddWaterSource(ctx context.Context, farmID, name string, typ farm.WaterSourceType, lat, lon float64) (farm.WaterSource, farm.FarmMapping, error) {
	ws := farm.WaterSource{
		ID:     s.newID(),
		Name:   name,
		Type:   typ,
		Lat:    lat,
		Lon:    lon,
		Source: farm.SourceManual,
	}
	if _, err := s.store.Update(ctx, farmID, func(doc *farm.FarmMapping) error {
		doc.WaterSources = append(doc.WaterSources, ws)
		return nil
	}); err != nil {
		return farm.WaterSource{}, farm.FarmMapping{}, err
	}

	m, err := s.matcher.Rematch(ctx, farmID)
	if err != nil {
		return farm.WaterSource{}, farm.FarmMapping{}, err
	}
	s.publish(ResourceWaterSources, ActionChanged, farmID, ws.ID)
	s.publish(ResourceStats, ActionChanged, farmID, "")
	return ws, m, nil
}

// Stats summarizes the farm's mapping.
func (s *FarmService) Stats(ctx context.Context, farmID string) (FarmStats, error) {
	m, err := s.store.Initialize(ctx, farmID)
	if err != nil {
		return FarmStats{}, err
	}
	st := FarmStats{
		FarmID:           farmID,
		SectionCount:     len(m.Sections),
		WaterSourceCount: len(m.WaterSources),
		WaterFetchedAt:   m.WaterSourcesLastFetched,
	}
	if m.Boundary != nil {
		st.BoundaryAcres = m.Boundary.AreaAcres
	}
	for _, sec := range m.Sections {
		st.SectionAcres += sec.AreaAcres
	}
	return st, nil
}
