// Package spatial matches farm geometry against known water sources.
package spatial

import (
	"context"
	"math"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/geomath"
	"github.com/farmplat/farmmap/internal/store"
)

// Nearest returns the water source closest to the point by great-circle
// distance. Ties keep the first minimum encountered, so results are
// stable for a given source order. ok is false when sources is empty.
func Nearest(from orb.Point, sources []farm.WaterSource) (farm.WaterSource, bool) {
	best := -1
	bestDist := math.Inf(1)
	for i, ws := range sources {
		d := geomath.Distance(from, orb.Point{ws.Lon, ws.Lat})
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return farm.WaterSource{}, false
	}
	return sources[best], true
}

// MatchSection returns the id of the nearest source to the section's
// centroid, or nil when none are known.
func MatchSection(sec farm.SectionData, sources []farm.WaterSource) *string {
	ws, ok := Nearest(geomath.Centroid(sec.Ring), sources)
	if !ok {
		return nil
	}
	id := ws.ID
	return &id
}

// Matcher recomputes nearest-water references for whole farms. The
// scan is linear over sections x sources, which fits farm scale (tens
// of sections, at most a few hundred sources).
type Matcher struct {
	store  *store.Store
	logger *zap.Logger
}

// NewMatcher wires a matcher over the document store.
func NewMatcher(st *store.Store, logger *zap.Logger) *Matcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{store: st, logger: logger}
}

// Rematch recomputes and persists every section's nearest-source
// reference, clearing references when no sources are known.
func (m *Matcher) Rematch(ctx context.Context, farmID string) (farm.FarmMapping, error) {
	doc, err := m.store.Update(ctx, farmID, func(doc *farm.FarmMapping) error {
		for i := range doc.Sections {
			doc.Sections[i].NearestWaterSourceID = MatchSection(doc.Sections[i], doc.WaterSources)
		}
		return nil
	})
	if err != nil {
		return farm.FarmMapping{}, err
	}
	m.logger.Debug("rematched sections",
		zap.String("farm", farmID),
		zap.Int("sections", len(doc.Sections)),
		zap.Int("sources", len(doc.WaterSources)))
	return doc, nil
}
