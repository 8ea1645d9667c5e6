// Package farm defines the domain model for farm geometry mappings:
// the boundary, the crop sections drawn inside it, and nearby water
// sources discovered from the geographic data provider.
package farm

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"
)

// WaterSourceType classifies a water source into a fixed set of kinds.
// Provider features that are recognizably water-related but match none
// of the specific kinds degrade to Waterway rather than being dropped.
type WaterSourceType string

const (
	River      WaterSourceType = "river"
	Lake       WaterSourceType = "lake"
	Pond       WaterSourceType = "pond"
	Reservoir  WaterSourceType = "reservoir"
	Canal      WaterSourceType = "canal"
	Stream     WaterSourceType = "stream"
	Well       WaterSourceType = "well"
	WaterTower WaterSourceType = "water_tower"
	Spring     WaterSourceType = "spring"
	Waterway   WaterSourceType = "waterway"
)

// WaterSourceTypes lists every WaterSourceType in display order.
var WaterSourceTypes = []WaterSourceType{
	River, Lake, Pond, Reservoir, Canal,
	Stream, Well, WaterTower, Spring, Waterway,
}

// ParseWaterSourceType validates a raw string against the known kinds.
func ParseWaterSourceType(s string) (WaterSourceType, bool) {
	for _, t := range WaterSourceTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Water source provenance values.
const (
	SourceOSM    = "osm"
	SourceManual = "manual"
)

// WaterSource is a single water feature near the farm. Provider-sourced
// entries are replaced wholesale on every refresh; manual entries live
// only until the next refresh.
type WaterSource struct {
	ID     string          `json:"id" doc:"Stable identifier (provider element id or uuid)" example:"way/102034"`
	Name   string          `json:"name,omitempty" doc:"Display name, empty when the provider has none" example:"Mill Creek"`
	Type   WaterSourceType `json:"type" enum:"river,lake,pond,reservoir,canal,stream,well,water_tower,spring,waterway" doc:"Kind of water feature" example:"stream"`
	Lat    float64         `json:"lat" minimum:"-90" maximum:"90" doc:"Latitude of the feature (or its computed center)" example:"39.1031"`
	Lon    float64         `json:"lon" minimum:"-180" maximum:"180" doc:"Longitude of the feature (or its computed center)" example:"-84.512"`
	Source string          `json:"source" enum:"osm,manual" doc:"Where the entry came from" example:"osm"`
}

// SectionData is one crop section polygon drawn inside the farm.
type SectionData struct {
	ID                   string    `json:"id" doc:"Unique section identifier" example:"a3c5e8f0-6b2d-4e1a-9c7f-2d8b4a6e0c13"`
	Name                 string    `json:"name" doc:"Display name, defaults to Section {n}" example:"Section 2"`
	Ring                 orb.Ring  `json:"ring" doc:"Polygon vertices as [lon,lat] pairs"`
	AreaAcres            float64   `json:"areaAcres" doc:"Geodesic surface area in acres" example:"12.47"`
	CropType             string    `json:"cropType,omitempty" doc:"Crop grown in this section" example:"winter wheat"`
	SoilType             string    `json:"soilType,omitempty" doc:"Soil classification" example:"silt loam"`
	IrrigationType       string    `json:"irrigationType,omitempty" doc:"Irrigation method" example:"center pivot"`
	Color                string    `json:"color" doc:"Fill color assigned at creation, stable for the section's lifetime" example:"#2E7D32"`
	CreatedAt            time.Time `json:"createdAt" doc:"Creation timestamp"`
	NearestWaterSourceID *string   `json:"nearestWaterSourceId,omitempty" doc:"ID of the closest known water source"`
}

// BoundaryData is the farm's outer boundary polygon.
type BoundaryData struct {
	Ring      orb.Ring  `json:"ring" doc:"Boundary vertices as [lon,lat] pairs"`
	AreaAcres float64   `json:"areaAcres" doc:"Geodesic surface area in acres" example:"160.2"`
	Centroid  orb.Point `json:"centroid" doc:"Vertex-mean centroid as [lon,lat]"`
}

// FarmMapping is the complete geometry document for one farm. It is
// persisted whole on every mutation; concurrent writers follow
// last-write-wins with no conflict detection.
type FarmMapping struct {
	FarmID                  string        `json:"farmId" doc:"Owning farm identifier" example:"farm-42"`
	Boundary                *BoundaryData `json:"boundary,omitempty" doc:"Outer boundary, nil until drawn"`
	Sections                []SectionData `json:"sections" doc:"Crop sections in creation order"`
	WaterSources            []WaterSource `json:"waterSources" doc:"Known nearby water sources"`
	WaterSourcesLastFetched *time.Time    `json:"waterSourcesLastFetched,omitempty" doc:"When provider data was last refreshed"`
}

// Section returns the section with the given id.
func (m *FarmMapping) Section(id string) (SectionData, bool) {
	for _, s := range m.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return SectionData{}, false
}

// UpsertSection replaces the section with a matching ID in place,
// preserving its position, or appends when the ID is new.
func (m *FarmMapping) UpsertSection(s SectionData) {
	for i := range m.Sections {
		if m.Sections[i].ID == s.ID {
			m.Sections[i] = s
			return
		}
	}
	m.Sections = append(m.Sections, s)
}

// RemoveSection deletes the section with the given id and reports
// whether anything was removed. Unknown ids are a no-op.
func (m *FarmMapping) RemoveSection(id string) bool {
	for i := range m.Sections {
		if m.Sections[i].ID == id {
			m.Sections = append(m.Sections[:i], m.Sections[i+1:]...)
			return true
		}
	}
	return false
}

// WaterSource returns the water source with the given id.
func (m *FarmMapping) WaterSource(id string) (WaterSource, bool) {
	for _, w := range m.WaterSources {
		if w.ID == id {
			return w, true
		}
	}
	return WaterSource{}, false
}

// sectionPalette holds the fill colors cycled through as sections are
// created. A section keeps the color assigned at creation even when
// earlier sections are deleted.
var sectionPalette = [...]string{
	"#2E7D32", // green
	"#1565C0", // blue
	"#EF6C00", // orange
	"#6A1B9A", // purple
	"#C62828", // red
	"#00838F", // teal
	"#F9A825", // amber
	"#4E342E", // brown
	"#AD1457", // pink
	"#37474F", // slate
}

// SectionColor returns the palette color for a section created when
// ordinal sections already existed.
func SectionColor(ordinal int) string {
	if ordinal < 0 {
		ordinal = 0
	}
	return sectionPalette[ordinal%len(sectionPalette)]
}

// SectionName returns the default display name for a section created
// when existing sections already existed. Names are assigned once and
// never resequenced, so after deletions a new section can repeat an
// earlier name.
func SectionName(existing int) string {
	return fmt.Sprintf("Section %d", existing+1)
}
