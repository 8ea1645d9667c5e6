// Package render builds the map-facing view of a farm mapping. Actual
// drawing happens on the client map surface; the server only ships
// GeoJSON snapshots and view commands through the Adapter contract.
package render

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/geomath"
)

// Adapter is the full surface contract a concrete map implementation
// satisfies. Narrower views of it (capture.Surface, viewport.LabelView)
// are what the controllers actually depend on.
type Adapter interface {
	ReplaceGeometry(fc *geojson.FeatureCollection)
	FitBounds(b orb.Bound)
	SetPanEnabled(enabled bool)
	ShowTrace(trace orb.LineString)
	ClearTrace()
	SectionIDs() []string
	ShowLabel(sectionID string)
	HideLabel(sectionID string)
}

// Snapshot renders the mapping as one feature collection: an optional
// boundary polygon, a polygon per section, and a point per water
// source. Feature properties carry everything the surface needs to
// style and label without further lookups.
func Snapshot(m farm.FarmMapping) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	if m.Boundary != nil {
		f := geojson.NewFeature(orb.Polygon{m.Boundary.Ring})
		f.Properties["kind"] = "boundary"
		f.Properties["acres"] = m.Boundary.AreaAcres
		fc.Append(f)
	}

	for _, sec := range m.Sections {
		f := geojson.NewFeature(orb.Polygon{sec.Ring})
		f.Properties["kind"] = "section"
		f.Properties["id"] = sec.ID
		f.Properties["name"] = sec.Name
		f.Properties["color"] = sec.Color
		f.Properties["acres"] = sec.AreaAcres
		f.Properties["label"] = SectionLabel(sec)
		if sec.CropType != "" {
			f.Properties["crop"] = sec.CropType
		}
		if sec.NearestWaterSourceID != nil {
			f.Properties["nearestWater"] = *sec.NearestWaterSourceID
		}
		fc.Append(f)
	}

	for _, ws := range m.WaterSources {
		f := geojson.NewFeature(orb.Point{ws.Lon, ws.Lat})
		f.Properties["kind"] = "water"
		f.Properties["id"] = ws.ID
		f.Properties["type"] = string(ws.Type)
		f.Properties["source"] = ws.Source
		f.Properties["popup"] = WaterPopup(ws)
		if ws.Name != "" {
			f.Properties["name"] = ws.Name
		}
		fc.Append(f)
	}

	return fc
}

// SectionLabel is the text shown on a section when labels are visible.
func SectionLabel(sec farm.SectionData) string {
	return fmt.Sprintf("%s (%.2f ac)", sec.Name, sec.AreaAcres)
}

// WaterPopup is the text shown when a water marker is clicked.
func WaterPopup(ws farm.WaterSource) string {
	name := ws.Name
	if name == "" {
		name = "Unnamed"
	}
	return fmt.Sprintf("%s (%s, %s)", name, ws.Type, ws.Source)
}

// FitBound returns the view box for the farm: the boundary's bound
// when one exists, otherwise the union of all section bounds.
func FitBound(m farm.FarmMapping) orb.Bound {
	if m.Boundary != nil {
		return geomath.Bound(m.Boundary.Ring)
	}
	var b orb.Bound
	first := true
	for _, sec := range m.Sections {
		if len(sec.Ring) == 0 {
			continue
		}
		if first {
			b = geomath.Bound(sec.Ring)
			first = false
			continue
		}
		b = b.Union(geomath.Bound(sec.Ring))
	}
	return b
}
