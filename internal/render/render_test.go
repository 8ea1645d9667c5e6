package render

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/farmplat/farmmap/internal/farm"
)

func testMapping() farm.FarmMapping {
	near := "node/7"
	fetched := time.Now()
	return farm.FarmMapping{
		FarmID: "farm-1",
		Boundary: &farm.BoundaryData{
			Ring:      orb.Ring{{-84.5, 39.1}, {-84.4, 39.1}, {-84.4, 39.2}, {-84.5, 39.2}, {-84.5, 39.1}},
			AreaAcres: 160,
			Centroid:  orb.Point{-84.45, 39.15},
		},
		Sections: []farm.SectionData{
			{
				ID: "s1", Name: "North Field", Color: "#2E7D32", AreaAcres: 12.468,
				Ring:                 orb.Ring{{-84.49, 39.11}, {-84.48, 39.11}, {-84.48, 39.12}, {-84.49, 39.12}, {-84.49, 39.11}},
				CropType:             "winter wheat",
				NearestWaterSourceID: &near,
			},
		},
		WaterSources: []farm.WaterSource{
			{ID: "node/7", Name: "Mill Creek", Type: farm.Stream, Lat: 39.13, Lon: -84.47, Source: farm.SourceOSM},
			{ID: "m-1", Type: farm.Pond, Lat: 39.14, Lon: -84.46, Source: farm.SourceManual},
		},
		WaterSourcesLastFetched: &fetched,
	}
}

func TestSnapshotFeatures(t *testing.T) {
	fc := Snapshot(testMapping())
	if len(fc.Features) != 4 {
		t.Fatalf("expected boundary + 1 section + 2 water features, got %d", len(fc.Features))
	}

	kinds := map[string]int{}
	for _, f := range fc.Features {
		kinds[f.Properties.MustString("kind")]++
	}
	if kinds["boundary"] != 1 || kinds["section"] != 1 || kinds["water"] != 2 {
		t.Fatalf("unexpected feature kinds: %v", kinds)
	}
}

func TestSectionFeatureProperties(t *testing.T) {
	fc := Snapshot(testMapping())
	var props geojson.Properties
	for _, f := range fc.Features {
		if f.Properties.MustString("kind") == "section" {
			props = f.Properties
		}
	}
	if props == nil {
		t.Fatalf("no section feature")
	}
	if props.MustString("color") != "#2E7D32" {
		t.Errorf("color missing: %v", props)
	}
	if got := props.MustString("label"); got != "North Field (12.47 ac)" {
		t.Errorf("label = %q", got)
	}
	if props.MustString("nearestWater") != "node/7" {
		t.Errorf("nearest water not carried: %v", props)
	}
}

func TestWaterPopupText(t *testing.T) {
	named := farm.WaterSource{Name: "Mill Creek", Type: farm.Stream, Source: farm.SourceOSM}
	if got := WaterPopup(named); got != "Mill Creek (stream, osm)" {
		t.Errorf("popup = %q", got)
	}
	anon := farm.WaterSource{Type: farm.Pond, Source: farm.SourceManual}
	if got := WaterPopup(anon); got != "Unnamed (pond, manual)" {
		t.Errorf("popup = %q", got)
	}
}

func TestFitBoundPrefersBoundary(t *testing.T) {
	m := testMapping()
	b := FitBound(m)
	if b.Min != (orb.Point{-84.5, 39.1}) || b.Max != (orb.Point{-84.4, 39.2}) {
		t.Fatalf("fit bound should cover the boundary, got %v", b)
	}

	m.Boundary = nil
	b = FitBound(m)
	if b.Min != (orb.Point{-84.49, 39.11}) || b.Max != (orb.Point{-84.48, 39.12}) {
		t.Fatalf("without a boundary the sections drive the fit, got %v", b)
	}
}

func TestSnapshotEmptyMapping(t *testing.T) {
	fc := Snapshot(farm.FarmMapping{FarmID: "farm-1"})
	if len(fc.Features) != 0 {
		t.Fatalf("empty mapping should render no features, got %d", len(fc.Features))
	}
}
