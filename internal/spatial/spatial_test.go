package spatial

import (
	"context"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/store"
)

func TestNearestPicksClosest(t *testing.T) {
	sources := []farm.WaterSource{
		{ID: "far", Lat: 40.0, Lon: -84.0},
		{ID: "near", Lat: 39.11, Lon: -84.51},
		{ID: "farther", Lat: 41.0, Lon: -85.0},
	}
	ws, ok := Nearest(orb.Point{-84.5, 39.1}, sources)
	if !ok || ws.ID != "near" {
		t.Fatalf("nearest = %+v ok=%v, want near", ws, ok)
	}
}

func TestNearestTieKeepsFirst(t *testing.T) {
	// Two sources mirrored east and west of the point are equidistant.
	sources := []farm.WaterSource{
		{ID: "west", Lat: 39.1, Lon: -84.6},
		{ID: "east", Lat: 39.1, Lon: -84.4},
	}
	ws, ok := Nearest(orb.Point{-84.5, 39.1}, sources)
	if !ok || ws.ID != "west" {
		t.Fatalf("tie should keep the first minimum, got %+v", ws)
	}
}

func TestNearestEmpty(t *testing.T) {
	if _, ok := Nearest(orb.Point{0, 0}, nil); ok {
		t.Fatalf("no sources should report ok=false")
	}
}

func TestMatchSection(t *testing.T) {
	sec := farm.SectionData{Ring: orb.Ring{{-84.51, 39.09}, {-84.49, 39.09}, {-84.49, 39.11}, {-84.51, 39.11}, {-84.51, 39.09}}}
	if got := MatchSection(sec, nil); got != nil {
		t.Fatalf("no sources should yield nil reference, got %v", *got)
	}
	sources := []farm.WaterSource{{ID: "node/5", Lat: 39.1, Lon: -84.5}}
	got := MatchSection(sec, sources)
	if got == nil || *got != "node/5" {
		t.Fatalf("expected node/5, got %v", got)
	}
}

func TestRematchUpdatesAllSections(t *testing.T) {
	st, err := store.Open(store.Config{DataDir: t.TempDir(), DBName: "spatial_test"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer st.Close()
	ctx := context.Background()

	ringAt := func(lon, lat float64) orb.Ring {
		return orb.Ring{{lon, lat}, {lon + 0.01, lat}, {lon + 0.01, lat + 0.01}, {lon, lat + 0.01}, {lon, lat}}
	}
	if _, err := st.SaveSection(ctx, "farm-1", farm.SectionData{ID: "s1", Ring: ringAt(-84.50, 39.10)}); err != nil {
		t.Fatalf("save s1: %v", err)
	}
	if _, err := st.SaveSection(ctx, "farm-1", farm.SectionData{ID: "s2", Ring: ringAt(-84.30, 39.30)}); err != nil {
		t.Fatalf("save s2: %v", err)
	}
	sources := []farm.WaterSource{
		{ID: "near-s1", Lat: 39.105, Lon: -84.495},
		{ID: "near-s2", Lat: 39.305, Lon: -84.295},
	}
	if _, err := st.SaveWaterSources(ctx, "farm-1", sources, time.Now()); err != nil {
		t.Fatalf("save sources: %v", err)
	}

	m, err := NewMatcher(st, nil).Rematch(ctx, "farm-1")
	if err != nil {
		t.Fatalf("rematch: %v", err)
	}
	want := map[string]string{"s1": "near-s1", "s2": "near-s2"}
	for _, sec := range m.Sections {
		if sec.NearestWaterSourceID == nil || *sec.NearestWaterSourceID != want[sec.ID] {
			t.Errorf("section %s matched %v, want %s", sec.ID, sec.NearestWaterSourceID, want[sec.ID])
		}
	}

	// Wholesale replace with nothing clears references on rematch.
	if _, err := st.SaveWaterSources(ctx, "farm-1", nil, time.Now()); err != nil {
		t.Fatalf("clear sources: %v", err)
	}
	m, err = NewMatcher(st, nil).Rematch(ctx, "farm-1")
	if err != nil {
		t.Fatalf("second rematch: %v", err)
	}
	for _, sec := range m.Sections {
		if sec.NearestWaterSourceID != nil {
			t.Errorf("section %s should have nil reference, got %v", sec.ID, *sec.NearestWaterSourceID)
		}
	}
}
