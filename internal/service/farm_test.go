package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/spatial"
	"github.com/farmplat/farmmap/internal/store"
	"github.com/farmplat/farmmap/internal/watersource"
)

type stubFetcher struct {
	sources []farm.WaterSource
	err     error
}

func (f *stubFetcher) FetchNear(ctx context.Context, lat, lon, radiusKm float64) ([]farm.WaterSource, error) {
	return f.sources, f.err
}

func newTestFarmService(t *testing.T, fetch watersource.Fetcher) *FarmService {
	t.Helper()
	st, err := store.Open(store.Config{DataDir: t.TempDir(), DBName: "service_test"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	if fetch == nil {
		fetch = &stubFetcher{}
	}
	water := watersource.NewService(st, fetch, 0, 0, nil)
	matcher := spatial.NewMatcher(st, nil)
	return NewFarmService(st, water, matcher, NewEventBus(), nil)
}

func squareRing(lon, lat, size float64) orb.Ring {
	return orb.Ring{
		{lon, lat}, {lon + size, lat}, {lon + size, lat + size}, {lon, lat + size}, {lon, lat},
	}
}

func drainEvents(ch chan Event) []Event {
	var out []Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestSaveBoundaryMeasuresAndPublishes(t *testing.T) {
	svc := newTestFarmService(t, nil)
	ctx := context.Background()
	events := svc.Bus().Subscribe()
	defer svc.Bus().Unsubscribe(events)

	m, err := svc.SaveBoundary(ctx, "farm-1", squareRing(-84.5, 39.1, 0.01))
	if err != nil {
		t.Fatalf("save boundary: %v", err)
	}
	if m.Boundary == nil || m.Boundary.AreaAcres <= 0 {
		t.Fatalf("boundary not measured: %+v", m.Boundary)
	}
	if m.Boundary.Ring[0] != m.Boundary.Ring[len(m.Boundary.Ring)-1] {
		t.Fatalf("stored boundary ring must be closed")
	}

	got := drainEvents(events)
	if len(got) != 2 || got[0].Resource != ResourceBoundary || got[0].Action != ActionDrawn || got[1].Resource != ResourceStats {
		t.Fatalf("unexpected events: %+v", got)
	}

	// The event is published only after persistence, so the stored
	// document must already show the boundary.
	stored, err := svc.Mapping(ctx, "farm-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored.Boundary == nil {
		t.Fatalf("event observed before boundary was stored")
	}
}

func TestCreateSectionAssignsNameColorAndNearestWater(t *testing.T) {
	svc := newTestFarmService(t, nil)
	ctx := context.Background()

	seed := []farm.WaterSource{
		{ID: "node/1", Lat: 39.5, Lon: -84.9},
		{ID: "node/2", Lat: 39.105, Lon: -84.495},
	}
	if _, err := svc.store.SaveWaterSources(ctx, "farm-1", seed, time.Now()); err != nil {
		t.Fatalf("seed sources: %v", err)
	}

	events := svc.Bus().Subscribe()
	defer svc.Bus().Unsubscribe(events)

	sec, _, err := svc.CreateSection(ctx, "farm-1", squareRing(-84.5, 39.1, 0.01))
	if err != nil {
		t.Fatalf("create section: %v", err)
	}
	if sec.Name != "Section 1" {
		t.Errorf("name = %q, want Section 1", sec.Name)
	}
	if sec.Color != farm.SectionColor(0) {
		t.Errorf("color = %q, want first palette entry", sec.Color)
	}
	if sec.NearestWaterSourceID == nil || *sec.NearestWaterSourceID != "node/2" {
		t.Errorf("nearest water = %v, want node/2", sec.NearestWaterSourceID)
	}
	if sec.AreaAcres <= 0 {
		t.Errorf("section not measured: %+v", sec)
	}

	got := drainEvents(events)
	if len(got) != 3 {
		t.Fatalf("expected drawn+selected+stats events, got %+v", got)
	}
	if got[0].Action != ActionDrawn || got[1].Action != ActionSelected || got[0].ID != sec.ID || got[1].ID != sec.ID {
		t.Fatalf("unexpected event order: %+v", got)
	}
}

func TestSectionNamesAndColorsNeverResequence(t *testing.T) {
	svc := newTestFarmService(t, nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		sec, _, err := svc.CreateSection(ctx, "farm-1", squareRing(-84.5+float64(i)*0.02, 39.1, 0.01))
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
		ids = append(ids, sec.ID)
	}

	if _, _, err := svc.DeleteSection(ctx, "farm-1", ids[1]); err != nil {
		t.Fatalf("delete: %v", err)
	}

	sec, _, err := svc.CreateSection(ctx, "farm-1", squareRing(-84.4, 39.2, 0.01))
	if err != nil {
		t.Fatalf("create after delete: %v", err)
	}
	// Two sections remain, so the new one is numbered 3 even though a
	// "Section 3" already exists. Survivors keep their colors.
	if sec.Name != "Section 3" {
		t.Errorf("name after delete = %q, want Section 3", sec.Name)
	}
	if sec.Color != farm.SectionColor(2) {
		t.Errorf("color after delete = %q, want third palette entry", sec.Color)
	}

	m, _ := svc.Mapping(ctx, "farm-1")
	if first, ok := m.Section(ids[0]); !ok || first.Color != farm.SectionColor(0) {
		t.Errorf("surviving section color changed: %+v", first)
	}
}

func TestDeleteSectionIdempotent(t *testing.T) {
	svc := newTestFarmService(t, nil)
	ctx := context.Background()

	sec, _, err := svc.CreateSection(ctx, "farm-1", squareRing(-84.5, 39.1, 0.01))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	events := svc.Bus().Subscribe()
	defer svc.Bus().Unsubscribe(events)

	if _, removed, _ := svc.DeleteSection(ctx, "farm-1", sec.ID); !removed {
		t.Fatalf("first delete should remove")
	}
	if _, removed, err := svc.DeleteSection(ctx, "farm-1", sec.ID); err != nil || removed {
		t.Fatalf("second delete must be a silent no-op, removed=%v err=%v", removed, err)
	}

	got := drainEvents(events)
	for _, e := range got[2:] {
		t.Errorf("no events expected for the no-op delete, got %+v", e)
	}
}

func TestRefreshWaterSourcesRequiresBoundary(t *testing.T) {
	svc := newTestFarmService(t, nil)
	_, _, err := svc.RefreshWaterSources(context.Background(), "farm-1", false)
	if !errors.Is(err, ErrNoBoundary) {
		t.Fatalf("expected ErrNoBoundary, got %v", err)
	}
}

func TestRefreshWaterSourcesRematchesSections(t *testing.T) {
	fetch := &stubFetcher{sources: []farm.WaterSource{
		{ID: "node/9", Type: farm.Pond, Lat: 39.105, Lon: -84.495, Source: farm.SourceOSM},
	}}
	svc := newTestFarmService(t, fetch)
	ctx := context.Background()

	if _, err := svc.SaveBoundary(ctx, "farm-1", squareRing(-84.5, 39.1, 0.05)); err != nil {
		t.Fatalf("boundary: %v", err)
	}
	sec, _, err := svc.CreateSection(ctx, "farm-1", squareRing(-84.5, 39.1, 0.01))
	if err != nil {
		t.Fatalf("section: %v", err)
	}
	if sec.NearestWaterSourceID != nil {
		t.Fatalf("no sources known yet, reference should be nil")
	}

	m, refreshed, err := svc.RefreshWaterSources(ctx, "farm-1", false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !refreshed {
		t.Fatalf("first refresh must fetch")
	}
	got, _ := m.Section(sec.ID)
	if got.NearestWaterSourceID == nil || *got.NearestWaterSourceID != "node/9" {
		t.Fatalf("section not rematched after refresh: %+v", got)
	}
}

func TestAddWaterSourceManualProvenance(t *testing.T) {
	svc := newTestFarmService(t, nil)
	ctx := context.Background()

	ws, m, err := svc.AddWaterSource(ctx, "farm-1", "Stock tank", farm.Pond, 39.1, -84.5)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if ws.Source != farm.SourceManual || ws.ID == "" {
		t.Fatalf("manual source malformed: %+v", ws)
	}
	if len(m.WaterSources) != 1 {
		t.Fatalf("source not stored: %+v", m.WaterSources)
	}
}

func TestStats(t *testing.T) {
	svc := newTestFarmService(t, nil)
	ctx := context.Background()

	if _, err := svc.SaveBoundary(ctx, "farm-1", squareRing(-84.5, 39.1, 0.05)); err != nil {
		t.Fatalf("boundary: %v", err)
	}
	a, _, _ := svc.CreateSection(ctx, "farm-1", squareRing(-84.5, 39.1, 0.01))
	b, _, _ := svc.CreateSection(ctx, "farm-1", squareRing(-84.48, 39.1, 0.01))

	st, err := svc.Stats(ctx, "farm-1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.SectionCount != 2 {
		t.Errorf("section count = %d, want 2", st.SectionCount)
	}
	want := a.AreaAcres + b.AreaAcres
	if diff := st.SectionAcres - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("section acres = %f, want %f", st.SectionAcres, want)
	}
	if st.BoundaryAcres <= 0 {
		t.Errorf("boundary acres missing: %+v", st)
	}
}
