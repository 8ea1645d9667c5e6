package watersource

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/store"
)

type fakeFetcher struct {
	calls   int32
	sources []farm.WaterSource
	err     error

	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) FetchNear(ctx context.Context, lat, lon, radiusKm float64) ([]farm.WaterSource, error) {
	if atomic.AddInt32(&f.calls, 1) == 1 && f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	return f.sources, f.err
}

func newTestService(t *testing.T, f Fetcher) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(store.Config{DataDir: t.TempDir(), DBName: "watersource_test"})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewService(st, f, 0, 0, nil), st
}

func TestRefreshStoresSourcesAndStamp(t *testing.T) {
	f := &fakeFetcher{sources: []farm.WaterSource{
		{ID: "node/1", Type: farm.Pond, Lat: 39.1, Lon: -84.5, Source: farm.SourceOSM},
	}}
	svc, st := newTestService(t, f)

	m, refreshed, err := svc.Refresh(context.Background(), "farm-1", 39.1, -84.5, false)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !refreshed {
		t.Fatalf("first refresh must fetch")
	}
	if len(m.WaterSources) != 1 || m.WaterSourcesLastFetched == nil {
		t.Fatalf("document not updated: %+v", m)
	}

	stored, err := st.Load(context.Background(), "farm-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored.WaterSources) != 1 {
		t.Fatalf("sources not persisted: %+v", stored)
	}
}

func TestRefreshSkipsWhenFresh(t *testing.T) {
	f := &fakeFetcher{}
	svc, _ := newTestService(t, f)

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, _, err := svc.Refresh(context.Background(), "farm-1", 39.1, -84.5, false); err != nil {
		t.Fatalf("first refresh: %v", err)
	}

	now = now.Add(2 * time.Hour)
	_, refreshed, err := svc.Refresh(context.Background(), "farm-1", 39.1, -84.5, false)
	if err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if refreshed {
		t.Fatalf("fresh document must not trigger a fetch")
	}

	now = now.Add(DefaultTTL)
	_, refreshed, err = svc.Refresh(context.Background(), "farm-1", 39.1, -84.5, false)
	if err != nil {
		t.Fatalf("third refresh: %v", err)
	}
	if !refreshed {
		t.Fatalf("stale document must trigger a fetch")
	}
	if got := atomic.LoadInt32(&f.calls); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
}

func TestRefreshForceBypassesTTL(t *testing.T) {
	f := &fakeFetcher{}
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	if _, _, err := svc.Refresh(ctx, "farm-1", 39.1, -84.5, false); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if _, refreshed, _ := svc.Refresh(ctx, "farm-1", 39.1, -84.5, true); !refreshed {
		t.Fatalf("force must fetch even when fresh")
	}
	if got := atomic.LoadInt32(&f.calls); got != 2 {
		t.Fatalf("expected 2 provider calls, got %d", got)
	}
}

func TestConcurrentRefreshesShareOneFetch(t *testing.T) {
	f := &fakeFetcher{
		sources: []farm.WaterSource{{ID: "way/7", Type: farm.Canal, Source: farm.SourceOSM}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc, _ := newTestService(t, f)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]bool, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, refreshed, err := svc.Refresh(ctx, "farm-1", 39.1000, -84.5000, false)
			if err != nil {
				t.Errorf("refresh %d: %v", i, err)
			}
			results[i] = refreshed
		}(i)
	}

	<-f.started
	// Give the second caller time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	if got := atomic.LoadInt32(&f.calls); got != 1 {
		t.Fatalf("concurrent refreshes made %d provider calls, want exactly 1", got)
	}
	if !results[0] || !results[1] {
		t.Fatalf("both callers should observe the shared refresh: %v", results)
	}
}

func TestRefreshProviderFailureLeavesStore(t *testing.T) {
	good := &fakeFetcher{sources: []farm.WaterSource{{ID: "node/1", Type: farm.Pond, Source: farm.SourceOSM}}}
	svc, st := newTestService(t, good)
	ctx := context.Background()

	if _, _, err := svc.Refresh(ctx, "farm-1", 39.1, -84.5, false); err != nil {
		t.Fatalf("seed refresh: %v", err)
	}
	before, _ := st.Load(ctx, "farm-1")

	svc.fetcher = &fakeFetcher{err: ErrProvider}
	_, _, err := svc.Refresh(ctx, "farm-1", 39.1, -84.5, true)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}

	after, _ := st.Load(ctx, "farm-1")
	if len(after.WaterSources) != len(before.WaterSources) ||
		!after.WaterSourcesLastFetched.Equal(*before.WaterSourcesLastFetched) {
		t.Fatalf("failed fetch must leave the stored document untouched")
	}
}
