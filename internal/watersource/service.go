package watersource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/farmplat/farmmap/internal/farm"
	"github.com/farmplat/farmmap/internal/store"
)

// Fetcher is the provider query the refresh service needs. *Client
// implements it; tests substitute counting fakes.
type Fetcher interface {
	FetchNear(ctx context.Context, lat, lon, radiusKm float64) ([]farm.WaterSource, error)
}

// Service keeps each farm's stored water sources fresh. Concurrent
// refreshes for the same farm and point collapse into a single
// outbound provider query; late callers reuse the stored result via
// the TTL check.
type Service struct {
	store   *store.Store
	fetcher Fetcher
	ttl     time.Duration
	radius  float64
	group   singleflight.Group
	logger  *zap.Logger

	now func() time.Time
}

// NewService wires the refresh service. Zero ttl and radius select the
// package defaults.
func NewService(st *store.Store, f Fetcher, ttl time.Duration, radiusKm float64, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if radiusKm <= 0 {
		radiusKm = DefaultRadiusKm
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   st,
		fetcher: f,
		ttl:     ttl,
		radius:  radiusKm,
		logger:  logger,
		now:     time.Now,
	}
}

// TTL returns the freshness window the service runs with.
func (s *Service) TTL() time.Duration { return s.ttl }

// Refresh ensures the farm's water sources are fresh, fetching around
// the given point when the stored copy is stale or force is set. It
// returns the resulting document and whether a fetch actually ran.
// Provider failures leave the stored document untouched.
func (s *Service) Refresh(ctx context.Context, farmID string, lat, lon float64, force bool) (farm.FarmMapping, bool, error) {
	m, err := s.store.Load(ctx, farmID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return farm.FarmMapping{}, false, err
	}
	if err == nil && !force && CacheValid(m.WaterSourcesLastFetched, s.now(), s.ttl) {
		return m, false, nil
	}

	key := fmt.Sprintf("%s:%.4f:%.4f:%.0f", farmID, lat, lon, s.radius)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		sources, err := s.fetcher.FetchNear(ctx, lat, lon, s.radius)
		if err != nil {
			s.logger.Warn("water source fetch failed",
				zap.String("farm", farmID), zap.Error(err))
			return nil, err
		}
		updated, err := s.store.SaveWaterSources(ctx, farmID, sources, s.now())
		if err != nil {
			return nil, err
		}
		s.logger.Info("water sources refreshed",
			zap.String("farm", farmID), zap.Int("count", len(sources)))
		return updated, nil
	})
	if err != nil {
		return farm.FarmMapping{}, false, err
	}
	return v.(farm.FarmMapping), true, nil
}
