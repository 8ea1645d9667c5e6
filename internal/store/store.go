// Package store persists farm geometry mappings as whole JSON
// documents in a local DuckDB database, one row per farm.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/farmplat/farmmap/internal/farm"
)

// ErrNotFound is returned when a farm has no mapping document or a
// referenced section does not exist.
var ErrNotFound = errors.New("not found")

// Store reads and writes FarmMapping documents. Every mutation is a
// read-modify-write of the full document under a process-local lock.
// Writers in other processes follow last-write-wins with no conflict
// detection, which fits the single-active-editor usage this service is
// built for.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if needed) the database under cfg.DataDir.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for admin queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Load returns the mapping document for the farm. A farm that has
// never been written yields ErrNotFound.
func (s *Store) Load(ctx context.Context, farmID string) (farm.FarmMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, farmID)
}

func (s *Store) load(ctx context.Context, farmID string) (farm.FarmMapping, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT payload FROM farm_mappings WHERE farm_id = ?", farmID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return farm.FarmMapping{}, fmt.Errorf("farm %s: %w", farmID, ErrNotFound)
	}
	if err != nil {
		return farm.FarmMapping{}, fmt.Errorf("failed to load mapping for farm %s: %w", farmID, err)
	}
	var m farm.FarmMapping
	if err := json.Unmarshal(payload, &m); err != nil {
		return farm.FarmMapping{}, fmt.Errorf("failed to decode mapping for farm %s: %w", farmID, err)
	}
	return m, nil
}

// GetSection returns one section of the farm's document. A missing
// farm or section is reported through ok, not an error.
func (s *Store) GetSection(ctx context.Context, farmID, sectionID string) (farm.SectionData, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(ctx, farmID)
	if errors.Is(err, ErrNotFound) {
		return farm.SectionData{}, false, nil
	}
	if err != nil {
		return farm.SectionData{}, false, err
	}
	sec, ok := m.Section(sectionID)
	return sec, ok, nil
}

func (s *Store) save(ctx context.Context, m farm.FarmMapping) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode mapping for farm %s: %w", m.FarmID, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO farm_mappings (farm_id, payload) VALUES (?, ?)
		 ON CONFLICT (farm_id) DO UPDATE SET payload = excluded.payload`,
		m.FarmID, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save mapping for farm %s: %w", m.FarmID, err)
	}
	return nil
}

func emptyMapping(farmID string) farm.FarmMapping {
	return farm.FarmMapping{
		FarmID:       farmID,
		Sections:     []farm.SectionData{},
		WaterSources: []farm.WaterSource{},
	}
}

// Update applies fn to the farm's document and persists the result
// atomically with respect to other Store calls in this process. A farm
// with no document starts from an empty mapping, so first writes work
// on fresh farms. When fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, farmID string, fn func(*farm.FarmMapping) error) (farm.FarmMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(ctx, farmID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return farm.FarmMapping{}, err
		}
		m = emptyMapping(farmID)
	}
	if err := fn(&m); err != nil {
		return farm.FarmMapping{}, err
	}
	if err := s.save(ctx, m); err != nil {
		return farm.FarmMapping{}, err
	}
	return m, nil
}

// Initialize creates an empty document for the farm when none exists
// and returns the current document either way. Safe to call repeatedly.
func (s *Store) Initialize(ctx context.Context, farmID string) (farm.FarmMapping, error) {
	return s.Update(ctx, farmID, func(*farm.FarmMapping) error { return nil })
}

// SaveBoundary sets or replaces the farm's outer boundary.
func (s *Store) SaveBoundary(ctx context.Context, farmID string, b farm.BoundaryData) (farm.FarmMapping, error) {
	return s.Update(ctx, farmID, func(m *farm.FarmMapping) error {
		m.Boundary = &b
		return nil
	})
}

// ClearBoundary removes the farm's boundary. Sections are untouched.
func (s *Store) ClearBoundary(ctx context.Context, farmID string) (farm.FarmMapping, error) {
	return s.Update(ctx, farmID, func(m *farm.FarmMapping) error {
		m.Boundary = nil
		return nil
	})
}

// SaveSection inserts the section or updates it in place, preserving
// its position in the list.
func (s *Store) SaveSection(ctx context.Context, farmID string, sec farm.SectionData) (farm.FarmMapping, error) {
	return s.Update(ctx, farmID, func(m *farm.FarmMapping) error {
		m.UpsertSection(sec)
		return nil
	})
}

// DeleteSection removes the section with the given id. Deleting an id
// that is not present leaves the document unchanged; removed reports
// whether anything was deleted.
func (s *Store) DeleteSection(ctx context.Context, farmID, sectionID string) (m farm.FarmMapping, removed bool, err error) {
	m, err = s.Update(ctx, farmID, func(m *farm.FarmMapping) error {
		removed = m.RemoveSection(sectionID)
		return nil
	})
	return m, removed, err
}

// SaveWaterSources replaces the farm's water sources wholesale and
// stamps the fetch time.
func (s *Store) SaveWaterSources(ctx context.Context, farmID string, sources []farm.WaterSource, fetched time.Time) (farm.FarmMapping, error) {
	return s.Update(ctx, farmID, func(m *farm.FarmMapping) error {
		if sources == nil {
			sources = []farm.WaterSource{}
		}
		m.WaterSources = sources
		m.WaterSourcesLastFetched = &fetched
		return nil
	})
}

// SetSectionWaterSource updates one section's nearest-water reference.
func (s *Store) SetSectionWaterSource(ctx context.Context, farmID, sectionID string, waterID *string) (farm.FarmMapping, error) {
	return s.Update(ctx, farmID, func(m *farm.FarmMapping) error {
		for i := range m.Sections {
			if m.Sections[i].ID == sectionID {
				m.Sections[i].NearestWaterSourceID = waterID
				return nil
			}
		}
		return fmt.Errorf("section %s: %w", sectionID, ErrNotFound)
	})
}
