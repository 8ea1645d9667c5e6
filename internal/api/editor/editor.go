// Package editor contains the Datastar SSE handlers behind the
// interactive farm map: draw mode and freehand capture, section and
// water panels, zoom-driven labels, and the change event stream.
//
// Each farm gets one editing session holding its capture controller
// and label controller. Map-facing commands (pan lock, trace preview,
// label toggles, geometry refreshes) leave the server as Datastar
// custom events; the page script applies them to the map library.
package editor

import (
	"context"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"

	"github.com/farmplat/farmmap/internal/capture"
	"github.com/farmplat/farmmap/internal/humastar"
	"github.com/farmplat/farmmap/internal/render"
	"github.com/farmplat/farmmap/internal/service"
	"github.com/farmplat/farmmap/internal/viewport"
)

var _ render.Adapter = (*mapSurface)(nil)

// Sessions hands out one editing session per farm, created lazily.
type Sessions struct {
	mu     sync.Mutex
	active map[string]*Session

	farms  *service.FarmService
	logger *zap.Logger
}

// NewSessions creates the session registry.
func NewSessions(farms *service.FarmService, logger *zap.Logger) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sessions{
		active: map[string]*Session{},
		farms:  farms,
		logger: logger,
	}
}

// Get returns the farm's session, creating it on first use.
func (s *Sessions) Get(farmID string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.active[farmID]; ok {
		return sess
	}

	surface := &mapSurface{
		listSections: func() []string {
			m, err := s.farms.Mapping(context.Background(), farmID)
			if err != nil {
				return nil
			}
			ids := make([]string, 0, len(m.Sections))
			for _, sec := range m.Sections {
				ids = append(ids, sec.ID)
			}
			return ids
		},
	}

	sess := &Session{
		FarmID:  farmID,
		Capture: capture.New(farmID, s.farms, surface, s.logger),
		Labels:  viewport.NewLabelController(surface, 0),
		surface: surface,
	}
	s.active[farmID] = sess
	s.logger.Debug("editing session started", zap.String("farm", farmID))
	return sess
}

// Session is one farm's editing state: the drawing controller, the
// label controller, and the surface both talk to.
type Session struct {
	FarmID  string
	Capture *capture.Controller
	Labels  *viewport.LabelController

	bindMu  sync.Mutex
	surface *mapSurface
}

// Bind routes surface commands to sse while fn runs. Requests for the
// same session are serialized so a pointer burst cannot interleave its
// trace previews.
func (s *Session) Bind(sse humastar.SSE, fn func()) {
	s.bindMu.Lock()
	defer s.bindMu.Unlock()
	s.surface.bind(sse)
	defer s.surface.unbind()
	fn()
}

// mapSurface relays controller commands to the browser map as Datastar
// custom events on whichever SSE stream is currently bound. With no
// stream bound the commands are dropped, matching a client that has
// navigated away mid-gesture.
type mapSurface struct {
	mu  sync.Mutex
	sse *humastar.SSE

	listSections func() []string
}

func (m *mapSurface) bind(sse humastar.SSE) {
	m.mu.Lock()
	m.sse = &sse
	m.mu.Unlock()
}

func (m *mapSurface) unbind() {
	m.mu.Lock()
	m.sse = nil
	m.mu.Unlock()
}

func (m *mapSurface) send(event string, detail any) {
	m.mu.Lock()
	sse := m.sse
	m.mu.Unlock()
	if sse == nil {
		return
	}
	sse.Event(event, detail)
}

// ReplaceGeometry ships a fresh GeoJSON snapshot of the whole farm.
func (m *mapSurface) ReplaceGeometry(fc *geojson.FeatureCollection) {
	m.send("map-geometry", fc)
}

// FitBounds asks the map to frame the given box.
func (m *mapSurface) FitBounds(b orb.Bound) {
	m.send("map-fit", map[string]any{
		"west": b.Min[0], "south": b.Min[1],
		"east": b.Max[0], "north": b.Max[1],
	})
}

// SetPanEnabled locks or unlocks map panning during freehand capture.
func (m *mapSurface) SetPanEnabled(enabled bool) {
	m.send("map-pan", map[string]any{"enabled": enabled})
}

// ShowTrace previews the in-progress freehand line.
func (m *mapSurface) ShowTrace(trace orb.LineString) {
	m.send("map-trace", map[string]any{"points": trace})
}

// ClearTrace removes the freehand preview.
func (m *mapSurface) ClearTrace() {
	m.send("map-trace-clear", map[string]any{})
}

// SectionIDs lists the sections currently on the map.
func (m *mapSurface) SectionIDs() []string {
	return m.listSections()
}

// ShowLabel turns a section's name label on.
func (m *mapSurface) ShowLabel(sectionID string) {
	m.send("section-label", map[string]any{"id": sectionID, "visible": true})
}

// HideLabel turns a section's name label off.
func (m *mapSurface) HideLabel(sectionID string) {
	m.send("section-label", map[string]any{"id": sectionID, "visible": false})
}
