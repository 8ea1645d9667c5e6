package server

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"go.uber.org/zap"

	"github.com/farmplat/farmmap/internal/api"
	"github.com/farmplat/farmmap/internal/api/editor"
	"github.com/farmplat/farmmap/internal/humastar"
	"github.com/farmplat/farmmap/internal/service"
	"github.com/farmplat/farmmap/internal/spatial"
	"github.com/farmplat/farmmap/internal/store"
	"github.com/farmplat/farmmap/internal/watersource"
)

//go:embed web/*.html
var webFS embed.FS

// DefaultFarmID is the farm the pages open when none is named.
const DefaultFarmID = "demo-farm"

// Config holds the server configuration.
type Config struct {
	Host          string
	Port          string
	DataDir       string
	WebDir        string // optional dev override for pages and fragments
	OverpassURL   string
	WaterTTL      time.Duration
	WaterRadiusKm float64
	Logger        *zap.Logger
}

// Server is the farmmap HTTP server.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	store    *store.Store
	services *api.Services
	renderer *humastar.Renderer
	links    *humastar.Links
	pages    *template.Template
	logger   *zap.Logger
}

// New creates a new farmmap server.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(store.Config{DataDir: cfg.DataDir, DBName: "farmmap"})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := watersource.NewClient(cfg.OverpassURL, logger)
	water := watersource.NewService(st, client, cfg.WaterTTL, cfg.WaterRadiusKm, logger)
	farms := service.NewFarmService(st, water, spatial.NewMatcher(st, logger), service.NewEventBus(), logger)
	services := &api.Services{Farm: farms}

	mux := http.NewServeMux()

	// Create Huma API with humago (pure stdlib) adapter
	humaConfig := huma.DefaultConfig("farmmap API", "1.0.0")
	humaConfig.Info.Description = "Farm geometry editor API for boundaries, crop sections, and nearby water sources."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}

	links := humastar.NewLinks()
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	renderer, err := newRenderer(cfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("load fragments: %w", err)
	}

	pages, err := template.ParseFS(webFS, "web/*.html")
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("parse pages: %w", err)
	}

	s := &Server{
		config:   cfg,
		mux:      mux,
		handler:  mux,
		humaAPI:  humaAPI,
		store:    st,
		services: services,
		renderer: renderer,
		links:    links,
		pages:    pages,
		logger:   logger,
	}

	// Compress API and page responses. GeoJSON documents for farms with
	// many sections shrink considerably.
	if compress, err := httpcompression.DefaultAdapter(); err == nil {
		s.handler = compress(mux)
	} else {
		logger.Warn("compression disabled", zap.Error(err))
	}

	s.routes()
	links.Build(humaAPI)
	return s, nil
}

// newRenderer prefers fragments on disk under WebDir for dev
// hot-editing, falling back to the embedded copies.
func newRenderer(cfg Config, logger *zap.Logger) (*humastar.Renderer, error) {
	if cfg.WebDir != "" {
		dir := filepath.Join(cfg.WebDir, "templates", "fragments")
		if _, err := os.Stat(dir); err == nil {
			logger.Info("loading fragment templates from disk", zap.String("dir", dir))
			return editor.NewRenderer(dir)
		}
	}
	return editor.NewRenderer("")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OpenAPI returns the generated API description.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// FarmService exposes the farm service for CLI subcommands.
func (s *Server) FarmService() *service.FarmService {
	return s.services.Farm
}

// Close closes server resources.
func (s *Server) Close() error {
	return s.store.Close()
}

func (s *Server) routes() {
	// REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services, s.store.DB(), s.config.DataDir)

	// Editor SSE routes using Huma + Datastar SDK
	sessions := editor.NewSessions(s.services.Farm, s.logger)
	editor.NewDrawHandler(sessions, s.renderer).RegisterRoutes(s.humaAPI)
	editor.NewSectionHandler(s.services.Farm, s.renderer).RegisterRoutes(s.humaAPI)
	editor.NewWaterHandler(s.services.Farm, s.renderer).RegisterRoutes(s.humaAPI)
	editor.NewViewportHandler(sessions, s.renderer).RegisterRoutes(s.humaAPI)
	editor.NewEventHandler(s.services.Farm, s.renderer).RegisterRoutes(s.humaAPI)

	// Static files when a web dir is provided
	if s.config.WebDir != "" {
		staticDir := filepath.Join(s.config.WebDir, "static")
		s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	}

	// Page routes
	s.mux.HandleFunc("/viewer", s.handlePage("viewer.html"))
	s.mux.HandleFunc("/editor", s.handlePage("editor.html"))
	s.mux.HandleFunc("/", s.handleRoot)
}

type pageData struct {
	FarmID string
}

// handlePage renders an embedded page template, or the WebDir copy
// when one exists. The farm query parameter picks the farm.
func (s *Server) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		farmID := r.URL.Query().Get("farm")
		if farmID == "" {
			farmID = DefaultFarmID
		}
		data := pageData{FarmID: farmID}

		if s.config.WebDir != "" {
			override := filepath.Join(s.config.WebDir, "templates", name)
			if t, err := template.ParseFiles(override); err == nil {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				if err := t.Execute(w, data); err != nil {
					s.logger.Warn("render page override", zap.String("page", name), zap.Error(err))
				}
				return
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
			s.logger.Warn("render page", zap.String("page", name), zap.Error(err))
		}
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	for _, link := range s.links.Root() {
		w.Header().Add("Link", link)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"service": "farmmap",
		"status":  "running",
	})
}
