package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"
)

// InfoHandler reports service build details and store state.
type InfoHandler struct {
	dataDir string
	db      *sql.DB
}

func NewInfoHandler(dataDir string, db *sql.DB) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, db: db}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether the mapping database is available"`
	Farms    int      `json:"farms" doc:"Farms with a stored mapping document"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	farms := 0
	if h.db != nil {
		// A failed count leaves zero rather than failing the endpoint.
		_ = h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM farm_mappings").Scan(&farms)
	}
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:     "farmmap",
		Version:  "0.1.0",
		DataDir:  h.dataDir,
		DB:       h.db != nil,
		Farms:    farms,
		Features: []string{"boundary", "sections", "water-sources", "geojson", "duckdb"},
	}}, nil
}
