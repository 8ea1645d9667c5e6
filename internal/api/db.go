package api

import (
	"context"
	"database/sql"

	"github.com/danielgtaylor/huma/v2"

	"github.com/farmplat/farmmap/internal/humastar"
)

// DBHandler serves admin endpoints against the mapping database.
type DBHandler struct {
	db *sql.DB
}

// NewDBHandler creates a new database handler.
func NewDBHandler(db *sql.DB) *DBHandler {
	return &DBHandler{db: db}
}

// RegisterRoutes registers database routes with Huma.
func (h *DBHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/farms", h.ListFarms, huma.OperationTags("mapping"))
	huma.Get(api, "/api/v1/tables", h.ListTables, huma.OperationTags("admin"))
	huma.Post(api, "/api/v1/query", h.Query, huma.OperationTags("admin"))
}

// FarmsInput selects a page of the farm listing.
type FarmsInput struct {
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

// FarmsOutput is a paginated page of farm IDs. Pagination Link headers
// are added automatically.
type FarmsOutput struct {
	Body humastar.PageBody[string]
}

// ListFarms returns a page of farms that have a mapping document.
func (h *DBHandler) ListFarms(ctx context.Context, input *FarmsInput) (*FarmsOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	var total int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM farm_mappings").Scan(&total); err != nil {
		return nil, huma.Error500InternalServerError("Failed to count farms", err)
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT farm_id FROM farm_mappings ORDER BY farm_id LIMIT ? OFFSET ?",
		input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list farms", err)
	}
	defer rows.Close()

	var farms []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err == nil {
			farms = append(farms, id)
		}
	}

	return &FarmsOutput{Body: humastar.NewPage(farms, total, input.Offset, input.Limit)}, nil
}

// TablesOutput is the response for listing tables.
type TablesOutput struct {
	Body struct {
		Tables []string `json:"tables" doc:"List of table names"`
	}
}

// ListTables returns all DuckDB tables.
func (h *DBHandler) ListTables(ctx context.Context, input *struct{}) (*TablesOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, "SHOW TABLES")
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err == nil {
			tables = append(tables, name)
		}
	}

	if tables == nil {
		tables = []string{}
	}

	out := &TablesOutput{}
	out.Body.Tables = tables
	return out, nil
}

// QueryInput is the input for SQL queries.
type QueryInput struct {
	Body struct {
		Query string `json:"query" required:"true" doc:"SQL query to execute"`
	}
}

// QueryOutput is the response for SQL queries.
type QueryOutput struct {
	Body struct {
		Columns []string                 `json:"columns" doc:"Column names"`
		Rows    []map[string]interface{} `json:"rows" doc:"Query results"`
		Count   int                      `json:"count" doc:"Number of rows returned"`
	}
}

// Query executes a SQL query against the mapping database. Useful for
// inspecting documents with DuckDB's JSON functions.
func (h *DBHandler) Query(ctx context.Context, input *QueryInput) (*QueryOutput, error) {
	if h.db == nil {
		return nil, huma.Error503ServiceUnavailable("Database not available")
	}

	rows, err := h.db.QueryContext(ctx, input.Body.Query)
	if err != nil {
		return nil, huma.Error400BadRequest("Query failed: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, huma.Error500InternalServerError("Failed to get columns", err)
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			continue
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}

	if results == nil {
		results = []map[string]interface{}{}
	}

	out := &QueryOutput{}
	out.Body.Columns = columns
	out.Body.Rows = results
	out.Body.Count = len(results)
	return out, nil
}
