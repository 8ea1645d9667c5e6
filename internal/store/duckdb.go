package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Config holds database configuration.
type Config struct {
	DataDir string
	DBName  string
}

const schema = `
CREATE TABLE IF NOT EXISTS farm_mappings (
	farm_id TEXT PRIMARY KEY,
	payload TEXT NOT NULL
)`

// openDB creates the DuckDB database file under DataDir and prepares
// the farm_mappings table.
func openDB(cfg Config) (*sql.DB, error) {
	dir := filepath.Join(cfg.DataDir, "duckdb")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
	}

	db, err := sql.Open("duckdb", filepath.Join(dir, cfg.DBName+".duckdb"))
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("INSTALL json; LOAD json;"); err != nil {
		// Extension might already be installed, continue
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create farm_mappings table: %w", err)
	}
	return db, nil
}
