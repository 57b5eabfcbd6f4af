package data

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

// InitDuckDB opens (and creates if needed) a DuckDB database file.
func InitDuckDB(path string) (*sql.DB, error) {
	return openSQL("duckdb", path)
}

// InitSQLite opens (and creates if needed) a SQLite database file.
func InitSQLite(path string) (*sql.DB, error) {
	return openSQL("sqlite", path)
}

func openSQL(driver, path string) (*sql.DB, error) {
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}
