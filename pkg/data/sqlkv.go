package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	name TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

const upsert = `INSERT INTO kv (name, payload, updated_at) VALUES (?, ?, ?)
ON CONFLICT (name) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`

type sqlBackend struct {
	db *sql.DB
}

func newSQLBackend(ctx context.Context, db *sql.DB) (*sqlBackend, error) {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}
	return &sqlBackend{db: db}, nil
}

// NewSQLStore builds a JobStore on an already opened DuckDB or SQLite handle.
func NewSQLStore(ctx context.Context, db *sql.DB) (JobStore, error) {
	backend, err := newSQLBackend(ctx, db)
	if err != nil {
		return nil, err
	}
	return newStore(backend), nil
}

func (b *sqlBackend) get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT payload FROM kv WHERE name = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return []byte(value), true, nil
}

func (b *sqlBackend) put(ctx context.Context, entries map[string][]byte) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for key, value := range entries {
		if _, err := tx.ExecContext(ctx, upsert, key, string(value), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to upsert %s: %w", key, err)
		}
	}
	return tx.Commit()
}

func (b *sqlBackend) close() error {
	return b.db.Close()
}
