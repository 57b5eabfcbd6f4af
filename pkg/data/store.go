package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	stateKey    = "export_state"
	manifestKey = "file_info"
)

var ErrUnknownDriver = errors.New("unknown store driver")

// JobStore persists the job singleton. Load returns a default state when
// nothing has been saved yet.
type JobStore interface {
	Load(ctx context.Context) (*JobState, error)
	Save(ctx context.Context, state *JobState) error
	Close() error
}

// kv is the minimal backend a JobStore is built on.
type kv interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	put(ctx context.Context, entries map[string][]byte) error
	close() error
}

type store struct {
	backend kv
	now     func() time.Time
}

func newStore(backend kv) *store {
	return &store{backend: backend, now: time.Now}
}

// OpenStore opens the backend named by driver. For duckdb and sqlite the dsn
// is a database file path, for redis a redis:// URL.
func OpenStore(ctx context.Context, driver, dsn string) (JobStore, error) {
	switch driver {
	case "duckdb", "sqlite":
		db, err := openSQL(driver, dsn)
		if err != nil {
			return nil, err
		}
		backend, err := newSQLBackend(ctx, db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return newStore(backend), nil
	case "redis":
		backend, err := newRedisBackend(ctx, dsn, "docport")
		if err != nil {
			return nil, err
		}
		return newStore(backend), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func (s *store) Load(ctx context.Context) (*JobState, error) {
	raw, ok, err := s.backend.get(ctx, stateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read job state: %w", err)
	}
	if ok {
		state := NewJobState()
		if err := json.Unmarshal(raw, state); err == nil {
			normalize(state)
			return state, nil
		}
	}

	raw, ok, err = s.backend.get(ctx, manifestKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if !ok {
		return NewJobState(), nil
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return NewJobState(), nil
	}
	return StateFromManifest(m), nil
}

func (s *store) Save(ctx context.Context, state *JobState) error {
	state.UpdatedAt = s.now().UTC()
	full, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode job state: %w", err)
	}
	manifest, err := json.Marshal(state.Manifest())
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := s.backend.put(ctx, map[string][]byte{stateKey: full, manifestKey: manifest}); err != nil {
		return fmt.Errorf("failed to write job state: %w", err)
	}
	return nil
}

func (s *store) Close() error {
	return s.backend.close()
}

func normalize(state *JobState) {
	if state.FileList == nil {
		state.FileList = []*DocumentRef{}
	}
	if state.TypeFormats == nil {
		state.TypeFormats = map[string]string{}
	}
	if state.Logs == nil {
		state.Logs = []string{}
	}
	if state.ExportFormat == "" {
		state.ExportFormat = "auto"
	}
	for _, doc := range state.FileList {
		if doc.Status == "" {
			doc.Status = StatusPending
		}
	}
	state.TotalFiles = len(state.FileList)
	if state.CurrentFileIndex < 0 || state.CurrentFileIndex > len(state.FileList) {
		state.CurrentFileIndex = 0
	}
}
