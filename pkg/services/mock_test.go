package services

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/outline"
	"github.com/kerbaras/docport/pkg/sources"
)

type mockSource struct {
	listFolderFunc   func(ctx context.Context, folderID string) ([]sources.Entry, error)
	scopesFunc       func(ctx context.Context) ([]sources.Scope, error)
	listAllFunc      func(ctx context.Context) ([]sources.Entry, error)
	createTaskFunc   func(ctx context.Context, doc *data.DocumentRef, format string) (sources.Task, error)
	taskStatusFunc   func(ctx context.Context, taskID string) (sources.TaskResult, error)
	fetchOutlineFunc func(ctx context.Context, docID string) (*outline.Document, error)
	currentUserFunc  func(ctx context.Context) (*sources.User, error)
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) ListFolder(ctx context.Context, folderID string) ([]sources.Entry, error) {
	if m.listFolderFunc != nil {
		return m.listFolderFunc(ctx, folderID)
	}
	return nil, nil
}

func (m *mockSource) Scopes(ctx context.Context) ([]sources.Scope, error) {
	if m.scopesFunc != nil {
		return m.scopesFunc(ctx)
	}
	return nil, nil
}

func (m *mockSource) ListAll(ctx context.Context) ([]sources.Entry, error) {
	if m.listAllFunc != nil {
		return m.listAllFunc(ctx)
	}
	return nil, nil
}

func (m *mockSource) CreateExportTask(ctx context.Context, doc *data.DocumentRef, format string) (sources.Task, error) {
	if m.createTaskFunc != nil {
		return m.createTaskFunc(ctx, doc, format)
	}
	return sources.Task{ID: "task-" + doc.ID, URL: "https://export.example.com/" + doc.ID}, nil
}

func (m *mockSource) TaskStatus(ctx context.Context, taskID string) (sources.TaskResult, error) {
	if m.taskStatusFunc != nil {
		return m.taskStatusFunc(ctx, taskID)
	}
	return sources.TaskResult{Done: true, DownloadURL: "https://files.example.com/" + taskID}, nil
}

func (m *mockSource) FetchOutline(ctx context.Context, docID string) (*outline.Document, error) {
	if m.fetchOutlineFunc != nil {
		return m.fetchOutlineFunc(ctx, docID)
	}
	return &outline.Document{}, nil
}

func (m *mockSource) CurrentUser(ctx context.Context) (*sources.User, error) {
	if m.currentUserFunc != nil {
		return m.currentUserFunc(ctx)
	}
	return &sources.User{ID: "u1", Name: "Tester"}, nil
}

// catalogOnly hides every optional capability of a source.
type catalogOnly struct {
	sources.Catalog
}

type memStore struct {
	mu    sync.Mutex
	state *data.JobState
	saves int
}

func (s *memStore) Load(ctx context.Context) (*data.JobState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return data.NewJobState(), nil
	}
	return s.state.Clone(), nil
}

func (s *memStore) Save(ctx context.Context, state *data.JobState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	s.saves++
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) saved() *data.JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil
	}
	return s.state.Clone()
}

func (s *memStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type mockOpener struct{}

func (mockOpener) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("payload:" + rawURL)), nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
