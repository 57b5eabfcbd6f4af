package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupShimo(t *testing.T, handler http.HandlerFunc) *Shimo {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewShimo(srv.URL, "sid-123", nil)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestShimo_ListFolder(t *testing.T) {
	s := setupShimo(t, func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("shimo_sid"); assert.NoError(t, err) {
			assert.Equal(t, "sid-123", c.Value)
		}
		assert.Equal(t, "SOS 2.0", r.Header.Get("X-Requested-With"))
		assert.Equal(t, "/lizard-api/files", r.URL.Path)

		switch r.URL.Query().Get("folder") {
		case "":
			writeJSON(w, []map[string]any{
				{"guid": "f1", "name": "Projects", "type": "folder"},
				{"guid": "d1", "name": "Readme", "type": "newdoc", "createdAt": "2024-01-02T03:04:05.000Z"},
			})
		case "f1":
			writeJSON(w, []map[string]any{{"guid": "d2", "name": "Plan", "type": "mosheet"}})
		default:
			http.NotFound(w, r)
		}
	})

	root, err := s.ListFolder(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.True(t, root[0].Folder)
	assert.Equal(t, "Projects", root[0].Name)
	assert.False(t, root[1].Folder)
	assert.Equal(t, "newdoc", root[1].Type)
	assert.Equal(t, 2024, root[1].CreatedAt.Year())

	sub, err := s.ListFolder(context.Background(), "f1")
	require.NoError(t, err)
	require.Len(t, sub, 1)
	assert.Equal(t, "d2", sub[0].ID)
}

func TestShimo_AuthFailures(t *testing.T) {
	s := NewShimo("http://127.0.0.1:1", "", nil)
	_, err := s.ListFolder(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	s = setupShimo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	_, err = s.ListFolder(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = s.Scopes(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestShimo_ScopesMergesListings(t *testing.T) {
	s := setupShimo(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/panda-api/file/spaces":
			assert.Equal(t, "updatedAt", r.URL.Query().Get("orderBy"))
			if r.URL.Query().Get("next") == "" {
				writeJSON(w, map[string]any{
					"spaces": []map[string]string{{"guid": "a", "name": "Alpha"}, {"guid": "b", "name": "Beta"}},
					"next":   "c1",
				})
				return
			}
			writeJSON(w, map[string]any{"spaces": []map[string]string{{"guid": "c", "name": "Gamma"}}})
		case "/panda-api/file/pinned_spaces":
			writeJSON(w, map[string]any{"spaces": []map[string]string{{"guid": "b", "name": "Beta"}, {"guid": "d", "name": "Delta"}}})
		default:
			http.NotFound(w, r)
		}
	})

	scopes, err := s.Scopes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Scope{
		{ID: "a", Name: "Alpha"},
		{ID: "b", Name: "Beta"},
		{ID: "c", Name: "Gamma"},
		{ID: "d", Name: "Delta"},
	}, scopes)
}

func TestShimo_ScopesSurvivesOneFailingListing(t *testing.T) {
	s := setupShimo(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/panda-api/file/pinned_spaces" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"spaces": []map[string]string{{"guid": "a", "name": "Alpha"}}})
	})

	scopes, err := s.Scopes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Scope{{ID: "a", Name: "Alpha"}}, scopes)
}

func TestShimo_ExportTask(t *testing.T) {
	s := setupShimo(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lizard-api/office-gw/files/export":
			assert.Equal(t, "d1", r.URL.Query().Get("fileGuid"))
			assert.Equal(t, "md", r.URL.Query().Get("type"))
			writeJSON(w, map[string]string{"taskId": "t-1"})
		case "/lizard-api/office-gw/files/export/progress":
			switch r.URL.Query().Get("taskId") {
			case "t-1":
				writeJSON(w, map[string]any{"status": 0, "data": map[string]string{"downloadUrl": "https://cdn.example.com/d1.md"}})
			case "t-pending":
				writeJSON(w, map[string]any{"status": 1})
			default:
				w.WriteHeader(http.StatusTooManyRequests)
			}
		}
	})
	ctx := context.Background()

	task, err := s.CreateExportTask(ctx, &data.DocumentRef{ID: "d1"}, "md")
	require.NoError(t, err)
	assert.Equal(t, "t-1", task.ID)
	assert.Contains(t, task.URL, "fileGuid=d1")

	res, err := s.TaskStatus(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "https://cdn.example.com/d1.md", res.DownloadURL)

	res, err = s.TaskStatus(ctx, "t-pending")
	require.NoError(t, err)
	assert.False(t, res.Done)

	_, err = s.TaskStatus(ctx, "t-limited")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestShimo_ExportTaskMissingID(t *testing.T) {
	s := setupShimo(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{})
	})
	_, err := s.CreateExportTask(context.Background(), &data.DocumentRef{ID: "d1"}, "md")
	assert.Error(t, err)
}

func TestShimo_CurrentUser(t *testing.T) {
	s := setupShimo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lizard-api/users/me", r.URL.Path)
		w.Write([]byte(`{"id": 42, "name": "Lin", "email": "lin@example.com"}`))
	})
	u, err := s.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "42", Name: "Lin", Email: "lin@example.com"}, u)
}

func TestOpen_DoesNotLeakSessionToOtherHosts(t *testing.T) {
	var cookie, token string
	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie = r.Header.Get("Cookie")
		token = r.Header.Get("jwt-token")
		w.Write([]byte("bytes"))
	}))
	defer cdn.Close()
	ctx := context.Background()

	body, err := NewShimo("https://shimo.im", "sid-secret", nil).Open(ctx, cdn.URL+"/export.docx")
	require.NoError(t, err)
	body.Close()
	assert.Empty(t, cookie)

	body, err = NewMubu("https://api2.mubu.com", "jwt-secret", nil).Open(ctx, cdn.URL+"/x")
	require.NoError(t, err)
	body.Close()
	assert.Empty(t, cookie)
	assert.Empty(t, token)
}
