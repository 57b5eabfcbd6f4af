package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMubu(t *testing.T, handler http.HandlerFunc) *Mubu {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewMubu(srv.URL, "jwt-abc", nil)
}

func envelope(w http.ResponseWriter, data any) {
	writeJSON(w, map[string]any{"code": 0, "msg": "", "data": data})
}

func listingHandler(t *testing.T, calls *int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "jwt-abc", r.Header.Get("jwt-token"))
		assert.Equal(t, "/v3/api/list/get_all_documents_page", r.URL.Path)
		*calls++

		var body struct {
			Start string `json:"start"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch body.Start {
		case "":
			envelope(w, map[string]any{
				"folders": []map[string]any{
					{"id": "f1", "name": "Work", "relation": `[{"id":"d2","type":"doc"},{"id":"missing","type":"doc"}]`},
				},
				"documents": []map[string]any{
					{"id": "d1", "name": "Inbox", "updateTime": 1700000000000},
					{"id": "d2", "name": "Plan", "type": "doc"},
				},
				"root_relation": []map[string]string{{"id": "f1", "type": "folder"}, {"id": "d1", "type": "doc"}},
				"hasMore":       true,
				"nextStart":     "p2",
			})
		case "p2":
			envelope(w, map[string]any{
				"documents": []map[string]any{{"id": "d3", "name": "Orphan"}},
				"has_more":  false,
			})
		default:
			t.Errorf("unexpected cursor %q", body.Start)
		}
	}
}

func TestMubu_ListFolderTree(t *testing.T) {
	calls := 0
	m := setupMubu(t, listingHandler(t, &calls))
	ctx := context.Background()

	root, err := m.ListFolder(ctx, "")
	require.NoError(t, err)
	require.Len(t, root, 2)
	assert.Equal(t, Entry{ID: "f1", Name: "Work", Type: "folder", Folder: true}, root[0])
	assert.Equal(t, "d1", root[1].ID)
	assert.Equal(t, "doc", root[1].Type)
	assert.Equal(t, int64(1700000000000), root[1].UpdatedAt.UnixMilli())
	assert.Equal(t, 2, calls)

	sub, err := m.ListFolder(ctx, "f1")
	require.NoError(t, err)
	require.Len(t, sub, 1)
	assert.Equal(t, "Plan", sub[0].Name)
	assert.Equal(t, 2, calls)

	_, err = m.ListFolder(ctx, "nope")
	assert.Error(t, err)
}

func TestMubu_ListAllIncludesOrphans(t *testing.T) {
	calls := 0
	m := setupMubu(t, listingHandler(t, &calls))

	all, err := m.ListAll(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, e := range all {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"d1", "d2", "d3"}, ids)
	assert.Empty(t, must(m.Scopes(context.Background())))
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func TestMubu_FetchOutline(t *testing.T) {
	m := setupMubu(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/api/document/edit/get", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["isFromDocDir"])
		assert.Equal(t, "", body["password"])

		switch body["docId"] {
		case "good":
			envelope(w, map[string]string{
				"definition": `{"nodes":[{"id":"n1","text":"<b>Hi</b>","heading":"2","images":[{"uri":"a.png","w":100}],"children":[{"text":"child"}]}]}`,
			})
		case "broken":
			envelope(w, map[string]string{"definition": "{not json"})
		default:
			envelope(w, map[string]string{})
		}
	})
	ctx := context.Background()

	doc, err := m.FetchOutline(ctx, "good")
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 1)
	n := doc.Nodes[0]
	assert.Equal(t, "<b>Hi</b>", n.Text)
	assert.Equal(t, 2, n.Heading)
	assert.Equal(t, 100, n.Images[0].Width)
	assert.Equal(t, "child", n.Children[0].Text)

	doc, err = m.FetchOutline(ctx, "broken")
	require.NoError(t, err)
	assert.Empty(t, doc.Nodes)

	doc, err = m.FetchOutline(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, doc.Nodes)
}

func TestMubu_Errors(t *testing.T) {
	_, err := NewMubu("http://127.0.0.1:1", "", nil).ListFolder(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	m := setupMubu(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"code": 401, "msg": "please login"})
	})
	_, err = m.ListFolder(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	m = setupMubu(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"code": 5001, "msg": "server busy"})
	})
	_, err = m.FetchOutline(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server busy")
	assert.NotErrorIs(t, err, ErrNotAuthenticated)
}

func TestMubuRelation_Decoding(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"array", `[{"id":"a","type":"doc"}]`, 1},
		{"string", `"[{\"id\":\"a\",\"type\":\"doc\"},{\"id\":\"b\",\"type\":\"folder\"}]"`, 2},
		{"null", `null`, 0},
		{"garbage", `"oops"`, 0},
		{"empty string", `""`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r mubuRelation
			require.NoError(t, json.Unmarshal([]byte(tt.in), &r))
			assert.Len(t, r, tt.want)
		})
	}
}
