package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/kerbaras/docport/pkg/outline"
	"github.com/kerbaras/docport/pkg/utils"
)

const (
	mubuList   = "/v3/api/list/get_all_documents_page"
	mubuDetail = "/v3/api/document/edit/get"
	mubuHome   = "https://mubu.com"
)

type mubuEnvelope struct {
	Code    int             `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type mubuRelationItem struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// mubuRelation decodes a relation list that may arrive either as an array or
// as a JSON encoded string. Anything unparsable is an empty relation.
type mubuRelation []mubuRelationItem

func (r *mubuRelation) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*r = nil
	if len(b) == 0 || string(b) == "null" {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil || strings.TrimSpace(s) == "" {
			return nil
		}
		b = []byte(s)
	}
	var items []mubuRelationItem
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	*r = items
	return nil
}

type mubuFolder struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Relation mubuRelation `json:"relation"`
}

type mubuDocument struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	CreateTime millis `json:"createTime"`
	UpdateTime millis `json:"updateTime"`
}

func (d *mubuDocument) ToEntry() Entry {
	kind := d.Type
	if kind == "" {
		kind = "doc"
	}
	return Entry{
		ID:        d.ID,
		Name:      d.Name,
		Type:      kind,
		CreatedAt: d.CreateTime.Time(),
		UpdatedAt: d.UpdateTime.Time(),
	}
}

type mubuListPage struct {
	Folders      []mubuFolder   `json:"folders"`
	Documents    []mubuDocument `json:"documents"`
	RootRelation mubuRelation   `json:"root_relation"`
	HasMore      *bool          `json:"hasMore"`
	HasMoreSnake *bool          `json:"has_more"`
	NextStart    flexID         `json:"nextStart"`
	NextSnake    flexID         `json:"next_start"`
	Next         flexID         `json:"next"`
}

func (p *mubuListPage) more() (bool, string) {
	more := false
	switch {
	case p.HasMore != nil:
		more = *p.HasMore
	case p.HasMoreSnake != nil:
		more = *p.HasMoreSnake
	}
	for _, next := range []flexID{p.NextStart, p.NextSnake, p.Next} {
		if next != "" {
			return more, string(next)
		}
	}
	return more, ""
}

type mubuDetailResponse struct {
	Definition string `json:"definition"`
}

// mubuListing is the whole document listing, fetched once and served as a
// folder tree.
type mubuListing struct {
	folders   map[string]*mubuFolder
	documents map[string]*mubuDocument
	order     []string
	root      mubuRelation
}

// Mubu talks to mubu.com. Documents are fetched as outline definitions and
// rendered locally.
type Mubu struct {
	api      *utils.API
	token    string
	maxPages int
	log      *slog.Logger

	mu      sync.Mutex
	listing *mubuListing
}

func NewMubu(baseURL, token string, log *slog.Logger, opts ...utils.Option) *Mubu {
	if log == nil {
		log = slog.Default()
	}
	base := []utils.Option{
		utils.WithHeader("Origin", mubuHome),
		utils.WithHeader("Referer", mubuHome),
		utils.WithHeader("User-Agent", userAgent),
		utils.WithCredentialHeader("jwt-token", token),
	}
	return &Mubu{
		api:      utils.NewAPI(baseURL, append(base, opts...)...),
		token:    token,
		maxPages: DefaultMaxPages,
		log:      log,
	}
}

func (m *Mubu) WithMaxPages(n int) *Mubu {
	if n > 0 {
		m.maxPages = n
	}
	return m
}

func (m *Mubu) Name() string {
	return "mubu"
}

func (m *Mubu) call(ctx context.Context, path string, body any, v any) error {
	if m.token == "" {
		return fmt.Errorf("%w: jwt token is not set", ErrNotAuthenticated)
	}
	var env mubuEnvelope
	if err := m.api.Post(ctx, path, body, &env); err != nil {
		return err
	}
	if env.Code != 0 {
		msg := env.Msg
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = fmt.Sprintf("code=%d", env.Code)
		}
		if env.Code == 401 || env.Code == 403 {
			return fmt.Errorf("%w: %s", ErrNotAuthenticated, msg)
		}
		return fmt.Errorf("mubu api error: %s", msg)
	}
	if v == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (m *Mubu) fetchListing(ctx context.Context) (*mubuListing, error) {
	l := &mubuListing{
		folders:   map[string]*mubuFolder{},
		documents: map[string]*mubuDocument{},
	}
	rootSet := false
	res, err := Paginate(ctx, m.maxPages, func(ctx context.Context, cursor string) (Page[struct{}], error) {
		var page mubuListPage
		if err := m.call(ctx, mubuList, map[string]string{"start": cursor}, &page); err != nil {
			return Page[struct{}]{}, err
		}
		if !rootSet && len(page.RootRelation) > 0 {
			l.root = page.RootRelation
			rootSet = true
		}
		for i := range page.Folders {
			f := page.Folders[i]
			l.folders[f.ID] = &f
		}
		for i := range page.Documents {
			d := page.Documents[i]
			if _, ok := l.documents[d.ID]; !ok {
				l.order = append(l.order, d.ID)
			}
			l.documents[d.ID] = &d
		}
		more, next := page.more()
		return Page[struct{}]{HasMore: more, Next: next}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	if res.Truncated {
		m.log.Warn("document listing truncated", "pages", res.Pages)
	}
	return l, nil
}

// ListFolder serves one level of the folder tree. Listing the root refreshes
// the cached document listing.
func (m *Mubu) ListFolder(ctx context.Context, folderID string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if folderID == "" || m.listing == nil {
		l, err := m.fetchListing(ctx)
		if err != nil {
			return nil, err
		}
		m.listing = l
	}

	relation := m.listing.root
	if folderID != "" {
		f, ok := m.listing.folders[folderID]
		if !ok {
			return nil, fmt.Errorf("unknown folder %q", folderID)
		}
		relation = f.Relation
	}

	entries := make([]Entry, 0, len(relation))
	for _, item := range relation {
		if item.Type == "folder" {
			if f, ok := m.listing.folders[item.ID]; ok {
				entries = append(entries, Entry{ID: f.ID, Name: f.Name, Type: "folder", Folder: true})
			}
			continue
		}
		if d, ok := m.listing.documents[item.ID]; ok {
			entries = append(entries, d.ToEntry())
		}
	}
	return entries, nil
}

func (m *Mubu) Scopes(context.Context) ([]Scope, error) {
	return nil, nil
}

// ListAll returns every listed document in listing order so documents not
// reachable from the folder tree can still be exported.
func (m *Mubu) ListAll(ctx context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listing == nil {
		l, err := m.fetchListing(ctx)
		if err != nil {
			return nil, err
		}
		m.listing = l
	}
	entries := make([]Entry, 0, len(m.listing.order))
	for _, id := range m.listing.order {
		entries = append(entries, m.listing.documents[id].ToEntry())
	}
	return entries, nil
}

func (m *Mubu) FetchOutline(ctx context.Context, docID string) (*outline.Document, error) {
	var res mubuDetailResponse
	body := map[string]any{"docId": docID, "password": "", "isFromDocDir": true}
	if err := m.call(ctx, mubuDetail, body, &res); err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", docID, err)
	}
	if strings.TrimSpace(res.Definition) == "" {
		return &outline.Document{}, nil
	}
	doc, err := outline.ParseDefinition([]byte(res.Definition))
	if err != nil {
		m.log.Warn("unreadable document definition", "doc", docID, "error", err)
		if errors.Is(err, outline.ErrTooDeep) {
			return nil, err
		}
		return &outline.Document{}, nil
	}
	return doc, nil
}

func (m *Mubu) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return m.api.Open(ctx, rawURL)
}
