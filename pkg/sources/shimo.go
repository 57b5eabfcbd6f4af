package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/utils"
)

const (
	shimoRoot     = "/lizard-api/files"
	shimoSpaces   = "/panda-api/file/spaces"
	shimoPinned   = "/panda-api/file/pinned_spaces"
	shimoExport   = "/lizard-api/office-gw/files/export"
	shimoProgress = "/lizard-api/office-gw/files/export/progress"
	shimoMe       = "/lizard-api/users/me"
)

type shimoFile struct {
	GUID      string `json:"guid"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (f *shimoFile) ToEntry() Entry {
	return Entry{
		ID:        f.GUID,
		Name:      f.Name,
		Type:      f.Type,
		Folder:    f.Type == "folder",
		CreatedAt: parseTime(f.CreatedAt),
		UpdatedAt: parseTime(f.UpdatedAt),
	}
}

type shimoSpace struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
}

type shimoSpacesPage struct {
	Spaces []shimoSpace `json:"spaces"`
	Next   string       `json:"next"`
}

type shimoTask struct {
	TaskID string `json:"taskId"`
}

type shimoProgressResponse struct {
	Status int `json:"status"`
	Data   struct {
		DownloadURL string `json:"downloadUrl"`
	} `json:"data"`
}

type shimoUser struct {
	ID    flexID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Shimo talks to shimo.im. Documents are rendered server side through export
// tasks; the session comes from the shimo_sid cookie.
type Shimo struct {
	api      *utils.API
	sid      string
	maxPages int
	log      *slog.Logger
}

func NewShimo(baseURL, sid string, log *slog.Logger, opts ...utils.Option) *Shimo {
	if log == nil {
		log = slog.Default()
	}
	base := []utils.Option{
		utils.WithHeader("Accept", "application/nd.shimo.v2+json, text/plain, */*"),
		utils.WithHeader("Referer", "https://shimo.im/desktop"),
		utils.WithHeader("X-Requested-With", "SOS 2.0"),
		utils.WithHeader("User-Agent", userAgent),
		utils.WithCookie("shimo_sid", sid),
	}
	return &Shimo{
		api:      utils.NewAPI(baseURL, append(base, opts...)...),
		sid:      sid,
		maxPages: DefaultMaxPages,
		log:      log,
	}
}

// WithMaxPages bounds the team space pagination.
func (s *Shimo) WithMaxPages(n int) *Shimo {
	if n > 0 {
		s.maxPages = n
	}
	return s
}

func (s *Shimo) Name() string {
	return "shimo"
}

func (s *Shimo) authorized() error {
	if s.sid == "" {
		return fmt.Errorf("%w: shimo_sid is not set", ErrNotAuthenticated)
	}
	return nil
}

func (s *Shimo) ListFolder(ctx context.Context, folderID string) ([]Entry, error) {
	if err := s.authorized(); err != nil {
		return nil, err
	}
	var params url.Values
	if folderID != "" {
		params = url.Values{"folder": {folderID}}
	}
	var files []shimoFile
	if err := s.api.Get(ctx, shimoRoot, params, &files); err != nil {
		return nil, fmt.Errorf("failed to list folder %q: %w", folderID, err)
	}
	entries := make([]Entry, 0, len(files))
	for i := range files {
		if files[i].GUID == "" {
			continue
		}
		entries = append(entries, files[i].ToEntry())
	}
	return entries, nil
}

// Scopes merges the plain and pinned team space listings by guid. A failing
// listing is logged and the other one still used.
func (s *Shimo) Scopes(ctx context.Context) ([]Scope, error) {
	if err := s.authorized(); err != nil {
		return nil, err
	}

	plain, plainErr := Paginate(ctx, s.maxPages, func(ctx context.Context, cursor string) (Page[shimoSpace], error) {
		params := url.Values{"orderBy": {"updatedAt"}}
		if cursor != "" {
			params.Set("next", cursor)
		}
		var page shimoSpacesPage
		if err := s.api.Get(ctx, shimoSpaces, params, &page); err != nil {
			return Page[shimoSpace]{}, err
		}
		return Page[shimoSpace]{Items: page.Spaces, HasMore: page.Next != "", Next: page.Next}, nil
	})
	if plainErr != nil {
		s.log.Warn("failed to list team spaces", "error", plainErr)
	}
	if plain.Truncated {
		s.log.Warn("team space listing truncated", "pages", plain.Pages)
	}

	var pinned shimoSpacesPage
	pinnedErr := s.api.Get(ctx, shimoPinned, nil, &pinned)
	if pinnedErr != nil {
		s.log.Warn("failed to list pinned team spaces", "error", pinnedErr)
	}

	for _, err := range []error{plainErr, pinnedErr} {
		if errors.Is(err, ErrNotAuthenticated) {
			return nil, err
		}
	}
	if plainErr != nil && pinnedErr != nil {
		return nil, fmt.Errorf("failed to list team spaces: %w", plainErr)
	}

	seen := map[string]bool{}
	var scopes []Scope
	for _, sp := range append(plain.Items, pinned.Spaces...) {
		if sp.GUID == "" || seen[sp.GUID] {
			continue
		}
		seen[sp.GUID] = true
		scopes = append(scopes, Scope{ID: sp.GUID, Name: sp.Name})
	}
	return scopes, nil
}

func (s *Shimo) CreateExportTask(ctx context.Context, doc *data.DocumentRef, format string) (Task, error) {
	params := url.Values{"fileGuid": {doc.ID}, "type": {format}}
	task := Task{URL: s.api.BaseURL() + shimoExport + "?" + params.Encode()}
	var res shimoTask
	if err := s.api.Get(ctx, shimoExport, params, &res); err != nil {
		return task, fmt.Errorf("failed to create export task: %w", err)
	}
	if res.TaskID == "" {
		return task, errors.New("export task id missing from response")
	}
	task.ID = res.TaskID
	return task, nil
}

func (s *Shimo) TaskStatus(ctx context.Context, taskID string) (TaskResult, error) {
	var res shimoProgressResponse
	if err := s.api.Get(ctx, shimoProgress, url.Values{"taskId": {taskID}}, &res); err != nil {
		return TaskResult{}, fmt.Errorf("failed to query export progress: %w", err)
	}
	if res.Status == 0 && res.Data.DownloadURL != "" {
		return TaskResult{Done: true, DownloadURL: res.Data.DownloadURL}, nil
	}
	return TaskResult{}, nil
}

func (s *Shimo) CurrentUser(ctx context.Context) (*User, error) {
	if err := s.authorized(); err != nil {
		return nil, err
	}
	var u shimoUser
	if err := s.api.Get(ctx, shimoMe, nil, &u); err != nil {
		return nil, fmt.Errorf("failed to fetch current user: %w", err)
	}
	return &User{ID: string(u.ID), Name: u.Name, Email: u.Email}, nil
}

// Open streams an export artifact with the session cookie attached.
func (s *Shimo) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	return s.api.Open(ctx, rawURL)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
