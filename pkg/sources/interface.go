package sources

import (
	"context"
	"time"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/outline"
	"github.com/kerbaras/docport/pkg/utils"
)

var (
	ErrNotAuthenticated = utils.ErrNotAuthenticated
	ErrRateLimited      = utils.ErrRateLimited
)

// Entry is one child of a remote folder: either a folder to descend into or
// an exportable document.
type Entry struct {
	ID        string
	Name      string
	Type      string
	Folder    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scope is a named root outside the personal space, such as a team space.
type Scope struct {
	ID   string
	Name string
}

// User is the signed-in account.
type User struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email,omitempty" yaml:"email,omitempty"`
}

// Task is a server-side export job. URL is the request that created it.
type Task struct {
	ID  string
	URL string
}

// TaskResult is one poll of a Task. DownloadURL is set once it is done.
type TaskResult struct {
	Done        bool
	DownloadURL string
}

// Catalog lists the remote hierarchy. An empty folderID is the personal root.
type Catalog interface {
	Name() string
	ListFolder(ctx context.Context, folderID string) ([]Entry, error)
	Scopes(ctx context.Context) ([]Scope, error)
}

// GlobalLister exposes a flat listing independent of the folder tree.
type GlobalLister interface {
	ListAll(ctx context.Context) ([]Entry, error)
}

// TaskExporter renders documents server side through asynchronous tasks.
type TaskExporter interface {
	CreateExportTask(ctx context.Context, doc *data.DocumentRef, format string) (Task, error)
	TaskStatus(ctx context.Context, taskID string) (TaskResult, error)
}

// OutlineFetcher returns the outline tree of a document for local rendering.
type OutlineFetcher interface {
	FetchOutline(ctx context.Context, docID string) (*outline.Document, error)
}

// UserInfoer reports the account the session belongs to.
type UserInfoer interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// Source is a platform client. Optional capabilities are discovered with
// type assertions.
type Source interface {
	Catalog
}
