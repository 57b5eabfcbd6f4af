package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kerbaras/docport/pkg/data"
	"github.com/kerbaras/docport/pkg/sources"
	"github.com/kerbaras/docport/pkg/utils"
)

// TeamSpaces prefixes the path of every document found under a scope.
const TeamSpaces = "Team Spaces"

const DefaultMaxFolderDepth = 64

// Manifest is the flat result of one discovery run.
type Manifest struct {
	Files       []*data.DocumentRef
	FolderCount int
	Truncated   bool
}

// Discoverer walks the personal root, every scope and the optional global
// listing into a deduplicated manifest.
type Discoverer struct {
	catalog  sources.Catalog
	log      *slog.Logger
	maxDepth int
}

func NewDiscoverer(catalog sources.Catalog, log *slog.Logger) *Discoverer {
	if log == nil {
		log = slog.Default()
	}
	return &Discoverer{catalog: catalog, log: log.With(slog.String("component", "discoverer")), maxDepth: DefaultMaxFolderDepth}
}

func (d *Discoverer) WithMaxDepth(n int) *Discoverer {
	if n > 0 {
		d.maxDepth = n
	}
	return d
}

type walkState struct {
	manifest *Manifest
	seen     map[string]bool
	visited  map[string]bool
}

// systemic reports errors that must abort the whole discovery.
func systemic(err error) bool {
	return errors.Is(err, sources.ErrNotAuthenticated) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (d *Discoverer) Discover(ctx context.Context) (*Manifest, error) {
	w := &walkState{
		manifest: &Manifest{Files: []*data.DocumentRef{}},
		seen:     map[string]bool{},
		visited:  map[string]bool{},
	}

	if err := d.walk(ctx, w, "", nil, 0); err != nil {
		return nil, err
	}

	scopes, err := d.catalog.Scopes(ctx)
	if err != nil {
		if systemic(err) {
			return nil, err
		}
		d.log.Warn("failed to list scopes", "error", err)
	}
	seenScopes := map[string]bool{}
	for _, sc := range scopes {
		if sc.ID == "" || seenScopes[sc.ID] {
			continue
		}
		seenScopes[sc.ID] = true
		name := utils.SanitizeSegment(sc.Name)
		if name == "" {
			name = utils.SanitizeSegment(sc.ID)
		}
		if err := d.walk(ctx, w, sc.ID, []string{TeamSpaces, name}, 1); err != nil {
			return nil, err
		}
	}

	if gl, ok := d.catalog.(sources.GlobalLister); ok {
		entries, err := gl.ListAll(ctx)
		if err != nil {
			if systemic(err) {
				return nil, err
			}
			d.log.Warn("failed to fetch global listing", "error", err)
		}
		for _, e := range entries {
			if !e.Folder {
				w.add(e, nil)
			}
		}
	}

	d.log.Info("discovery finished",
		"source", d.catalog.Name(),
		"documents", len(w.manifest.Files),
		"folders", w.manifest.FolderCount,
		"truncated", w.manifest.Truncated)
	return w.manifest, nil
}

func (d *Discoverer) walk(ctx context.Context, w *walkState, folderID string, path []string, depth int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if folderID != "" {
		if w.visited[folderID] {
			d.log.Debug("folder already visited", "folder", folderID)
			return nil
		}
		w.visited[folderID] = true
	}
	if depth > d.maxDepth {
		w.manifest.Truncated = true
		d.log.Warn("folder nesting too deep, skipping", "folder", folderID, "depth", depth)
		return nil
	}

	entries, err := d.catalog.ListFolder(ctx, folderID)
	if err != nil {
		if systemic(err) {
			return err
		}
		d.log.Warn("failed to list folder", "folder", folderID, "error", err)
		return nil
	}

	for _, e := range entries {
		if !e.Folder {
			w.add(e, path)
			continue
		}
		w.manifest.FolderCount++
		child := append([]string(nil), path...)
		if seg := utils.SanitizeSegment(e.Name); seg != "" {
			child = append(child, seg)
		}
		if err := d.walk(ctx, w, e.ID, child, depth+1); err != nil {
			return fmt.Errorf("folder %q: %w", e.Name, err)
		}
	}
	return nil
}

// add records a document unless its id was already seen; the first path wins.
func (w *walkState) add(e sources.Entry, path []string) {
	if e.ID == "" || w.seen[e.ID] {
		return
	}
	w.seen[e.ID] = true
	doc := &data.DocumentRef{
		ID:         e.ID,
		Title:      e.Name,
		Kind:       e.Type,
		FolderPath: append([]string{}, path...),
		Status:     data.StatusPending,
		CreatedAt:  timePtr(e.CreatedAt),
		UpdatedAt:  timePtr(e.UpdatedAt),
	}
	w.manifest.Files = append(w.manifest.Files, doc)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
