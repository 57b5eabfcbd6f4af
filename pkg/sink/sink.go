// Package sink writes exported artifacts under an output root, picking a
// fresh name whenever the suggested one is taken.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var ErrEmptyPath = errors.New("empty destination path")

// Artifact is either rendered content or a URL to stream from.
type Artifact struct {
	Content []byte
	URL     string
}

// Opener streams a remote artifact, typically through the source's API so
// cookies and headers apply.
type Opener interface {
	Open(ctx context.Context, rawURL string) (io.ReadCloser, error)
}

type FileSink struct {
	fs     afero.Fs
	root   string
	opener Opener
}

func New(fs afero.Fs, root string, opener Opener) *FileSink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &FileSink{fs: fs, root: root, opener: opener}
}

// NewOS writes to the local filesystem under root.
func NewOS(root string, opener Opener) *FileSink {
	return New(afero.NewOsFs(), root, opener)
}

func (s *FileSink) Root() string {
	return s.root
}

// Save writes a to relPath below the root and returns the relative path that
// was actually used.
func (s *FileSink) Save(ctx context.Context, a Artifact, relPath string) (string, error) {
	rel := CleanRelative(relPath)
	if rel == "" {
		return "", ErrEmptyPath
	}

	dir, name := path.Split(rel)
	if err := s.fs.MkdirAll(s.abs(dir), 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	rel, err := s.unique(dir, name)
	if err != nil {
		return "", err
	}

	var body io.Reader
	if a.URL != "" && a.Content == nil {
		if s.opener == nil {
			return "", errors.New("no downloader configured for URL artifacts")
		}
		rc, err := s.opener.Open(ctx, a.URL)
		if err != nil {
			return "", fmt.Errorf("failed to download artifact: %w", err)
		}
		defer rc.Close()
		body = rc
	} else {
		body = bytes.NewReader(a.Content)
	}

	target := s.abs(rel)
	part := target + ".part"
	f, err := s.fs.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", rel, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		s.fs.Remove(part)
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := f.Close(); err != nil {
		s.fs.Remove(part)
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := s.fs.Rename(part, target); err != nil {
		s.fs.Remove(part)
		return "", fmt.Errorf("failed to finalise %s: %w", rel, err)
	}
	return rel, nil
}

func (s *FileSink) abs(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(rel))
}

func (s *FileSink) exists(rel string) bool {
	_, err := s.fs.Stat(s.abs(rel))
	return err == nil
}

// unique returns dir/name, or dir/"name (n).ext" for the first free n.
func (s *FileSink) unique(dir, name string) (string, error) {
	candidate := path.Join(dir, name)
	if !s.exists(candidate) {
		return candidate, nil
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 1; n < 10000; n++ {
		candidate = path.Join(dir, stem+" ("+strconv.Itoa(n)+")"+ext)
		if !s.exists(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s", path.Join(dir, name))
}

// CleanRelative normalises p to a slash separated path that cannot leave the
// root: leading separators, "." and ".." segments are dropped.
func CleanRelative(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".", "..":
			continue
		}
		parts = append(parts, seg)
	}
	return strings.Join(parts, "/")
}
