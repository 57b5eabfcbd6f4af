// Package outline renders outline trees of rich-text nodes into Markdown,
// OPML, FreeMind mind maps, HTML, JSON and EPUB.
//
// Inline markup is decoded once into a list of runs (ParseInline) and every
// format renders from that representation. Rendering is pure: the same input
// always yields the same bytes.
package outline

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrUnknownFormat = errors.New("unknown outline format")

// Format describes the file a renderer produces.
type Format struct {
	Name      string
	Extension string
	MIME      string
}

var formats = map[string]Format{
	"md":   {"md", "md", "text/markdown"},
	"opml": {"opml", "opml", "text/xml"},
	"json": {"json", "json", "application/json"},
	"mm":   {"mm", "mm", "text/xml"},
	"html": {"html", "html", "text/html"},
	"epub": {"epub", "epub", "application/epub+zip"},
}

// Lookup returns the extension and MIME type of a locally rendered format.
func Lookup(name string) (Format, bool) {
	f, ok := formats[name]
	return f, ok
}

// Formats lists the locally rendered format names.
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Options control rendering. ExportedAt stamps the output metadata;
// MaxDepth falls back to DefaultMaxDepth.
type Options struct {
	Title       string
	ExportedAt  time.Time
	ImageHost   string
	MaxDepth    int
	FrontMatter bool
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return DefaultMaxDepth
}

// Rendered is the output of Render with its file metadata.
type Rendered struct {
	Content   []byte
	Extension string
	MIME      string
}

// Render converts doc into the named format.
func Render(doc *Document, format string, opts Options) (*Rendered, error) {
	f, ok := formats[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	if doc == nil {
		doc = &Document{}
	}
	if opts.Title == "" {
		opts.Title = doc.Title
	}
	if err := checkDepth(doc.Nodes, opts.maxDepth()); err != nil {
		return nil, err
	}

	var content []byte
	var err error
	switch format {
	case "md":
		content = []byte(Markdown(doc.Nodes, opts))
	case "opml":
		content = []byte(OPML(doc.Nodes, opts))
	case "mm":
		content = []byte(MindMap(doc.Nodes, opts))
	case "html":
		content = []byte(HTML(doc.Nodes, opts))
	case "json":
		content, err = JSON(doc.Nodes)
	case "epub":
		content, err = EPUB(doc.Nodes, opts)
	}
	if err != nil {
		return nil, err
	}
	if format != "epub" && (len(content) == 0 || content[len(content)-1] != '\n') {
		content = append(content, '\n')
	}
	return &Rendered{Content: content, Extension: f.Extension, MIME: f.MIME}, nil
}

// checkDepth walks the tree with an explicit stack and fails once any branch
// nests deeper than max.
func checkDepth(nodes []*Node, max int) error {
	type item struct {
		nodes []*Node
		depth int
	}
	stack := []item{{nodes, 1}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(it.nodes) == 0 {
			continue
		}
		if it.depth > max {
			return ErrTooDeep
		}
		for _, n := range it.nodes {
			if n != nil && len(n.Children) > 0 {
				stack = append(stack, item{n.Children, it.depth + 1})
			}
		}
	}
	return nil
}

func textOrPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

const (
	placeholder  = "(empty)"
	defaultTitle = "Outline Export"
)

func titleOr(opts Options) string {
	if opts.Title != "" {
		return opts.Title
	}
	return defaultTitle
}
