package outline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxDepth bounds how deep a tree may nest before rendering fails.
const DefaultMaxDepth = 256

var ErrTooDeep = errors.New("outline nests deeper than the allowed depth")

type Image struct {
	URI   string `json:"uri"`
	Width int    `json:"w,omitempty"`
	Alt   string `json:"alt,omitempty"`
}

type Node struct {
	ID        string  `json:"id,omitempty"`
	Text      string  `json:"text"`
	Note      string  `json:"note,omitempty"`
	Heading   int     `json:"heading,omitempty"`
	Collapsed bool    `json:"collapsed,omitempty"`
	Images    []Image `json:"images,omitempty"`
	Children  []*Node `json:"children,omitempty"`
}

// HeadingLevel clamps the node heading to 0..6.
func (n *Node) HeadingLevel() int {
	switch {
	case n.Heading <= 0:
		return 0
	case n.Heading > 6:
		return 6
	default:
		return n.Heading
	}
}

type Document struct {
	Title string  `json:"title,omitempty"`
	Nodes []*Node `json:"nodes"`
}

// flexInt accepts a JSON number, a numeric string or null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v + 0.5)
	return nil
}

type rawImage struct {
	URI   string  `json:"uri"`
	URL   string  `json:"url"`
	W     flexInt `json:"w"`
	Width flexInt `json:"width"`
	Alt   string  `json:"alt"`
	Name  string  `json:"name"`
}

// UnmarshalJSON ignores image entries that are not objects.
func (r *rawImage) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	type plain rawImage
	return json.Unmarshal(b, (*plain)(r))
}

func (r *rawImage) toImage() (Image, bool) {
	uri := r.URI
	if uri == "" {
		uri = r.URL
	}
	if uri == "" {
		return Image{}, false
	}
	width := int(r.W)
	if width <= 0 {
		width = int(r.Width)
	}
	alt := r.Alt
	if alt == "" {
		alt = r.Name
	}
	return Image{URI: uri, Width: width, Alt: alt}, true
}

type rawNode struct {
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	Note      string      `json:"note"`
	Heading   flexInt     `json:"heading"`
	Collapsed bool        `json:"collapsed"`
	Image     *rawImage   `json:"image"`
	Images    []*rawImage `json:"images"`
	ImageList []*rawImage `json:"imageList"`
	Children  []*rawNode  `json:"children"`
}

type rawDefinition struct {
	Nodes []*rawNode `json:"nodes"`
}

// ParseDefinition decodes an outline definition ({"nodes": [...]}) into a
// Document. Unknown fields are ignored and missing ones default.
func ParseDefinition(b []byte) (*Document, error) {
	var raw rawDefinition
	if len(bytes.TrimSpace(b)) == 0 {
		return &Document{Nodes: []*Node{}}, nil
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode outline definition: %w", err)
	}
	nodes, err := convertNodes(raw.Nodes, 0, DefaultMaxDepth)
	if err != nil {
		return nil, err
	}
	return &Document{Nodes: nodes}, nil
}

func convertNodes(in []*rawNode, depth, maxDepth int) ([]*Node, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if depth >= maxDepth {
		return nil, ErrTooDeep
	}
	out := make([]*Node, 0, len(in))
	for _, r := range in {
		if r == nil {
			continue
		}
		n := &Node{
			ID:        r.ID,
			Text:      r.Text,
			Note:      r.Note,
			Heading:   int(r.Heading),
			Collapsed: r.Collapsed,
		}
		candidates := make([]*rawImage, 0, 1+len(r.Images)+len(r.ImageList))
		candidates = append(candidates, r.Image)
		candidates = append(candidates, r.Images...)
		candidates = append(candidates, r.ImageList...)
		for _, ri := range candidates {
			if ri == nil {
				continue
			}
			if img, ok := ri.toImage(); ok {
				n.Images = append(n.Images, img)
			}
		}
		children, err := convertNodes(r.Children, depth+1, maxDepth)
		if err != nil {
			return nil, err
		}
		n.Children = children
		out = append(out, n)
	}
	return out, nil
}
