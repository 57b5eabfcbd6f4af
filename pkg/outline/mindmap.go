package outline

import (
	"regexp"
	"strconv"
	"strings"
)

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// MindMap renders nodes as a FreeMind map rooted at a node titled after the
// document.
func MindMap(nodes []*Node, opts Options) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<map version="1.0.1">` + "\n")
	b.WriteString(`  <node TEXT="` + mindMapText(titleOr(opts)) + `" ID="root">` + "\n")

	seq := 0
	nodeID := func(raw string) string {
		if id := unsafeID.ReplaceAllString(raw, "_"); id != "" {
			return id
		}
		seq++
		return "node_" + strconv.Itoa(seq)
	}

	var walk func(items []*Node, depth int)
	walk = func(items []*Node, depth int) {
		indent := strings.Repeat("  ", depth)
		for _, n := range items {
			if n == nil {
				continue
			}
			folded := ""
			if n.Collapsed {
				folded = ` FOLDED="true"`
			}
			b.WriteString(indent + `<node TEXT="` + mindMapText(PlainTextOf(n.Text)) + `" ID="` + nodeID(n.ID) + `"` + folded + ">\n")
			if note := mindMapNote(n, opts.ImageHost); note != "" {
				b.WriteString(indent + `  <richcontent TYPE="NOTE"><html><head></head><body>` + note + "</body></html></richcontent>\n")
			}
			walk(n.Children, depth+1)
			b.WriteString(indent + "</node>\n")
		}
	}
	walk(nodes, 2)

	b.WriteString("  </node>\n")
	b.WriteString("</map>\n")
	return b.String()
}

func mindMapText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return escapeXML(textOrPlaceholder(s))
}

// mindMapNote bundles the note text and the image links into paragraphs.
func mindMapNote(n *Node, host string) string {
	var parts []string
	if note := PlainTextOf(n.Note); note != "" {
		parts = append(parts, note)
	}
	var links []string
	for _, img := range n.Images {
		if u := NormalizeImageURL(host, img.URI); u != "" {
			links = append(links, u)
		}
	}
	if len(links) > 0 {
		parts = append(parts, "Image links:\n"+strings.Join(links, "\n"))
	}
	if len(parts) == 0 {
		return ""
	}

	var b strings.Builder
	for _, line := range strings.Split(strings.Join(parts, "\n\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.WriteString("<p>" + escapeXML(line) + "</p>")
		}
	}
	return b.String()
}
