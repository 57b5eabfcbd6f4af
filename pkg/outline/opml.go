package outline

import (
	"strings"
)

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	`"`, "&quot;",
	"'", "&apos;",
	"<", "&lt;",
	">", "&gt;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

// OPML renders nodes as an OPML 2.0 document. Outline text is the plain text
// of each node, notes go into a nested note element.
func OPML(nodes []*Node, opts Options) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<opml version="2.0">` + "\n")
	b.WriteString("  <head><title>" + escapeXML(titleOr(opts)) + "</title></head>\n")
	b.WriteString("  <body>\n")

	var walk func(items []*Node, depth int)
	walk = func(items []*Node, depth int) {
		indent := strings.Repeat("  ", depth)
		for _, n := range items {
			if n == nil {
				continue
			}
			text := textOrPlaceholder(PlainTextOf(n.Text))
			note := PlainTextOf(n.Note)
			b.WriteString(indent + `<outline text="` + escapeXML(text) + `">` + "\n")
			if note != "" {
				b.WriteString(indent + "  <note>" + escapeXML(note) + "</note>\n")
			}
			walk(n.Children, depth+1)
			b.WriteString(indent + "</outline>\n")
		}
	}
	walk(nodes, 2)

	b.WriteString("  </body>\n")
	b.WriteString("</opml>\n")
	return b.String()
}
