package outline

import (
	"strconv"
	"strings"
	"time"
)

const htmlStyle = `    body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; line-height: 1.6; margin: 24px; background: #f7f7fb; color: #1f2933; }
    header { margin-bottom: 24px; }
    h1 { margin: 0 0 4px; font-size: 1.8rem; }
    .meta { margin: 0; color: #6b7280; font-size: 0.9rem; }
    ul.node-list { list-style: none; padding-left: 18px; margin-left: 0; }
    ul.node-list li { background: #fff; border-radius: 8px; padding: 12px 16px; margin-bottom: 12px; box-shadow: 0 1px 3px rgba(15, 23, 42, 0.08); }
    .node-heading { margin: 0 0 6px; color: #0f172a; }
    .node-text { font-weight: 500; margin-bottom: 4px; }
    .node-note { margin-top: 8px; padding-left: 12px; border-left: 3px solid #edf2ff; color: #475569; }
    .node-note p { margin: 4px 0; }
    .node-images { display: flex; gap: 12px; flex-wrap: wrap; margin-top: 10px; }
    .node-images img { max-width: 200px; border-radius: 6px; border: 1px solid #e2e8f0; }
    .node-images figcaption { font-size: 0.8rem; color: #6b7280; text-align: center; margin-top: 4px; }
`

// HTML renders a standalone styled page.
func HTML(nodes []*Node, opts Options) string {
	title := escapeXML(titleOr(opts))

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString(`<html lang="en">` + "\n")
	b.WriteString("<head>\n")
	b.WriteString(`  <meta charset="utf-8" />` + "\n")
	b.WriteString("  <title>" + title + "</title>\n")
	b.WriteString("  <style>\n" + htmlStyle + "  </style>\n")
	b.WriteString("</head>\n")
	b.WriteString("<body>\n")
	b.WriteString(HTMLBody(nodes, opts))
	b.WriteString("</body>\n")
	b.WriteString("</html>\n")
	return b.String()
}

// HTMLBody renders the page header and node list without the document
// wrapper.
func HTMLBody(nodes []*Node, opts Options) string {
	var b strings.Builder
	b.WriteString("  <header>\n")
	b.WriteString("    <h1>" + escapeXML(titleOr(opts)) + "</h1>\n")
	if !opts.ExportedAt.IsZero() {
		b.WriteString(`    <p class="meta">Exported at ` + opts.ExportedAt.UTC().Format(time.RFC3339) + "</p>\n")
	}
	b.WriteString("  </header>\n")

	if len(nodes) == 0 {
		b.WriteString("  <p>No content.</p>\n")
		return b.String()
	}
	writeNodeList(&b, nodes, 0, opts.ImageHost)
	return b.String()
}

func writeNodeList(b *strings.Builder, items []*Node, depth int, host string) {
	indent := strings.Repeat("  ", depth+1)
	b.WriteString(indent + `<ul class="node-list depth-` + strconv.Itoa(depth) + `">` + "\n")
	for _, n := range items {
		if n == nil {
			continue
		}
		b.WriteString(indent + "  <li>\n")
		writeNodeBlock(b, n, depth+2, host)
		if len(n.Children) > 0 {
			writeNodeList(b, n.Children, depth+1, host)
		}
		b.WriteString(indent + "  </li>\n")
	}
	b.WriteString(indent + "</ul>\n")
}

func writeNodeBlock(b *strings.Builder, n *Node, depth int, host string) {
	indent := strings.Repeat("  ", depth)
	text := InlineHTML(n.Text)
	if text == "" {
		text = placeholder
	}
	if level := n.HeadingLevel(); level > 0 {
		tag := "h" + strconv.Itoa(level)
		b.WriteString(indent + "<" + tag + ` class="node-heading">` + text + "</" + tag + ">\n")
	} else {
		b.WriteString(indent + `<div class="node-text">` + text + "</div>\n")
	}

	if note := InlineHTML(n.Note); note != "" {
		b.WriteString(indent + `<div class="node-note"><strong>Note:</strong><p>` + note + "</p></div>\n")
	}

	fallback := PlainTextOf(n.Text)
	var figures []string
	for _, img := range n.Images {
		src := ImageSource(host, img)
		if src == "" {
			continue
		}
		alt := escapeXML(imageAlt(img, fallback))
		figures = append(figures,
			indent+"  <figure>\n"+
				indent+`    <img src="`+escapeXML(src)+`" alt="`+alt+`" loading="lazy" />`+"\n"+
				indent+"    <figcaption>"+alt+"</figcaption>\n"+
				indent+"  </figure>\n")
	}
	if len(figures) > 0 {
		b.WriteString(indent + `<div class="node-images">` + "\n")
		for _, f := range figures {
			b.WriteString(f)
		}
		b.WriteString(indent + "</div>\n")
	}
}
