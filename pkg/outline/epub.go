package outline

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-shiori/go-epub"
)

// EPUB packages the outline as an e-book with one section per top-level
// node.
func EPUB(nodes []*Node, opts Options) ([]byte, error) {
	title := titleOr(opts)
	e, err := epub.NewEpub(title)
	if err != nil {
		return nil, fmt.Errorf("failed to create EPub: %w", err)
	}
	e.SetLang("en")
	e.SetAuthor("docport")
	if !opts.ExportedAt.IsZero() {
		e.SetDescription("Exported at " + opts.ExportedAt.UTC().Format("2006-01-02 15:04"))
	}

	if len(nodes) == 0 {
		if _, err := e.AddSection("<h1>"+escapeXML(title)+"</h1>\n<p>No content.</p>", title, "", ""); err != nil {
			return nil, fmt.Errorf("failed to add section: %w", err)
		}
	}

	for i, n := range nodes {
		if n == nil {
			continue
		}
		heading := PlainTextOf(n.Text)
		if heading == "" {
			heading = fmt.Sprintf("Section %d", i+1)
		}
		var body strings.Builder
		body.WriteString("<h1>" + escapeXML(heading) + "</h1>\n")
		if note := InlineHTML(n.Note); note != "" {
			body.WriteString("<blockquote>" + note + "</blockquote>\n")
		}
		for _, img := range n.Images {
			if src := ImageSource(opts.ImageHost, img); src != "" {
				body.WriteString(`<p><img src="` + escapeXML(src) + `" alt="` + escapeXML(imageAlt(img, heading)) + `" /></p>` + "\n")
			}
		}
		if len(n.Children) > 0 {
			writeNodeList(&body, n.Children, 0, opts.ImageHost)
		}
		if _, err := e.AddSection(body.String(), heading, "", ""); err != nil {
			return nil, fmt.Errorf("failed to add section %q: %w", heading, err)
		}
	}

	var buf bytes.Buffer
	if _, err := e.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write EPub: %w", err)
	}
	return buf.Bytes(), nil
}
