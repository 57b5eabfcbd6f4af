package outline

import (
	"html"
	"strings"
	"unicode"
)

type markerKind uint8

// Opening order, outermost first. Code stays innermost so nothing nests in it.
const (
	markLink markerKind = iota
	markHighlight
	markColor
	markUnderline
	markStrike
	markBold
	markItalic
	markCode
)

type marker struct {
	kind  markerKind
	value string
}

func markersOf(r Run) []marker {
	var ms []marker
	if r.Href != "" {
		ms = append(ms, marker{markLink, r.Href})
	}
	if r.Highlight != "" {
		ms = append(ms, marker{markHighlight, r.Highlight})
	}
	if r.Color != "" {
		ms = append(ms, marker{markColor, r.Color})
	}
	for _, f := range []struct {
		style Style
		kind  markerKind
	}{
		{Underline, markUnderline},
		{Strike, markStrike},
		{Bold, markBold},
		{Italic, markItalic},
		{Code, markCode},
	} {
		if r.Style.Has(f.style) {
			ms = append(ms, marker{kind: f.kind})
		}
	}
	return ms
}

// dialect turns runs and markers into one target syntax.
type dialect interface {
	open(m marker) string
	close(m marker) string
	text(s string) string
	lineBreak() string
	bullet() string
	image(src, alt string) string
	codeBlock(s string) string
}

func splitSpace(s string) (lead, core, trail string) {
	core = strings.TrimLeftFunc(s, unicode.IsSpace)
	lead = s[:len(s)-len(core)]
	trimmed := strings.TrimRightFunc(core, unicode.IsSpace)
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}

// emit renders runs through d. Markers are opened and closed at style
// transitions so adjacent runs share one wrapper, and whitespace at a
// transition is moved outside the markers.
func emit(runs []Run, d dialect) string {
	var b strings.Builder
	var stack []marker
	pending := ""

	closeTo := func(n int) {
		for len(stack) > n {
			b.WriteString(d.close(stack[len(stack)-1]))
			stack = stack[:len(stack)-1]
		}
	}

	for _, r := range runs {
		switch r.Kind {
		case TextRun:
			lead, core, trail := splitSpace(r.Text)
			if core == "" {
				pending += r.Text
				continue
			}
			want := markersOf(r)
			keep := 0
			for keep < len(stack) && keep < len(want) && stack[keep] == want[keep] {
				keep++
			}
			closeTo(keep)
			b.WriteString(d.text(pending + lead))
			pending = ""
			for _, m := range want[keep:] {
				b.WriteString(d.open(m))
				stack = append(stack, m)
			}
			b.WriteString(d.text(core))
			pending = trail
		case BreakRun:
			closeTo(0)
			pending = ""
			b.WriteString(d.lineBreak())
		case BulletRun:
			closeTo(0)
			pending = ""
			b.WriteString(d.bullet())
		case ImageRun:
			closeTo(0)
			b.WriteString(d.text(pending))
			pending = ""
			b.WriteString(d.image(r.Src, r.Text))
		case CodeBlockRun:
			closeTo(0)
			pending = ""
			b.WriteString(d.codeBlock(r.Text))
		}
	}
	closeTo(0)
	b.WriteString(d.text(pending))
	return b.String()
}

type markdownDialect struct{}

func (markdownDialect) open(m marker) string {
	switch m.kind {
	case markLink:
		return "["
	case markHighlight:
		return `<mark style="background-color:` + m.value + `;">`
	case markColor:
		return `<span style="color:` + m.value + `;">`
	case markUnderline:
		return "<u>"
	case markStrike:
		return "~~"
	case markBold:
		return "**"
	case markItalic:
		return "*"
	default:
		return "`"
	}
}

func (markdownDialect) close(m marker) string {
	switch m.kind {
	case markLink:
		return "](" + strings.ReplaceAll(m.value, ")", `\)`) + ")"
	case markHighlight:
		return "</mark>"
	case markColor:
		return "</span>"
	case markUnderline:
		return "</u>"
	case markStrike:
		return "~~"
	case markBold:
		return "**"
	case markItalic:
		return "*"
	default:
		return "`"
	}
}

func (markdownDialect) text(s string) string { return s }
func (markdownDialect) lineBreak() string    { return "\n" }
func (markdownDialect) bullet() string       { return "\n- " }

func (markdownDialect) image(src, alt string) string {
	alt = sanitizeAlt(alt)
	if alt == "" {
		alt = "image"
	}
	return "![" + alt + "](" + src + ")"
}

func (markdownDialect) codeBlock(s string) string {
	return "\n```\n" + s + "\n```\n"
}

type htmlDialect struct{}

func attr(s string) string {
	return html.EscapeString(s)
}

func (htmlDialect) open(m marker) string {
	switch m.kind {
	case markLink:
		return `<a href="` + attr(m.value) + `">`
	case markHighlight:
		return `<mark style="background-color:` + attr(m.value) + `;">`
	case markColor:
		return `<span style="color:` + attr(m.value) + `;">`
	case markUnderline:
		return "<u>"
	case markStrike:
		return "<s>"
	case markBold:
		return "<strong>"
	case markItalic:
		return "<em>"
	default:
		return "<code>"
	}
}

func (htmlDialect) close(m marker) string {
	switch m.kind {
	case markLink:
		return "</a>"
	case markHighlight:
		return "</mark>"
	case markColor:
		return "</span>"
	case markUnderline:
		return "</u>"
	case markStrike:
		return "</s>"
	case markBold:
		return "</strong>"
	case markItalic:
		return "</em>"
	default:
		return "</code>"
	}
}

func (htmlDialect) text(s string) string { return html.EscapeString(s) }
func (htmlDialect) lineBreak() string    { return "<br />" }
func (htmlDialect) bullet() string       { return "<br />- " }

func (htmlDialect) image(src, alt string) string {
	return `<img src="` + attr(src) + `" alt="` + attr(alt) + `" />`
}

func (htmlDialect) codeBlock(s string) string {
	return "<pre><code>" + html.EscapeString(s) + "</code></pre>"
}

// InlineMarkdown renders markup as Markdown with blank-line runs collapsed.
func InlineMarkdown(markup string) string {
	return tidyMarkdown(emit(ParseInline(markup), markdownDialect{}))
}

// InlineHTML renders markup as escaped HTML using only the recognised tags.
func InlineHTML(markup string) string {
	out := emit(ParseInline(markup), htmlDialect{})
	for strings.HasPrefix(out, "<br />") {
		out = strings.TrimPrefix(out, "<br />")
	}
	for strings.HasSuffix(out, "<br />") {
		out = strings.TrimSuffix(out, "<br />")
	}
	return strings.TrimSpace(out)
}

func tidyMarkdown(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r", ""), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" && len(out) > 0 && out[len(out)-1] == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// sanitizeAlt strips characters that would break Markdown image syntax.
func sanitizeAlt(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', '(', ')', '`':
			return -1
		case '\r', '\n', '\t':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
