package outline

import (
	"strings"

	"golang.org/x/net/html"
)

// Style is a set of inline emphasis flags.
type Style uint8

const (
	Bold Style = 1 << iota
	Italic
	Underline
	Strike
	Code
)

func (s Style) Has(f Style) bool {
	return s&f != 0
}

type RunKind uint8

const (
	TextRun RunKind = iota
	BreakRun
	BulletRun
	ImageRun
	CodeBlockRun
)

// Run is one normalised piece of inline content. Text holds the alt text for
// ImageRun and the literal content for CodeBlockRun.
type Run struct {
	Kind      RunKind
	Text      string
	Style     Style
	Href      string
	Color     string
	Highlight string
	Src       string
}

func (r Run) sameFormat(o Run) bool {
	return r.Kind == o.Kind && r.Style == o.Style && r.Href == o.Href &&
		r.Color == o.Color && r.Highlight == o.Highlight
}

var textPalette = map[string]string{
	"red":    "#ef4444",
	"orange": "#fb923c",
	"yellow": "#fbbf24",
	"green":  "#22c55e",
	"blue":   "#3b82f6",
	"purple": "#a855f7",
	"pink":   "#ec4899",
	"gray":   "#6b7280",
	"grey":   "#6b7280",
	"black":  "#111827",
}

var highlightPalette = map[string]string{
	"red":    "#fde8e8",
	"orange": "#ffedd5",
	"yellow": "#fef3c7",
	"green":  "#dcfce7",
	"blue":   "#dbeafe",
	"purple": "#ede9fe",
	"pink":   "#fce7f3",
	"gray":   "#f5f5f5",
	"grey":   "#f5f5f5",
}

const defaultHighlight = "#fff3bf"

// TextColor maps a text-color-* token onto the palette. Unknown tokens are
// returned unchanged.
func TextColor(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if c, ok := textPalette[token]; ok {
		return c
	}
	return token
}

// HighlightColor maps a highlight-* token onto the palette. Unknown tokens are
// returned unchanged, an empty token yields the default highlight.
func HighlightColor(token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		return defaultHighlight
	}
	if c, ok := highlightPalette[token]; ok {
		return c
	}
	return token
}

type frame struct {
	tag       string
	style     Style
	href      string
	color     string
	highlight string
}

type inlineParser struct {
	stack []frame
	runs  []Run
	pre   *strings.Builder
	skip  string
}

// ParseInline decodes rich inline markup into runs. Unrecognised tags are
// dropped and their text kept; script and style content is discarded.
func ParseInline(markup string) []Run {
	if markup == "" {
		return nil
	}
	p := &inlineParser{}
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			p.closePre()
			return p.runs
		case html.TextToken:
			p.text(string(z.Text()))
		case html.StartTagToken:
			name, attrs := tagOf(z)
			p.open(name, attrs, false)
		case html.SelfClosingTagToken:
			name, attrs := tagOf(z)
			p.open(name, attrs, true)
		case html.EndTagToken:
			name, _ := z.TagName()
			p.close(string(name))
		}
	}
}

func tagOf(z *html.Tokenizer) (string, map[string]string) {
	name, hasAttr := z.TagName()
	attrs := map[string]string{}
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		attrs[string(k)] = string(v)
	}
	return string(name), attrs
}

func (p *inlineParser) current() frame {
	var f frame
	for _, fr := range p.stack {
		f.style |= fr.style
		if fr.href != "" {
			f.href = fr.href
		}
		if fr.color != "" {
			f.color = fr.color
		}
		if fr.highlight != "" {
			f.highlight = fr.highlight
		}
	}
	return f
}

func (p *inlineParser) push(r Run) {
	if r.Kind == TextRun && len(p.runs) > 0 {
		last := &p.runs[len(p.runs)-1]
		if last.sameFormat(r) {
			last.Text += r.Text
			return
		}
	}
	p.runs = append(p.runs, r)
}

func (p *inlineParser) text(s string) {
	if p.skip != "" {
		return
	}
	if p.pre != nil {
		p.pre.WriteString(s)
		return
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	f := p.current()
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			p.push(Run{Kind: BreakRun})
		}
		line = collapseSpaces(line)
		if line == "" {
			continue
		}
		p.push(Run{Kind: TextRun, Text: line, Style: f.style, Href: f.href, Color: f.color, Highlight: f.highlight})
	}
}

func (p *inlineParser) open(tag string, attrs map[string]string, selfClosing bool) {
	if p.skip != "" {
		return
	}
	if p.pre != nil {
		if tag == "br" {
			p.pre.WriteString("\n")
		}
		return
	}
	switch tag {
	case "br":
		p.push(Run{Kind: BreakRun})
		return
	case "img":
		if src := strings.TrimSpace(attrs["src"]); src != "" {
			alt, ok := attrs["alt"]
			if !ok {
				alt = "image"
			}
			p.push(Run{Kind: ImageRun, Src: src, Text: alt})
		}
		return
	case "hr", "wbr", "input", "meta", "link", "col", "area", "source":
		return
	case "script", "style":
		if !selfClosing {
			p.skip = tag
		}
		return
	case "pre":
		if !selfClosing {
			p.pre = &strings.Builder{}
		}
		return
	case "li":
		p.push(Run{Kind: BulletRun})
	}
	if selfClosing {
		return
	}

	fr := frame{tag: tag}
	switch tag {
	case "b", "strong":
		fr.style = Bold
	case "em", "i":
		fr.style = Italic
	case "code":
		fr.style = Code
	case "u":
		fr.style = Underline
	case "s", "del", "strike":
		fr.style = Strike
	case "a":
		fr.href = strings.TrimSpace(attrs["href"])
	case "mark":
		fr.highlight = styleProperty(attrs["style"], "background-color")
		if fr.highlight == "" {
			fr.highlight = defaultHighlight
		}
	case "span":
		applyClasses(&fr, attrs["class"])
		if c := styleProperty(attrs["style"], "color"); c != "" && fr.color == "" {
			fr.color = c
		}
		if c := styleProperty(attrs["style"], "background-color"); c != "" && fr.highlight == "" {
			fr.highlight = c
		}
	}
	p.stack = append(p.stack, fr)
}

func applyClasses(fr *frame, class string) {
	for _, token := range strings.Fields(class) {
		switch {
		case token == "codespan":
			fr.style |= Code
		case token == "bold":
			fr.style |= Bold
		case token == "italic":
			fr.style |= Italic
		case token == "underline":
			fr.style |= Underline
		case token == "strikethrough":
			fr.style |= Strike
		case strings.HasPrefix(token, "text-color-"):
			if fr.color == "" {
				fr.color = TextColor(strings.TrimPrefix(token, "text-color-"))
			}
		case strings.HasPrefix(token, "highlight-"):
			if fr.highlight == "" {
				fr.highlight = HighlightColor(strings.TrimPrefix(token, "highlight-"))
			}
		}
	}
}

func (p *inlineParser) close(tag string) {
	if p.skip != "" {
		if tag == p.skip {
			p.skip = ""
		}
		return
	}
	if tag == "pre" {
		p.closePre()
		return
	}
	if p.pre != nil {
		return
	}
	for i := len(p.stack) - 1; i >= 0; i-- {
		if p.stack[i].tag == tag {
			p.stack = p.stack[:i]
			break
		}
	}
	switch tag {
	case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6":
		p.push(Run{Kind: BreakRun})
	}
}

func (p *inlineParser) closePre() {
	if p.pre == nil {
		return
	}
	text := strings.Trim(strings.ReplaceAll(p.pre.String(), "\r", ""), "\n ")
	p.pre = nil
	if text != "" {
		p.push(Run{Kind: CodeBlockRun, Text: text})
	}
}

// styleProperty extracts one declaration from an inline style attribute.
func styleProperty(style, name string) string {
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if ok && strings.EqualFold(strings.TrimSpace(k), name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func collapseSpaces(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\f' || r == '\v' {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// PlainText flattens runs to text: links keep their label, images vanish,
// lines are trimmed and blank lines dropped.
func PlainText(runs []Run) string {
	var b strings.Builder
	for _, r := range runs {
		switch r.Kind {
		case TextRun:
			b.WriteString(r.Text)
		case BreakRun:
			b.WriteByte('\n')
		case BulletRun:
			b.WriteString("\n- ")
		case CodeBlockRun:
			b.WriteString("\n" + r.Text + "\n")
		}
	}
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// PlainTextOf is PlainText(ParseInline(markup)).
func PlainTextOf(markup string) string {
	return PlainText(ParseInline(markup))
}
