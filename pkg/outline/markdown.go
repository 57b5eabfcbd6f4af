package outline

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Markdown renders nodes as a nested bullet list. Headings prefix the bullet
// text, notes become blockquote lines under the node, images follow the text.
func Markdown(nodes []*Node, opts Options) string {
	var lines []string
	var walk func(items []*Node, depth int)
	walk = func(items []*Node, depth int) {
		for _, n := range items {
			if n == nil {
				continue
			}
			indent := strings.Repeat("  ", depth)
			cont := indent + "  "
			quote := strings.Repeat("  ", depth+1) + "> "

			parts := markdownParts(n, opts.ImageHost)
			lines = appendLines(lines, indent+"- ", cont, parts[0])
			for _, part := range parts[1:] {
				lines = appendLines(lines, cont, cont, part)
			}
			if note := InlineMarkdown(n.Note); note != "" {
				lines = appendLines(lines, quote, quote, note)
			}
			walk(n.Children, depth+1)
		}
	}
	walk(nodes, 0)

	body := collapseNewlines(strings.Join(lines, "\n"))
	if opts.FrontMatter {
		return markdownFrontMatter(opts) + body
	}
	return body
}

func markdownParts(n *Node, host string) []string {
	var parts []string
	level := n.HeadingLevel()
	text := InlineMarkdown(n.Text)
	switch {
	case text != "" && level > 0:
		parts = append(parts, strings.Repeat("#", level)+" "+text)
	case text != "":
		parts = append(parts, text)
	case level > 0:
		parts = append(parts, strings.Repeat("#", level)+" "+placeholder)
	}

	if len(n.Images) > 0 {
		base := sanitizeAlt(PlainTextOf(n.Text))
		if base == "" {
			base = "image"
		}
		for i, img := range n.Images {
			src := ImageSource(host, img)
			if src == "" {
				continue
			}
			alt := imageAlt(img, fmt.Sprintf("%s-%d", base, i+1))
			parts = append(parts, "!["+alt+"]("+src+")")
		}
	}

	if len(parts) == 0 {
		parts = append(parts, placeholder)
	}
	return parts
}

func appendLines(lines []string, first, cont, content string) []string {
	content = textOrPlaceholder(content)
	for i, fragment := range strings.Split(content, "\n") {
		prefix := cont
		if i == 0 {
			prefix = first
		}
		lines = append(lines, strings.TrimRight(prefix+fragment, " \t"))
	}
	return lines
}

func collapseNewlines(s string) string {
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

type frontMatter struct {
	Title    string `yaml:"title"`
	Exported string `yaml:"exported,omitempty"`
}

func markdownFrontMatter(opts Options) string {
	fm := frontMatter{Title: titleOr(opts)}
	if !opts.ExportedAt.IsZero() {
		fm.Exported = opts.ExportedAt.UTC().Format(time.RFC3339)
	}
	out, err := yaml.Marshal(fm)
	if err != nil {
		return ""
	}
	return "---\n" + string(out) + "---\n\n"
}
