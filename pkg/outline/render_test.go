package outline

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

func sampleDoc() *Document {
	return &Document{
		Title: "Sample",
		Nodes: []*Node{
			{
				Text: "<b>Hi</b>",
				Children: []*Node{
					{Text: "World", Heading: 1},
				},
			},
		},
	}
}

func chain(depth int) []*Node {
	root := &Node{Text: "level 1"}
	cur := root
	for i := 2; i <= depth; i++ {
		next := &Node{Text: "level"}
		cur.Children = []*Node{next}
		cur = next
	}
	return []*Node{root}
}

func TestRender_Markdown(t *testing.T) {
	out, err := Render(sampleDoc(), "md", Options{})
	require.NoError(t, err)

	assert.Equal(t, "- **Hi**\n  - # World\n", string(out.Content))
	assert.Equal(t, "md", out.Extension)
	assert.Equal(t, "text/markdown", out.MIME)
}

func TestRender_MarkdownParsesAsNestedList(t *testing.T) {
	out, err := Render(sampleDoc(), "md", Options{})
	require.NoError(t, err)

	src := out.Content
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var strong, headings []string
	lists := 0
	err = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.List:
			lists++
		case *ast.Emphasis:
			if node.Level == 2 {
				strong = append(strong, textOf(node, src))
			}
		case *ast.Heading:
			if node.Level == 1 {
				headings = append(headings, textOf(node, src))
			}
		}
		return ast.WalkContinue, nil
	})
	require.NoError(t, err)

	assert.Equal(t, 2, lists)
	assert.Equal(t, []string{"Hi"}, strong)
	assert.Equal(t, []string{"World"}, headings)
}

func textOf(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			b.Write(t.Segment.Value(src))
		}
	}
	return b.String()
}

func TestMarkdown_NotesImagesAndPlaceholders(t *testing.T) {
	nodes := []*Node{
		{Text: "T", Note: "line1<br>line2"},
		{Text: ""},
		{Heading: 2},
		{
			Text: "Pic [1]",
			Images: []Image{
				{URI: "a.png"},
				{URI: "b.png", Alt: "given", Width: 80},
			},
		},
	}

	got := Markdown(nodes, Options{})
	want := strings.Join([]string{
		"- T",
		"  > line1",
		"  > line2",
		"- (empty)",
		"- ## (empty)",
		"- Pic [1]",
		"  ![Pic 1-1](https://document-image.mubu.com/a.png)",
		"  ![given](https://document-image.mubu.com/b.png?x-tos-process=image/resize,w_80)",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestMarkdown_FrontMatter(t *testing.T) {
	opts := Options{
		Title:       "Quarterly Plan",
		ExportedAt:  time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		FrontMatter: true,
	}
	src := []byte(Markdown(sampleDoc().Nodes, opts))
	require.True(t, bytes.HasPrefix(src, []byte("---\n")))

	md := goldmark.New(goldmark.WithExtensions(&frontmatter.Extender{}))
	ctx := parser.NewContext()
	var html bytes.Buffer
	require.NoError(t, md.Convert(src, &html, parser.WithContext(ctx)))

	fm := frontmatter.Get(ctx)
	require.NotNil(t, fm)
	var meta struct {
		Title    string `yaml:"title"`
		Exported string `yaml:"exported"`
	}
	require.NoError(t, fm.Decode(&meta))
	assert.Equal(t, "Quarterly Plan", meta.Title)
	assert.Equal(t, "2024-03-01T10:30:00Z", meta.Exported)
	assert.Contains(t, html.String(), "<strong>Hi</strong>")
}

func TestRender_OPML(t *testing.T) {
	out, err := Render(sampleDoc(), "opml", Options{})
	require.NoError(t, err)

	want := strings.Join([]string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<opml version="2.0">`,
		`  <head><title>Sample</title></head>`,
		`  <body>`,
		`    <outline text="Hi">`,
		`      <outline text="World">`,
		`      </outline>`,
		`    </outline>`,
		`  </body>`,
		`</opml>`,
		``,
	}, "\n")
	assert.Equal(t, want, string(out.Content))
}

func TestOPML_EscapesAndNotes(t *testing.T) {
	nodes := []*Node{{Text: "<b>x</b> &amp; y", Note: `say "hi" <now>`}}
	got := OPML(nodes, Options{Title: `A & 'B'`})

	assert.Contains(t, got, "<title>A &amp; &apos;B&apos;</title>")
	assert.Contains(t, got, `<outline text="x &amp; y">`)
	assert.Contains(t, got, "<note>say &quot;hi&quot;</note>")
}

func TestOPML_DefaultTitleAndPlaceholder(t *testing.T) {
	got := OPML([]*Node{{}}, Options{})
	assert.Contains(t, got, "<title>Outline Export</title>")
	assert.Contains(t, got, `<outline text="(empty)">`)
}

func TestRender_MindMap(t *testing.T) {
	nodes := []*Node{
		{
			ID:        "a b",
			Text:      "Top   level",
			Collapsed: true,
			Note:      "n",
			Images:    []Image{{URI: "img/x.png", Width: 40}},
			Children:  []*Node{{Text: "child"}, {ID: "***", Text: "second"}},
		},
	}
	got := MindMap(nodes, Options{})

	assert.Contains(t, got, `<map version="1.0.1">`)
	assert.Contains(t, got, `  <node TEXT="Outline Export" ID="root">`)
	assert.Contains(t, got, `    <node TEXT="Top level" ID="a_b" FOLDED="true">`)
	assert.Contains(t, got, `<richcontent TYPE="NOTE"><html><head></head><body><p>n</p><p>Image links:</p><p>https://document-image.mubu.com/img/x.png</p></body></html></richcontent>`)
	assert.Contains(t, got, `      <node TEXT="child" ID="node_1">`)
	assert.Contains(t, got, `      <node TEXT="second" ID="___">`)
	assert.True(t, strings.HasSuffix(got, "  </node>\n</map>\n"))
}

func TestRender_HTML(t *testing.T) {
	out, err := Render(sampleDoc(), "html", Options{ExportedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)})
	require.NoError(t, err)
	got := string(out.Content)

	assert.Contains(t, got, "<title>Sample</title>")
	assert.Contains(t, got, `<p class="meta">Exported at 2024-01-02T03:04:05Z</p>`)
	assert.Contains(t, got, `<ul class="node-list depth-0">`)
	assert.Contains(t, got, `<div class="node-text"><strong>Hi</strong></div>`)
	assert.Contains(t, got, `<ul class="node-list depth-1">`)
	assert.Contains(t, got, `<h1 class="node-heading">World</h1>`)
	assert.Less(t, strings.Index(got, "<strong>Hi</strong>"), strings.Index(got, "World</h1>"))
}

func TestHTML_NotesImagesAndEmpty(t *testing.T) {
	nodes := []*Node{{Text: "Cat", Note: "<i>soft</i>", Images: []Image{{URI: "https://cdn.example.com/c.png?v=1", Width: 10}}}}
	got := HTML(nodes, Options{})

	assert.Contains(t, got, `<div class="node-note"><strong>Note:</strong><p><em>soft</em></p></div>`)
	assert.Contains(t, got, `<img src="https://cdn.example.com/c.png?v=1&amp;x-tos-process=image/resize,w_10" alt="Cat" loading="lazy" />`)
	assert.Contains(t, got, "<figcaption>Cat</figcaption>")
	assert.NotContains(t, got, "Exported at")

	empty := HTML(nil, Options{})
	assert.Contains(t, empty, "<h1>Outline Export</h1>")
	assert.Contains(t, empty, "<p>No content.</p>")
}

func TestRender_JSON(t *testing.T) {
	out, err := Render(sampleDoc(), "json", Options{})
	require.NoError(t, err)

	doc, err := ParseDefinition(out.Content)
	require.NoError(t, err)
	require.Len(t, doc.Nodes, 1)
	assert.Equal(t, "<b>Hi</b>", doc.Nodes[0].Text)
	assert.Equal(t, 1, doc.Nodes[0].Children[0].Heading)

	empty, err := JSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"nodes\": []\n}", string(empty))
}

func TestRender_EPUB(t *testing.T) {
	out, err := Render(sampleDoc(), "epub", Options{ExportedAt: time.Now()})
	require.NoError(t, err)

	assert.Equal(t, "epub", out.Extension)
	assert.Equal(t, "application/epub+zip", out.MIME)
	assert.True(t, bytes.HasPrefix(out.Content, []byte("PK")))

	empty, err := Render(&Document{}, "epub", Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, empty.Content)
}

func TestRender_UnknownFormat(t *testing.T) {
	_, err := Render(sampleDoc(), "docx", Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestRender_DepthLimit(t *testing.T) {
	_, err := Render(&Document{Nodes: chain(10)}, "md", Options{MaxDepth: 5})
	assert.ErrorIs(t, err, ErrTooDeep)

	_, err = Render(&Document{Nodes: chain(5)}, "md", Options{MaxDepth: 5})
	assert.NoError(t, err)
}

func TestRender_Deterministic(t *testing.T) {
	for _, format := range []string{"md", "opml", "mm", "html", "json"} {
		a, err := Render(sampleDoc(), format, Options{})
		require.NoError(t, err)
		b, err := Render(sampleDoc(), format, Options{})
		require.NoError(t, err)
		assert.Equal(t, a.Content, b.Content, format)
		assert.True(t, bytes.HasSuffix(a.Content, []byte("\n")), format)
	}
}

func TestFormats(t *testing.T) {
	assert.Equal(t, []string{"epub", "html", "json", "md", "mm", "opml"}, Formats())
	f, ok := Lookup("mm")
	assert.True(t, ok)
	assert.Equal(t, "mm", f.Extension)
	_, ok = Lookup("pdf")
	assert.False(t, ok)
}
