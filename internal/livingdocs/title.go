package livingdocs

import (
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var (
	markdownOnce   sync.Once
	markdownParser goldmark.Markdown
)

func getMarkdownParser() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownParser
}

// ExtractTitle returns the plain text of the first heading in body, with
// inline markup removed. Frontmatter must already be stripped.
func ExtractTitle(body string) string {
	source := []byte(body)
	doc := getMarkdownParser().Parser().Parse(text.NewReader(source))

	var title strings.Builder
	found := false
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if found {
			return ast.WalkStop, nil
		}
		heading, ok := n.(*ast.Heading)
		if !ok || !entering {
			return ast.WalkContinue, nil
		}
		collectText(heading, source, &title)
		found = true
		return ast.WalkStop, nil
	})
	return strings.TrimSpace(title.String())
}

func collectText(n ast.Node, source []byte, out *strings.Builder) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			out.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				out.WriteByte(' ')
			}
		case *ast.String:
			out.Write(t.Value)
		default:
			collectText(c, source, out)
		}
	}
}
