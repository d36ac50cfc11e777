package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New()

// extractMarkdown drops markup and keeps the readable text, one block per line.
func extractMarkdown(source []byte) (*Result, error) {
	doc := markdownParser.Parser().Parse(text.NewReader(source))

	var (
		lines []string
		line  strings.Builder
	)
	flush := func() {
		if t := strings.TrimSpace(line.String()); t != "" {
			lines = append(lines, t)
		}
		line.Reset()
	}

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				flush()
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			line.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				line.WriteByte(' ')
			}
		case *ast.String:
			line.Write(node.Value)
		case *ast.AutoLink:
			line.Write(node.Label(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			segments := n.Lines()
			for i := 0; i < segments.Len(); i++ {
				seg := segments.At(i)
				line.Write(seg.Value(source))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	return &Result{Text: strings.Join(lines, "\n"), Format: FormatMarkdown, Pages: 1}, nil
}
