package loader

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"

	"github.com/bull/ragdex/internal/rag"
)

// Section is one H1/H2-delimited slice of a markdown document.
type Section struct {
	// HeaderPath is the heading hierarchy, e.g. "# Install > ## Linux".
	HeaderPath string
	// Content is the section body including its heading line.
	Content string
}

var mdParser = goldmark.New(
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// SplitSections divides a markdown document at H1 and H2 boundaries. Each
// section keeps its heading hierarchy so a retrieved section still says
// where in the document it came from. A document without headings comes
// back as a single section.
func SplitSections(source []byte) ([]Section, error) {
	doc := mdParser.Parser().Parse(text.NewReader(source))

	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil {
		return nil, fmt.Errorf("inspect headings: %w", err)
	}
	if len(tree.Items) == 0 {
		return []Section{{Content: strings.TrimSpace(string(source))}}, nil
	}

	// One pass over the AST collects every H1/H2 in document order; the
	// offset of heading i+1 bounds the content of heading i.
	type boundary struct {
		id    string
		start int
	}
	var bounds []boundary
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		h := n.(*ast.Heading)
		if h.Level > 2 || h.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		id := ""
		if v, ok := h.AttributeString("id"); ok {
			id = string(v.([]byte))
		}
		bounds = append(bounds, boundary{id: id, start: h.Lines().At(0).Start})
		return ast.WalkContinue, nil
	})

	byID := make(map[string]int, len(bounds))
	for i, b := range bounds {
		byID[b.id] = i
	}

	var sections []Section
	var walkItems func(items toc.Items, ancestors []string)
	walkItems = func(items toc.Items, ancestors []string) {
		for _, item := range items {
			path := append(ancestors[:len(ancestors):len(ancestors)], string(item.Title))

			idx, ok := byID[string(item.ID)]
			if !ok {
				continue
			}
			end := len(source)
			if idx+1 < len(bounds) {
				end = bounds[idx+1].start
			}
			content := strings.TrimSpace(string(source[bounds[idx].start:end]))

			sections = append(sections, Section{
				HeaderPath: formatHeaderPath(path),
				Content:    content,
			})

			walkItems(item.Items, path)
		}
	}
	walkItems(tree.Items, nil)

	return sections, nil
}

// formatHeaderPath renders a heading hierarchy as
// "# Install > ## Linux", one level of # per depth.
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, title := range path {
		parts[i] = fmt.Sprintf("%s %s", strings.Repeat("#", i+1), title)
	}
	return strings.Join(parts, " > ")
}

// SplitMarkdownDoc converts one markdown file into per-section documents.
// Section sources are suffixed with their ordinal so two sections of the
// same file never collide. On a parse failure the whole file becomes a
// single document.
func SplitMarkdownDoc(source string, content []byte, logger *slog.Logger) []rag.Document {
	sections, err := SplitSections(content)
	if err != nil {
		if logger != nil {
			logger.Warn("markdown split failed, indexing whole file", "source", source, "error", err)
		}
		return []rag.Document{{Source: source, Content: string(content)}}
	}

	if len(sections) == 1 && sections[0].HeaderPath == "" {
		return []rag.Document{{Source: source, Content: sections[0].Content}}
	}

	docs := make([]rag.Document, 0, len(sections))
	for i, sec := range sections {
		body := sec.Content
		if sec.HeaderPath != "" {
			body = sec.HeaderPath + "\n\n" + sec.Content
		}
		docs = append(docs, rag.Document{
			Source:  fmt.Sprintf("%s#%d", source, i),
			Content: body,
		})
	}
	return docs
}
