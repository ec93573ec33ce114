// Package markdown turns Markdown and MDX sources into plain text for indexing.
package markdown

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
	"gopkg.in/yaml.v3"
)

var (
	htmlTag        = regexp.MustCompile(`<[^>]*>`)
	extraNewlines  = regexp.MustCompile(`\n{3,}`)
	trailingSpaces = regexp.MustCompile(`[ \t]+\n`)
	mdxStatement   = regexp.MustCompile(`(?m)^[ \t]*(import|export)\s.*$`)
)

// Extracted is the plain-text view of a Markdown document.
type Extracted struct {
	Title       string // First H1, then front matter title; empty when neither exists
	Text        string // Prose with code blocks and markup removed
	LastUpdated string // From front matter, when present
}

// frontMatter holds the YAML header fields we care about.
type frontMatter struct {
	Title            string `yaml:"title"`
	LastUpdated      string `yaml:"lastUpdated"`
	LastUpdatedSnake string `yaml:"last_updated"`
}

// Extractor converts Markdown into plain text with goldmark.
// It is safe for concurrent use; every call builds its own parser.
type Extractor struct {
	mdx bool
}

// NewExtractor creates an extractor for plain Markdown.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// NewMDXExtractor creates an extractor that drops MDX import/export statements before parsing.
func NewMDXExtractor() *Extractor {
	return &Extractor{mdx: true}
}

// Extract parses source and returns its title and flattened text.
// Fenced and indented code blocks are dropped entirely.
func (e *Extractor) Extract(source []byte) (*Extracted, error) {
	body, meta := splitFrontMatter(source)
	if e.mdx {
		body = mdxStatement.ReplaceAll(body, nil)
	}

	md := goldmark.New(
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
	)
	doc := md.Parser().Parse(text.NewReader(body))

	title, err := firstHeading(doc, body)
	if err != nil {
		return nil, err
	}
	if title == "" {
		title = meta.Title
	}

	lastUpdated := meta.LastUpdated
	if lastUpdated == "" {
		lastUpdated = meta.LastUpdatedSnake
	}

	return &Extracted{
		Title:       title,
		Text:        flatten(doc, body),
		LastUpdated: lastUpdated,
	}, nil
}

// firstHeading returns the text of the first non-empty H1.
func firstHeading(doc ast.Node, source []byte) (string, error) {
	tree, err := toc.Inspect(doc, source,
		toc.MinDepth(1),
		toc.MaxDepth(1),
		toc.Compact(true),
	)
	if err != nil {
		return "", fmt.Errorf("inspect TOC: %w", err)
	}

	for _, item := range tree.Items {
		if title := strings.TrimSpace(string(item.Title)); title != "" {
			return title, nil
		}
	}
	return "", nil
}

// flatten walks the AST and concatenates the text of every non-code node.
// Block boundaries become blank lines so the chunker can split on paragraphs.
func flatten(doc ast.Node, source []byte) string {
	var buf bytes.Buffer

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil

		case *ast.HTMLBlock:
			if entering {
				writeHTMLBlock(&buf, node, source)
			}
			return ast.WalkSkipChildren, nil

		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}

		case *ast.String:
			if entering {
				buf.Write(node.Value)
			}
		}

		if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
			buf.WriteString("\n\n")
		}
		return ast.WalkContinue, nil
	})

	out := trailingSpaces.ReplaceAllString(buf.String(), "\n")
	out = extraNewlines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

// writeHTMLBlock keeps the text of raw HTML blocks, except preformatted ones.
func writeHTMLBlock(buf *bytes.Buffer, node *ast.HTMLBlock, source []byte) {
	var raw bytes.Buffer
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		segment := lines.At(i)
		raw.Write(segment.Value(source))
	}
	if node.HasClosure() {
		closure := node.ClosureLine
		raw.Write(closure.Value(source))
	}

	content := strings.TrimSpace(raw.String())
	if strings.HasPrefix(content, "<pre") {
		return
	}
	if stripped := strings.TrimSpace(htmlTag.ReplaceAllString(content, "")); stripped != "" {
		buf.WriteString(stripped)
		buf.WriteString("\n\n")
	}
}

// splitFrontMatter removes a leading "---" YAML block and decodes the fields we use.
// Malformed front matter is dropped without failing the document.
func splitFrontMatter(source []byte) ([]byte, frontMatter) {
	var meta frontMatter

	normalized := bytes.ReplaceAll(source, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return normalized, meta
	}

	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return normalized, meta
	}

	header := rest[:end]
	body := rest[end+len("\n---"):]
	if nl := bytes.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = nil
	}

	if err := yaml.Unmarshal(header, &meta); err != nil {
		meta = frontMatter{}
	}
	return body, meta
}
