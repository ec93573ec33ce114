// Package segment splits corpus files into logical documents.
package segment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/corpus"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/markdown"
)

// ErrUnsupportedKind is returned for files that are neither markup nor source code.
var ErrUnsupportedKind = errors.New("unsupported file kind")

// Kind classifies a file for segmentation.
type Kind int

const (
	KindUnknown Kind = iota
	KindMarkdown
	KindMDX
	KindSource
)

// KindForExt maps a file extension (with leading dot) to its Kind.
func KindForExt(ext string) Kind {
	switch strings.ToLower(ext) {
	case ".md":
		return KindMarkdown
	case ".mdx":
		return KindMDX
	case ".ts", ".tsx", ".js", ".jsx":
		return KindSource
	default:
		return KindUnknown
	}
}

// FailedFile records a file skipped during segmentation.
type FailedFile struct {
	Path   string
	Reason string
}

// Segmenter turns raw file content into logical documents with provenance.
type Segmenter struct {
	source      string
	repoBaseURL string
	workers     int
	logger      *slog.Logger
}

// NewSegmenter creates a segmenter stamping every document with the given
// corpus source name and repository base URL.
func NewSegmenter(source, repoBaseURL string, logger *slog.Logger) *Segmenter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Segmenter{
		source:      source,
		repoBaseURL: repoBaseURL,
		workers:     runtime.NumCPU(),
		logger:      logger,
	}
}

// Segment converts one file into zero or more documents.
// relPath becomes the document ID and is always slash-separated.
func (s *Segmenter) Segment(absPath, relPath string, raw []byte, kind Kind) ([]document.Document, error) {
	relPath = filepath.ToSlash(relPath)

	switch kind {
	case KindMarkdown:
		return s.segmentMarkdown(markdown.NewExtractor(), absPath, relPath, raw)
	case KindMDX:
		return s.segmentMarkdown(markdown.NewMDXExtractor(), absPath, relPath, raw)
	case KindSource:
		return s.segmentSource(absPath, relPath, string(raw)), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, relPath)
	}
}

func (s *Segmenter) segmentMarkdown(extractor *markdown.Extractor, absPath, relPath string, raw []byte) ([]document.Document, error) {
	extracted, err := extractor.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("extract markdown: %w", err)
	}
	if extracted.Text == "" {
		return nil, nil
	}

	title := extracted.Title
	if title == "" {
		base := path.Base(relPath)
		title = strings.TrimSuffix(base, path.Ext(base))
	}

	return []document.Document{{
		ID:      relPath,
		Content: extracted.Text,
		Metadata: document.Metadata{
			Source:      s.source,
			Path:        absPath,
			Type:        document.TypeMarkdown,
			Title:       title,
			URL:         s.url(relPath),
			LastUpdated: extracted.LastUpdated,
		},
	}}, nil
}

// segmentSource emits one document per qualifying doc comment, or a single
// code summary when the file has none. The two never mix for one file.
func (s *Segmenter) segmentSource(absPath, relPath, source string) []document.Document {
	base := path.Base(relPath)

	comments := ExtractDocComments(source)
	if len(comments) > 0 {
		docs := make([]document.Document, 0, len(comments))
		for i, comment := range comments {
			docs = append(docs, document.Document{
				ID:      fmt.Sprintf("%s-comment-%d", relPath, i),
				Content: comment,
				Metadata: document.Metadata{
					Source: s.source,
					Path:   absPath,
					Type:   document.TypeSourceCodeComment,
					Title:  "Documentation from " + base,
					URL:    s.url(relPath),
				},
			})
		}
		return docs
	}

	summary := SummarizeSource(source)
	if summary == "" {
		return nil
	}
	return []document.Document{{
		ID:      relPath,
		Content: summary,
		Metadata: document.Metadata{
			Source: s.source,
			Path:   absPath,
			Type:   document.TypeSourceCode,
			Title:  base,
			URL:    s.url(relPath),
		},
	}}
}

func (s *Segmenter) url(relPath string) string {
	if s.repoBaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(s.repoBaseURL, "/") + "/" + relPath
}

// SegmentAll reads and segments every file, in parallel, preserving input order.
// A file that cannot be read or parsed is logged and skipped; it never aborts the walk.
func (s *Segmenter) SegmentAll(ctx context.Context, src corpus.Source, files []corpus.File) ([]document.Document, []FailedFile, error) {
	results := make([][]document.Document, len(files))
	failures := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs, err := s.segmentFile(gctx, src, file)
			if err != nil {
				failures[i] = err
				return nil
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var docs []document.Document
	var failed []FailedFile
	for i, file := range files {
		if failures[i] != nil {
			s.logger.Warn("Failed to process file", "path", file.RelPath, "error", failures[i])
			failed = append(failed, FailedFile{Path: file.RelPath, Reason: failures[i].Error()})
			continue
		}
		docs = append(docs, results[i]...)
	}
	return docs, failed, nil
}

func (s *Segmenter) segmentFile(ctx context.Context, src corpus.Source, file corpus.File) (docs []document.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("segment panic: %v", r)
		}
	}()

	raw, err := src.ReadFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return s.Segment(file.AbsPath, file.RelPath, raw, KindForExt(file.Ext))
}
