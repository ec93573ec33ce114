// Package chunking splits documents into bounded, overlapping text windows for embedding.
package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
)

const (
	// DefaultChunkSize is the default maximum number of characters per chunk.
	DefaultChunkSize = 1000

	// DefaultChunkOverlap is the default number of characters shared by adjacent chunks.
	DefaultChunkOverlap = 200
)

// DefaultSeparators is the preference order used to break text apart:
// paragraphs, lines, sentences, words, then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter recursively splits text on a list of separators until every piece fits.
// Lengths are measured in runes.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the maximum chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between adjacent chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator preference list. The empty separator
// is always appended so that oversized words can still be hard-cut.
func WithSeparators(separators []string) Option {
	return func(s *Splitter) {
		if len(separators) == 0 {
			return
		}
		seps := append([]string(nil), separators...)
		if seps[len(seps)-1] != "" {
			seps = append(seps, "")
		}
		s.separators = seps
	}
}

// NewSplitter creates a splitter with the given options.
func NewSplitter(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(s)
	}

	// Overlap must leave room for new content in every chunk
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}
	return s
}

// ChunkSize returns the configured maximum chunk size.
func (s *Splitter) ChunkSize() int { return s.chunkSize }

// Overlap returns the configured overlap.
func (s *Splitter) Overlap() int { return s.overlap }

// Split breaks text into pieces of at most ChunkSize runes.
func (s *Splitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	// Pick the first separator present in the text
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			remaining = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitKeepingSeparator(text, separator) {
		if runeLen(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}

		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, hardCut(piece, s.chunkSize)...)
		} else {
			final = append(final, s.split(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// merge accumulates pieces into chunks no longer than chunkSize, carrying up
// to overlap runes of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks, current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > s.chunkSize {
			if len(current) > 0 {
				if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
					chunks = append(chunks, chunk)
				}
				last := current[len(current)-1]
				for total > s.overlap || (total+n > s.chunkSize && total > 0) {
					total -= runeLen(current[0])
					current = current[1:]
				}
				// A trailing piece longer than the overlap still contributes its tail
				if total == 0 && s.overlap > 0 {
					if seed := s.tail(last, min(s.overlap, s.chunkSize-n)); seed != "" {
						current = []string{seed}
						total = runeLen(seed)
					}
				}
			}
		}
		current = append(current, piece)
		total += n
	}

	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// tail returns a suffix of text of at most limit runes. It starts after the
// first separator found in that window, trying separators in order, and falls
// back to a plain character cut.
func (s *Splitter) tail(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	window := string(runes[len(runes)-limit:])
	for _, sep := range s.separators {
		if sep == "" {
			break
		}
		if idx := strings.Index(window, sep); idx >= 0 && idx+len(sep) < len(window) {
			return window[idx+len(sep):]
		}
	}
	return window
}

// splitKeepingSeparator splits text before every occurrence of separator so
// that joining the pieces restores the original text. The empty separator
// splits into single runes.
func splitKeepingSeparator(text, separator string) []string {
	if separator == "" {
		pieces := make([]string, 0, utf8.RuneCountInString(text))
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
		return pieces
	}

	var pieces []string
	for {
		idx := strings.Index(text[min(len(separator), len(text)):], separator)
		if idx < 0 {
			break
		}
		idx += min(len(separator), len(text))
		pieces = append(pieces, text[:idx])
		text = text[idx:]
	}
	if text != "" {
		pieces = append(pieces, text)
	}
	return pieces
}

// hardCut slices text into runs of at most size runes.
func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

func runeLen(s string) int { return utf8.RuneCountInString(s) }

// Chunk splits every document into overlapping chunks of at most maxChunkSize
// runes. Chunks inherit the owning document's ID and metadata.
func Chunk(docs []document.Document, maxChunkSize, overlapSize int) []document.Chunk {
	return NewSplitter(WithChunkSize(maxChunkSize), WithOverlap(overlapSize)).ChunkDocuments(docs)
}

// ChunkDocuments splits every document with this splitter's configuration.
func (s *Splitter) ChunkDocuments(docs []document.Document) []document.Chunk {
	var chunks []document.Chunk
	for _, doc := range docs {
		cursor := 0
		for i, text := range s.Split(doc.Content) {
			// Chunks are substrings of the content, in order of their start offset
			idx := strings.Index(doc.Content[cursor:], text)
			if idx < 0 {
				idx = max(strings.Index(doc.Content, text), 0)
			} else {
				idx += cursor
			}
			start := runeLen(doc.Content[:idx])

			chunks = append(chunks, document.Chunk{
				ID:       doc.ID,
				Index:    i,
				Start:    start,
				End:      start + runeLen(text),
				Content:  text,
				Metadata: doc.Metadata,
			})

			if idx < len(doc.Content) {
				_, size := utf8.DecodeRuneInString(doc.Content[idx:])
				cursor = idx + size
			}
		}
	}
	return chunks
}
