package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// MinCommentLength is the rune length a cleaned doc comment must exceed to be kept.
	MinCommentLength = 30

	// MaxSummaryLength caps the fallback source-code document, in runes.
	MaxSummaryLength = 5000

	truncationMarker = "..."
)

var (
	docComment      = regexp.MustCompile(`(?s)/\*\*.*?\*/`)
	commentMarkers  = regexp.MustCompile(`/\*\*|\*/`)
	leadingAsterisk = regexp.MustCompile(`(?m)^[ \t]*\*[ \t]?`)
	importStatement = regexp.MustCompile(`import\s+.*?from\s+['"].*?['"];?`)
	exportKeyword   = regexp.MustCompile(`export\s+(default\s+)?`)
)

// ExtractDocComments returns the cleaned text of every /** ... */ block longer than MinCommentLength.
// Delimiters and per-line leading asterisks are removed.
func ExtractDocComments(source string) []string {
	var comments []string
	for _, block := range docComment.FindAllString(source, -1) {
		cleaned := commentMarkers.ReplaceAllString(block, "")
		cleaned = leadingAsterisk.ReplaceAllString(cleaned, "")
		cleaned = strings.TrimSpace(cleaned)
		if utf8.RuneCountInString(cleaned) > MinCommentLength {
			comments = append(comments, cleaned)
		}
	}
	return comments
}

// SummarizeSource strips import statements and export keywords and truncates the rest.
func SummarizeSource(source string) string {
	summary := importStatement.ReplaceAllString(source, "")
	summary = exportKeyword.ReplaceAllString(summary, "")
	summary = strings.TrimSpace(summary)

	if utf8.RuneCountInString(summary) > MaxSummaryLength {
		runes := []rune(summary)
		summary = string(runes[:MaxSummaryLength]) + truncationMarker
	}
	return summary
}
