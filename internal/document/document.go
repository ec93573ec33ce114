// Package document defines the logical documents and chunks that flow through the retrieval pipeline.
package document

// Document types recorded in Metadata.Type.
const (
	TypeMarkdown          = "markdown"
	TypeSourceCode        = "source-code"
	TypeSourceCodeComment = "source-code-comment"
)

// Metadata is the provenance carried from a document through its chunks to query hits.
type Metadata struct {
	Source      string `json:"source"`
	Path        string `json:"path,omitempty"`
	Type        string `json:"type,omitempty"`
	Title       string `json:"title,omitempty"`
	URL         string `json:"url,omitempty"`
	LastUpdated string `json:"lastUpdated,omitempty"`
}

// Document is one semantically coherent unit extracted from a source file.
// ID is the file's relative path, with a "-comment-{n}" suffix for extracted comment blocks.
type Document struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// Chunk is a bounded slice of a document's content, the unit that gets embedded.
type Chunk struct {
	ID       string // Owning document ID
	Index    int    // Position within the owning document (0, 1, 2...)
	Start    int    // Rune offset of the chunk in the document content
	End      int    // Rune offset one past the chunk end
	Content  string
	Metadata Metadata
}
