package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDocumentJSON verifies the wire shape consumed by agents.
func TestDocumentJSON(t *testing.T) {
	doc := Document{
		ID:      "docs/pages/camera.md",
		Content: "Camera docs",
		Metadata: Metadata{
			Source: "expo-repository",
			Path:   "docs/pages/camera.md",
			Type:   TypeMarkdown,
			Title:  "Camera",
		},
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "docs/pages/camera.md", raw["id"])

	meta, ok := raw["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "markdown", meta["type"])
	assert.NotContains(t, meta, "url", "empty optional fields are omitted")
	assert.NotContains(t, meta, "lastUpdated")
}
