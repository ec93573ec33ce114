package segment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/corpus"
	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
)

const testBaseURL = "https://github.com/expo/expo/blob/main/"

func newTestSegmenter() *Segmenter {
	return NewSegmenter("expo-repository", testBaseURL, nil)
}

func TestKindForExt(t *testing.T) {
	tests := []struct {
		ext  string
		want Kind
	}{
		{".md", KindMarkdown},
		{".MD", KindMarkdown},
		{".mdx", KindMDX},
		{".ts", KindSource},
		{".tsx", KindSource},
		{".js", KindSource},
		{".jsx", KindSource},
		{".json", KindUnknown},
		{"", KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindForExt(tt.ext), tt.ext)
	}
}

func TestSegment_Markdown(t *testing.T) {
	raw := "# Camera\n\nThe camera renders a preview.\n\n```js\nconst hiddenCode = 1;\n```\n"

	docs, err := newTestSegmenter().Segment("/repo/docs/pages/camera.md", "docs/pages/camera.md", []byte(raw), KindMarkdown)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "docs/pages/camera.md", doc.ID)
	assert.Equal(t, "Camera\n\nThe camera renders a preview.", doc.Content)
	assert.NotContains(t, doc.Content, "hiddenCode")
	assert.Equal(t, document.Metadata{
		Source: "expo-repository",
		Path:   "/repo/docs/pages/camera.md",
		Type:   document.TypeMarkdown,
		Title:  "Camera",
		URL:    "https://github.com/expo/expo/blob/main/docs/pages/camera.md",
	}, doc.Metadata)
}

func TestSegment_MarkdownTitleFallsBackToBaseName(t *testing.T) {
	docs, err := newTestSegmenter().Segment("/repo/docs/get-started.md", "docs/get-started.md", []byte("No heading here."), KindMarkdown)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "get-started", docs[0].Metadata.Title)
}

func TestSegment_MarkdownEmptyContent(t *testing.T) {
	docs, err := newTestSegmenter().Segment("/repo/empty.md", "empty.md", []byte("```\nonly code\n```\n"), KindMarkdown)
	require.NoError(t, err)
	assert.Empty(t, docs, "documents never carry empty content")
}

func TestSegment_SourceComments(t *testing.T) {
	raw := `import { Camera } from './Camera';

/**
 * Renders a preview of the device camera.
 * Requires camera permissions to be granted.
 */
export default function CameraView() {}

/** short */

/**
 * Takes a picture and returns a promise resolving to the captured image.
 */
export function takePictureAsync() {}
`

	docs, err := newTestSegmenter().Segment("/repo/packages/camera/src/Camera.tsx", "packages/camera/src/Camera.tsx", []byte(raw), KindSource)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "packages/camera/src/Camera.tsx-comment-0", docs[0].ID)
	assert.Equal(t, "packages/camera/src/Camera.tsx-comment-1", docs[1].ID)
	assert.Equal(t, "Renders a preview of the device camera.\nRequires camera permissions to be granted.", docs[0].Content)
	assert.Equal(t, "Takes a picture and returns a promise resolving to the captured image.", docs[1].Content)

	for _, doc := range docs {
		assert.Equal(t, document.TypeSourceCodeComment, doc.Metadata.Type)
		assert.Equal(t, "Documentation from Camera.tsx", doc.Metadata.Title)
		assert.Equal(t, testBaseURL+"packages/camera/src/Camera.tsx", doc.Metadata.URL)
		assert.NotContains(t, doc.Content, "*")
	}
}

func TestSegment_SourceFallback(t *testing.T) {
	raw := "import React from 'react';\nimport { View } from \"react-native\";\n\nexport default function App() {\n  return null;\n}\n"

	docs, err := newTestSegmenter().Segment("/repo/App.js", "App.js", []byte(raw), KindSource)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "App.js", doc.ID)
	assert.Equal(t, document.TypeSourceCode, doc.Metadata.Type)
	assert.Equal(t, "App.js", doc.Metadata.Title)
	assert.Equal(t, "function App() {\n  return null;\n}", doc.Content)
}

// TestSegment_CommentsAndFallbackExclusive verifies a file never yields both kinds of document.
func TestSegment_CommentsAndFallbackExclusive(t *testing.T) {
	inputs := []string{
		"/** A sufficiently long documentation comment for the module. */\nconst x = 1;",
		"const x = 1;",
		"/** tiny */\nconst x = 1;",
	}
	for _, raw := range inputs {
		docs, err := newTestSegmenter().Segment("/repo/x.ts", "x.ts", []byte(raw), KindSource)
		require.NoError(t, err)

		types := map[string]bool{}
		for _, doc := range docs {
			types[doc.Metadata.Type] = true
		}
		assert.False(t, types[document.TypeSourceCode] && types[document.TypeSourceCodeComment], raw)
	}
}

func TestSegment_UnsupportedKind(t *testing.T) {
	_, err := newTestSegmenter().Segment("/repo/a.json", "a.json", []byte("{}"), KindUnknown)
	assert.True(t, errors.Is(err, ErrUnsupportedKind))
}

// memorySource serves files from a map and fails for names listed in broken.
type memorySource struct {
	files  map[string]string
	broken map[string]bool
}

func (m *memorySource) Files(context.Context) ([]corpus.File, error) { return nil, nil }

func (m *memorySource) ReadFile(_ context.Context, file corpus.File) ([]byte, error) {
	if m.broken[file.RelPath] {
		return nil, errors.New("permission denied")
	}
	return []byte(m.files[file.RelPath]), nil
}

func TestSegmentAll_SkipsFailedFiles(t *testing.T) {
	src := &memorySource{
		files: map[string]string{
			"a.md": "# A\n\nAlpha text.",
			"c.md": "# C\n\nGamma text.",
		},
		broken: map[string]bool{"b.md": true},
	}
	files := []corpus.File{
		{AbsPath: "/repo/a.md", RelPath: "a.md", Ext: ".md"},
		{AbsPath: "/repo/b.md", RelPath: "b.md", Ext: ".md"},
		{AbsPath: "/repo/c.md", RelPath: "c.md", Ext: ".md"},
		{AbsPath: "/repo/d.json", RelPath: "d.json", Ext: ".json"},
	}

	docs, failed, err := newTestSegmenter().SegmentAll(context.Background(), src, files)
	require.NoError(t, err)

	require.Len(t, docs, 2)
	assert.Equal(t, "a.md", docs[0].ID, "input order is preserved")
	assert.Equal(t, "c.md", docs[1].ID)

	require.Len(t, failed, 2)
	assert.Equal(t, "b.md", failed[0].Path)
	assert.Contains(t, failed[0].Reason, "permission denied")
	assert.Equal(t, "d.json", failed[1].Path)
}

func TestSegmentAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &memorySource{files: map[string]string{"a.md": "# A\n\nAlpha."}}
	_, _, err := newTestSegmenter().SegmentAll(ctx, src, []corpus.File{{RelPath: "a.md", Ext: ".md"}})
	assert.ErrorIs(t, err, context.Canceled)
}
