package markdown

import (
	"strings"
	"testing"
)

// TestExtract_TitleFromFirstH1 verifies the first top-level heading becomes the title.
func TestExtract_TitleFromFirstH1(t *testing.T) {
	input := `Intro paragraph before any heading.

## Not The Title

# Camera

The camera component renders a preview.

# Second Title
`

	extracted, err := NewExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if extracted.Title != "Camera" {
		t.Errorf("Expected title 'Camera', got %q", extracted.Title)
	}
	if !strings.Contains(extracted.Text, "The camera component renders a preview.") {
		t.Errorf("Text missing paragraph content: %q", extracted.Text)
	}
}

// TestExtract_NoHeading verifies the title is empty so callers can fall back to the file name.
func TestExtract_NoHeading(t *testing.T) {
	extracted, err := NewExtractor().Extract([]byte("Just some text.\n"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if extracted.Title != "" {
		t.Errorf("Expected empty title, got %q", extracted.Title)
	}
	if extracted.Text != "Just some text." {
		t.Errorf("Unexpected text %q", extracted.Text)
	}
}

// TestExtract_StripsCodeBlocks verifies fenced and indented code never reaches the text.
func TestExtract_StripsCodeBlocks(t *testing.T) {
	input := "# Usage\n\nInstall the package first.\n\n" +
		"```js\nconst secretFenced = require('expo-camera');\n```\n\n" +
		"Then render it.\n\n" +
		"    const secretIndented = true;\n\n" +
		"Use `Camera` inline.\n"

	extracted, err := NewExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	for _, forbidden := range []string{"secretFenced", "secretIndented", "require("} {
		if strings.Contains(extracted.Text, forbidden) {
			t.Errorf("Text contains code block content %q: %q", forbidden, extracted.Text)
		}
	}
	for _, expected := range []string{"Install the package first.", "Then render it.", "Use Camera inline."} {
		if !strings.Contains(extracted.Text, expected) {
			t.Errorf("Text missing %q: %q", expected, extracted.Text)
		}
	}
}

// TestExtract_StripsMarkup verifies links, emphasis and HTML tags are flattened to text.
func TestExtract_StripsMarkup(t *testing.T) {
	input := `# Links

See the [installation guide](https://docs.expo.dev/get-started/) for **more** details.

<div class="note">Requires a development build.</div>

<pre>
hidden preformatted text
</pre>
`

	extracted, err := NewExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if !strings.Contains(extracted.Text, "See the installation guide for more details.") {
		t.Errorf("Markup not flattened: %q", extracted.Text)
	}
	if !strings.Contains(extracted.Text, "Requires a development build.") {
		t.Errorf("HTML block text missing: %q", extracted.Text)
	}
	if strings.Contains(extracted.Text, "<div") || strings.Contains(extracted.Text, "https://") {
		t.Errorf("Markup leaked into text: %q", extracted.Text)
	}
	if strings.Contains(extracted.Text, "hidden preformatted text") {
		t.Errorf("Preformatted HTML leaked into text: %q", extracted.Text)
	}
}

// TestExtract_ParagraphsSeparated verifies block boundaries become blank lines.
func TestExtract_ParagraphsSeparated(t *testing.T) {
	extracted, err := NewExtractor().Extract([]byte("First paragraph.\n\nSecond paragraph.\n"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if extracted.Text != "First paragraph.\n\nSecond paragraph." {
		t.Errorf("Unexpected text %q", extracted.Text)
	}
}

// TestExtract_FrontMatter verifies YAML front matter is removed and used as a title fallback.
func TestExtract_FrontMatter(t *testing.T) {
	input := `---
title: Camera Reference
lastUpdated: "2024-05-01"
---

The camera module.
`

	extracted, err := NewExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if extracted.Title != "Camera Reference" {
		t.Errorf("Expected front matter title, got %q", extracted.Title)
	}
	if extracted.LastUpdated != "2024-05-01" {
		t.Errorf("Expected lastUpdated '2024-05-01', got %q", extracted.LastUpdated)
	}
	if strings.Contains(extracted.Text, "title:") {
		t.Errorf("Front matter leaked into text: %q", extracted.Text)
	}
}

// TestExtract_MDXStatements verifies MDX import/export lines are dropped.
func TestExtract_MDXStatements(t *testing.T) {
	input := `import { Tabs } from '~/ui/components/Tabs';
export const meta = { hidden: true };

# MDX Page

Body text.
`

	extracted, err := NewMDXExtractor().Extract([]byte(input))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if extracted.Title != "MDX Page" {
		t.Errorf("Expected title 'MDX Page', got %q", extracted.Title)
	}
	if strings.Contains(extracted.Text, "import") || strings.Contains(extracted.Text, "export") {
		t.Errorf("MDX statements leaked into text: %q", extracted.Text)
	}
}
