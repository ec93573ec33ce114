package query

import (
	"context"
	"strings"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/document"
)

var _ Retriever = FixtureRetriever{}

// FixtureRetriever answers every query from a small fixed set of Expo
// documents. It stands in for the engine when no embedding credential is set.
type FixtureRetriever struct{}

// Retrieve returns the camera fixture when the query mentions a camera and
// the introductory fixtures otherwise.
func (FixtureRetriever) Retrieve(_ context.Context, text string, maxResults int) ([]document.Document, error) {
	docs := defaultFixtures()
	if strings.Contains(strings.ToLower(text), "camera") {
		docs = cameraFixtures()
	}
	if maxResults > 0 && len(docs) > maxResults {
		docs = docs[:maxResults]
	}
	return docs, nil
}

const fixtureSource = "mock-data"

func defaultFixtures() []document.Document {
	return []document.Document{
		{
			ID:      "mock-doc-1",
			Content: "Expo is a framework and a platform for universal React applications. It is a set of tools and services built around React Native and native platforms that help you develop, build, deploy, and quickly iterate on iOS, Android, and web apps from the same JavaScript/TypeScript codebase.",
			Metadata: document.Metadata{
				Source: fixtureSource,
				Path:   "/introduction/index.md",
				Type:   document.TypeMarkdown,
				Title:  "Introduction to Expo",
				URL:    "https://docs.expo.dev/introduction/overview/",
			},
		},
		{
			ID:      "mock-doc-2",
			Content: "To install Expo CLI, run `npm install -g expo-cli` or `yarn global add expo-cli`. To create a new Expo project, run `expo init my-project`. This will create a new project directory with a basic structure.",
			Metadata: document.Metadata{
				Source: fixtureSource,
				Path:   "/get-started/installation.md",
				Type:   document.TypeMarkdown,
				Title:  "Installation",
				URL:    "https://docs.expo.dev/get-started/installation/",
			},
		},
	}
}

func cameraFixtures() []document.Document {
	return []document.Document{
		{
			ID:      "mock-doc-camera",
			Content: "The Camera module provides a React component that renders a preview of the device's front or back camera. The component is designed to be used with `expo-permissions`, which helps you request device permissions for accessing the camera.",
			Metadata: document.Metadata{
				Source: fixtureSource,
				Path:   "/versions/latest/sdk/camera.md",
				Type:   document.TypeMarkdown,
				Title:  "Camera",
				URL:    "https://docs.expo.dev/versions/latest/sdk/camera/",
			},
		},
	}
}
