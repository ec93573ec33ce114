package github

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v81/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestFetcher serves a small fake repository through the contents API.
func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/expo/expo/contents/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/repos/expo/expo/contents/docs":
			fmt.Fprint(w, `[
				{"type":"file","name":"intro.md","path":"docs/intro.md"},
				{"type":"file","name":"logo.png","path":"docs/logo.png"},
				{"type":"dir","name":"pages","path":"docs/pages"},
				{"type":"dir","name":"node_modules","path":"docs/node_modules"}
			]`)
		case "/repos/expo/expo/contents/docs/pages":
			fmt.Fprint(w, `[{"type":"file","name":"camera.mdx","path":"docs/pages/camera.mdx"}]`)
		case "/repos/expo/expo/contents/docs/intro.md":
			content := base64.StdEncoding.EncodeToString([]byte("# Intro\n\nWelcome."))
			fmt.Fprintf(w, `{"type":"file","name":"intro.md","path":"docs/intro.md","encoding":"base64","content":%q}`, content)
		default:
			t.Errorf("unexpected request path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	gh := github.NewClient(nil)
	baseURL, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = baseURL

	return NewFetcher(&Client{Client: gh}, "expo", "expo", "main", "docs")
}

func TestFetcher_Files(t *testing.T) {
	fetcher := newTestFetcher(t)

	files, err := fetcher.Files(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "intro.md", files[0].RelPath)
	assert.Equal(t, "docs/intro.md", files[0].AbsPath)
	assert.Equal(t, ".md", files[0].Ext)
	assert.Equal(t, "pages/camera.mdx", files[1].RelPath)
	assert.Equal(t, ".mdx", files[1].Ext)
}

func TestFetcher_ReadFile(t *testing.T) {
	fetcher := newTestFetcher(t)

	files, err := fetcher.Files(context.Background())
	require.NoError(t, err)

	content, err := fetcher.ReadFile(context.Background(), files[0])
	require.NoError(t, err)
	assert.Equal(t, "# Intro\n\nWelcome.", string(content))
}

func TestFetcher_RepoBaseURL(t *testing.T) {
	fetcher := NewFetcher(nil, "expo", "expo", "", "/docs/")
	assert.Equal(t, "https://github.com/expo/expo/blob/main/docs/", fetcher.RepoBaseURL())
}

func TestNewClient_EnterpriseURL(t *testing.T) {
	client, err := NewClient(ClientOptions{Token: "t", APIURL: "https://ghe.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/", client.BaseURL.String())

	client, err = NewClient(ClientOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", client.BaseURL.String())
}
