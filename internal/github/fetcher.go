// Package github provides a corpus source backed by a GitHub repository.
package github

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/go-github/v81/github"

	"github.com/mike-a-ellis/expo-docs-mcp/internal/corpus"
)

// Repository configuration defaults
const (
	DefaultOwner    = "expo"
	DefaultRepo     = "expo"
	DefaultRef      = "main"
	DefaultBasePath = "docs"
)

var _ corpus.Source = (*Fetcher)(nil)

// Fetcher lists and downloads documentation files from a GitHub repository.
type Fetcher struct {
	client   *Client
	owner    string
	repo     string
	ref      string
	basePath string
}

// NewFetcher creates a new document fetcher
func NewFetcher(client *Client, owner, repo, ref, basePath string) *Fetcher {
	if ref == "" {
		ref = DefaultRef
	}
	return &Fetcher{
		client:   client,
		owner:    owner,
		repo:     repo,
		ref:      ref,
		basePath: strings.Trim(basePath, "/"),
	}
}

// Files recursively lists all documentation files under the base path.
// AbsPath is the repository path; RelPath is relative to the base path.
func (f *Fetcher) Files(ctx context.Context) ([]corpus.File, error) {
	return f.listRecursive(ctx, f.basePath, "")
}

// listRecursive traverses directories, skipping excluded ones.
func (f *Fetcher) listRecursive(ctx context.Context, fullPath, relativePath string) ([]corpus.File, error) {
	var files []corpus.File

	_, dirContents, _, err := f.client.Repositories.GetContents(
		ctx,
		f.owner,
		f.repo,
		fullPath,
		&github.RepositoryContentGetOptions{Ref: f.ref},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get contents of %s: %w", fullPath, err)
	}

	for _, item := range dirContents {
		if item.Type == nil || item.Name == nil {
			continue
		}

		itemRelPath := path.Join(relativePath, *item.Name)
		itemFullPath := path.Join(fullPath, *item.Name)

		switch *item.Type {
		case "file":
			ext := strings.ToLower(path.Ext(*item.Name))
			if corpus.IsDocExtension(ext) {
				files = append(files, corpus.File{
					AbsPath: itemFullPath,
					RelPath: itemRelPath,
					Ext:     ext,
				})
			}

		case "dir":
			if corpus.IsExcludedDir(*item.Name) {
				continue
			}
			subFiles, err := f.listRecursive(ctx, itemFullPath, itemRelPath)
			if err != nil {
				return nil, err
			}
			files = append(files, subFiles...)
		}
	}

	return files, nil
}

// ReadFile fetches and decodes the content of a single file.
func (f *Fetcher) ReadFile(ctx context.Context, file corpus.File) ([]byte, error) {
	fileContent, _, _, err := f.client.Repositories.GetContents(
		ctx,
		f.owner,
		f.repo,
		file.AbsPath,
		&github.RepositoryContentGetOptions{Ref: f.ref},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get content of %s: %w", file.AbsPath, err)
	}

	if fileContent == nil {
		return nil, fmt.Errorf("no file content returned for %s", file.AbsPath)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", file.AbsPath, err)
	}
	return []byte(content), nil
}

// RepoBaseURL returns the blob URL prefix for files under the base path.
func (f *Fetcher) RepoBaseURL() string {
	base := fmt.Sprintf("https://github.com/%s/%s/blob/%s/", f.owner, f.repo, f.ref)
	if f.basePath != "" {
		base += f.basePath + "/"
	}
	return base
}
