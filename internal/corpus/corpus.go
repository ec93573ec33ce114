// Package corpus enumerates the documentation files that feed the index build.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extensions lists the file extensions considered documentation.
var Extensions = []string{".md", ".mdx", ".ts", ".tsx", ".js", ".jsx"}

// ExcludedDirs lists directory names never descended into.
var ExcludedDirs = []string{"node_modules", ".git", "build", "dist"}

// File identifies one corpus file.
type File struct {
	AbsPath string // Absolute (or source-qualified) path
	RelPath string // Slash-separated path relative to the corpus root
	Ext     string // Lower-case extension with leading dot
}

// Source lists corpus files and reads their content.
type Source interface {
	Files(ctx context.Context) ([]File, error)
	ReadFile(ctx context.Context, file File) ([]byte, error)
}

// IsDocExtension reports whether ext is one of Extensions.
func IsDocExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// IsExcludedDir reports whether a directory name is skipped during walks.
func IsExcludedDir(name string) bool {
	for _, d := range ExcludedDirs {
		if d == name {
			return true
		}
	}
	return false
}

// FSSource walks a local checkout.
type FSSource struct {
	root string
}

// NewFSSource creates a source rooted at a local directory.
func NewFSSource(root string) *FSSource {
	return &FSSource{root: root}
}

// Files walks the root and returns documentation files sorted by relative path.
func (s *FSSource) Files(ctx context.Context) ([]File, error) {
	return Walk(ctx, s.root)
}

// ReadFile reads a file from disk.
func (s *FSSource) ReadFile(_ context.Context, file File) ([]byte, error) {
	return os.ReadFile(file.AbsPath)
}

// Walk returns every documentation file under root, skipping ExcludedDirs.
func Walk(ctx context.Context, root string) ([]File, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	var files []File
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != absRoot && IsExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(p))
		if !d.Type().IsRegular() || !IsDocExtension(ext) {
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return err
		}
		files = append(files, File{
			AbsPath: p,
			RelPath: filepath.ToSlash(rel),
			Ext:     ext,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
