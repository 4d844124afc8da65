package indexer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/codelore/internal/apperr"
	"github.com/seanblong/codelore/internal/github"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentReads bounds file reads during a load.
const maxConcurrentReads = 5

// File is one repository file ready to be summarized.
type File struct {
	Path    string
	Content string
}

// RepoLoader enumerates the files of a repository.
type RepoLoader interface {
	Load(ctx context.Context, repoURL, token string) ([]File, error)
}

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// CloneFunc checks out repoURL at ref into a fresh directory.
type CloneFunc func(ctx context.Context, repoURL, ref, token string) (string, error)

// GitLoader shallow-clones a repository and reads its text files.
type GitLoader struct {
	Ref    string
	Clone  CloneFunc
	Walker FileSystemWalker
	Reader FileReader
}

// NewGitLoader returns a loader that shallow-clones with go-git.
func NewGitLoader(ref string) *GitLoader {
	return &GitLoader{
		Ref:    ref,
		Clone:  cloneToTemp,
		Walker: &DefaultFileSystemWalker{},
		Reader: &DefaultFileReader{},
	}
}

// Load clones repoURL, reads every indexable file and removes the checkout.
// Only github.com repositories are cloned so token never reaches another host.
func (g *GitLoader) Load(ctx context.Context, repoURL, token string) ([]File, error) {
	if _, err := github.ParseRepoURL(repoURL); err != nil {
		return nil, err
	}
	dir, err := g.Clone(ctx, repoURL, g.Ref, token)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to remove temp directory")
		}
	}()
	return g.LoadDir(ctx, dir)
}

// LoadDir reads the indexable files under root. Paths are relative to root.
// Symlinks are never followed. Unreadable or binary files are logged and
// skipped.
func (g *GitLoader) LoadDir(ctx context.Context, root string) ([]File, error) {
	var paths []string
	err := g.Walker.Walk(root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de != nil && path != root && de.IsSymlink() {
				log.Debug().Str("path", rel(root, path)).Msg("skipping symlink")
				return nil
			}
			if de != nil && de.IsDir() {
				if path != root && skipDir(de.Name()) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if shouldSkip(rel(root, path)) {
				return nil
			}
			paths = append(paths, path)
			return ctx.Err()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	var (
		mu    sync.Mutex
		files = make([]File, 0, len(paths))
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentReads)
	for _, p := range paths {
		eg.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := g.Reader.ReadFile(p)
			if err != nil {
				log.Warn().Err(err).Str("path", p).Msg("failed to read file")
				return nil
			}
			relPath := rel(root, p)
			if !isText(b) {
				log.Warn().Str("path", relPath).Msg("skipping binary file")
				return nil
			}
			mu.Lock()
			files = append(files, File{Path: relPath, Content: string(b)})
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}

func cloneToTemp(ctx context.Context, repoURL, ref, token string) (string, error) {
	dir, err := os.MkdirTemp("", "codelore-*")
	if err != nil {
		return "", err
	}
	opts := &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		SingleBranch: true,
	}
	if ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	}
	if token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-oauth-basic", Password: token}
	}
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", dir).Msg("failed to remove temp directory")
		}
		return "", apperr.Wrap(fmt.Errorf("git clone: %w", err), apperr.CodeUnavailable, "repository could not be cloned")
	}
	return dir, nil
}

var lockfiles = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"bun.lockb":         true,
}

var skippedDirs = map[string]bool{
	".git": true, "vendor": true, "node_modules": true, ".terraform": true,
	"target": true, "build": true, "dist": true, "out": true, "bin": true, "obj": true,
	".venv": true, "venv": true, "__pycache__": true, ".pytest_cache": true,
	".gradle": true, ".m2": true, ".idea": true, "coverage": true, ".cache": true,
	".next": true,
}

func skipDir(name string) bool {
	return skippedDirs[strings.ToLower(name)]
}

// shouldSkip returns true if the file at the repository-relative path
// should not be indexed.
func shouldSkip(path string) bool {
	p := filepath.ToSlash(strings.ToLower(path))
	for _, seg := range strings.Split(filepath.Dir(p), "/") {
		if skippedDirs[seg] {
			return true
		}
	}
	if lockfiles[filepath.Base(p)] {
		return true
	}
	switch filepath.Ext(p) {
	case ".png", ".jpg", ".jpeg", ".gif", ".ico", ".pdf", ".webp", ".zip", ".gz", ".tar",
		".exe", ".dll", ".so", ".dylib", ".woff", ".woff2", ".ttf", ".mp3", ".mp4", ".lockb":
		return true
	}
	return false
}

// isText reports whether b looks like UTF-8 text.
func isText(b []byte) bool {
	return utf8.Valid(b) && !bytes.ContainsRune(b, 0)
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}
