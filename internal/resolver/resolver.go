// Package resolver maps request paths to filesystem nodes under a fixed
// served root, generating directory listings and rejecting any resolution
// that would escape the root.
package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// Kind discriminates the outcome of a resolution.
type Kind int

const (
	KindNotFound Kind = iota
	KindFile
	KindDirectory
)

// DirectoryEntry is one direct child of a listed directory.
type DirectoryEntry struct {
	Name  string
	IsDir bool
	Size  int64 // meaningful for files only
}

// Resource is the outcome of resolving one request path.
//
// Path is the canonical URL path ("/images/a.png") and serves as the counter
// key. FilePath, Size and ContentType are set for KindFile; Entries for
// KindDirectory.
type Resource struct {
	Kind        Kind
	Path        string
	FilePath    string
	Size        int64
	ContentType string
	Entries     []DirectoryEntry
}

// Resolver resolves request paths against a fixed root directory.
//
// Every Resolve call re-reads the filesystem; results are never cached, so
// directory contents may change between requests and each request observes
// the current state.
type Resolver struct {
	root string
}

// New creates a Resolver serving the given root directory. The root must
// exist and be a directory; it is resolved to an absolute, symlink-free path
// once, at startup, so later containment checks compare canonical paths.
func New(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}

	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", root)
	}

	return &Resolver{root: canonical}, nil
}

// Root returns the canonical served root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve canonicalizes requestPath under the root and reports what it names.
//
// Paths escaping the root, whether through parent segments or symlinks, are
// reported as NotFound: a probe cannot distinguish "outside the root" from
// "does not exist". Errors are returned only for unexpected filesystem
// failures after the node was located.
func (r *Resolver) Resolve(requestPath string) (*Resource, error) {
	// Rooting the path before cleaning collapses any ".." prefix, so the
	// joined path cannot climb out of the root lexically.
	canonical := path.Clean("/" + strings.TrimPrefix(requestPath, "/"))
	full := filepath.Join(r.root, filepath.FromSlash(canonical))

	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Resource{Kind: KindNotFound, Path: canonical}, nil
		}
		return nil, fmt.Errorf("resolve %q: %w", canonical, err)
	}

	if !r.contains(resolved) {
		return &Resource{Kind: KindNotFound, Path: canonical}, nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Resource{Kind: KindNotFound, Path: canonical}, nil
		}
		return nil, fmt.Errorf("stat %q: %w", canonical, err)
	}

	if info.IsDir() {
		entries, err := r.listDirectory(resolved)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", canonical, err)
		}
		return &Resource{
			Kind:    KindDirectory,
			Path:    canonical,
			Entries: entries,
		}, nil
	}

	if !info.Mode().IsRegular() {
		return &Resource{Kind: KindNotFound, Path: canonical}, nil
	}

	return &Resource{
		Kind:        KindFile,
		Path:        canonical,
		FilePath:    resolved,
		Size:        info.Size(),
		ContentType: ContentType(resolved),
	}, nil
}

// listDirectory reads the direct children of dir, no recursion, sorted
// lexicographically by name with directories and files interleaved.
func (r *Resolver) listDirectory(dir string) ([]DirectoryEntry, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]DirectoryEntry, 0, len(dirents))
	for _, dirent := range dirents {
		entry := DirectoryEntry{
			Name:  dirent.Name(),
			IsDir: dirent.IsDir(),
		}
		if !entry.IsDir {
			if info, err := dirent.Info(); err == nil {
				entry.Size = info.Size()
			}
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

func (r *Resolver) contains(p string) bool {
	if p == r.root {
		return true
	}
	return strings.HasPrefix(p, r.root+string(filepath.Separator))
}
