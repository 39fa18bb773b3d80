// Package fsops is the filesystem collaborator of the watch manager: the
// existence checks consulted at watch start and the listings the CLI shows.
package fsops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/gitignore"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// Local answers existence questions against the local filesystem.
type Local struct{}

var _ watcher.Inspector = Local{}

// Exists reports whether path exists. Permission errors are returned.
func (Local) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// IsDir reports whether path is a directory.
func (Local) IsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// FileInfo describes a listed file.
type FileInfo struct {
	Name string `json:"name"`
	// Path is slash-separated and relative to the listed directory.
	Path string `json:"path"`
	// Modified is the modification time in Unix milliseconds.
	Modified int64 `json:"modified"`
}

// DirEntry is a direct child of a directory.
type DirEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

const (
	KindFile      = "file"
	KindDirectory = "directory"
)

// ListOptions configures ListFiles.
type ListOptions struct {
	// Subdir is joined to the root before listing.
	Subdir string
	// Suffixes selects files by name suffix. Default: ".md"
	Suffixes []string
	// Ignore holds doublestar patterns for paths to skip.
	Ignore []string
	// Gitignore also skips paths matched by root's .gitignore.
	Gitignore bool
}

// ListFiles recursively lists files under root (joined with opts.Subdir) whose
// names match opts.Suffixes. A missing directory yields an empty list.
// Top-level subdirectories are walked concurrently; the result is sorted by path.
func ListFiles(ctx context.Context, root string, opts ListOptions) ([]FileInfo, error) {
	dir := root
	if opts.Subdir != "" {
		dir = filepath.Join(root, opts.Subdir)
	}
	if len(opts.Suffixes) == 0 {
		opts.Suffixes = []string{".md"}
	}
	visible, err := watcher.IgnoreFilter(opts.Ignore...)
	if err != nil {
		return nil, err
	}
	if opts.Gitignore {
		m, err := gitignore.Load(root)
		if err != nil {
			return nil, err
		}
		visible = watcher.AllOf(visible, gitignoreFilter(m, root, opts.Subdir))
	}
	match := watcher.SuffixFilter(opts.Suffixes...)

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []FileInfo{}, nil
	}
	if err != nil {
		return nil, listError(dir, err)
	}

	var (
		mu    sync.Mutex
		files = []FileInfo{}
	)
	add := func(fi FileInfo) {
		mu.Lock()
		files = append(files, fi)
		mu.Unlock()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for _, entry := range entries {
		rel := entry.Name()
		if !visible.Match(rel) {
			continue
		}
		if !entry.IsDir() {
			if fi, ok := fileInfo(entry, rel, match); ok {
				add(fi)
			}
			continue
		}
		sub := filepath.Join(dir, rel)
		g.Go(func() error {
			return walk(gctx, dir, sub, visible, match, add)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// gitignoreFilter adapts m to paths relative to root/subdir.
func gitignoreFilter(m *gitignore.Matcher, root, subdir string) watcher.Filter {
	prefix := strings.Trim(filepath.ToSlash(subdir), "/")
	return watcher.FilterFunc(func(rel string) bool {
		full := rel
		if prefix != "" {
			full = prefix + "/" + rel
		}
		return !m.Ignored(full, func() bool {
			info, err := os.Lstat(filepath.Join(root, filepath.FromSlash(full)))
			return err == nil && info.IsDir()
		})
	})
}

func walk(ctx context.Context, base, dir string, visible, match watcher.Filter, add func(FileInfo)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return listError(path, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !visible.Match(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if fi, ok := fileInfo(d, rel, match); ok {
			add(fi)
		}
		return nil
	})
}

func fileInfo(d fs.DirEntry, rel string, match watcher.Filter) (FileInfo, bool) {
	if !d.Type().IsRegular() || !match.Match(d.Name()) {
		return FileInfo{}, false
	}
	info, err := d.Info()
	if err != nil {
		return FileInfo{}, false
	}
	return FileInfo{
		Name:     d.Name(),
		Path:     rel,
		Modified: info.ModTime().UnixMilli(),
	}, true
}

// ReadDir lists the direct children of path, sorted by name.
func ReadDir(path string) ([]DirEntry, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, listError(path, err)
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		kind := KindFile
		if e.IsDir() {
			kind = KindDirectory
		}
		out = append(out, DirEntry{Name: e.Name(), Kind: kind})
	}
	return out, nil
}

// FileMeta describes a single file or directory.
type FileMeta struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
	Size int64  `json:"size"`
	// Modified is the modification time in Unix milliseconds.
	Modified int64 `json:"modified"`
}

// Meta returns metadata for path without following a final symlink.
func Meta(path string) (FileMeta, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return FileMeta{}, listError(path, err)
	}
	kind := KindFile
	if info.IsDir() {
		kind = KindDirectory
	}
	return FileMeta{
		Path:     path,
		Kind:     kind,
		Size:     info.Size(),
		Modified: info.ModTime().UnixMilli(),
	}, nil
}

// ReadFile returns the contents of the regular file at path. A positive
// limit rejects larger files without reading them.
func ReadFile(path string, limit int64) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, listError(path, err)
	}
	if info.IsDir() {
		return nil, errs.New(errs.ErrCodeInvalidPath, path+" is a directory", nil)
	}
	if limit > 0 && info.Size() > limit {
		return nil, errs.ValidationError(fmt.Sprintf("%s is %d bytes, over the %d byte limit", path, info.Size(), limit), nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, listError(path, err)
	}
	return data, nil
}

func listError(path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errs.PathNotFound(path, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.PermissionDenied(path, err)
	default:
		return errs.New(errs.ErrCodeInvalidPath, "read "+path, err)
	}
}
