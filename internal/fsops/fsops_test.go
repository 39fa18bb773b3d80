package fsops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestLocal_ExistsAndIsDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md")
	l := Local{}

	ok, err := l.Exists(dir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Exists(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, ok)

	isDir, err := l.IsDir(dir)
	require.NoError(t, err)
	assert.True(t, isDir)

	isDir, err = l.IsDir(filepath.Join(dir, "a.md"))
	require.NoError(t, err)
	assert.False(t, isDir)
}

func TestListFiles_RecursiveSortedRelative(t *testing.T) {
	// Given: a tree with notes at several depths and other files
	dir := t.TempDir()
	writeFile(t, dir, "b.md")
	writeFile(t, dir, "a.txt")
	writeFile(t, dir, "sub/c.md")
	writeFile(t, dir, "sub/deeper/d.md")
	writeFile(t, dir, "other/e.md")
	writeFile(t, dir, ".git/f.md")

	// When: listing
	files, err := ListFiles(context.Background(), dir, ListOptions{Ignore: []string{"**/.git/**"}})
	require.NoError(t, err)

	// Then: only notes, slash-relative, sorted
	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
		assert.Positive(t, f.Modified)
	}
	assert.Equal(t, []string{"b.md", "other/e.md", "sub/c.md", "sub/deeper/d.md"}, paths)
	assert.Equal(t, "d.md", files[3].Name)
}

func TestListFiles_SubdirAndSuffixes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "docs/a.md")
	writeFile(t, dir, "docs/b.markdown")
	writeFile(t, dir, "c.md")

	files, err := ListFiles(context.Background(), dir, ListOptions{
		Subdir:   "docs",
		Suffixes: []string{".md", ".markdown"},
	})
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "a.md", files[0].Path)
	assert.Equal(t, "b.markdown", files[1].Path)
}

func TestListFiles_Gitignore(t *testing.T) {
	// Given: a .gitignore excluding a directory and a pattern
	dir := t.TempDir()
	writeFile(t, dir, "a.md")
	writeFile(t, dir, "drafts/b.md")
	writeFile(t, dir, "docs/c.scratch.md")
	writeFile(t, dir, "docs/d.md")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("drafts/\n*.scratch.md\n"), 0o644))

	// When: listing with and without the option
	all, err := ListFiles(context.Background(), dir, ListOptions{})
	require.NoError(t, err)
	tracked, err := ListFiles(context.Background(), dir, ListOptions{Gitignore: true})
	require.NoError(t, err)
	sub, err := ListFiles(context.Background(), dir, ListOptions{Gitignore: true, Subdir: "docs"})
	require.NoError(t, err)

	// Then: ignored files only drop out when asked
	assert.Len(t, all, 4)
	require.Len(t, tracked, 2)
	assert.Equal(t, "a.md", tracked[0].Path)
	assert.Equal(t, "docs/d.md", tracked[1].Path)
	require.Len(t, sub, 1)
	assert.Equal(t, "d.md", sub[0].Path)
}

func TestListFiles_MissingDirIsEmpty(t *testing.T) {
	files, err := ListFiles(context.Background(), t.TempDir(), ListOptions{Subdir: "nope"})
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.NotNil(t, files)
}

func TestListFiles_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "sub/a.md")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ListFiles(ctx, dir, ListOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	entries, err := ReadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, []DirEntry{{Name: "a.md", Kind: KindFile}, {Name: "sub", Kind: KindDirectory}}, entries)

	_, err = ReadDir(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, errs.ErrPathNotFound)
}

func TestMeta(t *testing.T) {
	// Given: a file and a directory
	dir := t.TempDir()
	writeFile(t, dir, "a.md")
	path := filepath.Join(dir, "a.md")
	info, err := os.Stat(path)
	require.NoError(t, err)

	// When: reading metadata
	file, err := Meta(path)
	require.NoError(t, err)
	sub, err := Meta(dir)
	require.NoError(t, err)

	// Then: kind, size and modification time are reported
	assert.Equal(t, KindFile, file.Kind)
	assert.Equal(t, info.Size(), file.Size)
	assert.Equal(t, info.ModTime().UnixMilli(), file.Modified)
	assert.Equal(t, KindDirectory, sub.Kind)

	_, err = Meta(filepath.Join(dir, "missing.md"))
	assert.ErrorIs(t, err, errs.ErrPathNotFound)
}

func TestReadFile(t *testing.T) {
	// Given: a small file and a directory
	dir := t.TempDir()
	path := filepath.Join(dir, "note.md")
	require.NoError(t, os.WriteFile(path, []byte("# Title\n"), 0o644))

	// When/Then: the file is read
	data, err := ReadFile(path, 1024)
	require.NoError(t, err)
	assert.Equal(t, "# Title\n", string(data))

	// And: the limit, directories and missing files are rejected
	_, err = ReadFile(path, 3)
	assert.Equal(t, errs.ErrCodeInvalidInput, errs.GetCode(err))

	_, err = ReadFile(dir, 0)
	assert.Equal(t, errs.ErrCodeInvalidPath, errs.GetCode(err))

	_, err = ReadFile(filepath.Join(dir, "missing.md"), 0)
	assert.ErrorIs(t, err, errs.ErrPathNotFound)
}
