package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/fsops"
)

func filesFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "docs", "c.md"), "c")
	writeFile(t, filepath.Join(dir, "node_modules", "d.md"), "d")
	return dir
}

func TestFilesCmd_ListsMatchingFiles(t *testing.T) {
	isolate(t)
	dir := filesFixture(t)

	// When: listing as JSON
	out, err := execute(t, "files", dir, "--json")
	require.NoError(t, err)

	// Then: only Markdown outside ignored directories, sorted by path
	var files []fsops.FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{"a.md", "docs/c.md"}, paths)
}

func TestFilesCmd_SuffixAndSubdir(t *testing.T) {
	isolate(t)
	dir := filesFixture(t)

	out, err := execute(t, "files", dir, "--suffix", ".txt", "--json")
	require.NoError(t, err)
	var files []fsops.FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "b.txt", files[0].Path)

	out, err = execute(t, "files", dir, "--subdir", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "c.md")
	assert.NotContains(t, out, "a.md")
}

func TestFilesCmd_Children(t *testing.T) {
	isolate(t)
	dir := filesFixture(t)

	// When: listing direct children
	out, err := execute(t, "files", dir, "--children", "--json")
	require.NoError(t, err)

	// Then: files and directories with their kinds
	var metas []fsops.FileMeta
	require.NoError(t, json.Unmarshal([]byte(out), &metas))
	kinds := make(map[string]string)
	for _, m := range metas {
		kinds[m.Path] = m.Kind
	}
	assert.Equal(t, fsops.KindFile, kinds["a.md"])
	assert.Equal(t, fsops.KindDirectory, kinds["docs"])
}

func TestFilesCmd_ChildrenOfMissingDirectory(t *testing.T) {
	isolate(t)

	_, err := execute(t, "files", filepath.Join(t.TempDir(), "missing"), "--children")

	require.Error(t, err)
	assert.Equal(t, errs.ErrCodePathNotFound, errs.GetCode(err))
}

func TestFilesCmd_Gitignore(t *testing.T) {
	isolate(t)
	dir := filesFixture(t)
	writeFile(t, filepath.Join(dir, ".gitignore"), "docs/\n")

	// When: listing with --gitignore
	out, err := execute(t, "files", dir, "--gitignore", "--json")
	require.NoError(t, err)

	// Then: the ignored directory is skipped
	var files []fsops.FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 1)
	assert.Equal(t, "a.md", files[0].Path)
}
