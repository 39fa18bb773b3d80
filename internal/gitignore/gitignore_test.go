package gitignore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matcher(lines ...string) *Matcher {
	m := New()
	for _, l := range lines {
		m.AddPattern(l)
	}
	return m
}

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name    string
		lines   []string
		path    string
		isDir   bool
		ignored bool
	}{
		{"plain name anywhere", []string{"notes.tmp"}, "a/b/notes.tmp", false, true},
		{"plain name at root", []string{"notes.tmp"}, "notes.tmp", false, true},
		{"wildcard", []string{"*.log"}, "logs/app.log", false, true},
		{"wildcard no match", []string{"*.log"}, "app.md", false, false},
		{"question mark", []string{"draft?.md"}, "draft1.md", false, true},
		{"character class", []string{"v[0-9].md"}, "v3.md", false, true},
		{"leading slash anchors", []string{"/todo.md"}, "todo.md", false, true},
		{"leading slash not nested", []string{"/todo.md"}, "sub/todo.md", false, false},
		{"inner slash anchors", []string{"doc/frotz"}, "doc/frotz", false, true},
		{"inner slash not nested", []string{"doc/frotz"}, "a/doc/frotz", false, false},
		{"double star prefix", []string{"**/cache"}, "x/y/cache", true, true},
		{"double star middle", []string{"a/**/b.md"}, "a/x/y/b.md", false, true},
		{"double star middle zero dirs", []string{"a/**/b.md"}, "a/b.md", false, true},
		{"dir only matches dir", []string{"build/"}, "build", true, true},
		{"dir only skips file", []string{"build/"}, "build", false, false},
		{"dir only hides contents", []string{"build/"}, "build/out.md", false, true},
		{"ignored parent hides contents", []string{"vendor"}, "vendor/pkg/readme.md", false, true},
		{"negation re-includes", []string{"*.md", "!keep.md"}, "keep.md", false, false},
		{"last match wins", []string{"!keep.md", "*.md"}, "keep.md", false, true},
		{"no re-include below ignored dir", []string{"drafts/", "!drafts/keep.md"}, "drafts/keep.md", false, true},
		{"comment skipped", []string{"# notes.md"}, "notes.md", false, false},
		{"escaped hash", []string{`\#notes.md`}, "#notes.md", false, true},
		{"escaped bang", []string{`\!important.md`}, "!important.md", false, true},
		{"trailing space trimmed", []string{"a.md   "}, "a.md", false, true},
		{"escaped trailing space kept", []string{`a.md\ `}, "a.md ", false, true},
		{"empty path", []string{"*"}, "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a matcher with the rules
			m := matcher(tt.lines...)

			// When/Then: the path is classified
			assert.Equal(t, tt.ignored, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_EmptyIgnoresNothing(t *testing.T) {
	m := New()

	assert.False(t, m.Match("anything.md", false))
	assert.Equal(t, 0, m.Len())
}

func TestMatcher_IgnoredDefersDirCheck(t *testing.T) {
	// Given: a matcher without directory-only rules
	m := matcher("*.tmp")
	called := false

	// When: classifying a path
	ignored := m.Ignored("a.md", func() bool { called = true; return false })

	// Then: the directory callback is never needed
	assert.False(t, ignored)
	assert.False(t, called)
}

func TestMatcher_Base(t *testing.T) {
	// Given: rules declared by a nested .gitignore in docs/
	m := New()
	m.AddPatternWithBase("*.draft.md", "docs")
	m.AddPatternWithBase("/index.md", "docs")

	// Then: they only apply under docs
	assert.True(t, m.Match("docs/a.draft.md", false))
	assert.True(t, m.Match("docs/deep/a.draft.md", false))
	assert.False(t, m.Match("a.draft.md", false))
	assert.True(t, m.Match("docs/index.md", false))
	assert.False(t, m.Match("docs/deep/index.md", false))
}

func TestLoad(t *testing.T) {
	// Given: a root with .gitignore and .git/info/exclude
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("# generated\nbuild/\n*.tmp.md\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "info"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "info", "exclude"), []byte("private.md\n"), 0o644))

	// When: loading
	m, err := Load(root)

	// Then: both files contribute
	require.NoError(t, err)
	assert.Equal(t, 3, m.Len())
	assert.True(t, m.Match("build/x.md", false))
	assert.True(t, m.Match("a/b.tmp.md", false))
	assert.True(t, m.Match("private.md", false))
	assert.False(t, m.Match("readme.md", false))
}

func TestLoad_NoFiles(t *testing.T) {
	m, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, 0, m.Len())
}

func TestAddFromFile_Missing(t *testing.T) {
	err := New().AddFromFile(filepath.Join(t.TempDir(), ".gitignore"), "")

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParsePatterns(t *testing.T) {
	content := "# header\n\n*.log\n  \n!keep.log\nbuild/\n"

	assert.Equal(t, []string{"*.log", "!keep.log", "build/"}, ParsePatterns(content))
}

func TestMatcher_ConcurrentUse(t *testing.T) {
	m := matcher("*.tmp")

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			m.AddPattern("extra.md")
		}()
		go func() {
			defer wg.Done()
			_ = m.Match(filepath.Join("dir", "f.tmp"), i%2 == 0)
		}()
	}
	wg.Wait()

	assert.True(t, m.Match("x.tmp", false))
}
