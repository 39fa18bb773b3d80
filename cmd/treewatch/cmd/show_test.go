package cmd

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
)

func TestShowCmd_PrintsRawWhenNotATerminal(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "note.md")
	writeFile(t, path, "# Title\n\nBody\n")

	// When: showing into a buffer
	out, err := execute(t, "show", path)

	// Then: the file is printed unchanged
	require.NoError(t, err)
	assert.Equal(t, "# Title\n\nBody\n", out)
}

func TestShowCmd_MissingFile(t *testing.T) {
	home := isolate(t)

	_, err := execute(t, "show", filepath.Join(home, "missing.md"))

	assert.ErrorIs(t, err, errs.ErrPathNotFound)
}

func TestShowCmd_Directory(t *testing.T) {
	home := isolate(t)

	_, err := execute(t, "show", home)

	assert.Equal(t, errs.ErrCodeInvalidPath, errs.GetCode(err))
}

func TestMarkdownStyle(t *testing.T) {
	assert.Equal(t, "dark", markdownStyle("dark"))
	assert.Equal(t, "light", markdownStyle("light"))
	assert.Equal(t, "light", markdownStyle(""))
}

func TestRenderMarkdown(t *testing.T) {
	// When: rendering with the plain style
	out, err := renderMarkdown("# Heading\n\nSome *text* here.\n", "notty", 40)

	// Then: the text survives rendering
	require.NoError(t, err)
	assert.Contains(t, out, "Heading")
	assert.Contains(t, out, "text")
}
