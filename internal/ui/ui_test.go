package ui

import (
	"bytes"
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	buf := &bytes.Buffer{}

	// When: creating config with no options
	cfg := NewConfig(buf)

	// Then: title is set and NO_COLOR is honored even when empty
	assert.Equal(t, "treewatch", cfg.Title)
	assert.True(t, cfg.NoColor)
	assert.False(t, cfg.ForcePlain)
}

func TestNewConfig_Options(t *testing.T) {
	// When: creating config with options
	cfg := NewConfig(&bytes.Buffer{}, WithForcePlain(true), WithNoColor(true), WithTitle("notes"), WithTheme("dark"))

	// Then: options are applied
	assert.True(t, cfg.ForcePlain)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, "notes", cfg.Title)
	assert.Equal(t, "dark", cfg.Theme)
}

func TestThemeStyles(t *testing.T) {
	// Then: light and dark differ, and no-color wins over either
	assert.Equal(t, LightStyles(), ThemeStyles("light", false))
	assert.Equal(t, DefaultStyles(), ThemeStyles("dark", false))
	assert.Equal(t, DefaultStyles(), ThemeStyles("", false))
	assert.Equal(t, NoColorStyles(), ThemeStyles("light", true))
	assert.NotEqual(t, LightStyles(), DefaultStyles())
}

func TestNewRenderer_NonTTYIsPlain(t *testing.T) {
	// Given: a buffer, which is never a terminal
	cfg := NewConfig(&bytes.Buffer{})

	// When: selecting a renderer
	r := NewRenderer(cfg)

	// Then: the plain renderer is used
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok)
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	require.NoError(t, os.Unsetenv("NO_COLOR"))
	t.Setenv("CLICOLOR_FORCE", "")

	t.Setenv("CLICOLOR", "1")
	assert.False(t, DetectNoColor())

	t.Setenv("CLICOLOR", "0")
	assert.True(t, DetectNoColor())

	t.Setenv("CLICOLOR", "1")
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestSink_ForwardsToRenderer(t *testing.T) {
	// Given: a plain renderer wrapped as a sink
	buf := &bytes.Buffer{}
	sink := Sink(NewPlainRenderer(NewConfig(buf, WithNoColor(true))))

	// When: delivering a notification
	err := sink.Deliver(context.Background(), watcher.Notification{
		Kind:  watcher.KindChanged,
		Root:  "/notes",
		Paths: []string{"/notes/a.md"},
	})

	// Then: the renderer printed it
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "/notes/a.md")
}

func TestNewTUIRenderer_ErrorsForNonTTY(t *testing.T) {
	// When: creating a TUI renderer on a buffer
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	// Then: it refuses
	assert.Error(t, err)
	assert.Nil(t, r)
}
