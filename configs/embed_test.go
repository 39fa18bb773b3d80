package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/treewatch/internal/config"
)

func TestTemplates_LoadAndValidate(t *testing.T) {
	// Given: both templates written where Load looks for them
	xdg := t.TempDir()
	project := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	for _, key := range []string{"TREEWATCH_DEBOUNCE", "TREEWATCH_SUFFIXES", "TREEWATCH_BACKEND",
		"TREEWATCH_RECURSIVE", "TREEWATCH_LOG_LEVEL", "TREEWATCH_SOCKET", "TREEWATCH_PID", "TREEWATCH_JOURNAL"} {
		t.Setenv(key, "")
	}

	userPath := filepath.Join(xdg, "treewatch", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte(UserConfigTemplate), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(project, ".treewatch.yaml"), []byte(ProjectConfigTemplate), 0o644))

	// When: loading configuration
	cfg, err := config.Load(project)

	// Then: the templates are valid and merge onto the defaults
	require.NoError(t, err)
	assert.Equal(t, "500ms", cfg.Watch.Debounce)
	assert.Equal(t, []string{".md"}, cfg.Watch.Suffixes)
	assert.Contains(t, cfg.Watch.Ignore, "**/build/**")
	assert.Contains(t, cfg.Watch.Ignore, "**/.git/**")
	assert.True(t, cfg.IsRecursive())
	assert.False(t, cfg.JournalEnabled())
}
