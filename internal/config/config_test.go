package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// isolate points user config lookups at an empty directory and clears env overrides.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, k := range []string{
		"TREEWATCH_DEBOUNCE", "TREEWATCH_SUFFIXES", "TREEWATCH_BACKEND", "TREEWATCH_RECURSIVE",
		"TREEWATCH_GITIGNORE", "TREEWATCH_LOG_LEVEL", "TREEWATCH_SOCKET", "TREEWATCH_PID", "TREEWATCH_JOURNAL",
	} {
		t.Setenv(k, "")
	}
}

func writeYAML(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "500ms", cfg.Watch.Debounce)
	assert.Equal(t, []string{".md"}, cfg.Watch.Suffixes)
	assert.Contains(t, cfg.Watch.Ignore, "**/.git/**")
	assert.True(t, cfg.IsRecursive())
	assert.Equal(t, "fsnotify", cfg.Watch.Backend)
	assert.False(t, cfg.JournalEnabled())
	assert.False(t, cfg.GitignoreEnabled())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.DaemonTimeout())
	assert.Equal(t, 168*time.Hour, cfg.JournalRetention())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Watch, cfg.Watch)
}

func TestLoad_Precedence(t *testing.T) {
	// Given: user config, project config and env all setting values
	isolate(t)
	writeYAML(t, GetUserConfigPath(), `
watch:
  debounce: 2s
  backend: polling
  ignore: ["drafts/**"]
logging:
  level: warn
`)
	project := t.TempDir()
	writeYAML(t, filepath.Join(project, ".treewatch.yaml"), `
watch:
  debounce: 750ms
  recursive: false
`)
	t.Setenv("TREEWATCH_LOG_LEVEL", "debug")

	// When: loading
	cfg, err := Load(project)
	require.NoError(t, err)

	// Then: later layers win, untouched values survive, ignores accumulate
	assert.Equal(t, "750ms", cfg.Watch.Debounce)
	assert.Equal(t, "polling", cfg.Watch.Backend)
	assert.False(t, cfg.IsRecursive())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Contains(t, cfg.Watch.Ignore, "drafts/**")
	assert.Contains(t, cfg.Watch.Ignore, "**/.git/**")
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeYAML(t, filepath.Join(project, ".treewatch.yml"), "watch:\n  suffixes: [.txt]\n")

	cfg, err := Load(project)
	require.NoError(t, err)
	assert.Equal(t, []string{".txt"}, cfg.Watch.Suffixes)
	assert.Equal(t, filepath.Join(project, ".treewatch.yml"), ProjectConfigPath(project))
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("TREEWATCH_DEBOUNCE", "100ms")
	t.Setenv("TREEWATCH_SUFFIXES", ".md, .markdown")
	t.Setenv("TREEWATCH_RECURSIVE", "false")
	t.Setenv("TREEWATCH_GITIGNORE", "true")
	t.Setenv("TREEWATCH_SOCKET", "/tmp/tw.sock")
	t.Setenv("TREEWATCH_JOURNAL", "/tmp/tw.db")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "100ms", cfg.Watch.Debounce)
	assert.Equal(t, []string{".md", ".markdown"}, cfg.Watch.Suffixes)
	assert.False(t, cfg.IsRecursive())
	assert.True(t, cfg.GitignoreEnabled())
	assert.Equal(t, "/tmp/tw.sock", cfg.Daemon.SocketPath)
	assert.True(t, cfg.JournalEnabled())
	assert.Equal(t, "/tmp/tw.db", cfg.Journal.Path)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	project := t.TempDir()
	writeYAML(t, filepath.Join(project, ".treewatch.yaml"), "watch: [unclosed")

	_, err := Load(project)
	assert.Equal(t, errs.ErrCodeConfigInvalid, errs.GetCode(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero debounce", func(c *Config) { c.Watch.Debounce = "0s" }, false},
		{"garbage debounce", func(c *Config) { c.Watch.Debounce = "soon" }, false},
		{"bad poll", func(c *Config) { c.Watch.PollInterval = "-1s" }, false},
		{"bad backend", func(c *Config) { c.Watch.Backend = "kqueue" }, false},
		{"auto backend", func(c *Config) { c.Watch.Backend = "auto" }, true},
		{"bad pattern", func(c *Config) { c.Watch.Patterns = []string{"a/["} }, false},
		{"bad ignore", func(c *Config) { c.Watch.Ignore = append(c.Watch.Ignore, "[") }, false},
		{"bad timeout", func(c *Config) { c.Daemon.Timeout = "x" }, false},
		{"bad retention", func(c *Config) { c.Journal.Retention = "x" }, false},
		{"bad level", func(c *Config) { c.Logging.Level = "trace" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Equal(t, errs.ErrCodeConfigInvalid, errs.GetCode(err))
			}
		})
	}
}

func TestWatchOptions(t *testing.T) {
	cfg := NewConfig()
	cfg.Watch.Debounce = "250ms"
	cfg.Watch.Suffixes = []string{".md"}
	cfg.Watch.Patterns = []string{"docs/**"}
	cfg.Watch.Recursive = boolPtr(false)
	cfg.Watch.Backend = "polling"
	cfg.Watch.Gitignore = boolPtr(true)

	opts, err := cfg.WatchOptions()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, opts.DebounceWindow)
	assert.True(t, opts.NonRecursive)
	assert.True(t, opts.Gitignore)
	assert.Equal(t, watcher.BackendPolling, opts.Backend)
	assert.True(t, opts.Filter.Match("docs/a.md"))
	assert.False(t, opts.Filter.Match("src/a.md"))
	assert.False(t, opts.Filter.Match("docs/a.txt"))
	assert.NoError(t, opts.Validate())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	isolate(t)
	cfg := NewConfig()
	cfg.Watch.Debounce = "1s"
	path := filepath.Join(t.TempDir(), "nested", ".treewatch.yaml")

	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(filepath.Dir(path))
	require.NoError(t, err)
	assert.Equal(t, "1s", loaded.Watch.Debounce)
}
