// Package config loads treewatch configuration from defaults, the user
// config file, a project config file and TREEWATCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// Config is the top-level configuration document.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
	Daemon  DaemonConfig  `yaml:"daemon" json:"daemon"`
	Journal JournalConfig `yaml:"journal" json:"journal"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// WatchConfig configures every watch.
type WatchConfig struct {
	// Debounce is the quiet period, e.g. "500ms".
	Debounce string `yaml:"debounce" json:"debounce"`

	// Suffixes select changed files by name suffix.
	Suffixes []string `yaml:"suffixes" json:"suffixes"`

	// Patterns are doublestar globs, relative to the watch root. When set
	// a path must match a suffix and a pattern.
	Patterns []string `yaml:"patterns,omitempty" json:"patterns,omitempty"`

	// Ignore are doublestar globs for paths that are never reported.
	Ignore []string `yaml:"ignore" json:"ignore"`

	// Recursive is a pointer so an explicit false survives merging.
	Recursive *bool `yaml:"recursive" json:"recursive"`

	// Gitignore also skips paths matched by the root's .gitignore.
	Gitignore *bool `yaml:"gitignore,omitempty" json:"gitignore,omitempty"`

	// Backend is fsnotify, polling or auto.
	Backend string `yaml:"backend" json:"backend"`

	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// DaemonConfig configures the background daemon.
type DaemonConfig struct {
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	PIDPath    string `yaml:"pid_path" json:"pid_path"`
	Timeout    string `yaml:"timeout" json:"timeout"`
}

// JournalConfig configures the notification journal.
type JournalConfig struct {
	Enabled   *bool  `yaml:"enabled" json:"enabled"`
	Path      string `yaml:"path" json:"path"`
	Retention string `yaml:"retention" json:"retention"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

func boolPtr(b bool) *bool { return &b }

// DataDir returns ~/.treewatch, where runtime files live.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".treewatch")
	}
	return filepath.Join(home, ".treewatch")
}

// NewConfig returns a Config with every default applied.
func NewConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Version: 1,
		Watch: WatchConfig{
			Debounce:     "500ms",
			Suffixes:     []string{".md"},
			Ignore:       watcher.DefaultIgnores(),
			Recursive:    boolPtr(true),
			Backend:      string(watcher.BackendFsnotify),
			PollInterval: "2s",
		},
		Daemon: DaemonConfig{
			SocketPath: filepath.Join(dataDir, "daemon.sock"),
			PIDPath:    filepath.Join(dataDir, "daemon.pid"),
			Timeout:    "5s",
		},
		Journal: JournalConfig{
			Enabled:   boolPtr(false),
			Path:      filepath.Join(dataDir, "journal.db"),
			Retention: "168h",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/treewatch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/treewatch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "treewatch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "treewatch", "config.yaml")
	}
	return filepath.Join(home, ".config", "treewatch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	_, err := os.Stat(GetUserConfigPath())
	return err == nil
}

// Load loads configuration for dir. Precedence, lowest first:
//  1. Defaults
//  2. User config (~/.config/treewatch/config.yaml)
//  3. Project config (.treewatch.yaml in dir)
//  4. Environment variables (TREEWATCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if UserConfigExists() {
		if err := cfg.loadYAML(GetUserConfigPath()); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ProjectConfigPath returns the project config file in dir, or "" if none.
func ProjectConfigPath(dir string) string {
	for _, name := range []string{".treewatch.yaml", ".treewatch.yml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) loadFromFile(dir string) error {
	if p := ProjectConfigPath(dir); p != "" {
		return c.loadYAML(p)
	}
	return nil
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.New(errs.ErrCodeConfigNotFound, "read config file "+path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return errs.ConfigError("parse config file "+path, err)
	}
	c.mergeWith(&parsed)
	return nil
}

// mergeWith copies set values from other into c. Ignore patterns are
// appended to the defaults rather than replacing them.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	w := other.Watch
	if w.Debounce != "" {
		c.Watch.Debounce = w.Debounce
	}
	if len(w.Suffixes) > 0 {
		c.Watch.Suffixes = w.Suffixes
	}
	if len(w.Patterns) > 0 {
		c.Watch.Patterns = w.Patterns
	}
	for _, p := range w.Ignore {
		if !contains(c.Watch.Ignore, p) {
			c.Watch.Ignore = append(c.Watch.Ignore, p)
		}
	}
	if w.Recursive != nil {
		c.Watch.Recursive = w.Recursive
	}
	if w.Gitignore != nil {
		c.Watch.Gitignore = w.Gitignore
	}
	if w.Backend != "" {
		c.Watch.Backend = w.Backend
	}
	if w.PollInterval != "" {
		c.Watch.PollInterval = w.PollInterval
	}

	if other.Daemon.SocketPath != "" {
		c.Daemon.SocketPath = other.Daemon.SocketPath
	}
	if other.Daemon.PIDPath != "" {
		c.Daemon.PIDPath = other.Daemon.PIDPath
	}
	if other.Daemon.Timeout != "" {
		c.Daemon.Timeout = other.Daemon.Timeout
	}

	if other.Journal.Enabled != nil {
		c.Journal.Enabled = other.Journal.Enabled
	}
	if other.Journal.Path != "" {
		c.Journal.Path = other.Journal.Path
	}
	if other.Journal.Retention != "" {
		c.Journal.Retention = other.Journal.Retention
	}

	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}
}

// applyEnvOverrides applies TREEWATCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TREEWATCH_DEBOUNCE"); v != "" {
		c.Watch.Debounce = v
	}
	if v := os.Getenv("TREEWATCH_SUFFIXES"); v != "" {
		c.Watch.Suffixes = splitList(v)
	}
	if v := os.Getenv("TREEWATCH_BACKEND"); v != "" {
		c.Watch.Backend = v
	}
	if v := os.Getenv("TREEWATCH_RECURSIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch.Recursive = boolPtr(b)
		}
	}
	if v := os.Getenv("TREEWATCH_GITIGNORE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Watch.Gitignore = boolPtr(b)
		}
	}
	if v := os.Getenv("TREEWATCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TREEWATCH_SOCKET"); v != "" {
		c.Daemon.SocketPath = v
	}
	if v := os.Getenv("TREEWATCH_PID"); v != "" {
		c.Daemon.PIDPath = v
	}
	// Setting a journal path implies the journal is wanted.
	if v := os.Getenv("TREEWATCH_JOURNAL"); v != "" {
		c.Journal.Path = v
		c.Journal.Enabled = boolPtr(true)
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if d, err := time.ParseDuration(c.Watch.Debounce); err != nil || d <= 0 {
		return errs.ConfigError(fmt.Sprintf("watch.debounce must be a positive duration, got %q", c.Watch.Debounce), err)
	}
	if d, err := time.ParseDuration(c.Watch.PollInterval); err != nil || d <= 0 {
		return errs.ConfigError(fmt.Sprintf("watch.poll_interval must be a positive duration, got %q", c.Watch.PollInterval), err)
	}
	switch watcher.Backend(c.Watch.Backend) {
	case watcher.BackendFsnotify, watcher.BackendPolling, watcher.BackendAuto:
	default:
		return errs.ConfigError(fmt.Sprintf("watch.backend must be 'fsnotify', 'polling' or 'auto', got %q", c.Watch.Backend), nil)
	}
	if err := watcher.ValidatePatterns(c.Watch.Patterns); err != nil {
		return errs.ConfigError("watch.patterns: "+err.Error(), err)
	}
	if err := watcher.ValidatePatterns(c.Watch.Ignore); err != nil {
		return errs.ConfigError("watch.ignore: "+err.Error(), err)
	}
	if _, err := time.ParseDuration(c.Daemon.Timeout); err != nil {
		return errs.ConfigError(fmt.Sprintf("daemon.timeout must be a duration, got %q", c.Daemon.Timeout), err)
	}
	if c.Journal.Retention != "" {
		if _, err := time.ParseDuration(c.Journal.Retention); err != nil {
			return errs.ConfigError(fmt.Sprintf("journal.retention must be a duration, got %q", c.Journal.Retention), err)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return errs.ConfigError(fmt.Sprintf("logging.level must be 'debug', 'info', 'warn', or 'error', got %q", c.Logging.Level), nil)
	}
	return nil
}

// IsRecursive reports the effective recursive setting.
func (c *Config) IsRecursive() bool {
	return c.Watch.Recursive == nil || *c.Watch.Recursive
}

// GitignoreEnabled reports whether .gitignore rules apply. Off by default.
func (c *Config) GitignoreEnabled() bool {
	return c.Watch.Gitignore != nil && *c.Watch.Gitignore
}

// JournalEnabled reports the effective journal setting.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled != nil && *c.Journal.Enabled
}

// DaemonTimeout returns the parsed daemon timeout, defaulting to 5s.
func (c *Config) DaemonTimeout() time.Duration {
	d, err := time.ParseDuration(c.Daemon.Timeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}

// JournalRetention returns the parsed retention, or 0 when unset.
func (c *Config) JournalRetention() time.Duration {
	d, _ := time.ParseDuration(c.Journal.Retention)
	return d
}

// WatchOptions translates the watch section into registry options.
func (c *Config) WatchOptions() (watcher.Options, error) {
	opts := watcher.DefaultOptions()

	debounce, err := time.ParseDuration(c.Watch.Debounce)
	if err != nil {
		return opts, errs.ConfigError("watch.debounce", err)
	}
	poll, err := time.ParseDuration(c.Watch.PollInterval)
	if err != nil {
		return opts, errs.ConfigError("watch.poll_interval", err)
	}
	glob, err := watcher.GlobFilter(c.Watch.Patterns...)
	if err != nil {
		return opts, err
	}

	opts.DebounceWindow = debounce
	opts.PollInterval = poll
	opts.Backend = watcher.Backend(c.Watch.Backend)
	opts.NonRecursive = !c.IsRecursive()
	opts.Gitignore = c.GitignoreEnabled()
	opts.Ignore = append([]string{}, c.Watch.Ignore...)
	opts.Filter = watcher.AllOf(watcher.SuffixFilter(c.Watch.Suffixes...), glob)
	return opts, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
