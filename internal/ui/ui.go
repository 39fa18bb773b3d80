// Package ui renders live watch activity and daemon status in the terminal.
//
// Interactive terminals get a bubbletea dashboard; pipes, CI and --no-color
// runs get one plain line per notification.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// Renderer displays watch activity.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// Watching announces a root that is now watched.
	Watching(root string)

	// Notify displays one notification.
	Notify(n watcher.Notification)

	// Stop stops the renderer and restores the terminal.
	Stop() error
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Title is shown in the dashboard header.
	Title string
	// Theme picks the dashboard palette: "light" or "dark".
	Theme string
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) { c.ForcePlain = force }
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) { c.NoColor = noColor }
}

// WithTitle sets the dashboard header.
func WithTitle(title string) ConfigOption {
	return func(c *Config) { c.Title = title }
}

// WithTheme sets the dashboard palette.
func WithTheme(theme string) ConfigOption {
	return func(c *Config) { c.Theme = theme }
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output, Title: "treewatch"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if DetectNoColor() {
		cfg.NoColor = true
	}
	return cfg
}

// NewRenderer returns the dashboard for interactive terminals and the plain
// renderer for pipes, CI, or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || !IsTTY(cfg.Output) || DetectCI() {
		return NewPlainRenderer(cfg)
	}
	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// Sink adapts a Renderer to a watcher.Sink.
func Sink(r Renderer) watcher.Sink {
	return watcher.SinkFunc(func(_ context.Context, n watcher.Notification) error {
		r.Notify(n)
		return nil
	})
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether the environment asks for plain output:
// NO_COLOR set to anything, or CLICOLOR=0 without CLICOLOR_FORCE.
func DetectNoColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return termenv.EnvNoColor()
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
