package watcher

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
)

// Op is a bitmask of raw filesystem operations.
type Op uint8

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Op = 1 << iota
	// OpWrite indicates an existing file was modified.
	OpWrite
	// OpRemove indicates a file or directory was deleted.
	OpRemove
	// OpRename indicates a file or directory was renamed away.
	OpRename
	// OpChmod indicates a metadata change.
	OpChmod
)

// String returns a human-readable representation of the operation.
func (op Op) String() string {
	if op == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range []struct {
		op   Op
		name string
	}{
		{OpCreate, "CREATE"},
		{OpWrite, "WRITE"},
		{OpRemove, "REMOVE"},
		{OpRename, "RENAME"},
		{OpChmod, "CHMOD"},
	} {
		if op&n.op != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool { return op&o != 0 }

// RawEvent is a single undebounced change reported by a Source.
type RawEvent struct {
	// Path is absolute and rooted at the watch root.
	Path string
	Op   Op
}

// Source is an attached raw event producer for one watch root.
type Source interface {
	// Events is closed when the source stops producing.
	Events() <-chan RawEvent

	// Errors carries non-terminal source errors. Closed with Events.
	Errors() <-chan error

	// Close releases every OS resource held by the source. It returns only
	// after the source goroutines have exited and is safe to call twice.
	Close() error
}

// SourceOptions are passed to a SourceFactory when a watch attaches.
type SourceOptions struct {
	Recursive bool

	// Visible reports whether a root-relative path is outside the ignore
	// set. Directories it rejects are not descended into.
	Visible Filter

	PollInterval time.Duration
	Buffer       int
	Logger       *slog.Logger
}

// SourceFactory attaches a Source to root. Errors should be *errors.Error
// values from the filesystem family so Start can report them unchanged.
type SourceFactory func(root string, opts SourceOptions) (Source, error)

// Backend selects the raw event source implementation.
type Backend string

const (
	// BackendFsnotify uses OS notifications and fails Start when they are unavailable.
	BackendFsnotify Backend = "fsnotify"
	// BackendPolling periodically rescans the tree.
	BackendPolling Backend = "polling"
	// BackendAuto tries fsnotify and falls back to polling on attach failure.
	BackendAuto Backend = "auto"
)

// Options configures every watch started by a Registry.
type Options struct {
	// DebounceWindow is the quiet period after the last raw event before a
	// flush. Default: 500ms
	DebounceWindow time.Duration

	// NonRecursive limits a watch to the root directory itself.
	NonRecursive bool

	// Filter selects which changed paths are delivered. It receives the
	// slash-separated path relative to the watch root. Default: SuffixFilter(".md")
	Filter Filter

	// Ignore excludes paths from delivery and keeps the source from
	// descending into matching directories. Default: DefaultIgnores()
	Ignore []string

	// Gitignore also excludes paths matched by the root's .gitignore and
	// .git/info/exclude, read once when the watch starts.
	Gitignore bool

	// Backend selects the raw event source. Default: BackendFsnotify
	Backend Backend

	// PollInterval is the rescan interval of the polling backend.
	// Default: 2s
	PollInterval time.Duration

	// EventBufferSize is the buffer of the source event channel.
	// Default: 1000
	EventBufferSize int

	// Inspector answers existence checks at Start. Default: the OS.
	Inspector Inspector

	// NewSource overrides backend selection. Used by tests and embedders.
	NewSource SourceFactory

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns the default watch options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		Filter:          SuffixFilter(".md"),
		Ignore:          DefaultIgnores(),
		Backend:         BackendFsnotify,
		PollInterval:    2 * time.Second,
		EventBufferSize: 1000,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.Filter == nil {
		o.Filter = defaults.Filter
	}
	if o.Ignore == nil {
		o.Ignore = defaults.Ignore
	}
	if o.Backend == "" {
		o.Backend = defaults.Backend
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if o.Inspector == nil {
		o.Inspector = osInspector{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Validate validates the options and returns an error if invalid.
func (o Options) Validate() error {
	if o.DebounceWindow < 0 {
		return errs.ValidationError(fmt.Sprintf("debounce window must not be negative, got %s", o.DebounceWindow), nil)
	}
	if o.PollInterval < 0 {
		return errs.ValidationError(fmt.Sprintf("poll interval must not be negative, got %s", o.PollInterval), nil)
	}
	switch o.Backend {
	case "", BackendFsnotify, BackendPolling, BackendAuto:
	default:
		return errs.ValidationError(fmt.Sprintf("unknown backend %q", o.Backend), nil).
			WithSuggestion("use fsnotify, polling or auto")
	}
	return ValidatePatterns(o.Ignore)
}
