package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/treewatch/internal/config"
	"github.com/Aman-CERP/treewatch/internal/journal"
	"github.com/Aman-CERP/treewatch/internal/notify"
	"github.com/Aman-CERP/treewatch/internal/ui"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

type watchFlags struct {
	debounce    string
	suffixes    []string
	patterns    []string
	ignore      []string
	noRecursive bool
	gitignore   bool
	backend     string
	journal     string
	record      bool
	tui         bool
	json        bool
}

func newWatchCmd() *cobra.Command {
	var f watchFlags

	cmd := &cobra.Command{
		Use:   "watch [dir...]",
		Short: "Watch directories in the foreground",
		Long: `Watch one or more directory trees and print a notification each time
a burst of changes settles. Only files matching the configured suffixes
(default .md) are reported.

With no directory, the current project is watched (see 'treewatch
project set'), falling back to the working directory.

Examples:
  treewatch watch                       # current project or directory
  treewatch watch ~/notes ~/docs --tui  # live dashboard
  treewatch watch --suffix .txt --json  # JSON lines for scripts
  treewatch watch --journal notes.db    # record notifications in notes.db
  treewatch watch --record              # record in the configured journal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{defaultWatchDir()}
			}
			return runWatch(cmd.Context(), cmd, args, f)
		},
	}

	cmd.Flags().StringVar(&f.debounce, "debounce", "", "Quiet period before a notification (e.g. 500ms)")
	cmd.Flags().StringSliceVar(&f.suffixes, "suffix", nil, "File suffix to report (repeatable)")
	cmd.Flags().StringSliceVar(&f.patterns, "pattern", nil, "Glob a path must also match (repeatable)")
	cmd.Flags().StringSliceVar(&f.ignore, "ignore", nil, "Glob of paths to ignore (repeatable)")
	cmd.Flags().BoolVar(&f.noRecursive, "no-recursive", false, "Watch only the top-level directory")
	cmd.Flags().BoolVar(&f.gitignore, "gitignore", false, "Also skip paths matched by each root's .gitignore")
	cmd.Flags().StringVar(&f.backend, "backend", "", "Event source: fsnotify, polling or auto")
	cmd.Flags().StringVar(&f.journal, "journal", "", "Record notifications in this journal database")
	cmd.Flags().BoolVar(&f.record, "record", false, "Record notifications in the configured journal")
	cmd.Flags().BoolVar(&f.tui, "tui", false, "Show a live dashboard")
	cmd.Flags().BoolVar(&f.json, "json", false, "Print notifications as JSON lines")
	cmd.MarkFlagsMutuallyExclusive("tui", "json")

	return cmd
}

// apply overlays flags on cfg.
func (f watchFlags) apply(cfg *config.Config) {
	if f.debounce != "" {
		cfg.Watch.Debounce = f.debounce
	}
	if len(f.suffixes) > 0 {
		cfg.Watch.Suffixes = f.suffixes
	}
	if len(f.patterns) > 0 {
		cfg.Watch.Patterns = f.patterns
	}
	cfg.Watch.Ignore = append(cfg.Watch.Ignore, f.ignore...)
	if f.noRecursive {
		recursive := false
		cfg.Watch.Recursive = &recursive
	}
	if f.gitignore {
		gitignore := true
		cfg.Watch.Gitignore = &gitignore
	}
	if f.backend != "" {
		cfg.Watch.Backend = f.backend
	}
	if f.journal != "" || f.record {
		enabled := true
		cfg.Journal.Enabled = &enabled
	}
	if f.journal != "" {
		cfg.Journal.Path = f.journal
	}
}

func runWatch(ctx context.Context, cmd *cobra.Command, dirs []string, f watchFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	f.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	opts, err := cfg.WatchOptions()
	if err != nil {
		return err
	}
	opts.Logger = slog.Default()

	out := cmd.OutOrStdout()
	var renderer ui.Renderer
	if f.json {
		renderer = newJSONRenderer(out)
	} else {
		renderer = ui.NewRenderer(ui.NewConfig(out, ui.WithForcePlain(!f.tui), ui.WithTheme(savedTheme())))
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	sinks := []watcher.Sink{ui.Sink(renderer)}
	if cfg.JournalEnabled() {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return err
		}
		defer func() { _ = j.Close() }()
		sinks = append(sinks, j)
	}

	roots, err := canonicalRoots(dirs)
	if err != nil {
		return err
	}
	sinks = append(sinks, failureTracker(len(roots), cancel))

	registry := watcher.NewRegistry(notify.Multi(sinks...), opts)
	defer func() { _ = registry.Close() }()

	if err := renderer.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = renderer.Stop() }()

	for _, root := range roots {
		if _, err := registry.Start(root); err != nil {
			return err
		}
		renderer.Watching(root)
		slog.Debug("watch started", slog.String("root", root))
	}

	var done <-chan struct{}
	if d, ok := renderer.(interface{ Done() <-chan struct{} }); ok {
		done = d.Done()
	}

	select {
	case <-ctx.Done():
	case <-done:
	}

	if err := registry.Close(); err != nil {
		return err
	}
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// defaultWatchDir returns the current project, or "." when none is set.
func defaultWatchDir() string {
	store, err := stateStore()
	if err != nil {
		return "."
	}
	st, err := store.Load()
	if err != nil || st.CurrentProject == "" {
		return "."
	}
	return st.CurrentProject
}

func savedTheme() string {
	store, err := stateStore()
	if err != nil {
		return ""
	}
	theme, err := store.Theme()
	if err != nil {
		slog.Debug("failed to read theme", slog.String("error", err.Error()))
		return ""
	}
	return theme
}

// canonicalRoots resolves dirs and drops duplicates, keeping order.
func canonicalRoots(dirs []string) ([]string, error) {
	seen := make(map[string]bool, len(dirs))
	roots := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		root, err := watcher.Canonicalize(dir)
		if err != nil {
			return nil, err
		}
		if !seen[root] {
			seen[root] = true
			roots = append(roots, root)
		}
	}
	return roots, nil
}

// failureTracker cancels the command once every root has failed.
func failureTracker(roots int, cancel context.CancelCauseFunc) watcher.Sink {
	var (
		mu     sync.Mutex
		failed = make(map[string]bool)
	)
	return watcher.SinkFunc(func(_ context.Context, n watcher.Notification) error {
		if n.Kind != watcher.KindFailed {
			return nil
		}
		mu.Lock()
		defer mu.Unlock()
		failed[n.Root] = true
		if len(failed) >= roots {
			cancel(fmt.Errorf("all watches failed, last: %s: %s", n.Root, n.Reason))
		}
		return nil
	})
}

// jsonRenderer prints one JSON notification per line.
type jsonRenderer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONRenderer(w io.Writer) *jsonRenderer {
	return &jsonRenderer{enc: json.NewEncoder(w)}
}

func (r *jsonRenderer) Start(context.Context) error { return nil }
func (r *jsonRenderer) Watching(string)             {}
func (r *jsonRenderer) Stop() error                 { return nil }

func (r *jsonRenderer) Notify(n watcher.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.enc.Encode(n)
}
