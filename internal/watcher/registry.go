package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/gitignore"
)

// WatchInfo describes a live watch.
type WatchInfo struct {
	ID        WatchID   `json:"id"`
	Root      string    `json:"root"`
	Backend   Backend   `json:"backend"`
	StartedAt time.Time `json:"started_at"`
	Flushes   uint64    `json:"flushes"`
	Delivered uint64    `json:"delivered"`
}

// Registry maps canonical root paths to running watches. At most one watch
// exists per canonical path. The zero value is not usable; call NewRegistry.
type Registry struct {
	sink    Sink
	opts    Options
	visible Filter
	filter  Filter
	logger  *slog.Logger

	mu      sync.Mutex
	watches map[string]*watch
	nextID  WatchID
	closed  bool
}

// NewRegistry creates a registry delivering to sink. Options are validated by
// Start, so an invalid ignore pattern surfaces from the first Start call.
func NewRegistry(sink Sink, opts Options) *Registry {
	if sink == nil {
		sink = Discard
	}
	opts = opts.WithDefaults()

	r := &Registry{
		sink:    sink,
		opts:    opts,
		logger:  opts.Logger.With(slog.String("component", "watcher")),
		watches: make(map[string]*watch),
	}
	if visible, err := IgnoreFilter(opts.Ignore...); err == nil {
		r.visible = visible
		r.filter = AllOf(visible, opts.Filter)
	}
	return r
}

// Start begins watching root and returns the watch ID. Starting a root that
// is already watched returns the existing ID without attaching again.
func (r *Registry) Start(root string) (WatchID, error) {
	if err := r.opts.Validate(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, errs.New(errs.ErrCodeRegistryClosed, "registry is closed", nil)
	}

	canonical, err := validateRoot(r.opts.Inspector, root)
	if err != nil {
		return 0, err
	}

	if w, ok := r.watches[canonical]; ok {
		if w.alive() {
			return w.id, nil
		}
		delete(r.watches, canonical)
	}

	visible, filter, err := r.filtersFor(canonical)
	if err != nil {
		return 0, err
	}

	src, backend, err := r.attach(canonical, visible)
	if err != nil {
		r.logger.Warn("failed to start watch",
			slog.String("root", canonical),
			slog.String("error", err.Error()))
		return 0, err
	}

	r.nextID++
	ctx, cancel := context.WithCancel(context.Background())
	w := &watch{
		id:        r.nextID,
		root:      canonical,
		backend:   backend,
		startedAt: time.Now(),
		src:       src,
		sink:      r.sink,
		filter:    filter,
		window:    r.opts.DebounceWindow,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    r.logger.With(slog.String("root", canonical)),
		forget:    r.forget,
	}
	r.watches[canonical] = w
	go w.run(ctx)

	r.logger.Info("watch started",
		slog.String("root", canonical),
		slog.Uint64("id", uint64(w.id)),
		slog.String("backend", string(backend)))
	return w.id, nil
}

// Stop ends the watch on root. It returns only after the source has been
// released and the watch goroutine has exited, so no notification for this
// watch is delivered afterwards. An untracked root yields a NotWatching error.
func (r *Registry) Stop(root string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.lookupLocked(root)
	if w == nil {
		return errs.NotWatching(root)
	}
	delete(r.watches, w.root)
	if !w.alive() {
		return errs.NotWatching(w.root)
	}

	err := w.shutdown()
	r.logger.Info("watch stopped",
		slog.String("root", w.root),
		slog.Uint64("id", uint64(w.id)))
	return err
}

// StopAll stops every watch concurrently and waits for all of them.
func (r *Registry) StopAll() error {
	r.mu.Lock()
	ws := make([]*watch, 0, len(r.watches))
	for _, w := range r.watches {
		ws = append(ws, w)
	}
	clear(r.watches)
	r.mu.Unlock()

	var g errgroup.Group
	for _, w := range ws {
		g.Go(w.shutdown)
	}
	err := g.Wait()
	if len(ws) > 0 {
		r.logger.Info("all watches stopped", slog.Int("count", len(ws)))
	}
	return err
}

// Close stops every watch and rejects later Start calls.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.StopAll()
}

// Watches lists live watches sorted by root.
func (r *Registry) Watches() []WatchInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]WatchInfo, 0, len(r.watches))
	for _, w := range r.watches {
		if w.alive() {
			out = append(out, w.info())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Root < out[j].Root })
	return out
}

// Lookup returns the live watch for root, if any.
func (r *Registry) Lookup(root string) (WatchInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w := r.lookupLocked(root)
	if w == nil || !w.alive() {
		return WatchInfo{}, false
	}
	return w.info(), true
}

// lookupLocked finds the watch for root by canonical path, falling back to
// the cleaned absolute path when root no longer resolves.
func (r *Registry) lookupLocked(root string) *watch {
	if canonical, err := Canonicalize(root); err == nil {
		if w, ok := r.watches[canonical]; ok {
			return w
		}
	}
	if abs, err := filepath.Abs(root); err == nil {
		if w, ok := r.watches[filepath.Clean(abs)]; ok {
			return w
		}
	}
	return nil
}

// forget drops a watch that ended on its own. It runs on its own goroutine
// because Stop may hold mu while waiting for that watch to finish.
func (r *Registry) forget(w *watch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.watches[w.root]; ok && cur == w {
		delete(r.watches, w.root)
	}
}

// filtersFor returns the source and delivery filters for root.
func (r *Registry) filtersFor(root string) (visible, filter Filter, err error) {
	if !r.opts.Gitignore {
		return r.visible, r.filter, nil
	}
	m, err := gitignore.Load(root)
	if err != nil {
		return nil, nil, errs.New(errs.ErrCodeInvalidPattern, "read .gitignore in "+root, err).
			WithDetail("path", root)
	}
	if m.Len() == 0 {
		return r.visible, r.filter, nil
	}
	tracked := FilterFunc(func(rel string) bool {
		return !m.Ignored(rel, func() bool {
			info, err := os.Lstat(filepath.Join(root, filepath.FromSlash(rel)))
			return err == nil && info.IsDir()
		})
	})
	visible = AllOf(r.visible, tracked)
	return visible, AllOf(visible, r.opts.Filter), nil
}

func (r *Registry) attach(root string, visible Filter) (Source, Backend, error) {
	sopts := SourceOptions{
		Recursive:    !r.opts.NonRecursive,
		Visible:      visible,
		PollInterval: r.opts.PollInterval,
		Buffer:       r.opts.EventBufferSize,
		Logger:       r.logger,
	}

	if r.opts.NewSource != nil {
		src, err := r.opts.NewSource(root, sopts)
		if err != nil {
			return nil, "", classifyAttachError(root, err)
		}
		return src, r.opts.Backend, nil
	}

	switch r.opts.Backend {
	case BackendPolling:
		src, err := NewPollingSource(root, sopts)
		return src, BackendPolling, err
	case BackendAuto:
		src, err := NewFsnotifySource(root, sopts)
		if err == nil {
			return src, BackendFsnotify, nil
		}
		r.logger.Warn("fsnotify unavailable, falling back to polling",
			slog.String("root", root),
			slog.String("error", err.Error()))
		src, err = NewPollingSource(root, sopts)
		return src, BackendPolling, err
	default:
		src, err := NewFsnotifySource(root, sopts)
		return src, BackendFsnotify, err
	}
}
