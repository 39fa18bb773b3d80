package watcher

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
)

// watch is one attached root. Its run goroutine is the only owner of the
// pending set and the debounce timer.
type watch struct {
	id        WatchID
	root      string
	backend   Backend
	startedAt time.Time

	src    Source
	sink   Sink
	filter Filter
	window time.Duration
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	forget func(*watch)

	releaseOnce sync.Once
	releaseErr  error

	flushes   atomic.Uint64
	delivered atomic.Uint64
}

func (w *watch) alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *watch) info() WatchInfo {
	return WatchInfo{
		ID:        w.id,
		Root:      w.root,
		Backend:   w.backend,
		StartedAt: w.startedAt,
		Flushes:   w.flushes.Load(),
		Delivered: w.delivered.Load(),
	}
}

// shutdown cancels the loop and waits until the source is released.
func (w *watch) shutdown() error {
	w.cancel()
	<-w.done
	return w.releaseErr
}

func (w *watch) release() {
	w.releaseOnce.Do(func() {
		w.releaseErr = w.src.Close()
		if w.releaseErr != nil {
			w.logger.Warn("failed to release source", slog.String("error", w.releaseErr.Error()))
		}
	})
}

// run is the debounce loop. Idle until the first raw event, accumulating
// until the window passes without events, then flush and back to idle.
func (w *watch) run(ctx context.Context) {
	defer close(w.done)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.window)
	timer.Stop()
	var fire <-chan time.Time

	events := w.src.Events()
	srcErrs := w.src.Errors()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.release()
			return

		case ev, ok := <-events:
			if !ok {
				w.fail(ctx, timer, errs.SourceFailure(w.root, errors.New("event stream closed")))
				return
			}
			if ctx.Err() != nil {
				continue
			}
			if ev.Path == w.root && ev.Op.Has(OpRemove|OpRename) {
				w.fail(ctx, timer, errs.SourceFailure(w.root, errors.New("watch root was removed")))
				return
			}
			pending[ev.Path] = struct{}{}
			timer.Reset(w.window)
			fire = timer.C

		case err, ok := <-srcErrs:
			if !ok {
				srcErrs = nil
				continue
			}
			if fatal := classifyRuntimeError(w.root, err); fatal != nil {
				w.fail(ctx, timer, fatal)
				return
			}
			w.logger.Warn("watch source error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			w.flush(ctx, pending)
			clear(pending)
		}
	}
}

// flush filters the pending set and delivers it if anything is left.
func (w *watch) flush(ctx context.Context, pending map[string]struct{}) {
	w.flushes.Add(1)

	paths := make([]string, 0, len(pending))
	for p := range pending {
		rel, err := filepath.Rel(w.root, p)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if w.filter.Match(filepath.ToSlash(rel)) {
			paths = append(paths, p)
		}
	}
	if len(paths) == 0 {
		w.logger.Debug("flush filtered out", slog.Int("pending", len(pending)))
		return
	}
	sort.Strings(paths)

	if ctx.Err() != nil {
		return
	}
	n := Notification{
		Kind:    KindChanged,
		WatchID: w.id,
		Root:    w.root,
		Paths:   paths,
		Time:    time.Now(),
	}
	if err := w.sink.Deliver(ctx, n); err != nil {
		w.logger.Warn("failed to deliver notification",
			slog.Int("paths", len(paths)),
			slog.String("error", err.Error()))
		return
	}
	w.delivered.Add(1)
	w.logger.Debug("changes delivered", slog.Int("paths", len(paths)))
}

// fail ends the watch after a terminal source error: release the source,
// report the failure unless the watch is already being stopped, and drop the
// registry entry.
func (w *watch) fail(ctx context.Context, timer *time.Timer, cause error) {
	timer.Stop()
	w.release()

	w.logger.Error("watch failed", errs.LogAttrs(cause)...)

	if ctx.Err() == nil {
		reason := cause.Error()
		var e *errs.Error
		if errors.As(cause, &e) {
			reason = e.Message
		}
		n := Notification{
			Kind:    KindFailed,
			WatchID: w.id,
			Root:    w.root,
			Code:    errs.GetCode(cause),
			Reason:  reason,
			Time:    time.Now(),
		}
		if err := w.sink.Deliver(ctx, n); err != nil {
			w.logger.Warn("failed to deliver failure notification", slog.String("error", err.Error()))
		}
	}

	if w.forget != nil {
		go w.forget(w)
	}
}
