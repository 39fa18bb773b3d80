package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// Multi delivers to each sink in turn. Every sink is tried; errors are joined.
func Multi(sinks ...watcher.Sink) watcher.Sink {
	var list []watcher.Sink
	for _, s := range sinks {
		if s != nil {
			list = append(list, s)
		}
	}
	return watcher.SinkFunc(func(ctx context.Context, n watcher.Notification) error {
		var errs []error
		for _, s := range list {
			if err := s.Deliver(ctx, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// NewLogSink logs every notification.
func NewLogSink(logger *slog.Logger) watcher.Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return watcher.SinkFunc(func(_ context.Context, n watcher.Notification) error {
		switch n.Kind {
		case watcher.KindFailed:
			logger.Error("watch failed",
				slog.String("root", n.Root),
				slog.Uint64("id", uint64(n.WatchID)),
				slog.String("code", n.Code),
				slog.String("reason", n.Reason))
		default:
			logger.Info("files changed",
				slog.String("root", n.Root),
				slog.Uint64("id", uint64(n.WatchID)),
				slog.Int("count", len(n.Paths)),
				slog.Any("paths", n.Paths))
		}
		return nil
	})
}
