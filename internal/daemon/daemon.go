package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/treewatch/internal/journal"
	"github.com/Aman-CERP/treewatch/internal/notify"
	"github.com/Aman-CERP/treewatch/internal/telemetry"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

const pruneInterval = time.Hour

// Daemon owns a watch registry and serves it over the socket.
type Daemon struct {
	cfg       Config
	watchOpts watcher.Options
	logger    *slog.Logger

	journalPath      string
	journalRetention time.Duration

	mu       sync.Mutex
	registry *watcher.Registry
	bus      *notify.Bus
	metrics  *telemetry.Metrics
	journal  *journal.Journal
	started  time.Time
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithWatchOptions sets the options every watch is started with.
func WithWatchOptions(opts watcher.Options) Option {
	return func(d *Daemon) { d.watchOpts = opts }
}

// WithJournal records every notification in the journal at path and prunes
// entries older than retention (0 keeps everything).
func WithJournal(path string, retention time.Duration) Option {
	return func(d *Daemon) {
		d.journalPath = path
		d.journalRetention = retention
	}
}

// WithLogger sets the daemon logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) { d.logger = logger }
}

// NewDaemon validates cfg and returns an unstarted daemon.
func NewDaemon(cfg Config, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	d := &Daemon{
		cfg:       cfg,
		watchOpts: watcher.DefaultOptions(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.watchOpts.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Run starts the daemon and blocks until ctx is cancelled. On the way out
// every watch is stopped before the socket and PID file are removed.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}

	lock, err := acquireInstanceLock(d.cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	pidFile := NewPIDFile(d.cfg.PIDPath)
	if err := pidFile.Write(); err != nil {
		return err
	}
	defer func() { _ = pidFile.Remove() }()

	if err := d.open(); err != nil {
		return err
	}
	defer d.close()

	server := NewServer(d.cfg.SocketPath, d, d.logger)
	if err := server.Listen(); err != nil {
		return err
	}

	d.logger.Info("daemon started",
		slog.Int("pid", os.Getpid()),
		slog.String("socket", d.cfg.SocketPath),
		slog.Bool("journal", d.journal != nil))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(gctx) })
	if d.journal != nil && d.journalRetention > 0 {
		g.Go(func() error { return d.pruneLoop(gctx) })
	}
	err = g.Wait()

	d.logger.Info("daemon stopping")
	return err
}

func (d *Daemon) open() error {
	var sinks []watcher.Sink

	bus := notify.NewBus(notify.BusOptions{Policy: notify.DropOnFull, Logger: d.logger})
	metrics := telemetry.New(telemetry.DefaultConfig())
	sinks = append(sinks, bus, metrics)

	var j *journal.Journal
	if d.journalPath != "" {
		var err error
		if j, err = journal.Open(d.journalPath); err != nil {
			bus.Close()
			return err
		}
		sinks = append(sinks, j)
	}
	sinks = append(sinks, notify.NewLogSink(d.logger))

	opts := d.watchOpts
	opts.Logger = d.logger

	d.mu.Lock()
	d.bus = bus
	d.metrics = metrics
	d.journal = j
	d.registry = watcher.NewRegistry(notify.Multi(sinks...), opts)
	d.started = time.Now()
	d.mu.Unlock()
	return nil
}

func (d *Daemon) close() {
	d.mu.Lock()
	registry, bus, j := d.registry, d.bus, d.journal
	d.mu.Unlock()

	if err := registry.Close(); err != nil {
		d.logger.Warn("stopping watches", slog.String("error", err.Error()))
	}
	bus.Close()
	if j != nil {
		_ = j.Close()
	}
}

func (d *Daemon) pruneLoop(ctx context.Context) error {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		d.prune(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (d *Daemon) prune(ctx context.Context) {
	n, err := d.journal.Prune(ctx, time.Now().Add(-d.journalRetention))
	if err != nil {
		d.logger.Warn("journal prune failed", slog.String("error", err.Error()))
		return
	}
	if n > 0 {
		d.logger.Debug("journal pruned", slog.Int64("removed", n))
	}
}

// StartWatch implements RequestHandler.
func (d *Daemon) StartWatch(path string) (StartResult, error) {
	id, err := d.registry.Start(path)
	if err != nil {
		return StartResult{}, err
	}
	root, err := watcher.Canonicalize(path)
	if err != nil {
		root = path
	}
	return StartResult{ID: id, Root: root}, nil
}

// StopWatch implements RequestHandler.
func (d *Daemon) StopWatch(path string) error {
	return d.registry.Stop(path)
}

// ListWatches implements RequestHandler.
func (d *Daemon) ListWatches() []watcher.WatchInfo {
	return d.registry.Watches()
}

// Subscribe implements RequestHandler.
func (d *Daemon) Subscribe(root string) (<-chan watcher.Notification, func()) {
	if root != "" {
		if canon, err := watcher.Canonicalize(root); err == nil {
			root = canon
		}
	}
	return d.bus.Subscribe(root)
}

// Status implements RequestHandler.
func (d *Daemon) Status() StatusResult {
	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(d.started).Round(time.Second).String(),
		Watches: len(d.registry.Watches()),
		Bus:     d.bus.Stats(),
		Metrics: d.metrics.Snapshot(),
	}
	if d.journal != nil {
		status.Journal = d.journal.Path()
	}
	return status
}
