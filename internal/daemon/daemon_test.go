package daemon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/journal"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// daemonTestConfig creates a test configuration with unique paths.
func daemonTestConfig(t *testing.T) Config {
	t.Helper()
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	socketPath := filepath.Join("/tmp", fmt.Sprintf("treewatch-daemon-test-%s.sock", suffix))
	pidPath := filepath.Join("/tmp", fmt.Sprintf("treewatch-daemon-test-%s.pid", suffix))

	t.Cleanup(func() {
		os.Remove(socketPath)
		os.Remove(pidPath)
		os.Remove(pidPath + ".lock")
	})

	return Config{
		SocketPath:          socketPath,
		PIDPath:             pidPath,
		Timeout:             5 * time.Second,
		ShutdownGracePeriod: 2 * time.Second,
	}
}

func fastWatchOptions() watcher.Options {
	opts := watcher.DefaultOptions()
	opts.DebounceWindow = 100 * time.Millisecond
	return opts
}

// runDaemon starts d and waits for it to answer pings.
func runDaemon(t *testing.T, d *Daemon, cfg Config) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		errCh <- d.Run(ctx)
		close(stopped)
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, NewClient(cfg).WaitReady(waitCtx))

	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
		}
	})
	return cancel, errCh
}

func canonicalDir(t *testing.T) string {
	t.Helper()
	dir, err := watcher.Canonicalize(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestNewDaemon_InvalidConfig(t *testing.T) {
	_, err := NewDaemon(Config{PIDPath: "/tmp/x.pid", Timeout: time.Second, ShutdownGracePeriod: time.Second})
	assert.Error(t, err)
}

func TestNewDaemon_InvalidWatchOptions(t *testing.T) {
	opts := watcher.DefaultOptions()
	opts.Ignore = []string{"["}

	_, err := NewDaemon(daemonTestConfig(t), WithWatchOptions(opts))
	assert.Equal(t, errs.ErrCodeInvalidPattern, errs.GetCode(err))
}

func TestDaemon_RunAndShutdown(t *testing.T) {
	cfg := daemonTestConfig(t)
	d, err := NewDaemon(cfg, WithWatchOptions(fastWatchOptions()))
	require.NoError(t, err)

	cancel, errCh := runDaemon(t, d, cfg)

	// While running: PID file names this process and the socket exists
	pf := NewPIDFile(cfg.PIDPath)
	assert.True(t, pf.IsRunning())
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}

	// After: socket and PID file are gone
	_, err = os.Stat(cfg.SocketPath)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(cfg.PIDPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDaemon_SecondInstanceRejected(t *testing.T) {
	cfg := daemonTestConfig(t)
	first, err := NewDaemon(cfg)
	require.NoError(t, err)
	runDaemon(t, first, cfg)

	second, err := NewDaemon(cfg)
	require.NoError(t, err)
	err = second.Run(context.Background())

	assert.Equal(t, errs.ErrCodeDaemonRunning, errs.GetCode(err))
	assert.True(t, NewClient(cfg).IsRunning(), "first daemon must keep serving")
}

func TestDaemon_StalePIDReplaced(t *testing.T) {
	cfg := daemonTestConfig(t)
	require.NoError(t, os.WriteFile(cfg.PIDPath, []byte("4194304"), 0o644))

	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	runDaemon(t, d, cfg)

	pid, err := NewPIDFile(cfg.PIDPath).Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestDaemon_WatchSubscribeAndStop(t *testing.T) {
	cfg := daemonTestConfig(t)
	d, err := NewDaemon(cfg, WithWatchOptions(fastWatchOptions()))
	require.NoError(t, err)
	runDaemon(t, d, cfg)

	client := NewClient(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	root := canonicalDir(t)

	// Given: a watched directory with a subscriber
	res, err := client.StartWatch(ctx, root)
	require.NoError(t, err)
	assert.Equal(t, root, res.Root)

	got := make(chan watcher.Notification, 4)
	subCtx, subCancel := context.WithCancel(ctx)
	defer subCancel()
	go func() {
		_ = client.Subscribe(subCtx, root, func(n watcher.Notification) error {
			got <- n
			return nil
		})
	}()
	require.Eventually(t, func() bool {
		status, err := client.Status(ctx)
		return err == nil && status.Bus.Subscribers == 1
	}, 5*time.Second, 20*time.Millisecond)

	// When: a markdown file and a text file are written
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.md"), []byte("# a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0o644))

	// Then: one changed notification carries only the markdown file
	select {
	case n := <-got:
		assert.Equal(t, watcher.KindChanged, n.Kind)
		assert.Equal(t, res.ID, n.WatchID)
		assert.Equal(t, []string{filepath.Join(root, "a.md")}, n.Paths)
	case <-time.After(5 * time.Second):
		t.Fatal("no notification")
	}

	// And: stopping works once, then reports NotWatching
	require.NoError(t, client.StopWatch(ctx, root))
	assert.ErrorIs(t, client.StopWatch(ctx, root), errs.ErrNotWatching)
}

func TestDaemon_StartErrors(t *testing.T) {
	cfg := daemonTestConfig(t)
	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	runDaemon(t, d, cfg)

	client := NewClient(cfg)
	ctx := context.Background()
	dir := t.TempDir()
	file := filepath.Join(dir, "f.md")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err = client.StartWatch(ctx, filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, errs.ErrPathNotFound)

	_, err = client.StartWatch(ctx, file)
	assert.ErrorIs(t, err, errs.ErrNotADirectory)
}

func TestDaemon_StatusAndList(t *testing.T) {
	cfg := daemonTestConfig(t)
	d, err := NewDaemon(cfg)
	require.NoError(t, err)
	runDaemon(t, d, cfg)

	client := NewClient(cfg)
	ctx := context.Background()
	a, b := canonicalDir(t), canonicalDir(t)
	_, err = client.StartWatch(ctx, a)
	require.NoError(t, err)
	_, err = client.StartWatch(ctx, b)
	require.NoError(t, err)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Running)
	assert.Equal(t, 2, status.Watches)
	assert.Empty(t, status.Journal)
	assert.Zero(t, status.Metrics.Changed)

	watches, err := client.ListWatches(ctx)
	require.NoError(t, err)
	require.Len(t, watches, 2)
	assert.ElementsMatch(t, []string{a, b}, []string{watches[0].Root, watches[1].Root})
}

func TestDaemon_JournalRecordsNotifications(t *testing.T) {
	cfg := daemonTestConfig(t)
	journalPath := filepath.Join(t.TempDir(), "journal.db")
	d, err := NewDaemon(cfg, WithWatchOptions(fastWatchOptions()), WithJournal(journalPath, time.Hour))
	require.NoError(t, err)
	cancel, errCh := runDaemon(t, d, cfg)

	client := NewClient(cfg)
	ctx := context.Background()
	root := canonicalDir(t)
	_, err = client.StartWatch(ctx, root)
	require.NoError(t, err)

	status, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, journalPath, status.Journal)

	require.NoError(t, os.WriteFile(filepath.Join(root, "note.md"), []byte("x"), 0o644))

	// Wait for the flush to be recorded, then shut down to release the db.
	require.Eventually(t, func() bool {
		watches, err := client.ListWatches(ctx)
		return err == nil && len(watches) == 1 && watches[0].Delivered > 0
	}, 5*time.Second, 20*time.Millisecond)

	status, err = client.Status(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, status.Metrics.Changed, int64(1))
	require.NotEmpty(t, status.Metrics.HotPaths)
	assert.Equal(t, filepath.Join(root, "note.md"), status.Metrics.HotPaths[0].Path)

	cancel()
	<-errCh

	j, err := journal.Open(journalPath)
	require.NoError(t, err)
	defer j.Close()
	entries, err := j.Recent(ctx, journal.Query{Root: root})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, []string{filepath.Join(root, "note.md")}, entries[0].Paths)
}

func TestClient_NotRunning(t *testing.T) {
	cfg := daemonTestConfig(t)
	client := NewClient(cfg)

	assert.False(t, client.IsRunning())

	err := client.Ping(context.Background())
	assert.ErrorIs(t, err, errs.ErrDaemonUnavailable)
	assert.True(t, errs.IsRetryable(err))
}

func TestClient_WaitReadyGivesUp(t *testing.T) {
	client := NewClient(daemonTestConfig(t))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	assert.Error(t, client.WaitReady(ctx))
}
