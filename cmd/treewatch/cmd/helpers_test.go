package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// isolate points HOME and XDG_CONFIG_HOME at a fresh directory and moves
// into an empty working directory, so no real config or state is touched.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	for _, key := range []string{"TREEWATCH_DEBOUNCE", "TREEWATCH_SUFFIXES", "TREEWATCH_BACKEND", "TREEWATCH_LOG_LEVEL",
		"TREEWATCH_RECURSIVE", "TREEWATCH_GITIGNORE", "TREEWATCH_SOCKET", "TREEWATCH_PID", "TREEWATCH_JOURNAL"} {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
	return home
}

// shortSocketEnv points the daemon socket and PID file at /tmp, keeping the
// socket path under the platform limit.
func shortSocketEnv(t *testing.T) {
	t.Helper()
	dir, err := os.MkdirTemp("/tmp", "tw")
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	t.Setenv("TREEWATCH_SOCKET", filepath.Join(dir, "d.sock"))
	t.Setenv("TREEWATCH_PID", filepath.Join(dir, "d.pid"))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}

// syncBuffer is a bytes.Buffer safe for a command writing in the background.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// background runs args until the returned stop function is called, and
// returns the command's error.
func background(t *testing.T, out *syncBuffer, args ...string) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cmd := NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)

	errCh := make(chan error, 1)
	go func() { errCh <- cmd.ExecuteContext(ctx) }()

	var once sync.Once
	var result error
	stop = func() error {
		once.Do(func() {
			cancel()
			select {
			case result = <-errCh:
			case <-time.After(10 * time.Second):
				result = fmt.Errorf("%v did not stop", args)
			}
		})
		return result
	}
	t.Cleanup(func() { _ = stop() })
	return stop
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := watcher.Canonicalize(t.TempDir())
	require.NoError(t, err)
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
