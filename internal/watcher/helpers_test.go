package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testWindow = 50 * time.Millisecond

// fakeSource is a Source driven by the test.
type fakeSource struct {
	events chan RawEvent
	errs   chan error
	stop   chan struct{}
	closes atomic.Int32
	once   sync.Once
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		events: make(chan RawEvent, 100),
		errs:   make(chan error, 10),
		stop:   make(chan struct{}),
	}
}

func (s *fakeSource) Events() <-chan RawEvent { return s.events }
func (s *fakeSource) Errors() <-chan error    { return s.errs }

func (s *fakeSource) Close() error {
	s.once.Do(func() {
		s.closes.Add(1)
		close(s.stop)
	})
	return nil
}

func (s *fakeSource) closed() bool { return s.closes.Load() > 0 }

func (s *fakeSource) emit(path string, op Op) {
	s.events <- RawEvent{Path: path, Op: op}
}

// fakeFactory records every attachment it makes.
type fakeFactory struct {
	mu      sync.Mutex
	sources map[string][]*fakeSource
	err     error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{sources: make(map[string][]*fakeSource)}
}

func (f *fakeFactory) New(root string, _ SourceOptions) (Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := newFakeSource()
	f.sources[root] = append(f.sources[root], s)
	return s, nil
}

func (f *fakeFactory) attachments(root string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sources[root])
}

func (f *fakeFactory) last(t *testing.T, root string) *fakeSource {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.sources[root]
	require.NotEmpty(t, list, "no source attached for %s", root)
	return list[len(list)-1]
}

// recordingSink captures every notification in delivery order.
type recordingSink struct {
	mu  sync.Mutex
	got []Notification
	ch  chan Notification
}

func newRecordingSink() *recordingSink {
	return &recordingSink{ch: make(chan Notification, 100)}
}

func (s *recordingSink) Deliver(_ context.Context, n Notification) error {
	s.mu.Lock()
	s.got = append(s.got, n)
	s.mu.Unlock()
	s.ch <- n
	return nil
}

func (s *recordingSink) all() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.got...)
}

func (s *recordingSink) next(t *testing.T, timeout time.Duration) Notification {
	t.Helper()
	select {
	case n := <-s.ch:
		return n
	case <-time.After(timeout):
		t.Fatal("timeout waiting for notification")
		return Notification{}
	}
}

func (s *recordingSink) expectNone(t *testing.T, wait time.Duration) {
	t.Helper()
	select {
	case n := <-s.ch:
		t.Fatalf("unexpected notification: %+v", n)
	case <-time.After(wait):
	}
}

// canonicalTempDir returns a temp dir in canonical form so expected paths
// match on systems where the temp dir sits behind a symlink.
func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := Canonicalize(t.TempDir())
	require.NoError(t, err)
	return dir
}

func fakeRegistry(t *testing.T, sink Sink) (*Registry, *fakeFactory) {
	t.Helper()
	f := newFakeFactory()
	opts := DefaultOptions()
	opts.DebounceWindow = testWindow
	opts.NewSource = f.New
	r := NewRegistry(sink, opts)
	t.Cleanup(func() { _ = r.Close() })
	return r, f
}

func join(root string, parts ...string) string {
	return filepath.Join(append([]string{root}, parts...)...)
}
