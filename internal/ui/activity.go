package ui

import (
	"sync"
	"time"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

const maxRecent = 50

// RootStats summarizes activity for one watched root.
type RootStats struct {
	Root       string
	Flushes    int
	Files      int
	LastChange time.Time
	Failed     bool
	Code       string
	Reason     string
}

// Change is one path from a changed notification.
type Change struct {
	Time time.Time
	Root string
	Path string
}

// ActivityTracker accumulates notifications for display. It is safe for
// concurrent use.
type ActivityTracker struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	roots   map[string]*RootStats
	order   []string
	recent  []Change // newest last
	spark   *Sparkline
	bucket  int
}

// NewActivityTracker creates an empty tracker.
func NewActivityTracker() *ActivityTracker {
	return newActivityTracker(time.Now)
}

func newActivityTracker(now func() time.Time) *ActivityTracker {
	return &ActivityTracker{
		now:     now,
		started: now(),
		roots:   make(map[string]*RootStats),
		spark:   NewSparkline(120),
	}
}

func (a *ActivityTracker) root(root string) *RootStats {
	rs, ok := a.roots[root]
	if !ok {
		rs = &RootStats{Root: root}
		a.roots[root] = rs
		a.order = append(a.order, root)
	}
	return rs
}

// AddRoot registers a root so it is listed before its first change.
func (a *ActivityTracker) AddRoot(root string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.root(root)
}

// Record folds n into the stats.
func (a *ActivityTracker) Record(n watcher.Notification) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rs := a.root(n.Root)
	switch n.Kind {
	case watcher.KindFailed:
		rs.Failed = true
		rs.Code = n.Code
		rs.Reason = n.Reason
	default:
		at := n.Time
		if at.IsZero() {
			at = a.now()
		}
		rs.Flushes++
		rs.Files += len(n.Paths)
		rs.LastChange = at
		a.bucket += len(n.Paths)
		for _, p := range n.Paths {
			a.recent = append(a.recent, Change{Time: at, Root: n.Root, Path: p})
		}
		if over := len(a.recent) - maxRecent; over > 0 {
			a.recent = append(a.recent[:0], a.recent[over:]...)
		}
	}
}

// Tick closes the current sampling interval and starts a new one.
func (a *ActivityTracker) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.spark.Add(float64(a.bucket))
	a.bucket = 0
}

// Roots returns per-root stats in the order roots were first seen.
func (a *ActivityTracker) Roots() []RootStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]RootStats, 0, len(a.order))
	for _, r := range a.order {
		out = append(out, *a.roots[r])
	}
	return out
}

// Recent returns up to n recent changes, newest first.
func (a *ActivityTracker) Recent(n int) []Change {
	a.mu.Lock()
	defer a.mu.Unlock()
	n = min(n, len(a.recent))
	out := make([]Change, 0, n)
	for i := len(a.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.recent[i])
	}
	return out
}

// Totals returns flush, file and failed-root counts across all roots.
func (a *ActivityTracker) Totals() (flushes, files, failed int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, rs := range a.roots {
		flushes += rs.Flushes
		files += rs.Files
		if rs.Failed {
			failed++
		}
	}
	return flushes, files, failed
}

// Elapsed returns the time since the tracker was created.
func (a *ActivityTracker) Elapsed() time.Duration {
	return a.now().Sub(a.started)
}

// RenderSparkline renders changes per interval.
func (a *ActivityTracker) RenderSparkline(width int) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.spark.Render(width)
}
