// Package telemetry aggregates delivery metrics for the daemon. Everything is
// kept in memory and reported through the status request only.
package telemetry

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// SizeBucket is a histogram bucket for the number of paths in one
// notification.
type SizeBucket string

const (
	BucketOne   SizeBucket = "1"
	BucketFew   SizeBucket = "2-5"
	BucketMany  SizeBucket = "6-20"
	BucketBurst SizeBucket = "21+"
)

// SizeToBucket returns the bucket for a batch of n paths.
func SizeToBucket(n int) SizeBucket {
	switch {
	case n <= 1:
		return BucketOne
	case n <= 5:
		return BucketFew
	case n <= 20:
		return BucketMany
	default:
		return BucketBurst
	}
}

// PathCount is how often a path appeared in Changed notifications.
type PathCount struct {
	Path  string `json:"path"`
	Count int64  `json:"count"`
}

// Failure records one WatchFailed notification.
type Failure struct {
	Root   string    `json:"root"`
	Code   string    `json:"code"`
	Reason string    `json:"reason"`
	Time   time.Time `json:"time"`
}

// Snapshot is a point-in-time copy of the metrics.
type Snapshot struct {
	Changed        int64                `json:"changed"`
	Failed         int64                `json:"failed"`
	Paths          int64                `json:"paths"`
	BatchSizes     map[SizeBucket]int64 `json:"batch_sizes"`
	HotPaths       []PathCount          `json:"hot_paths"`
	RecentFailures []Failure            `json:"recent_failures"`
	LastDelivery   time.Time            `json:"last_delivery"`
	Since          time.Time            `json:"since"`
}

// AvgBatch returns the mean number of paths per Changed notification.
func (s Snapshot) AvgBatch() float64 {
	if s.Changed == 0 {
		return 0
	}
	return float64(s.Paths) / float64(s.Changed)
}

// Config sizes the collector.
type Config struct {
	HotPathsCapacity int // distinct paths tracked (default 500)
	TopN             int // hot paths reported (default 10)
	FailuresCapacity int // failures kept (default 20)
}

// DefaultConfig returns the default sizes.
func DefaultConfig() Config {
	return Config{HotPathsCapacity: 500, TopN: 10, FailuresCapacity: 20}
}

// Metrics is a watcher.Sink that counts what it is given. Safe for
// concurrent use.
type Metrics struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	changed  int64
	failed   int64
	paths    int64
	sizes    map[SizeBucket]int64
	hot      *lru.Cache[string, int64]
	failures *CircularBuffer[Failure]
	last     time.Time
	since    time.Time
}

var _ watcher.Sink = (*Metrics)(nil)

// New creates a collector. Zero fields in cfg take their defaults.
func New(cfg Config) *Metrics {
	def := DefaultConfig()
	if cfg.HotPathsCapacity <= 0 {
		cfg.HotPathsCapacity = def.HotPathsCapacity
	}
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.FailuresCapacity <= 0 {
		cfg.FailuresCapacity = def.FailuresCapacity
	}

	hot, _ := lru.New[string, int64](cfg.HotPathsCapacity)
	m := &Metrics{
		cfg:      cfg,
		now:      time.Now,
		sizes:    make(map[SizeBucket]int64),
		hot:      hot,
		failures: NewCircularBuffer[Failure](cfg.FailuresCapacity),
	}
	m.since = m.now()
	return m
}

// Deliver records n. It never fails.
func (m *Metrics) Deliver(_ context.Context, n watcher.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = n.Time
	if m.last.IsZero() {
		m.last = m.now()
	}

	switch n.Kind {
	case watcher.KindFailed:
		m.failed++
		m.failures.Add(Failure{Root: n.Root, Code: n.Code, Reason: n.Reason, Time: m.last})
	case watcher.KindChanged:
		m.changed++
		m.paths += int64(len(n.Paths))
		m.sizes[SizeToBucket(len(n.Paths))]++
		for _, p := range n.Paths {
			count, _ := m.hot.Get(p)
			m.hot.Add(p, count+1)
		}
	}
	return nil
}

// Snapshot returns a copy of the current metrics.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	sizes := make(map[SizeBucket]int64, len(m.sizes))
	for k, v := range m.sizes {
		sizes[k] = v
	}

	return Snapshot{
		Changed:        m.changed,
		Failed:         m.failed,
		Paths:          m.paths,
		BatchSizes:     sizes,
		HotPaths:       m.topPaths(),
		RecentFailures: m.failures.Items(),
		LastDelivery:   m.last,
		Since:          m.since,
	}
}

// topPaths returns the most frequent paths, ties broken by path.
func (m *Metrics) topPaths() []PathCount {
	keys := m.hot.Keys()
	counts := make([]PathCount, 0, len(keys))
	for _, k := range keys {
		if c, ok := m.hot.Peek(k); ok {
			counts = append(counts, PathCount{Path: k, Count: c})
		}
	}
	slices.SortFunc(counts, func(a, b PathCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})
	if len(counts) > m.cfg.TopN {
		counts = counts[:m.cfg.TopN]
	}
	return counts
}

// Reset clears every counter and restarts the window.
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.changed, m.failed, m.paths = 0, 0, 0
	clear(m.sizes)
	m.hot.Purge()
	m.failures.Clear()
	m.last = time.Time{}
	m.since = m.now()
}
