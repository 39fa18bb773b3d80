// Package notify provides watcher.Sink implementations that fan notifications
// out to in-process subscribers, logs and other sinks.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

const (
	defaultSubscriberBuffer = 64
	defaultDropLogInterval  = 10 * time.Second
)

// Policy decides what Deliver does when a subscriber's buffer is full.
type Policy int

const (
	// Block waits for room, or for the delivery context to end.
	Block Policy = iota
	// DropOnFull skips the subscriber and counts a drop.
	DropOnFull
)

// BusOptions configures a Bus.
type BusOptions struct {
	// SubscriberBuffer is the channel buffer per subscriber. Default: 64
	SubscriberBuffer int
	Policy           Policy
	Logger           *slog.Logger
	// DropLogInterval limits drop warnings to one per interval. Default: 10s
	DropLogInterval time.Duration
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Published   uint64 `json:"published"`
	Dropped     uint64 `json:"dropped"`
}

// Bus fans notifications out to any number of subscribers. Each subscriber
// sees notifications in the order they were delivered to the bus.
type Bus struct {
	opts   BusOptions
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool

	published atomic.Uint64
	dropped   atomic.Uint64
	dropLog   rate.Sometimes
}

type subscriber struct {
	id   uint64
	root string
	ch   chan watcher.Notification

	// done is closed first on removal so a blocked sender lets go of mu
	// before ch is closed.
	done     chan struct{}
	doneOnce sync.Once
	mu       sync.Mutex
}

var _ watcher.Sink = (*Bus)(nil)

// NewBus creates an empty bus.
func NewBus(opts BusOptions) *Bus {
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = defaultSubscriberBuffer
	}
	if opts.DropLogInterval <= 0 {
		opts.DropLogInterval = defaultDropLogInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		opts:    opts,
		logger:  logger.With(slog.String("component", "bus")),
		subs:    make(map[uint64]*subscriber),
		dropLog: rate.Sometimes{First: 1, Interval: opts.DropLogInterval},
	}
}

// Subscribe registers a subscriber. With a non-empty root only notifications
// for that watch root are received. The returned channel is closed by cancel
// or by Close. cancel is safe to call more than once.
func (b *Bus) Subscribe(root string) (<-chan watcher.Notification, func()) {
	sub := &subscriber{
		root: root,
		ch:   make(chan watcher.Notification, b.opts.SubscriberBuffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	return sub.ch, func() { b.remove(sub) }
}

// Deliver implements watcher.Sink.
func (b *Bus) Deliver(ctx context.Context, n watcher.Notification) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	targets := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.root == "" || sub.root == n.Root {
			targets = append(targets, sub)
		}
	}
	b.mu.Unlock()

	b.published.Add(1)
	for _, sub := range targets {
		if err := b.send(ctx, sub, n); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bus) send(ctx context.Context, sub *subscriber, n watcher.Notification) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	select {
	case <-sub.done:
		return nil
	default:
	}

	if b.opts.Policy == DropOnFull {
		select {
		case sub.ch <- n:
		default:
			total := b.dropped.Add(1)
			b.dropLog.Do(func() {
				b.logger.Warn("subscriber buffer full, dropping notification",
					slog.Uint64("subscriber", sub.id),
					slog.String("root", n.Root),
					slog.Uint64("total_dropped", total))
			})
		}
		return nil
	}

	select {
	case sub.ch <- n:
		return nil
	case <-sub.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *Bus) remove(sub *subscriber) {
	b.mu.Lock()
	delete(b.subs, sub.id)
	b.mu.Unlock()

	sub.doneOnce.Do(func() {
		close(sub.done)
		sub.mu.Lock()
		close(sub.ch)
		sub.mu.Unlock()
	})
}

// Close removes every subscriber, closing their channels. Later deliveries
// are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	subs := make([]*subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		b.remove(sub)
	}
}

// Stats returns current counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	n := len(b.subs)
	b.mu.Unlock()
	return Stats{
		Subscribers: n,
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}
