package watcher

import (
	"context"
	"time"
)

// WatchID identifies one watch attachment. IDs are never reused within a Registry.
type WatchID uint64

// Kind distinguishes change notifications from failure notifications.
type Kind string

const (
	// KindChanged carries the coalesced paths of one quiet period.
	KindChanged Kind = "changed"
	// KindFailed reports that the watch ended because its source failed.
	KindFailed Kind = "failed"
)

// Notification is what a Sink receives. It is never mutated after delivery.
type Notification struct {
	Kind    Kind    `json:"kind"`
	WatchID WatchID `json:"watch_id"`
	Root    string  `json:"root"`

	// Paths are absolute, distinct and sorted. Set only for KindChanged.
	Paths []string `json:"paths,omitempty"`

	// Code and Reason are set only for KindFailed.
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`

	Time time.Time `json:"time"`
}

// Sink receives notifications. Deliver is called from the watch goroutine, so
// notifications for one watch arrive in order. ctx is cancelled when the watch
// is stopped; a Sink that blocks must honor it.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, n Notification) error

// Deliver calls f.
func (f SinkFunc) Deliver(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Discard drops every notification.
var Discard Sink = SinkFunc(func(context.Context, Notification) error { return nil })
