package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/Aman-CERP/treewatch/internal/watcher"
)

// PlainRenderer prints one block per notification, for pipes and CI.
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	styles Styles
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, styles: GetStyles(cfg.NoColor || !IsTTY(cfg.Output))}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(context.Context) error { return nil }

// Watching implements Renderer.
func (r *PlainRenderer) Watching(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.Label.Render("[WATCH]"), root)
}

// Notify implements Renderer.
//
//	[CHANGED] /notes (2 files)
//	  /notes/a.md
//	  /notes/b.md
//	[FAILED] /notes: watch root was removed (ERR_205_SOURCE_FAILURE)
func (r *PlainRenderer) Notify(n watcher.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n.Kind == watcher.KindFailed {
		_, _ = fmt.Fprintf(r.out, "%s %s: %s (%s)\n",
			r.styles.Error.Render("[FAILED]"), n.Root, n.Reason, n.Code)
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s (%s)\n", r.styles.Success.Render("[CHANGED]"), n.Root, plural(len(n.Paths), "file"))
	for _, p := range n.Paths {
		fmt.Fprintf(&b, "  %s\n", p)
	}
	_, _ = io.WriteString(r.out, b.String())
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error { return nil }

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	if strings.HasSuffix(word, "sh") {
		return fmt.Sprintf("%d %ses", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

var _ Renderer = (*PlainRenderer)(nil)
