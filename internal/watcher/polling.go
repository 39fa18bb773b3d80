package watcher

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// pollingSource detects changes by periodically rescanning the tree.
// Used where fsnotify is unavailable (network mounts, some containers).
type pollingSource struct {
	root     string
	opts     SourceOptions
	interval time.Duration
	logger   *slog.Logger

	// state is owned by the poll goroutine after construction.
	state map[string]fileSnapshot

	events chan RawEvent
	errors chan error
	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingSource scans root once to establish a baseline, then rescans
// every opts.PollInterval.
func NewPollingSource(root string, opts SourceOptions) (Source, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultOptions().PollInterval
	}

	p := &pollingSource{
		root:     root,
		opts:     opts,
		interval: interval,
		logger:   loggerOr(opts.Logger),
		events:   make(chan RawEvent, bufferOr(opts.Buffer)),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}

	state, err := p.scan()
	if err != nil {
		return nil, classifyAttachError(root, err)
	}
	p.state = state

	p.wg.Add(1)
	go p.run()
	return p, nil
}

func (p *pollingSource) Events() <-chan RawEvent { return p.events }
func (p *pollingSource) Errors() <-chan error    { return p.errors }

func (p *pollingSource) Close() error {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
	})
	return nil
}

func (p *pollingSource) run() {
	defer p.wg.Done()
	defer close(p.errors)
	defer close(p.events)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			if _, err := os.Stat(p.root); errors.Is(err, fs.ErrNotExist) {
				// The root is gone; report it once and let the watch tear down.
				p.send(RawEvent{Path: p.root, Op: OpRemove})
				<-p.stopCh
				return
			}
			if !p.detectChanges() {
				return
			}
		}
	}
}

// scan walks the tree and records file state keyed by absolute path.
func (p *pollingSource) scan() (map[string]fileSnapshot, error) {
	state := make(map[string]fileSnapshot)
	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == p.root {
				return err
			}
			return nil
		}
		if path == p.root {
			return nil
		}
		if p.ignored(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		state[path] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}

		if d.IsDir() && !p.opts.Recursive {
			return filepath.SkipDir
		}
		return nil
	})
	return state, err
}

// detectChanges diffs a fresh scan against the previous one. It returns false
// when the source was closed while sending.
func (p *pollingSource) detectChanges() bool {
	current, err := p.scan()
	if err != nil {
		p.logger.Warn("polling scan failed",
			slog.String("root", p.root),
			slog.String("error", err.Error()))
		return true
	}

	for path, snap := range current {
		prev, existed := p.state[path]
		switch {
		case !existed:
			if !p.send(RawEvent{Path: path, Op: OpCreate}) {
				return false
			}
		case !snap.isDir && (prev.modTime != snap.modTime || prev.size != snap.size):
			if !p.send(RawEvent{Path: path, Op: OpWrite}) {
				return false
			}
		}
	}
	for path := range p.state {
		if _, ok := current[path]; !ok {
			if !p.send(RawEvent{Path: path, Op: OpRemove}) {
				return false
			}
		}
	}

	p.state = current
	return true
}

func (p *pollingSource) ignored(path string) bool {
	if p.opts.Visible == nil {
		return false
	}
	rel, err := filepath.Rel(p.root, path)
	if err != nil {
		return false
	}
	return !p.opts.Visible.Match(filepath.ToSlash(rel))
}

func (p *pollingSource) send(ev RawEvent) bool {
	select {
	case p.events <- ev:
		return true
	case <-p.stopCh:
		return false
	}
}
