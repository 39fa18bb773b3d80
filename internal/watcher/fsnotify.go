package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// fsnotifySource adapts an fsnotify.Watcher to Source. Directories created
// after attachment are added on the fly when the source is recursive.
type fsnotifySource struct {
	fsw    *fsnotify.Watcher
	root   string
	opts   SourceOptions
	logger *slog.Logger

	events chan RawEvent
	errors chan error
	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewFsnotifySource attaches an fsnotify watcher to root.
func NewFsnotifySource(root string, opts SourceOptions) (Source, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, classifyAttachError(root, err)
	}

	s := &fsnotifySource{
		fsw:    fsw,
		root:   root,
		opts:   opts,
		logger: loggerOr(opts.Logger),
		events: make(chan RawEvent, bufferOr(opts.Buffer)),
		errors: make(chan error, 10),
		stopCh: make(chan struct{}),
	}

	if err := s.addTree(root, nil); err != nil {
		_ = fsw.Close()
		return nil, classifyAttachError(root, err)
	}

	s.wg.Add(1)
	go s.forward()
	return s, nil
}

func (s *fsnotifySource) Events() <-chan RawEvent { return s.events }
func (s *fsnotifySource) Errors() <-chan error    { return s.errors }

func (s *fsnotifySource) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.closeErr = s.fsw.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

func (s *fsnotifySource) forward() {
	defer s.wg.Done()
	defer close(s.errors)
	defer close(s.events)

	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.fsw.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.fsw.Errors:
			if !ok {
				return
			}
			select {
			case s.errors <- err:
			case <-s.stopCh:
				return
			}
		}
	}
}

func (s *fsnotifySource) handle(ev fsnotify.Event) {
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove):
		op = OpRemove
	case ev.Has(fsnotify.Rename):
		op = OpRename
	default:
		// Chmod alone does not change content.
		return
	}

	if op == OpCreate && s.opts.Recursive && ev.Name != s.root {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// Files may land in the new directory before its watch is added,
			// so everything found during the walk is reported as created.
			if err := s.addTree(ev.Name, s.send); err != nil {
				s.logger.Warn("failed to watch new directory",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
				if isLimitError(err) {
					s.sendErr(err)
				}
			}
		}
	}

	s.send(RawEvent{Path: ev.Name, Op: op})
}

// addTree adds dir and, when recursive, every non-ignored directory below it.
// found, if set, receives a create event for every entry below dir.
func (s *fsnotifySource) addTree(dir string, found func(RawEvent)) error {
	if !s.opts.Recursive {
		return s.fsw.Add(dir)
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			s.logger.Warn("skipping inaccessible path",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}

		if path != dir && found != nil && !s.ignored(path) {
			found(RawEvent{Path: path, Op: OpCreate})
		}
		if !d.IsDir() {
			return nil
		}
		if path != s.root && s.ignored(path) {
			return filepath.SkipDir
		}

		if err := s.fsw.Add(path); err != nil {
			if path == dir || isLimitError(err) {
				return err
			}
			s.logger.Warn("skipping unwatchable directory",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return filepath.SkipDir
		}
		return nil
	})
}

func (s *fsnotifySource) ignored(path string) bool {
	if s.opts.Visible == nil {
		return false
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return false
	}
	return !s.opts.Visible.Match(filepath.ToSlash(rel))
}

func (s *fsnotifySource) send(ev RawEvent) {
	select {
	case s.events <- ev:
	case <-s.stopCh:
	}
}

func (s *fsnotifySource) sendErr(err error) {
	select {
	case s.errors <- err:
	case <-s.stopCh:
	}
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func bufferOr(n int) int {
	if n <= 0 {
		return DefaultOptions().EventBufferSize
	}
	return n
}
