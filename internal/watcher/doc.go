// Package watcher manages debounced watches over directory trees.
//
// A Registry owns every live watch. Each watch attaches a raw event Source
// (fsnotify by default, polling as a fallback), collects changed paths into a
// pending set, and after a quiet period delivers a single Notification with the
// distinct paths that passed the Filter to a Sink.
//
// Usage:
//
//	reg := watcher.NewRegistry(sink, watcher.DefaultOptions())
//	defer reg.Close()
//
//	id, err := reg.Start("/path/to/notes")
//	if err != nil {
//	    return err
//	}
//	...
//	if err := reg.Stop("/path/to/notes"); err != nil {
//	    return err
//	}
//
// Start is idempotent per canonical path. Stop blocks until the source has
// been released, and no notification for that watch is delivered after it
// returns. A failing source ends only its own watch, reported to the sink as a
// KindFailed notification.
package watcher
