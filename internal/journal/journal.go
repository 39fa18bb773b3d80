// Package journal records delivered notifications in SQLite so past changes
// can be listed after the fact.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	watch_id INTEGER NOT NULL,
	root TEXT NOT NULL,
	kind TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	reason TEXT NOT NULL DEFAULT '',
	paths TEXT NOT NULL DEFAULT '[]',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_root ON notifications(root, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);
`

// Entry is one recorded notification.
type Entry struct {
	ID int64 `json:"id"`
	watcher.Notification
}

// Query selects entries for Recent.
type Query struct {
	// Root limits results to one watch root. Empty means all roots.
	Root string
	// Limit caps the result count. Default: 50
	Limit int
}

// Journal is a watcher.Sink backed by SQLite.
type Journal struct {
	db   *sql.DB
	path string
}

var _ watcher.Sink = (*Journal)(nil)

// Open opens or creates the journal at path. An empty path opens an
// in-memory journal.
func Open(path string) (*Journal, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errs.New(errs.ErrCodeJournalFailed, "create journal directory", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.New(errs.ErrCodeJournalFailed, "open journal", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, errs.New(errs.ErrCodeJournalFailed, fmt.Sprintf("set %s", p), err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errs.New(errs.ErrCodeJournalFailed, "create journal schema", err)
	}

	return &Journal{db: db, path: path}, nil
}

// Path returns the database file, or "" for an in-memory journal.
func (j *Journal) Path() string { return j.path }

// Deliver records n. It implements watcher.Sink.
func (j *Journal) Deliver(ctx context.Context, n watcher.Notification) error {
	paths, err := json.Marshal(n.Paths)
	if err != nil {
		return fmt.Errorf("encode paths: %w", err)
	}
	if n.Paths == nil {
		paths = []byte("[]")
	}
	ts := n.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO notifications (watch_id, root, kind, code, reason, paths, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, int64(n.WatchID), n.Root, string(n.Kind), n.Code, n.Reason, string(paths), ts.UnixNano())
	if err != nil {
		return errs.New(errs.ErrCodeJournalFailed, "record notification", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (j *Journal) Recent(ctx context.Context, q Query) ([]Entry, error) {
	if q.Limit <= 0 {
		q.Limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, watch_id, root, kind, code, reason, paths, created_at
		FROM notifications
		WHERE (? = '' OR root = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, q.Root, q.Root, q.Limit)
	if err != nil {
		return nil, errs.New(errs.ErrCodeJournalFailed, "query notifications", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			watchID int64
			kind    string
			paths   string
			created int64
		)
		if err := rows.Scan(&e.ID, &watchID, &e.Root, &kind, &e.Code, &e.Reason, &paths, &created); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(paths), &e.Paths); err != nil {
			return nil, fmt.Errorf("decode paths for entry %d: %w", e.ID, err)
		}
		if len(e.Paths) == 0 {
			e.Paths = nil
		}
		e.WatchID = watcher.WatchID(watchID)
		e.Kind = watcher.Kind(kind)
		e.Time = time.Unix(0, created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than the cutoff and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM notifications WHERE created_at < ?`, olderThan.UnixNano())
	if err != nil {
		return 0, errs.New(errs.ErrCodeJournalFailed, "prune notifications", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
