package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/Aman-CERP/treewatch/internal/errors"
	"github.com/Aman-CERP/treewatch/internal/journal"
	"github.com/Aman-CERP/treewatch/internal/watcher"
)

func TestHistoryCmd_NoJournal(t *testing.T) {
	isolate(t)

	_, err := execute(t, "history")

	require.Error(t, err)
	assert.Equal(t, errs.ErrCodeJournalFailed, errs.GetCode(err))
}

func TestHistoryCmd_TableAndRootFilter(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "journal.db")
	t.Setenv("TREEWATCH_JOURNAL", path)

	// Given: a journal with entries for two roots
	j, err := journal.Open(path)
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, j.Deliver(ctx, watcher.Notification{
		Kind: watcher.KindChanged, WatchID: 1, Root: "/notes", Paths: []string{"/notes/a.md"}, Time: now,
	}))
	require.NoError(t, j.Deliver(ctx, watcher.Notification{
		Kind: watcher.KindFailed, WatchID: 2, Root: "/wiki", Code: errs.ErrCodeSourceFailure, Reason: "removed", Time: now,
	}))
	require.NoError(t, j.Close())

	// When: showing all history
	out, err := execute(t, "history")

	// Then: both rows are present
	require.NoError(t, err)
	assert.Contains(t, out, "/notes/a.md")
	assert.Contains(t, out, errs.ErrCodeSourceFailure+": removed")

	// When: filtering by root
	out, err = execute(t, "history", "--root", "/wiki")

	// Then: only that root remains
	require.NoError(t, err)
	assert.Contains(t, out, "/wiki")
	assert.NotContains(t, out, "/notes")
}
