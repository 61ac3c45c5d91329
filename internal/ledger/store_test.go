package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "processed.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestIsProcessedOnlyAfterSuccess(t *testing.T) {
	store := newTestStore(t)

	ok, err := store.IsProcessed("local:/inbox/a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.MarkProcessed(Record{
		JobID:        "local:/inbox/a.txt",
		Status:       StatusError,
		ErrorMessage: "download failed",
	}))
	ok, err = store.IsProcessed("local:/inbox/a.txt")
	require.NoError(t, err)
	assert.False(t, ok, "failed attempts stay retryable")

	require.NoError(t, store.MarkProcessed(Record{
		JobID:      "local:/inbox/a.txt",
		Status:     StatusSuccess,
		OutputPath: "/outbox/2026-01-01_Video",
	}))
	ok, err = store.IsProcessed("local:/inbox/a.txt")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkProcessedUpsertsByJobID(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.MarkProcessed(Record{JobID: "dropbox:acct:id:1", Status: StatusError, ErrorMessage: "boom"}))
	require.NoError(t, store.MarkProcessed(Record{JobID: "dropbox:acct:id:1", Status: StatusSuccess, AccountID: "acct"}))

	records, err := store.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusSuccess, records[0].Status)
	assert.Empty(t, records[0].ErrorMessage)
	assert.Equal(t, "acct", records[0].AccountID)
}

func TestGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.MarkProcessed(Record{
		JobID:       "local:/inbox/b.txt",
		Hash:        "abc123",
		ProcessedAt: at,
		Status:      StatusSuccess,
		OutputPath:  "/outbox/folder",
	}))

	rec, err := store.Get("local:/inbox/b.txt")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "abc123", rec.Hash)
	assert.True(t, rec.ProcessedAt.Equal(at))
	assert.Equal(t, "/outbox/folder", rec.OutputPath)

	missing, err := store.Get("local:/inbox/missing.txt")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestStatsScopedByAccount(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.MarkProcessed(Record{JobID: "dropbox:a:1", AccountID: "a", Status: StatusSuccess}))
	require.NoError(t, store.MarkProcessed(Record{JobID: "dropbox:a:2", AccountID: "a", Status: StatusError}))
	require.NoError(t, store.MarkProcessed(Record{JobID: "dropbox:b:1", AccountID: "b", Status: StatusSuccess}))

	all, err := store.StatsFor("")
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Succeeded: 2, Failed: 1}, all)

	scoped, err := store.StatsFor("a")
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 2, Succeeded: 1, Failed: 1}, scoped)
}
