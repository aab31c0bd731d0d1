package journal

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal", "calls.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorePutGet(t *testing.T) {
	store := openTestStore(t)

	_, found, err := store.Get("order", "7", "pending_delivery_payment")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Put(Entry{
		Kind:    "order",
		Subject: "7",
		Stage:   "pending_delivery_payment",
		Day:     3,
		Result:  json.RawMessage(`{"paid":true}`),
	}))

	entry, found, err := store.Get("order", "7", "pending_delivery_payment")
	require.NoError(t, err)
	require.True(t, found)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 3, entry.Day)
	assert.JSONEq(t, `{"paid":true}`, string(entry.Result))
	assert.False(t, entry.RecordedAt.IsZero())

	_, found, err = store.Get("order", "7", "pending_payment")
	require.NoError(t, err)
	assert.False(t, found, "stage is part of the key")
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls.db")
	store, err := Open(path, "calls")
	require.NoError(t, err)
	require.NoError(t, store.Put(Entry{Kind: "parts_purchase", Subject: "1", Stage: "pending_payment"}))
	require.NoError(t, store.Close())

	store, err = Open(path, "calls")
	require.NoError(t, err)
	defer store.Close()

	_, found, err := store.Get("parts_purchase", "1", "pending_payment")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestStoreCleanupAndReset(t *testing.T) {
	store := openTestStore(t)

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Put(Entry{Kind: "order", Subject: "1", Stage: "s", RecordedAt: old}))
	require.NoError(t, store.Put(Entry{Kind: "order", Subject: "2", Stage: "s"}))

	removed, err := store.Cleanup(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 1, size)

	require.NoError(t, store.Reset())
	size, err = store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestNilStore(t *testing.T) {
	var store *Store
	assert.Error(t, store.Put(Entry{}))
	assert.NoError(t, store.Close())
}
