package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := New(db)
	require.NoError(t, err)
	return st
}

func strPtr(s string) *string { return &s }

func TestJournalEntryCRUD(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	entry, err := st.CreateEntry(ctx, "u-1", "First day", "It went well.", "content")
	require.NoError(t, err)
	require.NotEmpty(t, entry.ID)
	assert.Equal(t, entry.CreatedAt, entry.UpdatedAt)

	got, err := st.GetEntry(ctx, "u-1", entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "First day", got.Title)
	assert.Equal(t, "content", got.Mood)

	updated, err := st.UpdateEntry(ctx, "u-1", entry.ID, strPtr("Revised"), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "Revised", updated.Title)
	assert.Equal(t, "It went well.", updated.Content)

	require.NoError(t, st.DeleteEntry(ctx, "u-1", entry.ID))
	_, err = st.GetEntry(ctx, "u-1", entry.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestJournalEntriesScopedToUser(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mine, err := st.CreateEntry(ctx, "u-1", "Mine", "body", "")
	require.NoError(t, err)
	_, err = st.CreateEntry(ctx, "u-2", "Theirs", "body", "")
	require.NoError(t, err)

	entries, err := st.ListEntries(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Mine", entries[0].Title)

	// Another user cannot touch my entry.
	_, err = st.GetEntry(ctx, "u-2", mine.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, st.DeleteEntry(ctx, "u-2", mine.ID), ErrNotFound)
	_, err = st.UpdateEntry(ctx, "u-2", mine.ID, strPtr("hijack"), nil, nil)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestListEntriesEmptyIsNotNil(t *testing.T) {
	st := newTestStore(t)
	entries, err := st.ListEntries(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestMemoryCRUD(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	mem, err := st.CreateMemory(ctx, "u-1", "Prefers tea over coffee", "preferences")
	require.NoError(t, err)
	require.NotEmpty(t, mem.ID)

	updated, err := st.UpdateMemory(ctx, "u-1", mem.ID, strPtr("Prefers green tea"), nil)
	require.NoError(t, err)
	assert.Equal(t, "Prefers green tea", updated.Content)
	assert.Equal(t, "preferences", updated.Category)

	require.NoError(t, st.DeleteMemory(ctx, "u-1", mem.ID))
	require.ErrorIs(t, st.DeleteMemory(ctx, "u-1", mem.ID), ErrNotFound)
}

func TestListMemoriesCategoryFilter(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.CreateMemory(ctx, "u-1", "fact a", "work")
	require.NoError(t, err)
	_, err = st.CreateMemory(ctx, "u-1", "fact b", "home")
	require.NoError(t, err)

	all, err := st.ListMemories(ctx, "u-1", "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	work, err := st.ListMemories(ctx, "u-1", "work")
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, "fact a", work[0].Content)
}
