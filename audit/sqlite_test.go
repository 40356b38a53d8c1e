package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestSink(t *testing.T) *SQLiteSink {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	sink, err := NewSQLiteSink(db, nil)
	require.NoError(t, err)
	return sink
}

func TestRecordAndList(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, Record{
		UserID:    "u-1",
		ToolName:  "createJournalEntry",
		Arguments: json.RawMessage(`{"title":"day one"}`),
		Outcome:   Outcome{Success: true, Result: map[string]any{"id": "e-1"}},
	}))
	require.NoError(t, sink.Record(ctx, Record{
		UserID:   "u-1",
		ToolName: "summarizeContent",
		Outcome:  Outcome{Success: false, Error: "content is required"},
	}))

	records, err := sink.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.NotEmpty(t, rec.ID)
		assert.Equal(t, "u-1", rec.UserID)
		assert.False(t, rec.Timestamp.IsZero())
	}

	var failed *Record
	for i := range records {
		if !records[i].Outcome.Success {
			failed = &records[i]
		}
	}
	require.NotNil(t, failed)
	assert.Equal(t, "summarizeContent", failed.ToolName)
	assert.Equal(t, "content is required", failed.Outcome.Error)
}

func TestRecordDefaultsAnonymousUser(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	require.NoError(t, sink.Record(ctx, Record{ToolName: "ping", Outcome: Outcome{Success: true}}))

	records, err := sink.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "anonymous", records[0].UserID)
}

func TestListLimitClamps(t *testing.T) {
	sink := newTestSink(t)
	ctx := context.Background()

	for range 5 {
		require.NoError(t, sink.Record(ctx, Record{ToolName: "t", Outcome: Outcome{Success: true}}))
	}

	records, err := sink.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	records, err = sink.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}
