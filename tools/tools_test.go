package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivener-app/scrivener/executor"
	"github.com/scrivener-app/scrivener/format"
	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/registry"
	"github.com/scrivener-app/scrivener/sessions"
	"github.com/scrivener-app/scrivener/store"
	"github.com/scrivener-app/scrivener/summarize"
)

type fixture struct {
	catalog *registry.Tools
	exec    *executor.Executor
	store   *store.Store
	session *sessions.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	st, err := store.New(db)
	require.NoError(t, err)

	catalog := registry.NewTools(nil)
	exec := executor.New(catalog, format.New(nil, nil), nil, nil, nil)

	RegisterJournalTools(catalog, st)
	RegisterMemoryTools(catalog, st)
	RegisterSummarize(catalog, exec, summarize.Extractive{})

	sessionStore := sessions.NewStore(nil)
	sess := sessionStore.Create(nil)
	sess.SetIdentity(&sessions.Identity{ID: "u-1", Username: "pat"})

	return &fixture{catalog: catalog, exec: exec, store: st, session: sess}
}

func (f *fixture) call(t *testing.T, name string, args string) (json.RawMessage, error) {
	t.Helper()
	def, ok := f.catalog.Get(name)
	require.True(t, ok, "tool %s not registered", name)
	require.Equal(t, registry.KindProcessor, def.Execution.Kind)

	out, err := def.Execution.Processor(context.Background(), json.RawMessage(args), f.session)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	require.NoError(t, err)
	return data, nil
}

func mcpCall(name, args string) mcp.CallToolRequest {
	return mcp.CallToolRequest{Name: name, Arguments: json.RawMessage(args)}
}

func TestStockCatalogContents(t *testing.T) {
	f := newFixture(t)

	expected := []string{
		"createJournalEntry", "getAllJournalEntries", "updateJournalEntry", "deleteJournalEntry",
		"memory_create", "memory_list", "memory_update", "memory_delete",
		"summarizeContent",
	}
	for _, name := range expected {
		_, ok := f.catalog.Get(name)
		assert.True(t, ok, "missing tool %s", name)
	}
}

func TestJournalToolsRoundTrip(t *testing.T) {
	f := newFixture(t)

	created, err := f.call(t, "createJournalEntry", `{"title":"Day 1","content":"Started the journal.","mood":"hopeful"}`)
	require.NoError(t, err)

	var entry store.JournalEntry
	require.NoError(t, json.Unmarshal(created, &entry))
	assert.Equal(t, "u-1", entry.UserID)
	assert.Equal(t, "Day 1", entry.Title)

	listed, err := f.call(t, "getAllJournalEntries", `{}`)
	require.NoError(t, err)
	var listing struct {
		Entries []store.JournalEntry `json:"entries"`
		Count   int                  `json:"count"`
	}
	require.NoError(t, json.Unmarshal(listed, &listing))
	assert.Equal(t, 1, listing.Count)

	_, err = f.call(t, "updateJournalEntry", `{"id":"`+entry.ID+`","title":"Day One"}`)
	require.NoError(t, err)

	_, err = f.call(t, "deleteJournalEntry", `{"id":"`+entry.ID+`"}`)
	require.NoError(t, err)

	_, err = f.call(t, "deleteJournalEntry", `{"id":"`+entry.ID+`"}`)
	require.Error(t, err, "double delete reports not found")
}

func TestJournalToolsValidateInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.call(t, "createJournalEntry", `{"title":"no content"}`)
	require.Error(t, err)

	_, err = f.call(t, "updateJournalEntry", `{}`)
	require.Error(t, err)

	_, err = f.call(t, "createJournalEntry", `{"title":"t","content":"c","bogus":1}`)
	require.Error(t, err, "unknown argument fields are rejected")
}

func TestMemoryToolsRoundTrip(t *testing.T) {
	f := newFixture(t)

	created, err := f.call(t, "memory_create", `{"content":"Allergic to peanuts","category":"health"}`)
	require.NoError(t, err)
	var mem store.Memory
	require.NoError(t, json.Unmarshal(created, &mem))

	listed, err := f.call(t, "memory_list", `{"category":"health"}`)
	require.NoError(t, err)
	var listing struct {
		Memories []store.Memory `json:"memories"`
	}
	require.NoError(t, json.Unmarshal(listed, &listing))
	require.Len(t, listing.Memories, 1)

	_, err = f.call(t, "memory_update", `{"id":"`+mem.ID+`","content":"Severely allergic to peanuts"}`)
	require.NoError(t, err)

	_, err = f.call(t, "memory_delete", `{"id":"`+mem.ID+`"}`)
	require.NoError(t, err)
}

func TestSummarizeBuiltin(t *testing.T) {
	f := newFixture(t)

	def, ok := f.catalog.Get("summarizeContent")
	require.True(t, ok)
	require.Equal(t, registry.KindBuiltin, def.Execution.Kind)
	assert.Contains(t, def.Tool.InputSchema.Required, "content")

	result, rpcErr := f.exec.Call(context.Background(), f.session, mcpCall("summarizeContent",
		`{"content":"First point. Second point.","type":"headline"}`))
	require.Nil(t, rpcErr)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Contains(t, result.Content[0].Text, "First point.")

	result, rpcErr = f.exec.Call(context.Background(), f.session, mcpCall("summarizeContent", `{}`))
	require.Nil(t, rpcErr)
	assert.True(t, result.IsError)
}
