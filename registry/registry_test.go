package registry

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/sessions"
)

// countingBroadcaster records broadcast methods. Notifications are fired on
// separate goroutines, so observation waits for the expected count.
type countingBroadcaster struct {
	mu      sync.Mutex
	methods []string
}

func (c *countingBroadcaster) Broadcast(method string) {
	c.mu.Lock()
	c.methods = append(c.methods, method)
	c.mu.Unlock()
}

func (c *countingBroadcaster) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		count := len(c.methods)
		methods := append([]string(nil), c.methods...)
		c.mu.Unlock()
		if count >= n {
			return methods
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d broadcasts", n)
	return nil
}

func TestUpsertPreservesInsertionOrder(t *testing.T) {
	r := New[int]("test/changed", nil)
	r.Upsert("a", 1)
	r.Upsert("b", 2)
	r.Upsert("c", 3)
	r.Upsert("a", 10) // replacement keeps position

	assert.Equal(t, []int{10, 2, 3}, r.Snapshot())
}

func TestRemoveAbsentKeyIsSilent(t *testing.T) {
	b := &countingBroadcaster{}
	r := New[int]("test/changed", b)
	r.Upsert("a", 1)
	b.waitFor(t, 1)

	assert.False(t, r.Remove("missing"))
	assert.True(t, r.Remove("a"))
	methods := b.waitFor(t, 2)
	assert.Len(t, methods, 2)
}

func TestMutationsBroadcast(t *testing.T) {
	b := &countingBroadcaster{}
	tools := NewTools(b)
	tools.Register("x", ToolDefinition{})
	tools.Register("x", ToolDefinition{}) // replacement still notifies
	tools.Remove("x")

	methods := b.waitFor(t, 3)
	for _, m := range methods {
		assert.Equal(t, string(mcp.ToolsListChangedNotificationMethod), m)
	}
}

func TestRegisterDefaultsDescriptor(t *testing.T) {
	tools := NewTools(nil)
	def := tools.Register("myTool", ToolDefinition{})

	assert.Equal(t, "myTool", def.Tool.Name)
	assert.Equal(t, "Tool: myTool", def.Tool.Description)
	assert.Equal(t, "object", def.Tool.InputSchema.Type)
}

func TestListPaginates(t *testing.T) {
	r := New[string]("", nil)
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		r.Upsert(k, k)
	}

	page := r.List("", 2)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	page = r.List(page.NextCursor, 2)
	assert.Equal(t, []string{"c", "d"}, page.Items)
}

func TestParseDefinitionBindsAPIKind(t *testing.T) {
	raw := json.RawMessage(`{
		"description": "fetch weather",
		"apiIntegrationId": "weather-svc",
		"method": "post",
		"path": "/v1/forecast"
	}`)
	def, err := ParseDefinition(raw)
	require.NoError(t, err)
	assert.Equal(t, KindAPI, def.Execution.Kind)
	assert.Equal(t, "weather-svc", def.Execution.IntegrationID)
	assert.Equal(t, "POST", def.Execution.Method)
	assert.Equal(t, "/v1/forecast", def.Execution.Path)
}

func TestParseDefinitionDefaultsAndKindNone(t *testing.T) {
	def, err := ParseDefinition(json.RawMessage(`{"apiIntegrationId":"svc"}`))
	require.NoError(t, err)
	assert.Equal(t, "GET", def.Execution.Method)
	assert.Equal(t, "/", def.Execution.Path)

	def, err = ParseDefinition(json.RawMessage(`{"description":"no binding"}`))
	require.NoError(t, err)
	assert.Equal(t, KindNone, def.Execution.Kind)

	_, err = ParseDefinition(json.RawMessage(`not json`))
	require.Error(t, err)
}

func TestProcessorToolStrictDecoding(t *testing.T) {
	type args struct {
		Name string `json:"name"`
	}
	def := ProcessorTool("greet", "greets", func(ctx context.Context, s *sessions.Session, a args) (any, error) {
		return "hello " + a.Name, nil
	})

	require.Equal(t, KindProcessor, def.Execution.Kind)
	out, err := def.Execution.Processor(context.Background(), json.RawMessage(`{"name":"sam"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello sam", out)

	_, err = def.Execution.Processor(context.Background(), json.RawMessage(`{"name":"sam","extra":true}`), nil)
	require.Error(t, err)
}

func TestPromptSetValidatesAndTimestamps(t *testing.T) {
	prompts := NewPrompts(nil)

	_, err := prompts.Set("", mcp.Prompt{Name: "p"})
	require.Error(t, err, "prompts need at least one message")

	msg := []mcp.PromptMessage{{Role: mcp.RoleUser, Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "hi"}}}}
	stored, err := prompts.Set("", mcp.Prompt{Name: "daily reflection", Messages: msg})
	require.NoError(t, err)
	assert.NotEmpty(t, stored.ID)
	assert.NotContains(t, stored.ID, " ")
	assert.NotEmpty(t, stored.Created)

	updated, err := prompts.Set(stored.ID, mcp.Prompt{Name: "daily reflection", Description: "v2", Messages: msg})
	require.NoError(t, err)
	assert.Equal(t, stored.Created, updated.Created)

	got, ok := prompts.GetByName("daily reflection")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Description)
}
