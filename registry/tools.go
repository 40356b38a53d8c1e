package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/sessions"
)

// ExecutionKind selects how a tool is executed.
type ExecutionKind int

const (
	// KindNone marks a tool that is advertised but has no execution binding;
	// calling it fails with an internal error. Tools registered over the wire
	// without an integration land here.
	KindNone ExecutionKind = iota
	// KindBuiltin runs one of the server's own named handlers inline.
	KindBuiltin
	// KindAPI delegates to the external API-integration invoker.
	KindAPI
	// KindProcessor calls a handler function registered in-process.
	KindProcessor
)

func (k ExecutionKind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindAPI:
		return "api"
	case KindProcessor:
		return "processor"
	default:
		return "none"
	}
}

// ProcessorFunc is the signature for in-process tool handlers. Handlers may
// call external services; errors become error-shaped tool results, never
// transport failures.
type ProcessorFunc func(ctx context.Context, args json.RawMessage, session *sessions.Session) (any, error)

// Execution is the tagged union describing how a tool runs. The variant is
// resolved once at registration time.
type Execution struct {
	Kind ExecutionKind

	// KindAPI fields.
	IntegrationID string
	Method        string
	Path          string

	// KindProcessor field.
	Processor ProcessorFunc
}

// ToolDefinition pairs a client-facing descriptor with its execution binding.
type ToolDefinition struct {
	Tool      mcp.Tool
	Execution Execution
}

// Tools is the tool catalog.
type Tools struct {
	*Registry[ToolDefinition]
}

// NewTools constructs the tool catalog, announcing mutations as
// notifications/tools/list_changed.
func NewTools(b Broadcaster) *Tools {
	return &Tools{Registry: New[ToolDefinition](string(mcp.ToolsListChangedNotificationMethod), b)}
}

// Register upserts a tool definition, normalizing the descriptor name to the
// registry key and defaulting missing schema metadata.
func (t *Tools) Register(name string, def ToolDefinition) ToolDefinition {
	def.Tool.Name = name
	if def.Tool.Description == "" {
		def.Tool.Description = "Tool: " + name
	}
	if def.Tool.InputSchema.Type == "" {
		def.Tool.InputSchema = mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]mcp.SchemaProperty{},
		}
	}
	return t.Upsert(name, def)
}

// Descriptors returns the client-facing tool descriptors in insertion order.
func (t *Tools) Descriptors() []mcp.Tool {
	defs := t.Snapshot()
	out := make([]mcp.Tool, len(defs))
	for i, d := range defs {
		out[i] = d.Tool
	}
	return out
}

// wireDefinition is the over-the-wire shape accepted by tools/register. It
// mirrors the flattened layout clients send: schema metadata alongside the
// API binding fields.
type wireDefinition struct {
	Description   string               `json:"description"`
	InputSchema   *mcp.ToolInputSchema `json:"inputSchema"`
	Method        string               `json:"method"`
	Path          string               `json:"path"`
	IntegrationID string               `json:"apiIntegrationId"`
}

// ParseDefinition decodes a client-supplied tool definition. Definitions that
// name an API integration bind to the api execution kind; anything else is
// stored unexecutable (KindNone), matching upsert-not-error semantics.
func ParseDefinition(raw json.RawMessage) (ToolDefinition, error) {
	var wd wireDefinition
	if err := json.Unmarshal(raw, &wd); err != nil {
		return ToolDefinition{}, fmt.Errorf("invalid tool definition: %w", err)
	}

	def := ToolDefinition{
		Tool: mcp.Tool{Description: wd.Description},
	}
	if wd.InputSchema != nil {
		def.Tool.InputSchema = *wd.InputSchema
	}
	if wd.IntegrationID != "" {
		method := strings.ToUpper(wd.Method)
		if method == "" {
			method = "GET"
		}
		path := wd.Path
		if path == "" {
			path = "/"
		}
		def.Execution = Execution{
			Kind:          KindAPI,
			IntegrationID: wd.IntegrationID,
			Method:        method,
			Path:          path,
		}
	}
	return def, nil
}
