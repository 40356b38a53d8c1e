// Package executor dispatches tools/call requests. It resolves the named
// tool, runs its execution binding, shapes the outcome into an MCP result,
// and records the invocation in the audit trail.
package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/scrivener-app/scrivener/audit"
	"github.com/scrivener-app/scrivener/format"
	"github.com/scrivener-app/scrivener/integrations"
	"github.com/scrivener-app/scrivener/internal/jsonrpc"
	"github.com/scrivener-app/scrivener/internal/logctx"
	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/registry"
	"github.com/scrivener-app/scrivener/sessions"
)

// Builtin is a named server-internal tool handler.
type Builtin func(ctx context.Context, session *sessions.Session, args json.RawMessage) (any, error)

// Executor runs tool calls.
type Executor struct {
	tools     *registry.Tools
	formatter *format.Formatter
	sink      audit.Sink
	invoker   integrations.Invoker
	builtins  map[string]Builtin
	log       *slog.Logger
}

// New constructs an executor. The sink and invoker may be nil; a nil sink
// disables auditing and a nil invoker fails api-bound tools at call time.
func New(tools *registry.Tools, formatter *format.Formatter, sink audit.Sink, invoker integrations.Invoker, log *slog.Logger) *Executor {
	if sink == nil {
		sink = audit.NopSink{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		tools:     tools,
		formatter: formatter,
		sink:      sink,
		invoker:   invoker,
		builtins:  make(map[string]Builtin),
		log:       log.With(slog.String("component", "executor")),
	}
}

// RegisterBuiltin binds a named builtin handler. Tool descriptors referencing
// the name must be registered in the tool catalog separately.
func (e *Executor) RegisterBuiltin(name string, fn Builtin) {
	e.builtins[name] = fn
}

// Call executes one tools/call request. Handler failures come back as
// error-shaped results (isError true); a non-nil *jsonrpc.Error is returned
// only for protocol-level failures such as an unknown tool.
func (e *Executor) Call(ctx context.Context, session *sessions.Session, req mcp.CallToolRequest) (mcp.CallToolResult, *jsonrpc.Error) {
	if req.Name == "" {
		return mcp.CallToolResult{}, jsonrpc.Errorf(jsonrpc.ErrorCodeInvalidParams, "tool name is required")
	}

	def, ok := e.tools.Get(req.Name)
	if !ok {
		return mcp.CallToolResult{}, jsonrpc.Errorf(jsonrpc.ErrorCodeMethodNotFound, "unknown tool: %s", req.Name)
	}

	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: req.Name})

	raw, err := e.execute(ctx, session, def, req.Arguments)
	if err != nil && isUnexecutable(err) {
		// A tool with no execution binding is a server configuration problem,
		// not a handler failure.
		return mcp.CallToolResult{}, jsonrpc.Errorf(jsonrpc.ErrorCodeInternalError, "cannot execute tool: %s", req.Name)
	}

	var result mcp.CallToolResult
	if err != nil {
		e.log.WarnContext(ctx, "tool execution failed", slog.String("error", err.Error()))
		result = e.formatter.Format(err, format.Options{})
	} else {
		result = e.formatter.Format(raw, format.Options{})
	}

	e.record(ctx, session, req, raw, err)
	return result, nil
}

func (e *Executor) execute(ctx context.Context, session *sessions.Session, def registry.ToolDefinition, args json.RawMessage) (any, error) {
	switch def.Execution.Kind {
	case registry.KindBuiltin:
		fn, ok := e.builtins[def.Tool.Name]
		if !ok {
			return nil, errUnexecutable
		}
		return fn(ctx, session, args)

	case registry.KindProcessor:
		if def.Execution.Processor == nil {
			return nil, errUnexecutable
		}
		return def.Execution.Processor(ctx, args, session)

	case registry.KindAPI:
		if e.invoker == nil {
			return nil, errUnexecutable
		}
		decoded := map[string]any{}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &decoded); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		return e.invoker.Invoke(ctx, def.Execution.IntegrationID, def.Execution.Method, def.Execution.Path, decoded)

	default:
		return nil, errUnexecutable
	}
}

// record writes the audit entry without holding up the response. The caller's
// context may be cancelled the moment the result is sent, so the write runs
// on a detached context.
func (e *Executor) record(ctx context.Context, session *sessions.Session, req mcp.CallToolRequest, raw any, execErr error) {
	rec := audit.Record{
		UserID:    session.UserID(),
		ToolName:  req.Name,
		Arguments: req.Arguments,
	}
	if execErr != nil {
		rec.Outcome = audit.Outcome{Success: false, Error: execErr.Error()}
	} else {
		rec.Outcome = audit.Outcome{Success: true, Result: raw}
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		if err := e.sink.Record(detached, rec); err != nil {
			e.log.ErrorContext(detached, "audit write failed",
				slog.String("tool", rec.ToolName),
				slog.String("error", err.Error()),
			)
		}
	}()
}

var errUnexecutable = fmt.Errorf("tool has no execution binding")

func isUnexecutable(err error) bool {
	return err == errUnexecutable
}
