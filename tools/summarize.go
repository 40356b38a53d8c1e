package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scrivener-app/scrivener/executor"
	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/registry"
	"github.com/scrivener-app/scrivener/sessions"
	"github.com/scrivener-app/scrivener/summarize"
)

type summarizeArgs struct {
	Content string `json:"content"`
	Type    string `json:"type,omitempty"`
}

// RegisterSummarize advertises the summarizeContent builtin and binds its
// handler on the executor.
func RegisterSummarize(cat *registry.Tools, exec *executor.Executor, sum summarize.Summarizer) {
	cat.Register("summarizeContent", registry.ToolDefinition{
		Tool: mcp.Tool{
			Name:        "summarizeContent",
			Description: "Summarize the provided content",
			InputSchema: mcp.ToolInputSchema{
				Type: "object",
				Properties: map[string]mcp.SchemaProperty{
					"content": {
						Type:        "string",
						Description: "The content to summarize",
					},
					"type": {
						Type:        "string",
						Description: "Summary style",
						Enum:        []any{summarize.KindHeadline, summarize.KindParagraph, summarize.KindFull},
						Default:     summarize.KindHeadline,
					},
				},
				Required: []string{"content"},
			},
		},
		Execution: registry.Execution{Kind: registry.KindBuiltin},
	})

	exec.RegisterBuiltin("summarizeContent", func(ctx context.Context, session *sessions.Session, raw json.RawMessage) (any, error) {
		var args summarizeArgs
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("invalid arguments: %w", err)
			}
		}
		if args.Content == "" {
			return nil, errors.New("content is required")
		}
		summary, err := sum.Summarize(ctx, args.Content, args.Type)
		if err != nil {
			return nil, err
		}
		return map[string]any{"summary": summary, "type": normalizeKind(args.Type)}, nil
	})
}

func normalizeKind(kind string) string {
	if kind == "" {
		return summarize.KindHeadline
	}
	return kind
}
