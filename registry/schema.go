package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/scrivener-app/scrivener/mcp"
	"github.com/scrivener-app/scrivener/sessions"
)

// InputSchemaFor reflects a Go argument struct into the simplified wire
// schema. Non-object shapes collapse to an empty object schema.
func InputSchemaFor[A any](allowAdditional bool) mcp.ToolInputSchema {
	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: allowAdditional,
	}
	s := r.Reflect(new(A))

	if s == nil || s.Type != "object" {
		return mcp.ToolInputSchema{
			Type:                 "object",
			Properties:           map[string]mcp.SchemaProperty{},
			AdditionalProperties: allowAdditional,
		}
	}

	props := make(map[string]mcp.SchemaProperty)
	if s.Properties != nil {
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			props[el.Key] = toSchemaProperty(el.Value)
		}
	}
	var required []string
	if len(s.Required) > 0 {
		required = append(required, s.Required...)
	}

	return mcp.ToolInputSchema{
		Type:                 "object",
		Properties:           props,
		Required:             required,
		AdditionalProperties: allowAdditional,
	}
}

// toSchemaProperty recursively maps a reflected schema node to the simplified
// wire representation.
func toSchemaProperty(s *jsonschema.Schema) mcp.SchemaProperty {
	if s == nil {
		return mcp.SchemaProperty{}
	}
	p := mcp.SchemaProperty{
		Type:        s.Type,
		Description: s.Description,
	}
	if len(s.Enum) > 0 {
		p.Enum = s.Enum
	}
	if s.Default != nil {
		p.Default = s.Default
	}
	if s.Type == "array" && s.Items != nil {
		item := toSchemaProperty(s.Items)
		p.Items = &item
	}
	if s.Type == "object" && s.Properties != nil {
		m := make(map[string]mcp.SchemaProperty, s.Properties.Len())
		for el := s.Properties.Oldest(); el != nil; el = el.Next() {
			m[el.Key] = toSchemaProperty(el.Value)
		}
		p.Properties = m
	}
	return p
}

// ProcessorTool builds a processor-backed tool definition from a typed
// argument struct. Arguments are decoded strictly; unknown fields are
// rejected before the handler runs.
func ProcessorTool[A any](name, description string, fn func(ctx context.Context, session *sessions.Session, args A) (any, error)) ToolDefinition {
	return ToolDefinition{
		Tool: mcp.Tool{
			Name:        name,
			Description: description,
			InputSchema: InputSchemaFor[A](false),
		},
		Execution: Execution{
			Kind: KindProcessor,
			Processor: func(ctx context.Context, raw json.RawMessage, session *sessions.Session) (any, error) {
				var a A
				if len(raw) > 0 {
					dec := json.NewDecoder(bytes.NewReader(raw))
					dec.DisallowUnknownFields()
					if err := dec.Decode(&a); err != nil {
						return nil, fmt.Errorf("invalid arguments: %w", err)
					}
				}
				return fn(ctx, session, a)
			},
		},
	}
}
