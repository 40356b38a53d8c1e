package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/scrivener-app/scrivener/registry"
	"github.com/scrivener-app/scrivener/sessions"
	"github.com/scrivener-app/scrivener/store"
)

type createMemoryArgs struct {
	Content  string `json:"content" jsonschema:"required,description=The fact to remember"`
	Category string `json:"category,omitempty" jsonschema:"description=Optional grouping label"`
}

type listMemoriesArgs struct {
	Category string `json:"category,omitempty" jsonschema:"description=Only return memories in this category"`
}

type updateMemoryArgs struct {
	ID       string  `json:"id" jsonschema:"required,description=Memory id to update"`
	Content  *string `json:"content,omitempty" jsonschema:"description=Replacement content"`
	Category *string `json:"category,omitempty" jsonschema:"description=Replacement category"`
}

type deleteMemoryArgs struct {
	ID string `json:"id" jsonschema:"required,description=Memory id to delete"`
}

// RegisterMemoryTools adds the memory CRUD tools to the catalog.
func RegisterMemoryTools(cat *registry.Tools, st *store.Store) {
	cat.Register("memory_create", registry.ProcessorTool(
		"memory_create",
		"Remember a fact on behalf of the current user",
		func(ctx context.Context, session *sessions.Session, args createMemoryArgs) (any, error) {
			if args.Content == "" {
				return nil, errors.New("content is required")
			}
			return st.CreateMemory(ctx, session.UserID(), args.Content, args.Category)
		},
	))

	cat.Register("memory_list", registry.ProcessorTool(
		"memory_list",
		"List the current user's memories, optionally filtered by category",
		func(ctx context.Context, session *sessions.Session, args listMemoriesArgs) (any, error) {
			memories, err := st.ListMemories(ctx, session.UserID(), args.Category)
			if err != nil {
				return nil, err
			}
			return map[string]any{"memories": memories, "count": len(memories)}, nil
		},
	))

	cat.Register("memory_update", registry.ProcessorTool(
		"memory_update",
		"Update the content or category of one of the current user's memories",
		func(ctx context.Context, session *sessions.Session, args updateMemoryArgs) (any, error) {
			if args.ID == "" {
				return nil, errors.New("id is required")
			}
			mem, err := st.UpdateMemory(ctx, session.UserID(), args.ID, args.Content, args.Category)
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("memory not found: %s", args.ID)
			}
			return mem, err
		},
	))

	cat.Register("memory_delete", registry.ProcessorTool(
		"memory_delete",
		"Forget one of the current user's memories",
		func(ctx context.Context, session *sessions.Session, args deleteMemoryArgs) (any, error) {
			if args.ID == "" {
				return nil, errors.New("id is required")
			}
			err := st.DeleteMemory(ctx, session.UserID(), args.ID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("memory not found: %s", args.ID)
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true, "id": args.ID}, nil
		},
	))
}
