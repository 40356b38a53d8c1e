// Package tools wires the server's stock tool catalog: journal and memory
// processors backed by the store, and the summarizeContent builtin.
package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/scrivener-app/scrivener/registry"
	"github.com/scrivener-app/scrivener/sessions"
	"github.com/scrivener-app/scrivener/store"
)

type createEntryArgs struct {
	Title   string `json:"title" jsonschema:"required,description=Title of the journal entry"`
	Content string `json:"content" jsonschema:"required,description=Body of the journal entry"`
	Mood    string `json:"mood,omitempty" jsonschema:"description=Optional mood label"`
}

type listEntriesArgs struct{}

type updateEntryArgs struct {
	ID      string  `json:"id" jsonschema:"required,description=Entry id to update"`
	Title   *string `json:"title,omitempty" jsonschema:"description=Replacement title"`
	Content *string `json:"content,omitempty" jsonschema:"description=Replacement body"`
	Mood    *string `json:"mood,omitempty" jsonschema:"description=Replacement mood label"`
}

type deleteEntryArgs struct {
	ID string `json:"id" jsonschema:"required,description=Entry id to delete"`
}

// RegisterJournalTools adds the journal CRUD tools to the catalog.
func RegisterJournalTools(cat *registry.Tools, st *store.Store) {
	cat.Register("createJournalEntry", registry.ProcessorTool(
		"createJournalEntry",
		"Create a new journal entry for the current user",
		func(ctx context.Context, session *sessions.Session, args createEntryArgs) (any, error) {
			if args.Title == "" || args.Content == "" {
				return nil, errors.New("title and content are required")
			}
			return st.CreateEntry(ctx, session.UserID(), args.Title, args.Content, args.Mood)
		},
	))

	cat.Register("getAllJournalEntries", registry.ProcessorTool(
		"getAllJournalEntries",
		"List all journal entries belonging to the current user, newest first",
		func(ctx context.Context, session *sessions.Session, _ listEntriesArgs) (any, error) {
			entries, err := st.ListEntries(ctx, session.UserID())
			if err != nil {
				return nil, err
			}
			return map[string]any{"entries": entries, "count": len(entries)}, nil
		},
	))

	cat.Register("updateJournalEntry", registry.ProcessorTool(
		"updateJournalEntry",
		"Update the title, content or mood of one of the current user's journal entries",
		func(ctx context.Context, session *sessions.Session, args updateEntryArgs) (any, error) {
			if args.ID == "" {
				return nil, errors.New("id is required")
			}
			entry, err := st.UpdateEntry(ctx, session.UserID(), args.ID, args.Title, args.Content, args.Mood)
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("journal entry not found: %s", args.ID)
			}
			return entry, err
		},
	))

	cat.Register("deleteJournalEntry", registry.ProcessorTool(
		"deleteJournalEntry",
		"Delete one of the current user's journal entries",
		func(ctx context.Context, session *sessions.Session, args deleteEntryArgs) (any, error) {
			if args.ID == "" {
				return nil, errors.New("id is required")
			}
			err := st.DeleteEntry(ctx, session.UserID(), args.ID)
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("journal entry not found: %s", args.ID)
			}
			if err != nil {
				return nil, err
			}
			return map[string]any{"deleted": true, "id": args.ID}, nil
		},
	))
}
