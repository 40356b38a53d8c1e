// Package store is the SQLite persistence layer for journal entries and
// memories. It uses the pure-Go modernc.org/sqlite driver so the binary
// stays cgo-free.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("store: not found")

// Open opens (creating if necessary) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite writes are serialized regardless; a single connection avoids
	// SQLITE_BUSY under concurrent tool calls.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying %q: %w", pragma, err)
		}
	}
	return db, nil
}

// JournalEntry is one dated journal record owned by a user.
type JournalEntry struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Mood      string `json:"mood,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Memory is a small free-form fact remembered on a user's behalf.
type Memory struct {
	ID        string `json:"id"`
	UserID    string `json:"userId"`
	Content   string `json:"content"`
	Category  string `json:"category,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Store provides CRUD over journal entries and memories.
type Store struct {
	db *sql.DB
}

// New applies the journal schema to db and returns a Store sharing that
// handle.
func New(db *sql.DB) (*Store, error) {
	schema := `
		CREATE TABLE IF NOT EXISTS journal_entries (
			entry_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			mood TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_journal_entries_user ON journal_entries(user_id, created_at);

		CREATE TABLE IF NOT EXISTS memories (
			memory_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id, created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating store schema: %w", err)
	}
	return &Store{db: db}, nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// CreateEntry inserts a new journal entry for userID and returns it.
func (s *Store) CreateEntry(ctx context.Context, userID, title, content, mood string) (*JournalEntry, error) {
	entry := &JournalEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   content,
		Mood:      mood,
		CreatedAt: nowStamp(),
	}
	entry.UpdatedAt = entry.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO journal_entries (entry_id, user_id, title, content, mood, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.UserID, entry.Title, entry.Content, nullable(entry.Mood), entry.CreatedAt, entry.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting journal entry: %w", err)
	}
	return entry, nil
}

// ListEntries returns all of userID's entries, newest first.
func (s *Store) ListEntries(ctx context.Context, userID string) ([]JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_id, user_id, title, content, mood, created_at, updated_at
		FROM journal_entries WHERE user_id = ? ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing journal entries: %w", err)
	}
	defer rows.Close()

	entries := []JournalEntry{}
	for rows.Next() {
		var e JournalEntry
		var mood sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Title, &e.Content, &mood, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}
		e.Mood = mood.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntry fetches one of userID's entries by id.
func (s *Store) GetEntry(ctx context.Context, userID, entryID string) (*JournalEntry, error) {
	var e JournalEntry
	var mood sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT entry_id, user_id, title, content, mood, created_at, updated_at
		FROM journal_entries WHERE entry_id = ? AND user_id = ?
	`, entryID, userID).Scan(&e.ID, &e.UserID, &e.Title, &e.Content, &mood, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching journal entry: %w", err)
	}
	e.Mood = mood.String
	return &e, nil
}

// UpdateEntry applies the non-nil fields to userID's entry and returns the
// updated row.
func (s *Store) UpdateEntry(ctx context.Context, userID, entryID string, title, content, mood *string) (*JournalEntry, error) {
	entry, err := s.GetEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if title != nil {
		entry.Title = *title
	}
	if content != nil {
		entry.Content = *content
	}
	if mood != nil {
		entry.Mood = *mood
	}
	entry.UpdatedAt = nowStamp()

	_, err = s.db.ExecContext(ctx, `
		UPDATE journal_entries SET title = ?, content = ?, mood = ?, updated_at = ?
		WHERE entry_id = ? AND user_id = ?
	`, entry.Title, entry.Content, nullable(entry.Mood), entry.UpdatedAt, entryID, userID)
	if err != nil {
		return nil, fmt.Errorf("updating journal entry: %w", err)
	}
	return entry, nil
}

// DeleteEntry removes userID's entry by id.
func (s *Store) DeleteEntry(ctx context.Context, userID, entryID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM journal_entries WHERE entry_id = ? AND user_id = ?
	`, entryID, userID)
	if err != nil {
		return fmt.Errorf("deleting journal entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateMemory inserts a new memory for userID and returns it.
func (s *Store) CreateMemory(ctx context.Context, userID, content, category string) (*Memory, error) {
	mem := &Memory{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		Category:  category,
		CreatedAt: nowStamp(),
	}
	mem.UpdatedAt = mem.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memories (memory_id, user_id, content, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, mem.ID, mem.UserID, mem.Content, nullable(mem.Category), mem.CreatedAt, mem.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting memory: %w", err)
	}
	return mem, nil
}

// ListMemories returns userID's memories, optionally filtered by category,
// newest first.
func (s *Store) ListMemories(ctx context.Context, userID, category string) ([]Memory, error) {
	query := `
		SELECT memory_id, user_id, content, category, created_at, updated_at
		FROM memories WHERE user_id = ?
	`
	args := []any{userID}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing memories: %w", err)
	}
	defer rows.Close()

	memories := []Memory{}
	for rows.Next() {
		var m Memory
		var cat sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &cat, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning memory: %w", err)
		}
		m.Category = cat.String
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// UpdateMemory applies the non-nil fields to userID's memory and returns the
// updated row.
func (s *Store) UpdateMemory(ctx context.Context, userID, memoryID string, content, category *string) (*Memory, error) {
	var m Memory
	var cat sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT memory_id, user_id, content, category, created_at, updated_at
		FROM memories WHERE memory_id = ? AND user_id = ?
	`, memoryID, userID).Scan(&m.ID, &m.UserID, &m.Content, &cat, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching memory: %w", err)
	}
	m.Category = cat.String

	if content != nil {
		m.Content = *content
	}
	if category != nil {
		m.Category = *category
	}
	m.UpdatedAt = nowStamp()

	_, err = s.db.ExecContext(ctx, `
		UPDATE memories SET content = ?, category = ?, updated_at = ?
		WHERE memory_id = ? AND user_id = ?
	`, m.Content, nullable(m.Category), m.UpdatedAt, memoryID, userID)
	if err != nil {
		return nil, fmt.Errorf("updating memory: %w", err)
	}
	return &m, nil
}

// DeleteMemory removes userID's memory by id.
func (s *Store) DeleteMemory(ctx context.Context, userID, memoryID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM memories WHERE memory_id = ? AND user_id = ?
	`, memoryID, userID)
	if err != nil {
		return fmt.Errorf("deleting memory: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
