package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SQLiteSink writes audit records to a SQLite table. It shares the database
// handle with the rest of the application.
type SQLiteSink struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteSink prepares the audit_log table on the given database and
// returns a sink writing to it.
func NewSQLiteSink(db *sql.DB, log *slog.Logger) (*SQLiteSink, error) {
	if log == nil {
		log = slog.Default()
	}
	schema := `
		CREATE TABLE IF NOT EXISTS audit_log (
			audit_id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			tool_name TEXT NOT NULL,
			arguments_json TEXT,
			success INTEGER NOT NULL,
			detail TEXT,
			ts TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_log_ts ON audit_log(ts);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}
	return &SQLiteSink{db: db, log: log.With(slog.String("component", "audit"))}, nil
}

// Record implements Sink.
func (s *SQLiteSink) Record(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.UserID == "" {
		rec.UserID = "anonymous"
	}

	detail := rec.Outcome.Error
	if detail == "" && rec.Outcome.Result != nil {
		if data, err := json.Marshal(rec.Outcome.Result); err == nil {
			detail = string(data)
		}
	}

	var args *string
	if len(rec.Arguments) > 0 {
		str := string(rec.Arguments)
		args = &str
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (audit_id, user_id, tool_name, arguments_json, success, detail, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.UserID, rec.ToolName, args, boolToInt(rec.Outcome.Success), detail, rec.Timestamp.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("inserting audit record: %w", err)
	}

	s.log.Debug("recorded tool execution",
		slog.String("id", rec.ID),
		slog.String("user_id", rec.UserID),
		slog.String("tool", rec.ToolName),
		slog.Bool("success", rec.Outcome.Success),
	)
	return nil
}

// List returns the most recent records, newest first. Limit defaults to 100
// and caps at 1000.
func (s *SQLiteSink) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT audit_id, user_id, tool_name, arguments_json, success, detail, ts
		FROM audit_log ORDER BY ts DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var args, detail sql.NullString
		var success int
		var ts string
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ToolName, &args, &success, &detail, &ts); err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		if args.Valid {
			rec.Arguments = json.RawMessage(args.String)
		}
		rec.Outcome.Success = success != 0
		if !rec.Outcome.Success {
			rec.Outcome.Error = detail.String
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
