package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const createFlushRecords = `
CREATE TABLE IF NOT EXISTS flush_records (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_session_id    TEXT NOT NULL,
	assistant_id       TEXT NOT NULL,
	user_message       TEXT NOT NULL,
	assistant_response TEXT NOT NULL,
	tenant_id          TEXT NOT NULL,
	message_index      INTEGER NOT NULL,
	source             TEXT NOT NULL,
	buffered_at        TEXT NOT NULL,
	flushed_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS flush_records_session ON flush_records (chat_session_id);
`

const insertFlushRecord = `
INSERT INTO flush_records (
	chat_session_id, assistant_id, user_message, assistant_response,
	tenant_id, message_index, source, buffered_at, flushed_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SQLite is a Writer that stores records in a local SQLite table. Each batch
// is one transaction.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the database at path. Use ":memory:"
// for an in-memory database.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, createFlushRecords); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLite{db: db}, nil
}

// WriteBatch implements Writer.
func (s *SQLite) WriteBatch(ctx context.Context, records []FlushRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, insertFlushRecord)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	flushedAt := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.ChatSessionID, r.AssistantID, r.UserMessage, r.AssistantResponse,
			r.TenantID, r.MessageIndex, r.Source, r.Timestamp, flushedAt,
		); err != nil {
			return fmt.Errorf("insert record %d: %w", r.MessageIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Records returns the stored records of a session in insertion order. An
// empty sessionID returns every record.
func (s *SQLite) Records(ctx context.Context, sessionID string) ([]FlushRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT chat_session_id, assistant_id, user_message, assistant_response,
       tenant_id, message_index, source, buffered_at
FROM flush_records WHERE ? = '' OR chat_session_id = ? ORDER BY id`, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []FlushRecord
	for rows.Next() {
		var r FlushRecord
		if err := rows.Scan(
			&r.ChatSessionID, &r.AssistantID, &r.UserMessage, &r.AssistantResponse,
			&r.TenantID, &r.MessageIndex, &r.Source, &r.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Writer.
func (s *SQLite) Close() error {
	return s.db.Close()
}
