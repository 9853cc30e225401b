package trace

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists the span/event wire schema to a single-file SQLite
// database, grounded on the teacher's store/sqlite.go (WAL mode, busy
// timeout, auto-migrated schema) but repointed at spans/events instead of
// workflow-state checkpoints — durable workflow resumption is out of
// scope, auditable trace history is not.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite database at path and
// ensures the spans/events schema exists. path may be ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("trace: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("trace: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS spans (
			trace_id TEXT NOT NULL,
			span_id TEXT NOT NULL PRIMARY KEY,
			parent_span_id TEXT,
			service_name TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			attributes TEXT NOT NULL,
			status TEXT NOT NULL,
			error TEXT,
			start_time TEXT NOT NULL,
			end_time TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_spans_trace_id ON spans(trace_id)`,
		`CREATE TABLE IF NOT EXISTS events (
			trace_id TEXT NOT NULL,
			span_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			level TEXT NOT NULL,
			message TEXT,
			attributes TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_trace_id ON events(trace_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("trace: create schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveSpan(ctx context.Context, rec SpanRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spans (trace_id, span_id, parent_span_id, service_name, kind, name, attributes, status, error, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(span_id) DO UPDATE SET
			status=excluded.status, error=excluded.error, end_time=excluded.end_time, attributes=excluded.attributes`,
		rec.TraceID, rec.SpanID, rec.ParentSpanID, rec.ServiceName, rec.Kind, rec.Name,
		rec.Attributes, rec.Status, rec.Error, rec.StartTime, rec.EndTime)
	if err != nil {
		return fmt.Errorf("trace: save span: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SaveEvent(ctx context.Context, rec EventRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (trace_id, span_id, event_type, level, message, attributes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.SpanID, rec.EventType, rec.Level, rec.Message, rec.Attributes, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("trace: save event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SpansByTrace(ctx context.Context, traceID string) ([]SpanRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT trace_id, span_id, parent_span_id, service_name, kind, name, attributes, status, error, start_time, end_time
		FROM spans WHERE trace_id = ? ORDER BY start_time ASC`, traceID)
	if err != nil {
		return nil, fmt.Errorf("trace: query spans: %w", err)
	}
	defer rows.Close()

	var out []SpanRecord
	for rows.Next() {
		var rec SpanRecord
		var parentSpanID, errMsg, endTime sql.NullString
		if err := rows.Scan(&rec.TraceID, &rec.SpanID, &parentSpanID, &rec.ServiceName,
			&rec.Kind, &rec.Name, &rec.Attributes, &rec.Status, &errMsg, &rec.StartTime, &endTime); err != nil {
			return nil, fmt.Errorf("trace: scan span: %w", err)
		}
		rec.ParentSpanID = parentSpanID.String
		rec.Error = errMsg.String
		rec.EndTime = endTime.String
		out = append(out, rec)
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
