package trace

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore persists the span/event wire schema to MySQL/MariaDB, grounded
// on the teacher's store/mysql.go connection-pool and schema conventions
// (InnoDB, utf8mb4, JSON columns) but repointed at spans/events.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL connection pool against dsn and ensures the
// spans/events schema exists. DSN format matches go-sql-driver/mysql, e.g.
// "user:pass@tcp(localhost:3306)/nodeflow?parseTime=true".
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("trace: open mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("trace: ping mysql: %w", err)
	}

	store := &MySQLStore{db: db}
	if err := store.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (m *MySQLStore) createTables(ctx context.Context) error {
	spansTable := `
		CREATE TABLE IF NOT EXISTS spans (
			trace_id VARCHAR(64) NOT NULL,
			span_id VARCHAR(64) NOT NULL PRIMARY KEY,
			parent_span_id VARCHAR(64),
			service_name VARCHAR(255) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			name VARCHAR(255) NOT NULL,
			attributes JSON NOT NULL,
			status VARCHAR(32) NOT NULL,
			error TEXT,
			start_time VARCHAR(64) NOT NULL,
			end_time VARCHAR(64),
			INDEX idx_trace_id (trace_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, spansTable); err != nil {
		return fmt.Errorf("trace: create spans table: %w", err)
	}

	eventsTable := `
		CREATE TABLE IF NOT EXISTS events (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			trace_id VARCHAR(64) NOT NULL,
			span_id VARCHAR(64) NOT NULL,
			event_type VARCHAR(255) NOT NULL,
			level VARCHAR(16) NOT NULL,
			message TEXT,
			attributes JSON NOT NULL,
			timestamp VARCHAR(64) NOT NULL,
			INDEX idx_trace_id (trace_id)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, eventsTable); err != nil {
		return fmt.Errorf("trace: create events table: %w", err)
	}
	return nil
}

func (m *MySQLStore) SaveSpan(ctx context.Context, rec SpanRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO spans (trace_id, span_id, parent_span_id, service_name, kind, name, attributes, status, error, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status=VALUES(status), error=VALUES(error), end_time=VALUES(end_time), attributes=VALUES(attributes)`,
		rec.TraceID, rec.SpanID, rec.ParentSpanID, rec.ServiceName, rec.Kind, rec.Name,
		rec.Attributes, rec.Status, rec.Error, rec.StartTime, rec.EndTime)
	if err != nil {
		return fmt.Errorf("trace: save span: %w", err)
	}
	return nil
}

func (m *MySQLStore) SaveEvent(ctx context.Context, rec EventRecord) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO events (trace_id, span_id, event_type, level, message, attributes, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TraceID, rec.SpanID, rec.EventType, rec.Level, rec.Message, rec.Attributes, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("trace: save event: %w", err)
	}
	return nil
}

func (m *MySQLStore) SpansByTrace(ctx context.Context, traceID string) ([]SpanRecord, error) {
	rows, err := m.db.QueryContext(ctx, `
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

func (m *MySQLStore) Close() error {
	return m.db.Close()
}
