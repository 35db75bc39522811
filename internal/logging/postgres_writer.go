package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"aws_facade/internal/audit"
)

// Schema creates the table PostgresWriter inserts into.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id          UUID PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL,
	class       TEXT NOT NULL,
	method      TEXT NOT NULL,
	level       TEXT NOT NULL,
	message     TEXT NOT NULL,
	request     JSONB NOT NULL,
	response    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_records_recorded_at_idx ON audit_records (recorded_at);
`

const insertAuditRecord = `
INSERT INTO audit_records (id, recorded_at, class, method, level, message, request, response)
VALUES (:id, :recorded_at, :class, :method, :level, :message, :request, :response)`

type auditRow struct {
	ID         string    `db:"id"`
	RecordedAt time.Time `db:"recorded_at"`
	Class      string    `db:"class"`
	Method     string    `db:"method"`
	Level      string    `db:"level"`
	Message    string    `db:"message"`
	Request    string    `db:"request"`
	Response   string    `db:"response"`
}

func newAuditRow(e Entry) (auditRow, error) {
	request, err := json.Marshal(e.Record.Request)
	if err != nil {
		return auditRow{}, err
	}
	return auditRow{
		ID:         uuid.NewString(),
		RecordedAt: e.Timestamp,
		Class:      string(e.Record.Category),
		Method:     e.Record.Operation,
		Level:      string(e.Record.Level),
		Message:    e.Record.Message,
		Request:    string(request),
		Response:   e.Record.Response,
	}, nil
}

func (r auditRow) entry() (Entry, error) {
	var req audit.Request
	if err := json.Unmarshal([]byte(r.Request), &req); err != nil {
		return Entry{}, err
	}
	return Entry{
		Timestamp: r.RecordedAt,
		Record: audit.Record{
			Category:  audit.Category(r.Class),
			Message:   r.Message,
			Operation: r.Method,
			Level:     audit.Level(r.Level),
			Request:   req,
			Response:  r.Response,
		},
	}, nil
}

// PostgresWriter stores audit entries in the audit_records table.
type PostgresWriter struct {
	db *sqlx.DB
}

// NewPostgresWriter connects to dsn.
func NewPostgresWriter(ctx context.Context, dsn string) (*PostgresWriter, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresWriter{db: db}, nil
}

// NewPostgresWriterFromDB uses an existing connection pool.
func NewPostgresWriterFromDB(db *sqlx.DB) *PostgresWriter {
	return &PostgresWriter{db: db}
}

// EnsureSchema creates the table if it does not exist.
func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// WriteBatch inserts entries in one transaction.
func (w *PostgresWriter) WriteBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	rows := make([]auditRow, 0, len(entries))
	for _, e := range entries {
		row, err := newAuditRow(e)
		if err != nil {
			return fmt.Errorf("failed to encode audit record: %w", err)
		}
		rows = append(rows, row)
	}

	tx, err := w.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to insert audit records: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, insertAuditRecord, rows); err != nil {
		return fmt.Errorf("failed to insert audit records: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to insert audit records: %w", err)
	}
	return nil
}

// Recent returns the newest limit entries, newest first.
func (w *PostgresWriter) Recent(ctx context.Context, limit int) ([]Entry, error) {
	var rows []auditRow
	err := w.db.SelectContext(ctx, &rows, `
		SELECT id, recorded_at, class, method, level, message, request::text AS request, response
		FROM audit_records
		ORDER BY recorded_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit records: %w", err)
	}

	entries := make([]Entry, 0, len(rows))
	for _, r := range rows {
		e, err := r.entry()
		if err != nil {
			return nil, fmt.Errorf("failed to decode audit record %s: %w", r.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close closes the connection pool.
func (w *PostgresWriter) Close() error {
	return w.db.Close()
}
