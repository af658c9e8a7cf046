package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridiangw/gateway/pkg/contracts"
	"github.com/meridiangw/gateway/pkg/models"
)

// PostgresSink persists audit entries to a `gateway_audit_log` table. The
// core never depends on a schema beyond this single table: the sink owns its
// own connection pool, creates that table if it is missing, and otherwise
// only appends rows; there are no other migrations and no ORM.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn and creates the audit table if it does not
// exist.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres audit sink: %w", err)
	}
	const ddl = `CREATE TABLE IF NOT EXISTS gateway_audit_log (
		id TEXT PRIMARY KEY,
		sequence BIGSERIAL,
		ts TIMESTAMPTZ NOT NULL,
		action TEXT NOT NULL,
		details JSONB
	)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure audit table: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// Append inserts one row. Rows are never updated or deleted by this sink.
func (s *PostgresSink) Append(ctx context.Context, entry models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO gateway_audit_log (id, ts, action, details) VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.Timestamp, entry.Action, details,
	)
	return err
}

// Close releases the connection pool.
func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

var _ contracts.AuditSink = (*PostgresSink)(nil)
