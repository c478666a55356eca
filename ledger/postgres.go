package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresLedger implements Ledger against a shared Postgres database,
// for deployments running the monitor across several processes.
type PostgresLedger struct {
	db *sql.DB
}

// NewPostgres opens a Postgres-backed ledger using dsn (a
// postgres:// connection string or libpq keyword/value string).
func NewPostgres(dsn string) (*PostgresLedger, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: ping postgres: %w", err)
	}

	l := &PostgresLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return l, nil
}

func (l *PostgresLedger) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS task_executions (
		id TEXT PRIMARY KEY,
		task_kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(`CREATE INDEX IF NOT EXISTS idx_task_executions_finished_at
		ON task_executions(finished_at)`)
	return err
}

func (l *PostgresLedger) Record(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO task_executions
		(id, task_kind, outcome, detail, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.TaskKind, e.Outcome, e.Detail, e.StartedAt, e.FinishedAt)
	if err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, task_kind, outcome, detail, started_at, finished_at
		FROM task_executions ORDER BY finished_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TaskKind, &e.Outcome, &e.Detail, &e.StartedAt, &e.FinishedAt); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (l *PostgresLedger) Close() error {
	return l.db.Close()
}
