package ledger

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteLedger implements Ledger on a local SQLite file, suitable for
// a single-operator run of the monitor.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite opens (creating if necessary) a SQLite-backed ledger at
// dsn. Use ":memory:" for a throwaway ledger in tests.
func NewSQLite(dsn string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: set busy timeout: %w", err)
	}
	if dsn != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("ledger: enable WAL: %w", err)
		}
	}

	l := &SQLiteLedger{db: db}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: migrate: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) migrate() error {
	_, err := l.db.Exec(`CREATE TABLE IF NOT EXISTS task_executions (
		id TEXT PRIMARY KEY,
		task_kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	)`)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(`CREATE INDEX IF NOT EXISTS idx_task_executions_finished_at
		ON task_executions(finished_at)`)
	return err
}

func (l *SQLiteLedger) Record(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO task_executions
		(id, task_kind, outcome, detail, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.TaskKind, e.Outcome, e.Detail, e.StartedAt, e.FinishedAt)
	if err != nil {
		return fmt.Errorf("ledger: record: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, task_kind, outcome, detail, started_at, finished_at
		FROM task_executions ORDER BY finished_at DESC LIMIT ?`, limit)
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

func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}
