// Package ledger records an append-only audit trail of scheduler task
// executions: what ran, how it finished, and when. It is deliberately
// outside the entity graph migrate.Migrate moves — a ledger entry is
// evidence about a run, not a forge record, so it is never copied by
// a store migration.
package ledger

import (
	"context"
	"time"
)

// Entry is one completed scheduler task, recorded after the fact.
type Entry struct {
	ID         string
	TaskKind   string
	Outcome    string // "success" or "failure"
	Detail     string // error text on failure, empty on success
	StartedAt  time.Time
	FinishedAt time.Time
}

// Ledger persists Entries and lists them back out, newest first (by
// FinishedAt), at most limit at a time. Implementations must be safe for concurrent use: the
// scheduler may record from many worker goroutines at once.
type Ledger interface {
	Record(ctx context.Context, e Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
