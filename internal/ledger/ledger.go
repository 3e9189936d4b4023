// Package ledger tracks which events the pipeline has already
// attempted, so an at-least-once feed is consumed idempotently.
//
// The working set is an in-memory map for O(1) gating, checkpointed
// to a SQLite file so a restart reloads every id that was previously
// marked. Ids are marked only after a full pipeline attempt (success
// or terminal failure), never on observation alone: a crash mid-event
// leaves the id unmarked and the event is reprocessed, which the
// content-addressed write-back makes safe.
//
// Startup priming deliberately marks the recent backlog as handled so
// the pipeline only reacts to events created after it started. This
// is a skip-backlog policy, not a durability mechanism; because the
// primed ids are checkpointed too, a restart does not resurrect the
// backlog.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS handled_events (
	event_id   TEXT PRIMARY KEY,
	handled_at INTEGER NOT NULL
) WITHOUT ROWID;
`

// Ledger is the dedup gate. It is mutated by a single goroutine (the
// orchestrator) and needs no locking of its own.
type Ledger struct {
	db      *sql.DB
	handled map[string]struct{}
}

// Open opens (creating if needed) the ledger database at path and
// loads all previously handled ids into memory.
func Open(path string) (*Ledger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening ledger db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging ledger db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}

	l := &Ledger{db: db, handled: make(map[string]struct{})}
	if err := l.load(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load() error {
	rows, err := l.db.Query(`SELECT event_id FROM handled_events`)
	if err != nil {
		return fmt.Errorf("loading handled events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning handled event: %w", err)
		}
		l.handled[id] = struct{}{}
	}
	return rows.Err()
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

// Has reports whether id has already been attempted.
func (l *Ledger) Has(id string) bool {
	_, ok := l.handled[id]
	return ok
}

// MarkHandled records that a full pipeline attempt was made for id.
// Marking the same id twice is a no-op.
func (l *Ledger) MarkHandled(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("event id is required")
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO handled_events (event_id, handled_at) VALUES (?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		id, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("marking event %s handled: %w", id, err)
	}
	l.handled[id] = struct{}{}
	return nil
}

// Prime marks a batch of historical event ids as handled in one
// transaction. Used at startup to skip the pre-existing backlog.
// Returns how many ids were newly marked.
func (l *Ledger) Prime(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting prime transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	marked := 0
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := l.handled[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO handled_events (event_id, handled_at) VALUES (?, ?)
			 ON CONFLICT (event_id) DO NOTHING`,
			id, now); err != nil {
			return 0, fmt.Errorf("priming event %s: %w", id, err)
		}
		marked++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing prime transaction: %w", err)
	}

	for _, id := range ids {
		if id != "" {
			l.handled[id] = struct{}{}
		}
	}
	return marked, nil
}

// Len returns how many ids are currently tracked.
func (l *Ledger) Len() int {
	return len(l.handled)
}
