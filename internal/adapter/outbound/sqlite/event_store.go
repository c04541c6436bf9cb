// Package sqlite provides a durable, per-run-ordered event journal backed by
// SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/warden-hq/warden/internal/domain/event"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id             TEXT PRIMARY KEY,
	run_id         TEXT NOT NULL,
	seq            INTEGER NOT NULL,
	type           TEXT NOT NULL,
	role           TEXT NOT NULL DEFAULT '',
	approval_id    TEXT NOT NULL DEFAULT '',
	correlation_id TEXT NOT NULL DEFAULT '',
	payload        TEXT NOT NULL DEFAULT '{}',
	created_at     TEXT NOT NULL,
	UNIQUE (run_id, seq)
);
CREATE INDEX IF NOT EXISTS idx_events_run ON events (run_id, seq);
`

// EventJournal implements event.Journal on a SQLite database file.
// The (run_id, seq) unique index enforces the per-run total order.
type EventJournal struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventJournal opens (or creates) the journal database at path and
// applies the schema. Use ":memory:" for an ephemeral journal.
func NewEventJournal(path string, logger *slog.Logger) (*EventJournal, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	// SQLite handles one writer at a time; serialize access through a
	// single connection to avoid SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}

	logger.Debug("event journal opened", "path", path)
	return &EventJournal{db: db, logger: logger}, nil
}

// Append stores an event.
func (j *EventJournal) Append(ctx context.Context, ev event.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = j.db.ExecContext(ctx,
		`INSERT INTO events (id, run_id, seq, type, role, approval_id, correlation_id, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, ev.Seq, string(ev.Type), ev.Role, ev.ApprovalID,
		ev.CorrelationID, string(payload), ev.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// ListByRun returns all events for a run ordered by sequence.
func (j *EventJournal) ListByRun(ctx context.Context, runID string) ([]event.Event, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, seq, type, role, approval_id, correlation_id, payload, created_at
		 FROM events WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []event.Event
	for rows.Next() {
		var (
			ev        event.Event
			evType    string
			payload   string
			createdAt string
		)
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Seq, &evType, &ev.Role,
			&ev.ApprovalID, &ev.CorrelationID, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Type = event.Type(evType)
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			// A corrupt payload is fatal to this record only; keep the
			// stream readable.
			j.logger.Warn("skipping event with corrupt payload", "event_id", ev.ID, "error", err)
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			ev.CreatedAt = t
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}

// Close closes the underlying database.
func (j *EventJournal) Close() error {
	return j.db.Close()
}

// Compile-time interface verification.
var _ event.Journal = (*EventJournal)(nil)
