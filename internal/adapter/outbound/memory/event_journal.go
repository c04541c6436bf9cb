package memory

import (
	"context"
	"sync"

	"github.com/warden-hq/warden/internal/domain/event"
)

// EventJournal implements event.Journal with per-run in-memory slices.
// Used in tests and when no journal path is configured.
type EventJournal struct {
	mu    sync.RWMutex
	byRun map[string][]event.Event
}

// NewEventJournal creates an empty in-memory event journal.
func NewEventJournal() *EventJournal {
	return &EventJournal{byRun: make(map[string][]event.Event)}
}

// Append stores an event at the end of its run's stream.
func (j *EventJournal) Append(ctx context.Context, ev event.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.byRun[ev.RunID] = append(j.byRun[ev.RunID], ev)
	return nil
}

// ListByRun returns all events for a run in emission order.
func (j *EventJournal) ListByRun(ctx context.Context, runID string) ([]event.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	events := j.byRun[runID]
	result := make([]event.Event, len(events))
	copy(result, events)
	return result, nil
}

// Close is a no-op for the in-memory journal.
func (j *EventJournal) Close() error {
	return nil
}

// Compile-time interface verification.
var _ event.Journal = (*EventJournal)(nil)
