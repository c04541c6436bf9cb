package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warden-hq/warden/internal/domain/event"
	"github.com/warden-hq/warden/internal/telemetry"
)

// subscriberBuffer is the per-subscriber channel depth. Slow subscribers
// drop events rather than stall emission.
const subscriberBuffer = 64

// EventBus assigns per-run sequence numbers, persists events to the journal,
// and fans them out to live subscribers. Emission is the single serialization
// point for a run's stream, so sequence numbers define a total order.
type EventBus struct {
	journal event.Journal
	metrics *telemetry.Metrics
	logger  *slog.Logger

	mu      sync.Mutex
	seq     map[string]uint64 // runID -> last assigned seq
	subs    map[uint64]*subscriber
	nextSub uint64
}

// subscriber wraps a delivery channel with close-once semantics so that
// Subscribe's cancel func and Close never double-close.
type subscriber struct {
	ch   chan event.Event
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.ch) })
}

// NewEventBus creates an event bus backed by the given journal.
func NewEventBus(journal event.Journal, metrics *telemetry.Metrics, logger *slog.Logger) *EventBus {
	return &EventBus{
		journal: journal,
		metrics: metrics,
		logger:  logger,
		seq:     make(map[string]uint64),
		subs:    make(map[uint64]*subscriber),
	}
}

// Emit stamps the event with an ID, per-run sequence number, and timestamp,
// persists it, and fans it out. The stamped event is returned. A journal
// write failure is logged but does not block delivery to subscribers.
func (b *EventBus) Emit(ctx context.Context, ev event.Event) event.Event {
	b.mu.Lock()
	b.seq[ev.RunID]++
	ev.Seq = b.seq[ev.RunID]
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	if err := b.journal.Append(ctx, ev); err != nil {
		b.logger.Error("failed to journal event",
			"event_id", ev.ID,
			"run_id", ev.RunID,
			"type", ev.Type,
			"error", err,
		)
	}

	for id, sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("subscriber buffer full, dropping event",
				"subscriber", id,
				"event_id", ev.ID,
				"type", ev.Type,
			)
		}
	}
	b.mu.Unlock()

	b.metrics.RecordEvent(string(ev.Type))
	return ev
}

// Subscribe registers a live event channel. The returned cancel func
// unregisters and closes the channel; it is idempotent.
func (b *EventBus) Subscribe() (<-chan event.Event, func()) {
	sub := &subscriber{ch: make(chan event.Event, subscriberBuffer)}

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		sub.close()
	}
	return sub.ch, cancel
}

// History returns a run's persisted events in sequence order.
func (b *EventBus) History(ctx context.Context, runID string) ([]event.Event, error) {
	return b.journal.ListByRun(ctx, runID)
}

// Close unregisters all subscribers and closes the journal.
func (b *EventBus) Close() error {
	b.mu.Lock()
	for id, sub := range b.subs {
		delete(b.subs, id)
		sub.close()
	}
	b.mu.Unlock()
	return b.journal.Close()
}
