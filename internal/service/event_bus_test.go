package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/warden-hq/warden/internal/adapter/outbound/memory"
	"github.com/warden-hq/warden/internal/domain/event"
)

func TestEventBusAssignsPerRunSequence(t *testing.T) {
	t.Parallel()

	bus := NewEventBus(memory.NewEventJournal(), nil, testLogger())
	defer bus.Close()

	for i := 0; i < 3; i++ {
		bus.Emit(context.Background(), event.Event{RunID: "run-a", Type: event.TypeMessage})
	}
	bus.Emit(context.Background(), event.Event{RunID: "run-b", Type: event.TypeMessage})

	eventsA, err := bus.History(context.Background(), "run-a")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(eventsA) != 3 {
		t.Fatalf("expected 3 events for run-a, got %d", len(eventsA))
	}
	for i, ev := range eventsA {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, ev.Seq)
		}
		if ev.ID == "" {
			t.Errorf("event %d: missing ID", i)
		}
	}

	eventsB, _ := bus.History(context.Background(), "run-b")
	if len(eventsB) != 1 || eventsB[0].Seq != 1 {
		t.Errorf("run-b sequence should start at 1, got %+v", eventsB)
	}
}

func TestEventBusFanOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	bus := NewEventBus(memory.NewEventJournal(), nil, testLogger())

	ch, cancel := bus.Subscribe()
	defer cancel()

	emitted := bus.Emit(context.Background(), event.Event{RunID: "run-1", Type: event.TypeMessage})

	select {
	case got := <-ch:
		if got.ID != emitted.ID {
			t.Errorf("subscriber got %s, want %s", got.ID, emitted.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestEventBusSlowSubscriberDropsNotBlocks(t *testing.T) {
	t.Parallel()

	bus := NewEventBus(memory.NewEventJournal(), nil, testLogger())
	defer bus.Close()

	_, cancel := bus.Subscribe() // never drained
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*2; i++ {
			bus.Emit(context.Background(), event.Event{RunID: "run-1", Type: event.TypeUsage})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("emit blocked on a full subscriber")
	}
}

func TestEventBusSubscribeCancelIdempotent(t *testing.T) {
	t.Parallel()

	bus := NewEventBus(memory.NewEventJournal(), nil, testLogger())
	defer bus.Close()

	_, cancel := bus.Subscribe()
	cancel()
	cancel() // must not panic on double close
}
