package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/warden-hq/warden/internal/domain/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestJournal(t *testing.T) *EventJournal {
	t.Helper()
	j, err := NewEventJournal(filepath.Join(t.TempDir(), "events.db"), testLogger())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalAppendAndListByRun(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	events := []event.Event{
		{ID: "e1", RunID: "run-1", Seq: 1, Type: event.TypeMessage, Role: event.RoleAssistant,
			Payload: map[string]any{"text": "working on it"}, CreatedAt: now},
		{ID: "e2", RunID: "run-1", Seq: 2, Type: event.TypeApprovalRequested, ApprovalID: "ap-1",
			Payload: map[string]any{"status": "pending"}, CreatedAt: now.Add(time.Second)},
		{ID: "e3", RunID: "run-2", Seq: 1, Type: event.TypeMessage, Role: event.RoleUser,
			CreatedAt: now},
	}
	for _, ev := range events {
		if err := j.Append(ctx, ev); err != nil {
			t.Fatalf("append %s: %v", ev.ID, err)
		}
	}

	got, err := j.ListByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for run-1, got %d", len(got))
	}
	if got[0].ID != "e1" || got[1].ID != "e2" {
		t.Errorf("wrong order: %s then %s", got[0].ID, got[1].ID)
	}
	if got[0].Payload["text"] != "working on it" {
		t.Errorf("payload not preserved: %+v", got[0].Payload)
	}
	if got[1].ApprovalID != "ap-1" {
		t.Errorf("approval id not preserved: %q", got[1].ApprovalID)
	}
	if !got[0].CreatedAt.Equal(now) {
		t.Errorf("created_at not preserved: got %v, want %v", got[0].CreatedAt, now)
	}

	other, _ := j.ListByRun(ctx, "run-2")
	if len(other) != 1 || other[0].ID != "e3" {
		t.Errorf("run-2 stream wrong: %+v", other)
	}
}

func TestJournalRejectsDuplicateSeq(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	ctx := context.Background()

	ev := event.Event{ID: "e1", RunID: "run-1", Seq: 1, Type: event.TypeMessage, CreatedAt: time.Now()}
	if err := j.Append(ctx, ev); err != nil {
		t.Fatalf("append: %v", err)
	}
	dup := ev
	dup.ID = "e2"
	if err := j.Append(ctx, dup); err == nil {
		t.Error("expected unique constraint violation for duplicate (run_id, seq)")
	}
}

func TestJournalListUnknownRunIsEmpty(t *testing.T) {
	t.Parallel()

	j := newTestJournal(t)
	got, err := j.ListByRun(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty stream, got %d events", len(got))
	}
}

func TestJournalSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.db")
	j, err := NewEventJournal(path, testLogger())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ev := event.Event{ID: "e1", RunID: "run-1", Seq: 1, Type: event.TypePlan, CreatedAt: time.Now()}
	if err := j.Append(context.Background(), ev); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewEventJournal(path, testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.ListByRun(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "e1" {
		t.Errorf("event lost across reopen: %+v", got)
	}
}
