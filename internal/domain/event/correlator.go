package event

import (
	"log/slog"
)

// Placement says where an approval is surfaced in the transcript.
type Placement string

const (
	// PlacementInline attaches the approval to the assistant message that
	// immediately precedes it in run order.
	PlacementInline Placement = "inline"
	// PlacementStandalone renders the approval as an independent notice.
	PlacementStandalone Placement = "standalone"
)

// RenderItem is the correlator's verdict for one approval.requested event.
// The correlator is the single source of truth for this classification: an
// approval appears in exactly one RenderItem regardless of how many surfaces
// consume the plan.
type RenderItem struct {
	ApprovalID string    `json:"approval_id"`
	EventID    string    `json:"event_id"`
	RunID      string    `json:"run_id"`
	Placement  Placement `json:"placement"`
	// AttachedMessageID is the message event the approval is attached to.
	// Set only for inline placements.
	AttachedMessageID string `json:"attached_message_id,omitempty"`
}

// RunResolver answers whether a run ID is known. Approval events referencing
// unknown runs are dropped rather than aborting stream processing.
type RunResolver interface {
	RunExists(runID string) bool
}

// Correlator classifies approval.requested events in an ordered event stream.
type Correlator struct {
	runs   RunResolver
	logger *slog.Logger
}

// NewCorrelator creates a Correlator. runs may be nil, in which case every
// run reference is accepted.
func NewCorrelator(runs RunResolver, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{runs: runs, logger: logger}
}

// Correlate walks the events in order and produces the render plan. An
// approval event is inline iff the immediately preceding event is an
// assistant message; otherwise it is standalone. A duplicate
// approval.requested for an already-classified approval ID is dropped with a
// warning so no approval is ever represented twice.
func (c *Correlator) Correlate(events []Event) []RenderItem {
	plan := make([]RenderItem, 0)
	seen := make(map[string]bool)

	for i, ev := range events {
		if ev.Type != TypeApprovalRequested {
			continue
		}
		if c.runs != nil && !c.runs.RunExists(ev.RunID) {
			c.logger.Warn("dropping approval event for unknown run",
				"event_id", ev.ID,
				"run_id", ev.RunID,
				"approval_id", ev.ApprovalID,
			)
			continue
		}
		if seen[ev.ApprovalID] {
			c.logger.Warn("dropping duplicate approval event",
				"event_id", ev.ID,
				"approval_id", ev.ApprovalID,
			)
			continue
		}
		seen[ev.ApprovalID] = true

		item := RenderItem{
			ApprovalID: ev.ApprovalID,
			EventID:    ev.ID,
			RunID:      ev.RunID,
			Placement:  PlacementStandalone,
		}
		if i > 0 {
			prev := events[i-1]
			if prev.Type == TypeMessage && prev.Role == RoleAssistant && prev.RunID == ev.RunID {
				item.Placement = PlacementInline
				item.AttachedMessageID = prev.ID
			}
		}
		plan = append(plan, item)
	}

	return plan
}
