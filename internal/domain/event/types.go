// Package event contains the per-run event stream types and the correlator
// that decides how approvals are surfaced.
package event

import (
	"context"
	"time"
)

// Type classifies a run event.
type Type string

const (
	// TypeMessage is a chat message emitted during the run.
	TypeMessage Type = "message"
	// TypeArtifact is a produced artifact (diff, diagram, document).
	TypeArtifact Type = "artifact"
	// TypePlan is a plan update.
	TypePlan Type = "plan"
	// TypeUsage is a token/cost usage report.
	TypeUsage Type = "usage"
	// TypeApprovalRequested is emitted when an approval record is created.
	TypeApprovalRequested Type = "approval.requested"
	// TypeApprovalResolved is emitted when an approval reaches a terminal state.
	TypeApprovalResolved Type = "approval.resolved"
)

// Message roles for TypeMessage events.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleSystem    = "system"
)

// Event is a single entry in a run's totally ordered event stream. Events
// are the sole channel through which approval state changes become visible
// to observers.
type Event struct {
	ID    string `json:"id"`
	RunID string `json:"run_id"`
	// Seq is the per-run emission sequence; it defines the total order.
	Seq  uint64 `json:"seq"`
	Type Type   `json:"type"`
	// Role is set on message events ("assistant", "user", "system").
	Role string `json:"role,omitempty"`
	// ApprovalID is set on approval.* events.
	ApprovalID string `json:"approval_id,omitempty"`
	// Payload carries the type-specific body (message text, the approval
	// record, artifact metadata).
	Payload       map[string]any `json:"payload,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Journal persists the per-run event streams in emission order.
type Journal interface {
	// Append stores an event. Events for one run must be appended in
	// sequence order.
	Append(ctx context.Context, ev Event) error
	// ListByRun returns all events for a run ordered by sequence.
	ListByRun(ctx context.Context, runID string) ([]Event, error)
	// Close releases resources.
	Close() error
}
