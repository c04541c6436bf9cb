package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/approval"
	"github.com/warden-hq/warden/internal/domain/capability"
	"github.com/warden-hq/warden/internal/domain/event"
	"github.com/warden-hq/warden/internal/telemetry"
)

// CreateApprovalInput carries everything needed to open an approval.
type CreateApprovalInput struct {
	RunID      string
	Type       approval.Type
	Source     string
	Action     string
	Params     map[string]any
	Capability string
	Risk       capability.RiskLevel
	Reason     string
	// TTL overrides the service-wide deadline for this approval when > 0.
	TTL time.Duration
}

// ApprovalService owns the approval lifecycle: create, edit-while-pending,
// decide exactly once, and expiry. Every state change is visible to
// observers solely through events emitted on the bus.
type ApprovalService struct {
	runs    agent.RunStore
	bus     *EventBus
	metrics *telemetry.Metrics
	logger  *slog.Logger
	ttl     time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	approvals map[string]*approval.Approval
}

// ApprovalOption configures an ApprovalService.
type ApprovalOption func(*ApprovalService)

// WithApprovalTTL sets the deadline applied to new approvals. Zero disables
// expiry.
func WithApprovalTTL(ttl time.Duration) ApprovalOption {
	return func(s *ApprovalService) {
		s.ttl = ttl
	}
}

// WithApprovalMetrics sets the metrics sink.
func WithApprovalMetrics(m *telemetry.Metrics) ApprovalOption {
	return func(s *ApprovalService) {
		s.metrics = m
	}
}

// WithApprovalClock overrides the time source. Used in tests.
func WithApprovalClock(now func() time.Time) ApprovalOption {
	return func(s *ApprovalService) {
		s.now = now
	}
}

// NewApprovalService creates an approval service.
func NewApprovalService(runs agent.RunStore, bus *EventBus, logger *slog.Logger, opts ...ApprovalOption) *ApprovalService {
	s := &ApprovalService{
		runs:      runs,
		bus:       bus,
		logger:    logger,
		ttl:       5 * time.Minute,
		now:       func() time.Time { return time.Now().UTC() },
		approvals: make(map[string]*approval.Approval),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a new pending approval for an existing run, emits
// approval.requested, and parks the run in awaiting_approval.
func (s *ApprovalService) Create(ctx context.Context, in CreateApprovalInput) (*approval.Approval, error) {
	run, err := s.runs.GetRun(ctx, in.RunID)
	if err != nil {
		return nil, fmt.Errorf("approval create for run %s: %w", in.RunID, err)
	}

	now := s.now()
	a := &approval.Approval{
		ID:          uuid.New().String(),
		RunID:       run.ID,
		Capability:  in.Capability,
		Reason:      in.Reason,
		RequestedAt: now,
		Type:        in.Type,
		Source:      in.Source,
		Action:      in.Action,
		Params:      in.Params,
		Status:      approval.StatusPending,
		Risk:        in.Risk,
	}
	ttl := s.ttl
	if in.TTL > 0 {
		ttl = in.TTL
	}
	if ttl > 0 {
		deadline := now.Add(ttl)
		a.ExpiresAt = &deadline
	}

	s.mu.Lock()
	s.approvals[a.ID] = a
	s.mu.Unlock()

	if err := s.runs.SetRunStatus(ctx, run.ID, agent.RunStatusAwaitingApproval); err != nil {
		s.logger.Error("failed to park run awaiting approval", "run_id", run.ID, "error", err)
	}

	s.bus.Emit(ctx, event.Event{
		RunID:      a.RunID,
		Type:       event.TypeApprovalRequested,
		ApprovalID: a.ID,
		Payload:    approvalPayload(a),
	})
	s.metrics.RecordApprovalCreated()

	s.logger.Info("approval requested",
		"approval_id", a.ID,
		"run_id", a.RunID,
		"type", a.Type,
		"action", a.Action,
	)
	return a.Clone(), nil
}

// Get returns an approval by ID.
func (s *ApprovalService) Get(ctx context.Context, id string) (*approval.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.approvals[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	return a.Clone(), nil
}

// List returns all approvals, optionally filtered to pending only, newest first.
func (s *ApprovalService) List(ctx context.Context, pendingOnly bool) []*approval.Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*approval.Approval, 0, len(s.approvals))
	for _, a := range s.approvals {
		if pendingOnly && a.Status != approval.StatusPending {
			continue
		}
		result = append(result, a.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})
	return result
}

// ListByRun returns a run's approvals in request order.
func (s *ApprovalService) ListByRun(ctx context.Context, runID string) []*approval.Approval {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*approval.Approval
	for _, a := range s.approvals {
		if a.RunID == runID {
			result = append(result, a.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.Before(result[j].RequestedAt)
	})
	return result
}

// EditAction replaces the proposed action of a pending approval. Only the
// action text is editable, and only before a decision; the approval then
// proceeds with the edited action as the thing being authorized.
func (s *ApprovalService) EditAction(ctx context.Context, id, action string) (*approval.Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.approvals[id]
	if !ok {
		return nil, approval.ErrNotFound
	}
	if a.Status.Terminal() {
		return nil, fmt.Errorf("cannot edit %s approval %s: %w", a.Status, id, approval.ErrInvalidState)
	}

	a.Action = action
	s.logger.Info("approval action edited", "approval_id", id)
	return a.Clone(), nil
}

// Decide applies a human verdict to a pending approval. Exactly one decision
// ever lands: a second attempt returns ErrAlreadyDecided, and a decision
// arriving after the deadline expires the approval and returns ErrExpired.
// A non-empty finalAction replaces the proposed action in the same commit, so
// the action persisted is exactly the one the human authorized; there is no
// window where a decision lands against a different action text.
func (s *ApprovalService) Decide(ctx context.Context, id string, decision approval.Decision, note, finalAction string) (*approval.Approval, error) {
	if decision != approval.DecisionApproved && decision != approval.DecisionRejected {
		return nil, fmt.Errorf("decision %q: %w", decision, approval.ErrInvalidState)
	}

	s.mu.Lock()
	a, ok := s.approvals[id]
	if !ok {
		s.mu.Unlock()
		return nil, approval.ErrNotFound
	}
	if a.Status.Terminal() {
		s.mu.Unlock()
		return nil, fmt.Errorf("approval %s already %s: %w", id, a.Status, approval.ErrAlreadyDecided)
	}

	now := s.now()
	if a.ExpiredAt(now) {
		s.expireLocked(a, now)
		expired := a.Clone()
		s.mu.Unlock()
		s.emitResolved(ctx, expired)
		return nil, fmt.Errorf("approval %s deadline elapsed: %w", id, approval.ErrExpired)
	}

	if finalAction != "" {
		a.Action = finalAction
	}
	a.Decision = decision
	a.Note = note
	a.DecidedAt = &now
	if decision == approval.DecisionApproved {
		a.Status = approval.StatusApproved
	} else {
		a.Status = approval.StatusRejected
	}
	decided := a.Clone()
	s.mu.Unlock()

	s.emitResolved(ctx, decided)

	s.logger.Info("approval decided",
		"approval_id", id,
		"decision", decision,
		"run_id", decided.RunID,
	)
	return decided, nil
}

// SweepExpired transitions every pending approval past its deadline to
// expired, emitting exactly one approval.resolved each. Returns the number
// of approvals expired by this pass.
func (s *ApprovalService) SweepExpired(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var expired []*approval.Approval
	for _, a := range s.approvals {
		if a.Status == approval.StatusPending && a.ExpiredAt(now) {
			s.expireLocked(a, now)
			expired = append(expired, a.Clone())
		}
	}
	s.mu.Unlock()

	for _, a := range expired {
		s.emitResolved(ctx, a)
		s.logger.Info("approval expired", "approval_id", a.ID, "run_id", a.RunID)
	}
	s.metrics.RecordSweep()
	return len(expired)
}

// expireLocked marks a pending approval expired. Caller holds s.mu.
func (s *ApprovalService) expireLocked(a *approval.Approval, now time.Time) {
	a.Status = approval.StatusExpired
	a.Decision = approval.DecisionExpired
	a.DecidedAt = &now
}

// emitResolved publishes the terminal transition and records metrics.
func (s *ApprovalService) emitResolved(ctx context.Context, a *approval.Approval) {
	s.bus.Emit(ctx, event.Event{
		RunID:      a.RunID,
		Type:       event.TypeApprovalResolved,
		ApprovalID: a.ID,
		Payload:    approvalPayload(a),
	})
	s.metrics.RecordApprovalResolved(string(a.Status))
}

// approvalPayload is the event body for approval.* events.
func approvalPayload(a *approval.Approval) map[string]any {
	p := map[string]any{
		"approval_id": a.ID,
		"status":      string(a.Status),
		"type":        string(a.Type),
		"action":      a.Action,
		"reason":      a.Reason,
	}
	if a.Decision != "" {
		p["decision"] = string(a.Decision)
	}
	if a.Note != "" {
		p["note"] = a.Note
	}
	return p
}
