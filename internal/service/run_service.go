package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/event"
)

// RunService manages agent run records and their message/artifact streams.
type RunService struct {
	runs   agent.RunStore
	roles  agent.RoleStore
	bus    *EventBus
	logger *slog.Logger
	now    func() time.Time
}

// NewRunService creates a run service.
func NewRunService(runs agent.RunStore, roles agent.RoleStore, bus *EventBus, logger *slog.Logger) *RunService {
	return &RunService{
		runs:   runs,
		roles:  roles,
		bus:    bus,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new run for an existing role.
func (s *RunService) Create(ctx context.Context, roleID, objective string) (*agent.Run, error) {
	if _, err := s.roles.GetRole(ctx, roleID); err != nil {
		return nil, fmt.Errorf("run create: %w", err)
	}

	now := s.now()
	run := &agent.Run{
		ID:        uuid.New().String(),
		Objective: objective,
		RoleID:    roleID,
		Status:    agent.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.runs.SaveRun(ctx, run); err != nil {
		return nil, fmt.Errorf("run create: %w", err)
	}

	s.logger.Info("run created", "run_id", run.ID, "role", roleID)
	return run, nil
}

// Get returns a run by ID.
func (s *RunService) Get(ctx context.Context, id string) (*agent.Run, error) {
	return s.runs.GetRun(ctx, id)
}

// List returns all runs, newest first.
func (s *RunService) List(ctx context.Context) ([]agent.Run, error) {
	return s.runs.ListRuns(ctx)
}

// SetStatus transitions a run's lifecycle state.
func (s *RunService) SetStatus(ctx context.Context, id string, status agent.RunStatus) error {
	return s.runs.SetRunStatus(ctx, id, status)
}

// RecordMessage appends a chat message to a run's event stream. role is one
// of the event message roles (assistant, user, system).
func (s *RunService) RecordMessage(ctx context.Context, runID, role, text string) (event.Event, error) {
	if _, err := s.runs.GetRun(ctx, runID); err != nil {
		return event.Event{}, fmt.Errorf("record message: %w", err)
	}
	ev := s.bus.Emit(ctx, event.Event{
		RunID:   runID,
		Type:    event.TypeMessage,
		Role:    role,
		Payload: map[string]any{"text": text},
	})
	return ev, nil
}

// RecordArtifact appends an artifact event to a run's stream.
func (s *RunService) RecordArtifact(ctx context.Context, runID, name string, meta map[string]any) (event.Event, error) {
	if _, err := s.runs.GetRun(ctx, runID); err != nil {
		return event.Event{}, fmt.Errorf("record artifact: %w", err)
	}
	payload := map[string]any{"name": name}
	for k, v := range meta {
		payload[k] = v
	}
	ev := s.bus.Emit(ctx, event.Event{
		RunID:   runID,
		Type:    event.TypeArtifact,
		Payload: payload,
	})
	return ev, nil
}

// Events returns a run's persisted event stream in sequence order.
func (s *RunService) Events(ctx context.Context, runID string) ([]event.Event, error) {
	if _, err := s.runs.GetRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return s.bus.History(ctx, runID)
}
