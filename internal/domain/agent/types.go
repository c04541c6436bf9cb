// Package agent contains domain types for agent roles and runs.
package agent

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for role and run lookups.
var (
	// ErrRoleNotFound is returned when a role ID has no registered role.
	ErrRoleNotFound = errors.New("role not found")
	// ErrUnknownRun is returned when a run ID references no known run.
	ErrUnknownRun = errors.New("unknown run reference")
	// ErrSystemRole is returned on attempts to delete a system role.
	ErrSystemRole = errors.New("system roles cannot be deleted")
)

// LLMConfig describes the model backing an agent role.
type LLMConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Role defines an agent role: the set of capabilities it may ever invoke
// plus its model configuration. Holding a capability is necessary but not
// sufficient; policy may still require approval or deny the request.
type Role struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	LLM          LLMConfig `json:"llm_config"`
	Capabilities []string  `json:"capabilities"`
	System       bool      `json:"is_system"`
}

// HasCapability reports whether the role's grant set contains the capability ID.
func (r *Role) HasCapability(id string) bool {
	for _, c := range r.Capabilities {
		if c == id {
			return true
		}
	}
	return false
}

// RunStatus is the lifecycle state of an agent run.
type RunStatus string

const (
	RunStatusRunning          RunStatus = "running"
	RunStatusAwaitingApproval RunStatus = "awaiting_approval"
	RunStatusCompleted        RunStatus = "completed"
	RunStatusFailed           RunStatus = "failed"
	RunStatusCancelled        RunStatus = "cancelled"
)

// Run is one execution instance of an agent working toward an objective.
// It owns zero or more approvals (by run ID) and emits events.
type Run struct {
	ID        string    `json:"id"`
	Objective string    `json:"objective"`
	RoleID    string    `json:"role"`
	Status    RunStatus `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoleStore persists agent roles. Updates replace the whole record so that
// concurrent readers never observe a half-updated capability set.
type RoleStore interface {
	GetRole(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	SaveRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id string) error
}

// RunStore persists agent runs.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context) ([]Run, error)
	SaveRun(ctx context.Context, r *Run) error
	SetRunStatus(ctx context.Context, id string, status RunStatus) error
}
