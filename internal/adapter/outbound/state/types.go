// Package state provides file-based persistence for Warden's governance
// configuration: agent roles and the policy set. It offers atomic writes,
// cross-process file locking, and backup copies.
package state

import (
	"time"

	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/policy"
)

// GovernanceState is the top-level structure persisted in governance.json.
// It is always written whole, so readers see either the previous or the next
// configuration, never a mix.
type GovernanceState struct {
	// Version is the schema version for forward compatibility. Currently "1".
	Version string `json:"version"`

	// Roles are the configured agent roles.
	Roles []agent.Role `json:"roles"`

	// Policies are the global and agent-scoped policies.
	Policies []policy.Policy `json:"policies"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
