// Package approval contains domain types for the human approval lifecycle.
package approval

import (
	"time"

	"github.com/warden-hq/warden/internal/domain/capability"
)

// Type classifies what kind of action is awaiting approval.
type Type string

const (
	TypeMCPTool      Type = "mcp_tool"
	TypeCommandLine  Type = "command_line"
	TypeExternalLink Type = "external_link"
)

// Status is the lifecycle state of an approval. All states other than
// pending are terminal and absorbing.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Terminal reports whether the status permits no further mutation.
func (s Status) Terminal() bool {
	return s != StatusPending
}

// Decision is the human verdict on an approval.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	// DecisionExpired is used only in resolution events emitted by the
	// expiry sweep; it is never accepted from a caller.
	DecisionExpired Decision = "expired"
)

// Approval is a single pending-or-decided human-authorization record tied to
// one proposed action within one run. It resolves exactly once.
type Approval struct {
	ID    string               `json:"id"`
	RunID string               `json:"run_id"`
	Risk  capability.RiskLevel `json:"risk"`
	// Capability is the catalog ID that triggered the approval, when known.
	Capability string `json:"capability,omitempty"`
	// Reason explains why approval is required (the matched rule or risk default).
	Reason      string     `json:"reason"`
	RequestedAt time.Time  `json:"requested_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`

	Type Type `json:"type"`
	// Source names the origin of the request (tool name, agent surface).
	Source string `json:"source"`
	// Action is the proposed action. Editable by the human while pending;
	// once decided it holds the final action as authorized.
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`

	Status    Status     `json:"status"`
	Decision  Decision   `json:"decision,omitempty"`
	Note      string     `json:"note,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// ExpiredAt reports whether the approval's deadline has elapsed at the given time.
// Approvals without a deadline never expire.
func (a *Approval) ExpiredAt(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// Clone returns a deep copy so callers can hand records out without
// exposing internal state to mutation.
func (a *Approval) Clone() *Approval {
	c := *a
	if a.ExpiresAt != nil {
		t := *a.ExpiresAt
		c.ExpiresAt = &t
	}
	if a.DecidedAt != nil {
		t := *a.DecidedAt
		c.DecidedAt = &t
	}
	if a.Params != nil {
		c.Params = make(map[string]any, len(a.Params))
		for k, v := range a.Params {
			c.Params[k] = v
		}
	}
	return &c
}
