// Package policy contains domain types for layered capability policy resolution.
package policy

import (
	"errors"
	"fmt"
	"time"

	"github.com/warden-hq/warden/internal/domain/capability"
)

// Action is the result a policy rule assigns to a matching request.
type Action string

const (
	// ActionAllow permits the action to proceed without a human decision.
	ActionAllow Action = "allow"
	// ActionDeny blocks the action outright.
	ActionDeny Action = "deny"
	// ActionRequireApproval blocks the action pending a human decision.
	ActionRequireApproval Action = "require_approval"
)

// Valid reports whether a is one of the three defined actions.
func (a Action) Valid() bool {
	return a == ActionAllow || a == ActionDeny || a == ActionRequireApproval
}

// Scope identifies which layer a policy belongs to. Agent-scoped policies
// are evaluated before global ones, so a per-agent rule can loosen or
// tighten a global rule for that agent only.
type Scope string

const (
	// ScopeGlobal policies apply to every agent role.
	ScopeGlobal Scope = "global"
	// ScopeAgent policies apply only to the role named by Policy.AgentID.
	ScopeAgent Scope = "agent"
)

// Rule is a single authorization rule within a policy. Rules are kept in
// list order; within a layer the first matching rule wins.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string `json:"id" yaml:"id"`
	// Name is a human-readable name for this rule.
	Name string `json:"name" yaml:"name"`
	// Resource is the resource pattern the rule applies to. Exact names
	// ("shell.execute") and glob patterns ("net.*", "*") are supported.
	Resource string `json:"resource" yaml:"resource"`
	// Action is the decision when this rule matches.
	Action Action `json:"action" yaml:"action"`
	// Condition is an optional CEL predicate evaluated against the concrete
	// request (command, path, domain, params). Empty means unconditional.
	Condition string `json:"conditions,omitempty" yaml:"condition,omitempty"`
}

// Policy is a named, scoped, ordered collection of rules.
type Policy struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Scope       Scope  `json:"scope" yaml:"scope"`
	// AgentID is the role this policy is scoped to. Required iff Scope is
	// ScopeAgent; must be empty for global policies.
	AgentID     string    `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Rules       []Rule    `json:"rules" yaml:"rules"`
	Active      bool      `json:"is_active" yaml:"active"`
	LastUpdated time.Time `json:"last_updated" yaml:"last_updated,omitempty"`
}

// Validate checks the scope/agent invariant and rule well-formedness.
func (p *Policy) Validate() error {
	switch p.Scope {
	case ScopeGlobal:
		if p.AgentID != "" {
			return fmt.Errorf("policy %q: global policy must not carry agent_id", p.Name)
		}
	case ScopeAgent:
		if p.AgentID == "" {
			return fmt.Errorf("policy %q: agent-scoped policy requires agent_id", p.Name)
		}
	default:
		return fmt.Errorf("policy %q: unknown scope %q", p.Name, p.Scope)
	}
	for i, r := range p.Rules {
		if r.Resource == "" {
			return fmt.Errorf("policy %q rule %d: resource is required", p.Name, i)
		}
		if !r.Action.Valid() {
			return fmt.Errorf("policy %q rule %d: unknown action %q", p.Name, i, r.Action)
		}
	}
	return nil
}

// Sentinel errors surfaced by resolution. Both are terminal, non-retryable
// conditions; callers must keep their reasons distinct when presenting them.
var (
	// ErrCapabilityNotGranted indicates the role's grant set excludes the
	// requested capability. This gate runs before any rule is consulted.
	ErrCapabilityNotGranted = errors.New("capability not granted to role")
	// ErrPolicyDenied indicates an explicit deny rule matched.
	ErrPolicyDenied = errors.New("denied by policy")
)

// Cause identifies which stage of resolution produced the decision.
type Cause string

const (
	// CauseCapabilityGate means the role's grant set excluded the capability.
	CauseCapabilityGate Cause = "capability_gate"
	// CauseRule means a policy rule matched.
	CauseRule Cause = "rule"
	// CauseRiskDefault means no rule matched and the risk-level default applied.
	CauseRiskDefault Cause = "risk_default"
)

// Resolution is the outcome of resolving a request against the policy layers.
type Resolution struct {
	// Decision is allow, deny, or require_approval.
	Decision Action `json:"decision"`
	// Risk is the capability's risk level (critical for unclassified capabilities).
	Risk capability.RiskLevel `json:"risk_level"`
	// RuleID and RuleName identify the matched rule, empty when the default applied.
	RuleID   string `json:"rule_id,omitempty"`
	RuleName string `json:"rule_name,omitempty"`
	// PolicyID identifies the policy the matched rule came from.
	PolicyID string `json:"policy_id,omitempty"`
	// PolicyScope is the layer that produced the decision ("agent" or "global"),
	// empty when the risk-based default applied.
	PolicyScope Scope `json:"matched_policy_scope,omitempty"`
	// Cause identifies the resolution stage that decided.
	Cause Cause `json:"cause"`
	// Reason explains why the decision was made.
	Reason string `json:"reason"`
}
