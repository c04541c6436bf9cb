package policy

import (
	"context"

	"github.com/warden-hq/warden/internal/domain/agent"
)

// Resolver computes the decision for a requested capability against the
// layered policy set.
type Resolver interface {
	// Resolve evaluates the request for the given role. The returned
	// Resolution always carries a decision; an error is returned only for
	// evaluation failures (e.g., a broken condition program), never for
	// deny outcomes.
	Resolve(ctx context.Context, role agent.Role, req RequestContext) (Resolution, error)
}

// Store persists policies. Replacement is whole-object so a Resolver never
// observes a half-updated rule list.
type Store interface {
	// GetActivePolicies returns all active policies.
	GetActivePolicies(ctx context.Context) ([]Policy, error)
	// GetAllPolicies returns every policy, active or not.
	GetAllPolicies(ctx context.Context) ([]Policy, error)
	// GetPolicy returns a policy by ID.
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	// SavePolicy creates or replaces a single policy.
	SavePolicy(ctx context.Context, p *Policy) error
	// ReplaceAll atomically replaces the entire policy set.
	ReplaceAll(ctx context.Context, policies []Policy) error
	// DeletePolicy removes a policy by ID.
	DeletePolicy(ctx context.Context, id string) error
}
