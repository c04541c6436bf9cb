// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/warden-hq/warden/internal/domain/policy"
)

// ErrPolicyNotFound is returned when a policy ID has no stored policy.
var ErrPolicyNotFound = errors.New("policy not found")

// PolicyStore implements policy.Store with an in-memory map. Reads hand out
// deep copies and writes replace whole records, so a resolver snapshot never
// observes a half-updated rule list.
type PolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*policy.Policy
}

// NewPolicyStore creates an empty in-memory policy store.
func NewPolicyStore() *PolicyStore {
	return &PolicyStore{policies: make(map[string]*policy.Policy)}
}

// GetActivePolicies returns all active policies.
func (s *PolicyStore) GetActivePolicies(ctx context.Context) ([]policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []policy.Policy
	for _, p := range s.policies {
		if p.Active {
			result = append(result, *copyPolicy(p))
		}
	}
	return result, nil
}

// GetAllPolicies returns every policy, active or not.
func (s *PolicyStore) GetAllPolicies(ctx context.Context) ([]policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]policy.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		result = append(result, *copyPolicy(p))
	}
	return result, nil
}

// GetPolicy returns a policy by ID, or ErrPolicyNotFound.
func (s *PolicyStore) GetPolicy(ctx context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[id]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	return copyPolicy(p), nil
}

// SavePolicy creates or replaces a single policy.
func (s *PolicyStore) SavePolicy(ctx context.Context, p *policy.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies[p.ID] = copyPolicy(p)
	return nil
}

// ReplaceAll atomically replaces the entire policy set.
func (s *PolicyStore) ReplaceAll(ctx context.Context, policies []policy.Policy) error {
	next := make(map[string]*policy.Policy, len(policies))
	for i := range policies {
		next[policies[i].ID] = copyPolicy(&policies[i])
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = next
	return nil
}

// DeletePolicy removes a policy by ID, or returns ErrPolicyNotFound.
func (s *PolicyStore) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[id]; !ok {
		return ErrPolicyNotFound
	}
	delete(s.policies, id)
	return nil
}

// copyPolicy creates a deep copy of a policy.
func copyPolicy(p *policy.Policy) *policy.Policy {
	c := *p
	c.Rules = make([]policy.Rule, len(p.Rules))
	copy(c.Rules, p.Rules)
	return &c
}

// Compile-time interface verification.
var _ policy.Store = (*PolicyStore)(nil)
