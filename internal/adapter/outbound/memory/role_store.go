package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warden-hq/warden/internal/domain/agent"
)

// RoleStore implements agent.RoleStore with an in-memory map. Saves replace
// the whole record so readers never see a half-updated capability set.
type RoleStore struct {
	mu    sync.RWMutex
	roles map[string]*agent.Role
}

// NewRoleStore creates an empty in-memory role store.
func NewRoleStore() *RoleStore {
	return &RoleStore{roles: make(map[string]*agent.Role)}
}

// GetRole returns a role by ID, or agent.ErrRoleNotFound.
func (s *RoleStore) GetRole(ctx context.Context, id string) (*agent.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[id]
	if !ok {
		return nil, agent.ErrRoleNotFound
	}
	return copyRole(r), nil
}

// ListRoles returns all roles sorted by ID.
func (s *RoleStore) ListRoles(ctx context.Context) ([]agent.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]agent.Role, 0, len(s.roles))
	for _, r := range s.roles {
		result = append(result, *copyRole(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// SaveRole creates or replaces a role.
func (s *RoleStore) SaveRole(ctx context.Context, r *agent.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID] = copyRole(r)
	return nil
}

// DeleteRole removes a role by ID. System roles cannot be deleted.
func (s *RoleStore) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.roles[id]
	if !ok {
		return agent.ErrRoleNotFound
	}
	if r.System {
		return agent.ErrSystemRole
	}
	delete(s.roles, id)
	return nil
}

// copyRole creates a deep copy of a role.
func copyRole(r *agent.Role) *agent.Role {
	c := *r
	c.Capabilities = make([]string, len(r.Capabilities))
	copy(c.Capabilities, r.Capabilities)
	return &c
}

// Compile-time interface verification.
var _ agent.RoleStore = (*RoleStore)(nil)
