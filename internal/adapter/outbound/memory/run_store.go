package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/warden-hq/warden/internal/domain/agent"
)

// RunStore implements agent.RunStore with an in-memory map.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*agent.Run
}

// NewRunStore creates an empty in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*agent.Run)}
}

// GetRun returns a run by ID, or agent.ErrUnknownRun.
func (s *RunStore) GetRun(ctx context.Context, id string) (*agent.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return nil, agent.ErrUnknownRun
	}
	copied := *r
	return &copied, nil
}

// ListRuns returns all runs sorted by creation time descending (newest first).
func (s *RunStore) ListRuns(ctx context.Context) ([]agent.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]agent.Run, 0, len(s.runs))
	for _, r := range s.runs {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// SaveRun creates or replaces a run.
func (s *RunStore) SaveRun(ctx context.Context, r *agent.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *r
	s.runs[r.ID] = &copied
	return nil
}

// SetRunStatus updates a run's status, or returns agent.ErrUnknownRun.
func (s *RunStore) SetRunStatus(ctx context.Context, id string, status agent.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.runs[id]
	if !ok {
		return agent.ErrUnknownRun
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return nil
}

// RunExists reports whether a run ID is known. Satisfies event.RunResolver.
func (s *RunStore) RunExists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.runs[id]
	return ok
}

// Compile-time interface verification.
var _ agent.RunStore = (*RunStore)(nil)
