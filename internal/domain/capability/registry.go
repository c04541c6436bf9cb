package capability

import "sort"

// Registry is the read-only capability catalog. It is built once at startup
// and never mutated afterwards, so lookups need no locking.
type Registry struct {
	caps map[string]Capability
}

// NewRegistry builds a Registry from the given catalog entries.
// Later entries with a duplicate ID replace earlier ones.
func NewRegistry(caps ...Capability) *Registry {
	r := &Registry{caps: make(map[string]Capability, len(caps))}
	for _, c := range caps {
		r.caps[c.ID] = c
	}
	return r
}

// Get returns the capability with the given ID.
func (r *Registry) Get(id string) (Capability, bool) {
	c, ok := r.caps[id]
	return c, ok
}

// List returns all capabilities sorted by ID.
func (r *Registry) List() []Capability {
	result := make([]Capability, 0, len(r.caps))
	for _, c := range r.caps {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Risk returns the risk level for a capability ID. Unknown capabilities are
// treated as critical so that unclassified requests fail toward caution.
func (r *Registry) Risk(id string) RiskLevel {
	if c, ok := r.caps[id]; ok && c.Risk.Valid() {
		return c.Risk
	}
	return RiskCritical
}

// Len returns the number of catalog entries.
func (r *Registry) Len() int {
	return len(r.caps)
}
