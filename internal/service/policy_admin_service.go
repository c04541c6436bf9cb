package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/warden-hq/warden/internal/adapter/outbound/state"
	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/policy"
)

// PolicyAdminService manages the policy set as a whole: replacement,
// validation, YAML import/export, and persistence to the governance file.
// Replacement is all-or-nothing so the resolver never runs on a half-updated
// set.
type PolicyAdminService struct {
	store    policy.Store
	roles    agent.RoleStore
	resolver *PolicyResolver
	state    *state.FileStateStore
	logger   *slog.Logger
}

// NewPolicyAdminService creates a policy admin service. state may be nil when
// persistence is disabled (tests, ephemeral mode).
func NewPolicyAdminService(store policy.Store, roles agent.RoleStore, resolver *PolicyResolver, st *state.FileStateStore, logger *slog.Logger) *PolicyAdminService {
	return &PolicyAdminService{
		store:    store,
		roles:    roles,
		resolver: resolver,
		state:    st,
		logger:   logger,
	}
}

// List returns every policy, active or not.
func (s *PolicyAdminService) List(ctx context.Context) ([]policy.Policy, error) {
	return s.store.GetAllPolicies(ctx)
}

// Get returns a policy by ID.
func (s *PolicyAdminService) Get(ctx context.Context, id string) (*policy.Policy, error) {
	return s.store.GetPolicy(ctx, id)
}

// ReplaceAll validates and installs a complete new policy set, reloads the
// resolver, and persists the governance file. Validation failures leave the
// active set untouched.
func (s *PolicyAdminService) ReplaceAll(ctx context.Context, policies []policy.Policy) error {
	now := time.Now().UTC()
	for i := range policies {
		if policies[i].ID == "" {
			policies[i].ID = uuid.New().String()
		}
		policies[i].LastUpdated = now
		if err := policies[i].Validate(); err != nil {
			return err
		}
	}
	if err := s.resolver.ValidateRules(policies); err != nil {
		return err
	}

	if err := s.store.ReplaceAll(ctx, policies); err != nil {
		return fmt.Errorf("replace policies: %w", err)
	}
	if err := s.resolver.Reload(ctx); err != nil {
		return fmt.Errorf("reload resolver: %w", err)
	}

	s.logger.Info("policy set replaced", "policies", len(policies))
	return s.persist(ctx)
}

// policyDocument is the YAML import/export envelope.
type policyDocument struct {
	Version  string          `yaml:"version"`
	Policies []policy.Policy `yaml:"policies"`
}

// ExportYAML renders the full policy set as a YAML document.
func (s *PolicyAdminService) ExportYAML(ctx context.Context) ([]byte, error) {
	policies, err := s.store.GetAllPolicies(ctx)
	if err != nil {
		return nil, err
	}
	doc := policyDocument{Version: "1", Policies: policies}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("marshal policy document: %w", err)
	}
	return data, nil
}

// ImportYAML parses a YAML policy document and installs it as the complete
// policy set.
func (s *PolicyAdminService) ImportYAML(ctx context.Context, data []byte) error {
	var doc policyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse policy document: %w", err)
	}
	return s.ReplaceAll(ctx, doc.Policies)
}

// persist writes the current roles and policies to the governance file.
func (s *PolicyAdminService) persist(ctx context.Context) error {
	if s.state == nil {
		return nil
	}

	roles, err := s.roles.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("persist governance: %w", err)
	}
	policies, err := s.store.GetAllPolicies(ctx)
	if err != nil {
		return fmt.Errorf("persist governance: %w", err)
	}

	st := s.state.DefaultState()
	if existing, loadErr := s.state.Load(); loadErr == nil {
		st.CreatedAt = existing.CreatedAt
	}
	st.Roles = roles
	st.Policies = policies

	if err := s.state.Save(st); err != nil {
		return fmt.Errorf("persist governance: %w", err)
	}
	return nil
}
