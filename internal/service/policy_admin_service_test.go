package service

import (
	"context"
	"strings"
	"testing"

	"github.com/warden-hq/warden/internal/adapter/outbound/memory"
	"github.com/warden-hq/warden/internal/domain/policy"
)

func newAdminFixture(t *testing.T, policies ...policy.Policy) (*PolicyAdminService, *PolicyResolver, *memory.PolicyStore) {
	t.Helper()
	ctx := context.Background()

	store := memory.NewPolicyStore()
	if err := store.ReplaceAll(ctx, policies); err != nil {
		t.Fatalf("seed policies: %v", err)
	}
	resolver, err := NewPolicyResolver(ctx, testRegistry(), store, testLogger())
	if err != nil {
		t.Fatalf("create resolver: %v", err)
	}
	svc := NewPolicyAdminService(store, memory.NewRoleStore(), resolver, nil, testLogger())
	return svc, resolver, store
}

func TestPolicyAdminReplaceAllReloadsResolver(t *testing.T) {
	t.Parallel()

	svc, resolver, _ := newAdminFixture(t)

	req := policy.RequestContext{Capability: "file_read", Resource: "fs.read"}
	res, _ := resolver.Resolve(context.Background(), testRole("file_read"), req)
	if res.Decision != policy.ActionAllow {
		t.Fatalf("expected risk-default allow before replace, got %s", res.Decision)
	}

	err := svc.ReplaceAll(context.Background(), []policy.Policy{{
		Name:   "Lockdown",
		Scope:  policy.ScopeGlobal,
		Active: true,
		Rules:  []policy.Rule{{ID: "r1", Name: "deny reads", Resource: "fs.read", Action: policy.ActionDeny}},
	}})
	if err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	res, _ = resolver.Resolve(context.Background(), testRole("file_read"), req)
	if res.Decision != policy.ActionDeny {
		t.Errorf("expected deny after replace, got %s", res.Decision)
	}
}

func TestPolicyAdminReplaceAllAssignsIDs(t *testing.T) {
	t.Parallel()

	svc, _, store := newAdminFixture(t)

	err := svc.ReplaceAll(context.Background(), []policy.Policy{{
		Name:   "Unnamed",
		Scope:  policy.ScopeGlobal,
		Active: true,
		Rules:  []policy.Rule{{ID: "r1", Name: "allow", Resource: "*", Action: policy.ActionAllow}},
	}})
	if err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}

	all, _ := store.GetAllPolicies(context.Background())
	if len(all) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(all))
	}
	if all[0].ID == "" {
		t.Error("expected a generated policy ID")
	}
	if all[0].LastUpdated.IsZero() {
		t.Error("expected last_updated to be stamped")
	}
}

func TestPolicyAdminReplaceAllRejectsInvalidSet(t *testing.T) {
	t.Parallel()

	seed := SeedPolicies()
	svc, resolver, store := newAdminFixture(t, seed...)

	tests := []struct {
		name string
		bad  policy.Policy
	}{
		{
			"agent scope without agent id",
			policy.Policy{
				Name:   "Broken Scope",
				Scope:  policy.ScopeAgent,
				Active: true,
				Rules:  []policy.Rule{{ID: "r", Name: "allow", Resource: "*", Action: policy.ActionAllow}},
			},
		},
		{
			"invalid condition",
			policy.Policy{
				Name:   "Broken Condition",
				Scope:  policy.ScopeGlobal,
				Active: true,
				Rules:  []policy.Rule{{ID: "r", Name: "broken", Resource: "*", Action: policy.ActionDeny, Condition: "((("}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := svc.ReplaceAll(context.Background(), []policy.Policy{tt.bad}); err == nil {
				t.Fatal("expected validation error, got nil")
			}

			// The active set must be untouched.
			all, _ := store.GetAllPolicies(context.Background())
			if len(all) != len(seed) {
				t.Errorf("active set changed: %d policies, want %d", len(all), len(seed))
			}
			res, _ := resolver.Resolve(context.Background(), SeedRoles()[0], policy.RequestContext{
				Capability: "shell_exec", Resource: "shell.execute", Command: "rm -rf /",
			})
			if res.Decision != policy.ActionDeny {
				t.Errorf("resolver lost the seed rules: got %s", res.Decision)
			}
		})
	}
}

func TestPolicyAdminYAMLRoundTrip(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAdminFixture(t, SeedPolicies()...)

	data, err := svc.ExportYAML(context.Background())
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(string(data), "baseline-safety") {
		t.Errorf("export missing seed policy:\n%s", data)
	}

	// Import into a fresh service and compare the resulting sets.
	fresh, _, store := newAdminFixture(t)
	if err := fresh.ImportYAML(context.Background(), data); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	imported, _ := store.GetAllPolicies(context.Background())
	if len(imported) != len(SeedPolicies()) {
		t.Fatalf("expected %d policies, got %d", len(SeedPolicies()), len(imported))
	}
	byID := make(map[string]policy.Policy, len(imported))
	for _, p := range imported {
		byID[p.ID] = p
	}
	for _, want := range SeedPolicies() {
		got, ok := byID[want.ID]
		if !ok {
			t.Errorf("policy %s missing after round trip", want.ID)
			continue
		}
		if len(got.Rules) != len(want.Rules) {
			t.Errorf("policy %s: %d rules, want %d", want.ID, len(got.Rules), len(want.Rules))
		}
		if got.Scope != want.Scope || got.AgentID != want.AgentID {
			t.Errorf("policy %s: scope %s/%s, want %s/%s", want.ID, got.Scope, got.AgentID, want.Scope, want.AgentID)
		}
	}
}

func TestPolicyAdminImportRejectsGarbage(t *testing.T) {
	t.Parallel()

	svc, _, _ := newAdminFixture(t)
	if err := svc.ImportYAML(context.Background(), []byte("\tnot yaml")); err == nil {
		t.Error("expected parse error, got nil")
	}
}
