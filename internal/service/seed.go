package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/policy"
)

// SeedRoles returns the starter roles installed on first boot.
func SeedRoles() []agent.Role {
	return []agent.Role{
		{
			ID:          "general-assistant",
			Name:        "General Assistant",
			Description: "Broadly capable agent for everyday coding and research tasks",
			LLM:         agent.LLMConfig{Provider: "anthropic", Model: "claude-sonnet-4-5", Temperature: 0.2},
			Capabilities: []string{
				"file_read", "file_write", "shell_exec",
				"mcp_tool_call", "net_http", "external_link", "send_message",
			},
			System: true,
		},
		{
			ID:          "read-only-reviewer",
			Name:        "Read-Only Reviewer",
			Description: "Reviews code and documents; cannot write or execute",
			LLM:         agent.LLMConfig{Provider: "anthropic", Model: "claude-haiku-4-5", Temperature: 0.0},
			Capabilities: []string{
				"file_read", "mcp_tool_call", "send_message",
			},
			System: true,
		},
	}
}

// SeedPolicies returns the starter policy set installed on first boot: a
// global safety baseline plus an agent override that loosens file writes for
// the general assistant inside its workspace.
func SeedPolicies() []policy.Policy {
	now := time.Now().UTC()
	return []policy.Policy{
		{
			ID:          "baseline-safety",
			Name:        "Baseline Safety",
			Description: "Global guardrails applied to every agent",
			Scope:       policy.ScopeGlobal,
			Active:      true,
			LastUpdated: now,
			Rules: []policy.Rule{
				{
					ID:        "deny-destructive-shell",
					Name:      "Block destructive shell commands",
					Resource:  "shell.execute",
					Action:    policy.ActionDeny,
					Condition: `command.contains("rm -rf") || command.contains("mkfs") || command.contains("dd if=")`,
				},
				{
					ID:       "approve-shell",
					Name:     "Shell execution needs a human",
					Resource: "shell.execute",
					Action:   policy.ActionRequireApproval,
				},
				{
					ID:       "approve-secrets",
					Name:     "Secret access needs a human",
					Resource: "secrets.*",
					Action:   policy.ActionRequireApproval,
				},
				{
					ID:        "deny-system-paths",
					Name:      "Block writes outside the workspace",
					Resource:  "fs.write",
					Action:    policy.ActionDeny,
					Condition: `path.startsWith("/etc") || path.startsWith("/usr") || path.startsWith("/boot")`,
				},
				{
					ID:       "allow-reads",
					Name:     "Reads are free",
					Resource: "fs.read",
					Action:   policy.ActionAllow,
				},
			},
		},
		{
			ID:          "assistant-workspace",
			Name:        "Assistant Workspace Writes",
			Description: "Lets the general assistant write inside /workspace without approval",
			Scope:       policy.ScopeAgent,
			AgentID:     "general-assistant",
			Active:      true,
			LastUpdated: now,
			Rules: []policy.Rule{
				{
					ID:        "allow-workspace-writes",
					Name:      "Workspace writes allowed",
					Resource:  "fs.write",
					Action:    policy.ActionAllow,
					Condition: `path.startsWith("/workspace")`,
				},
			},
		},
	}
}

// Seed installs the starter roles and policies into the stores when they are
// empty. Existing configuration is never overwritten.
func Seed(ctx context.Context, roles agent.RoleStore, policies policy.Store, logger *slog.Logger) error {
	existingRoles, err := roles.ListRoles(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(existingRoles) == 0 {
		for _, r := range SeedRoles() {
			role := r
			if err := roles.SaveRole(ctx, &role); err != nil {
				return fmt.Errorf("seed role %s: %w", r.ID, err)
			}
		}
		logger.Info("seeded starter roles", "count", len(SeedRoles()))
	}

	existingPolicies, err := policies.GetAllPolicies(ctx)
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if len(existingPolicies) == 0 {
		if err := policies.ReplaceAll(ctx, SeedPolicies()); err != nil {
			return fmt.Errorf("seed policies: %w", err)
		}
		logger.Info("seeded starter policies", "count", len(SeedPolicies()))
	}
	return nil
}
