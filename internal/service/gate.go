package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/approval"
	"github.com/warden-hq/warden/internal/domain/policy"
	"github.com/warden-hq/warden/internal/telemetry"
)

// ActionRequest is a proposed agent action submitted to the gate.
type ActionRequest struct {
	Capability string         `json:"capability"`
	Resource   string         `json:"resource"`
	Type       approval.Type  `json:"type"`
	Source     string         `json:"source"`
	Action     string         `json:"action"`
	Command    string         `json:"command,omitempty"`
	Path       string         `json:"path,omitempty"`
	Domain     string         `json:"domain,omitempty"`
	URL        string         `json:"url,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// GateResult is the gate's verdict on a proposed action. When the policy
// requires approval, Approval holds the pending record the caller must wait on.
type GateResult struct {
	Resolution policy.Resolution  `json:"resolution"`
	Approval   *approval.Approval `json:"approval,omitempty"`
}

// Gate is the single choke point for agent actions: it resolves the request
// against role grants and policy, and either lets it pass, blocks it, or
// opens an approval.
type Gate struct {
	runs      agent.RunStore
	roles     agent.RoleStore
	resolver  policy.Resolver
	approvals *ApprovalService
	logger    *slog.Logger
}

// NewGate creates a gate.
func NewGate(runs agent.RunStore, roles agent.RoleStore, resolver policy.Resolver, approvals *ApprovalService, logger *slog.Logger) *Gate {
	return &Gate{
		runs:      runs,
		roles:     roles,
		resolver:  resolver,
		approvals: approvals,
		logger:    logger,
	}
}

// RequestAction resolves a proposed action for a run. Denials surface as
// policy.ErrCapabilityNotGranted (role lacks the capability) or
// policy.ErrPolicyDenied (an explicit deny rule matched); the two are never
// conflated. A require_approval resolution opens a pending approval and
// returns it alongside the resolution.
func (g *Gate) RequestAction(ctx context.Context, runID string, req ActionRequest) (*GateResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "gate.RequestAction")
	result, err := g.requestAction(ctx, runID, req)
	telemetry.EndSpan(span, err)
	return result, err
}

func (g *Gate) requestAction(ctx context.Context, runID string, req ActionRequest) (*GateResult, error) {
	run, err := g.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("gate: %w", err)
	}
	role, err := g.roles.GetRole(ctx, run.RoleID)
	if err != nil {
		return nil, fmt.Errorf("gate: run %s: %w", runID, err)
	}

	res, err := g.resolver.Resolve(ctx, *role, policy.RequestContext{
		Capability:  req.Capability,
		Resource:    req.Resource,
		Command:     req.Command,
		Path:        req.Path,
		Domain:      req.Domain,
		URL:         req.URL,
		Params:      req.Params,
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("gate: resolve: %w", err)
	}

	switch res.Decision {
	case policy.ActionAllow:
		return &GateResult{Resolution: res}, nil

	case policy.ActionDeny:
		g.logger.Info("action denied",
			"run_id", runID,
			"capability", req.Capability,
			"resource", req.Resource,
			"cause", res.Cause,
		)
		if res.Cause == policy.CauseCapabilityGate {
			return &GateResult{Resolution: res}, fmt.Errorf("%s: %w", res.Reason, policy.ErrCapabilityNotGranted)
		}
		return &GateResult{Resolution: res}, fmt.Errorf("%s: %w", res.Reason, policy.ErrPolicyDenied)

	case policy.ActionRequireApproval:
		a, err := g.approvals.Create(ctx, CreateApprovalInput{
			RunID:      runID,
			Type:       req.Type,
			Source:     req.Source,
			Action:     req.Action,
			Params:     req.Params,
			Capability: req.Capability,
			Risk:       res.Risk,
			Reason:     res.Reason,
		})
		if err != nil {
			return nil, fmt.Errorf("gate: open approval: %w", err)
		}
		return &GateResult{Resolution: res, Approval: a}, nil

	default:
		return nil, fmt.Errorf("gate: unexpected decision %q", res.Decision)
	}
}
