// Package service contains application services.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/cel-go/cel"

	celeval "github.com/warden-hq/warden/internal/adapter/outbound/cel"
	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/capability"
	"github.com/warden-hq/warden/internal/domain/policy"
	"github.com/warden-hq/warden/internal/telemetry"
)

// compiledRule is a policy rule with its condition pre-compiled, annotated
// with the policy it came from.
type compiledRule struct {
	PolicyID   string
	PolicyName string
	Scope      policy.Scope
	RuleID     string
	RuleName   string
	Resource   string
	Action     policy.Action
	// Program is the compiled condition; nil means unconditional.
	Program cel.Program
}

// ruleSnapshot is the immutable compiled rule set stored in atomic.Value.
// Agent-scoped rules are bucketed by role ID; within each bucket and in the
// global list, rules keep policy order then rule list order.
type ruleSnapshot struct {
	Agent  map[string][]compiledRule
	Global []compiledRule
	// Gen increases with every compile and is folded into cache keys, so
	// results computed against an older snapshot can never be served after
	// a reload.
	Gen uint64
	// TimeDependent is set when any condition references requested_at. Such
	// rule sets produce resolutions that vary with the request timestamp, so
	// they are never cached.
	TimeDependent bool
}

// PolicyResolver implements policy.Resolver with CEL-based rule conditions.
// Agent-scoped rules are evaluated before global ones; within a layer the
// first matching rule wins. Uses atomic.Value for lock-free reads on the hot
// path and supports hot-reload after policy replacement.
type PolicyResolver struct {
	registry  *capability.Registry
	store     policy.Store
	evaluator *celeval.Evaluator
	snapshot  atomic.Value  // stores *ruleSnapshot
	gen       atomic.Uint64 // snapshot generation counter
	mu        sync.Mutex    // only for Reload() writes
	cache     *resultCache
	metrics   *telemetry.Metrics
	durations *telemetry.Durations
	logger    *slog.Logger
}

// ResolverOption configures a PolicyResolver.
type ResolverOption func(*PolicyResolver)

// WithResolverCacheSize sets the maximum number of cached resolutions.
func WithResolverCacheSize(size int) ResolverOption {
	return func(r *PolicyResolver) {
		r.cache = newResultCache(size)
	}
}

// WithResolverMetrics sets the metrics sink.
func WithResolverMetrics(m *telemetry.Metrics) ResolverOption {
	return func(r *PolicyResolver) {
		r.metrics = m
	}
}

// WithResolverDurations sets the latency instrument sink.
func WithResolverDurations(d *telemetry.Durations) ResolverOption {
	return func(r *PolicyResolver) {
		r.durations = d
	}
}

// NewPolicyResolver creates a PolicyResolver that loads and compiles the
// active policies from the store. ctx bounds the initial load.
func NewPolicyResolver(ctx context.Context, registry *capability.Registry, store policy.Store, logger *slog.Logger, opts ...ResolverOption) (*PolicyResolver, error) {
	evaluator, err := celeval.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL evaluator: %w", err)
	}

	r := &PolicyResolver{
		registry:  registry,
		store:     store,
		evaluator: evaluator,
		cache:     newResultCache(1000),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	snapshot, err := r.compileSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	r.snapshot.Store(snapshot)

	logger.Info("policy resolver initialized",
		"global_rules", len(snapshot.Global),
		"agent_buckets", len(snapshot.Agent),
		"cache_max_size", r.cache.maxSize,
	)
	return r, nil
}

// ValidateRules checks that all conditions in the given policies compile.
// Called before persisting a policy set so invalid CEL never poisons the
// active rules.
func (r *PolicyResolver) ValidateRules(policies []policy.Policy) error {
	for _, p := range policies {
		for _, rule := range p.Rules {
			if rule.Condition == "" {
				continue
			}
			if err := r.evaluator.ValidateExpression(rule.Condition); err != nil {
				return fmt.Errorf("policy %q rule %q: %w", p.Name, rule.Name, err)
			}
		}
	}
	return nil
}

// compileSnapshot loads active policies and compiles them into a snapshot.
// Policies are ordered deterministically (name, then ID) so that resolution
// does not depend on map iteration order; rules keep their list order.
func (r *PolicyResolver) compileSnapshot(ctx context.Context) (*ruleSnapshot, error) {
	policies, err := r.store.GetActivePolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}

	sort.Slice(policies, func(i, j int) bool {
		if policies[i].Name != policies[j].Name {
			return policies[i].Name < policies[j].Name
		}
		return policies[i].ID < policies[j].ID
	})

	snapshot := &ruleSnapshot{
		Agent: make(map[string][]compiledRule),
		Gen:   r.gen.Add(1),
	}
	for _, p := range policies {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		for _, rule := range p.Rules {
			var prg cel.Program
			if rule.Condition != "" {
				prg, err = r.evaluator.Compile(rule.Condition)
				if err != nil {
					return nil, fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
				}
				// Substring check is deliberately conservative: a false
				// positive only disables caching, never correctness.
				if strings.Contains(rule.Condition, "requested_at") {
					snapshot.TimeDependent = true
				}
			}
			cr := compiledRule{
				PolicyID:   p.ID,
				PolicyName: p.Name,
				Scope:      p.Scope,
				RuleID:     rule.ID,
				RuleName:   rule.Name,
				Resource:   rule.Resource,
				Action:     rule.Action,
				Program:    prg,
			}
			if p.Scope == policy.ScopeAgent {
				snapshot.Agent[p.AgentID] = append(snapshot.Agent[p.AgentID], cr)
			} else {
				snapshot.Global = append(snapshot.Global, cr)
			}
		}
	}
	return snapshot, nil
}

// loadSnapshot returns the current rule snapshot atomically (lock-free).
func (r *PolicyResolver) loadSnapshot() *ruleSnapshot {
	return r.snapshot.Load().(*ruleSnapshot)
}

// Resolve evaluates a capability request for the given role.
//
// The capability grant is a prerequisite gate checked before any rule: a
// role whose grant set excludes the capability is denied regardless of
// policy. Agent-scoped rules are then evaluated before global rules; the
// first matching rule in a layer wins, so an agent override can loosen or
// tighten a global rule for that role only. When no rule matches, high and
// critical risk capabilities fall back to require_approval and everything
// else to allow.
func (r *PolicyResolver) Resolve(ctx context.Context, role agent.Role, req policy.RequestContext) (policy.Resolution, error) {
	_, span := telemetry.StartSpan(ctx, "resolver.Resolve")
	started := time.Now()
	res, err := r.resolve(role, req)
	r.durations.RecordResolve(ctx, time.Since(started))
	if err == nil {
		span.SetAttributes(
			telemetry.String("resolution.decision", string(res.Decision)),
			telemetry.String("resolution.rule_id", res.RuleID),
			telemetry.String("request.resource", req.Resource),
		)
		r.metrics.RecordResolution(string(res.Decision))
	}
	telemetry.EndSpan(span, err)
	return res, err
}

func (r *PolicyResolver) resolve(role agent.Role, req policy.RequestContext) (policy.Resolution, error) {
	risk := r.registry.Risk(req.Capability)

	if !role.HasCapability(req.Capability) {
		return policy.Resolution{
			Decision: policy.ActionDeny,
			Risk:     risk,
			Cause:    policy.CauseCapabilityGate,
			Reason:   fmt.Sprintf("capability %q not granted to role %q", req.Capability, role.ID),
		}, nil
	}

	snapshot := r.loadSnapshot()

	// Time-dependent rule sets bypass the cache entirely: the same request
	// resolved at two different times can legitimately differ.
	cacheable := !snapshot.TimeDependent
	var cacheKey uint64
	if cacheable {
		cacheKey = computeCacheKey(snapshot.Gen, role.ID, role.Capabilities, req)
		if res, ok := r.cache.Get(cacheKey); ok {
			return res, nil
		}
	}

	// Agent-scoped layer first: most specific wins.
	for _, layer := range [][]compiledRule{snapshot.Agent[role.ID], snapshot.Global} {
		for _, rule := range layer {
			matched, err := r.ruleMatches(rule, role, req)
			if err != nil {
				return policy.Resolution{}, fmt.Errorf("rule %s evaluation failed: %w", rule.RuleID, err)
			}
			if !matched {
				continue
			}
			res := policy.Resolution{
				Decision:    rule.Action,
				Risk:        risk,
				RuleID:      rule.RuleID,
				RuleName:    rule.RuleName,
				PolicyID:    rule.PolicyID,
				PolicyScope: rule.Scope,
				Cause:       policy.CauseRule,
				Reason:      ruleReason(rule),
			}
			if cacheable {
				r.cache.Put(cacheKey, res)
			}
			return res, nil
		}
	}

	// No rule matched: fail toward caution on high-risk or unclassified
	// capabilities.
	res := policy.Resolution{
		Risk:  risk,
		Cause: policy.CauseRiskDefault,
	}
	if risk.DefaultsToApproval() {
		res.Decision = policy.ActionRequireApproval
		res.Reason = fmt.Sprintf("no matching rule; risk %s requires approval", risk)
	} else {
		res.Decision = policy.ActionAllow
		res.Reason = fmt.Sprintf("no matching rule; risk %s allows by default", risk)
	}
	if cacheable {
		r.cache.Put(cacheKey, res)
	}
	return res, nil
}

// ruleMatches checks the resource pattern and, when present, the condition.
func (r *PolicyResolver) ruleMatches(rule compiledRule, role agent.Role, req policy.RequestContext) (bool, error) {
	if !resourceMatches(rule.Resource, req.Resource) {
		return false, nil
	}
	if rule.Program == nil {
		return true, nil
	}
	return r.evaluator.Evaluate(rule.Program, role, req)
}

// resourceMatches matches a rule resource pattern against the requested
// resource. A lone "*" matches everything; other glob patterns go through
// filepath.Match; anything else is an exact comparison.
func resourceMatches(pattern, resource string) bool {
	if pattern == "*" {
		return true
	}
	if strings.ContainsAny(pattern, "*?[") {
		matched, err := filepath.Match(pattern, resource)
		return err == nil && matched
	}
	return pattern == resource
}

// ruleReason builds the human-facing reason string for a matched rule. The
// three outcomes stay textually distinct so callers never conflate them.
func ruleReason(rule compiledRule) string {
	name := rule.RuleName
	if name == "" {
		name = rule.RuleID
	}
	switch rule.Action {
	case policy.ActionDeny:
		return fmt.Sprintf("denied by policy: rule %q", name)
	case policy.ActionRequireApproval:
		return fmt.Sprintf("approval required by rule %q", name)
	default:
		return fmt.Sprintf("allowed by rule %q", name)
	}
}

// Reload recompiles the active policies from the store and atomically swaps
// the snapshot. Safe to call concurrently with Resolve.
func (r *PolicyResolver) Reload(ctx context.Context) error {
	snapshot, err := r.compileSnapshot(ctx)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.snapshot.Store(snapshot)
	r.mu.Unlock()

	// Superseded-generation entries can never hit (the generation is part of
	// the key); clearing just releases them early instead of waiting for
	// LRU eviction.
	r.cache.Clear()

	r.logger.Info("policy resolver reloaded",
		"global_rules", len(snapshot.Global),
		"agent_buckets", len(snapshot.Agent),
	)
	return nil
}

// Compile-time interface verification.
var _ policy.Resolver = (*PolicyResolver)(nil)
