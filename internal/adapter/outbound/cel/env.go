// Package cel provides the CEL environment and evaluator for policy rule
// conditions.
package cel

import (
	"path/filepath"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"

	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/policy"
)

// NewPolicyEnvironment creates a CEL environment with the request variables
// available to rule conditions:
//   - capability, resource: what is being requested
//   - command, path, domain, url: concrete action details
//   - params: open key/value request context
//   - role, role_name, role_capabilities: the requesting agent role
//   - requested_at: request timestamp
//
// Custom functions: glob(pattern, name), domain_matches(domain, pattern).
func NewPolicyEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("capability", cel.StringType),
		cel.Variable("resource", cel.StringType),
		cel.Variable("command", cel.StringType),
		cel.Variable("path", cel.StringType),
		cel.Variable("domain", cel.StringType),
		cel.Variable("url", cel.StringType),
		cel.Variable("params", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("role", cel.StringType),
		cel.Variable("role_name", cel.StringType),
		cel.Variable("role_capabilities", cel.ListType(cel.StringType)),
		cel.Variable("requested_at", cel.TimestampType),

		// glob: glob pattern matching, e.g. glob("rm -rf*", command)
		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					p := pattern.Value().(string)
					n := name.Value().(string)
					matched, _ := filepath.Match(p, n)
					return types.Bool(matched)
				}),
			),
		),

		// domain_matches: glob match against a destination domain,
		// e.g. domain_matches(domain, "*.internal.example.com")
		cel.Function("domain_matches",
			cel.Overload("domain_matches_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(domainVal, patternVal ref.Val) ref.Val {
					d := domainVal.Value().(string)
					p := patternVal.Value().(string)
					matched, _ := filepath.Match(p, d)
					return types.Bool(matched)
				}),
			),
		),
	)
}

// BuildActivation maps a request context and role onto the environment's
// variables. Nil params are replaced with an empty map so conditions can
// index without null checks.
func BuildActivation(role agent.Role, req policy.RequestContext) map[string]any {
	params := req.Params
	if params == nil {
		params = map[string]any{}
	}
	caps := role.Capabilities
	if caps == nil {
		caps = []string{}
	}
	return map[string]any{
		"capability":        req.Capability,
		"resource":          req.Resource,
		"command":           req.Command,
		"path":              req.Path,
		"domain":            req.Domain,
		"url":               req.URL,
		"params":            params,
		"role":              role.ID,
		"role_name":         role.Name,
		"role_capabilities": caps,
		"requested_at":      req.RequestedAt,
	}
}
