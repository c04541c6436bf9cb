// Package admin provides the JSON admin API for Warden: runs, approvals,
// policies, and the governed event streams.
package admin

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/warden-hq/warden/internal/domain/agent"
	"github.com/warden-hq/warden/internal/domain/approval"
	"github.com/warden-hq/warden/internal/domain/auth"
	"github.com/warden-hq/warden/internal/domain/capability"
	"github.com/warden-hq/warden/internal/domain/event"
	"github.com/warden-hq/warden/internal/domain/policy"
	"github.com/warden-hq/warden/internal/service"
)

// BuildInfo carries version metadata for the system endpoint.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
}

// APIHandler provides the JSON admin API endpoints.
type APIHandler struct {
	runs        *service.RunService
	gate        *service.Gate
	approvals   *service.ApprovalService
	policyAdmin *service.PolicyAdminService
	registry    *capability.Registry
	roles       agent.RoleStore
	correlator  *event.Correlator
	keyring     *auth.Keyring
	buildInfo   *BuildInfo
	logger      *slog.Logger
	startTime   time.Time
}

// APIOption configures an APIHandler dependency.
type APIOption func(*APIHandler)

// WithRunService sets the run service.
func WithRunService(s *service.RunService) APIOption {
	return func(h *APIHandler) { h.runs = s }
}

// WithGate sets the action gate.
func WithGate(g *service.Gate) APIOption {
	return func(h *APIHandler) { h.gate = g }
}

// WithApprovalService sets the approval lifecycle service.
func WithApprovalService(s *service.ApprovalService) APIOption {
	return func(h *APIHandler) { h.approvals = s }
}

// WithPolicyAdminService sets the policy admin service.
func WithPolicyAdminService(s *service.PolicyAdminService) APIOption {
	return func(h *APIHandler) { h.policyAdmin = s }
}

// WithRegistry sets the capability registry.
func WithRegistry(r *capability.Registry) APIOption {
	return func(h *APIHandler) { h.registry = r }
}

// WithRoleStore sets the role store.
func WithRoleStore(s agent.RoleStore) APIOption {
	return func(h *APIHandler) { h.roles = s }
}

// WithCorrelator sets the render-plan correlator.
func WithCorrelator(c *event.Correlator) APIOption {
	return func(h *APIHandler) { h.correlator = c }
}

// WithKeyring sets the API key keyring for remote authentication.
func WithKeyring(k *auth.Keyring) APIOption {
	return func(h *APIHandler) { h.keyring = k }
}

// WithBuildInfo sets the build version information.
func WithBuildInfo(info *BuildInfo) APIOption {
	return func(h *APIHandler) { h.buildInfo = info }
}

// WithAPILogger sets the logger.
func WithAPILogger(l *slog.Logger) APIOption {
	return func(h *APIHandler) { h.logger = l }
}

// NewAPIHandler creates an APIHandler with the given options.
func NewAPIHandler(opts ...APIOption) *APIHandler {
	h := &APIHandler{
		logger:    slog.Default(),
		startTime: time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns an http.Handler with all admin API routes registered.
// Health is unauthenticated; everything else goes through the auth middleware.
func (h *APIHandler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.handleHealth)

	protected := http.NewServeMux()

	// Runs and their streams.
	protected.HandleFunc("GET /api/v1/runs", h.handleListRuns)
	protected.HandleFunc("POST /api/v1/runs", h.handleCreateRun)
	protected.HandleFunc("GET /api/v1/runs/{id}", h.handleGetRun)
	protected.HandleFunc("POST /api/v1/runs/{id}/actions", h.handleRequestAction)
	protected.HandleFunc("POST /api/v1/runs/{id}/messages", h.handleRecordMessage)
	protected.HandleFunc("GET /api/v1/runs/{id}/events", h.handleListEvents)
	protected.HandleFunc("GET /api/v1/runs/{id}/approvals", h.handleListRunApprovals)
	protected.HandleFunc("GET /api/v1/runs/{id}/render-plan", h.handleRenderPlan)

	// Approval lifecycle.
	protected.HandleFunc("GET /api/v1/approvals", h.handleListApprovals)
	protected.HandleFunc("GET /api/v1/approvals/{id}", h.handleGetApproval)
	protected.HandleFunc("POST /api/v1/approvals/{id}/decision", h.handleDecideApproval)
	protected.HandleFunc("PUT /api/v1/approvals/{id}/action", h.handleEditApprovalAction)

	// Policy set management.
	protected.HandleFunc("GET /api/v1/policies", h.handleListPolicies)
	protected.HandleFunc("PUT /api/v1/policies", h.handleReplacePolicies)
	protected.HandleFunc("GET /api/v1/policies/export", h.handleExportPolicies)
	protected.HandleFunc("PUT /api/v1/policies/import", h.handleImportPolicies)

	// Catalog and roles.
	protected.HandleFunc("GET /api/v1/capabilities", h.handleListCapabilities)
	protected.HandleFunc("GET /api/v1/roles", h.handleListRoles)

	protected.HandleFunc("GET /api/v1/system", h.handleSystemInfo)

	mux.Handle("/api/", h.authMiddleware(protected))
	return mux
}

// --- JSON helper methods ---

// respondJSON writes a JSON response with the given status code and data.
func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response", "error", err)
	}
}

// respondError writes a JSON error response.
func (h *APIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps domain sentinel errors to HTTP statuses.
func (h *APIHandler) respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, approval.ErrNotFound),
		errors.Is(err, agent.ErrUnknownRun),
		errors.Is(err, agent.ErrRoleNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, approval.ErrAlreadyDecided),
		errors.Is(err, approval.ErrInvalidState):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, approval.ErrExpired):
		h.respondError(w, http.StatusGone, err.Error())
	case errors.Is(err, policy.ErrCapabilityNotGranted),
		errors.Is(err, policy.ErrPolicyDenied):
		h.respondError(w, http.StatusForbidden, err.Error())
	default:
		h.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

// readJSON decodes the request body into the given value.
func (h *APIHandler) readJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// pathParam extracts a named path parameter from the request URL.
func (h *APIHandler) pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}
