package admin

import (
	"net/http"
	"time"
)

// handleHealth is the unauthenticated liveness probe.
// GET /healthz
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListCapabilities returns the capability catalog sorted by ID.
// GET /api/v1/capabilities
func (h *APIHandler) handleListCapabilities(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"capabilities": h.registry.List(),
	})
}

// handleListRoles returns the configured agent roles.
// GET /api/v1/roles
func (h *APIHandler) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.ListRoles(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// handleSystemInfo returns version and uptime.
// GET /api/v1/system
func (h *APIHandler) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	}
	if h.buildInfo != nil {
		info["version"] = h.buildInfo.Version
		if h.buildInfo.Commit != "" {
			info["commit"] = h.buildInfo.Commit
		}
	}
	h.respondJSON(w, http.StatusOK, info)
}
