package admin

import (
	"net/http"

	"github.com/warden-hq/warden/internal/domain/event"
	"github.com/warden-hq/warden/internal/service"
)

// handleListRuns returns all runs, newest first.
// GET /api/v1/runs
func (h *APIHandler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.runs.List(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// handleCreateRun registers a new run for a role.
// POST /api/v1/runs
func (h *APIHandler) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoleID    string `json:"role"`
		Objective string `json:"objective"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.RoleID == "" {
		h.respondError(w, http.StatusBadRequest, "role is required")
		return
	}

	run, err := h.runs.Create(r.Context(), req.RoleID, req.Objective)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, run)
}

// handleGetRun returns one run.
// GET /api/v1/runs/{id}
func (h *APIHandler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Get(r.Context(), h.pathParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

// handleRequestAction submits a proposed action to the gate. Allowed actions
// return 200; require_approval returns 202 with the pending approval; denials
// return 403 with the resolution attached.
// POST /api/v1/runs/{id}/actions
func (h *APIHandler) handleRequestAction(w http.ResponseWriter, r *http.Request) {
	var req service.ActionRequest
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Capability == "" || req.Resource == "" {
		h.respondError(w, http.StatusBadRequest, "capability and resource are required")
		return
	}

	result, err := h.gate.RequestAction(r.Context(), h.pathParam(r, "id"), req)
	if err != nil {
		if result != nil {
			// Denied: include the resolution so callers can show the reason.
			h.respondJSON(w, http.StatusForbidden, map[string]any{
				"error":      err.Error(),
				"resolution": result.Resolution,
			})
			return
		}
		h.respondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if result.Approval != nil {
		status = http.StatusAccepted
	}
	h.respondJSON(w, status, result)
}

// handleRecordMessage appends a chat message to the run's event stream.
// POST /api/v1/runs/{id}/messages
func (h *APIHandler) handleRecordMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
		Text string `json:"text"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Role == "" {
		req.Role = event.RoleAssistant
	}

	ev, err := h.runs.RecordMessage(r.Context(), h.pathParam(r, "id"), req.Role, req.Text)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, ev)
}

// handleListEvents returns the run's event stream in sequence order.
// GET /api/v1/runs/{id}/events
func (h *APIHandler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.runs.Events(r.Context(), h.pathParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"events": events})
}

// handleListRunApprovals returns the run's approvals in request order.
// GET /api/v1/runs/{id}/approvals
func (h *APIHandler) handleListRunApprovals(w http.ResponseWriter, r *http.Request) {
	runID := h.pathParam(r, "id")
	if _, err := h.runs.Get(r.Context(), runID); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"approvals": h.approvals.ListByRun(r.Context(), runID),
	})
}

// handleRenderPlan classifies the run's approval events as inline or
// standalone for transcript rendering.
// GET /api/v1/runs/{id}/render-plan
func (h *APIHandler) handleRenderPlan(w http.ResponseWriter, r *http.Request) {
	runID := h.pathParam(r, "id")
	events, err := h.runs.Events(r.Context(), runID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"items": h.correlator.Correlate(events),
	})
}
