package admin

import (
	"net/http"

	"github.com/warden-hq/warden/internal/domain/approval"
)

// handleListApprovals returns approvals, newest first. ?pending=true filters
// to undecided ones.
// GET /api/v1/approvals
func (h *APIHandler) handleListApprovals(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("pending") == "true"
	h.respondJSON(w, http.StatusOK, map[string]any{
		"approvals": h.approvals.List(r.Context(), pendingOnly),
	})
}

// handleGetApproval returns one approval.
// GET /api/v1/approvals/{id}
func (h *APIHandler) handleGetApproval(w http.ResponseWriter, r *http.Request) {
	a, err := h.approvals.Get(r.Context(), h.pathParam(r, "id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, a)
}

// handleDecideApproval applies a human verdict. Accepts "approved" or
// "rejected"; a second decision returns 409 and a late one 410. An optional
// "action" replaces the proposed action in the same commit as the decision,
// so the approved record carries the exact text the human authorized.
// POST /api/v1/approvals/{id}/decision
func (h *APIHandler) handleDecideApproval(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision string `json:"decision"`
		Note     string `json:"note,omitempty"`
		Action   string `json:"action,omitempty"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	d := approval.Decision(req.Decision)
	if d != approval.DecisionApproved && d != approval.DecisionRejected {
		h.respondError(w, http.StatusBadRequest, "decision must be 'approved' or 'rejected'")
		return
	}

	a, err := h.approvals.Decide(r.Context(), h.pathParam(r, "id"), d, req.Note, req.Action)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, a)
}

// handleEditApprovalAction replaces the proposed action of a pending
// approval. Decided approvals return 409.
// PUT /api/v1/approvals/{id}/action
func (h *APIHandler) handleEditApprovalAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action string `json:"action"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Action == "" {
		h.respondError(w, http.StatusBadRequest, "action is required")
		return
	}

	a, err := h.approvals.EditAction(r.Context(), h.pathParam(r, "id"), req.Action)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, a)
}
