package admin

import (
	"io"
	"net/http"

	"github.com/warden-hq/warden/internal/domain/policy"
)

// maxPolicyDocumentBytes bounds import payloads.
const maxPolicyDocumentBytes = 1 << 20

// handleListPolicies returns the full policy set.
// GET /api/v1/policies
func (h *APIHandler) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.policyAdmin.List(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

// handleReplacePolicies installs a complete new policy set. Validation
// failures leave the active set untouched and return 422.
// PUT /api/v1/policies
func (h *APIHandler) handleReplacePolicies(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Policies []policy.Policy `json:"policies"`
	}
	if err := h.readJSON(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.policyAdmin.ReplaceAll(r.Context(), req.Policies); err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"replaced": len(req.Policies)})
}

// handleExportPolicies renders the policy set as YAML.
// GET /api/v1/policies/export
func (h *APIHandler) handleExportPolicies(w http.ResponseWriter, r *http.Request) {
	data, err := h.policyAdmin.ExportYAML(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleImportPolicies installs a YAML policy document as the complete set.
// PUT /api/v1/policies/import
func (h *APIHandler) handleImportPolicies(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPolicyDocumentBytes))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if err := h.policyAdmin.ImportYAML(r.Context(), data); err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "imported"})
}
