package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kortexhq/kortex-backend/internal/models"
	"github.com/kortexhq/kortex-backend/internal/pkg/validate"
)

type startFixRequest struct {
	ResourceID       string `json:"resource_id"`
	IssueDescription string `json:"issue_description"`
}

// StartFix handles POST /api/v1/clusters/{clusterId}/fix.
func (h *Handler) StartFix(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["clusterId"]

	var req startFixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, &models.ValidationError{Message: "invalid request body"})
		return
	}
	if !validate.ClusterID(clusterID) {
		respondError(w, r, &models.ValidationError{Message: "invalid cluster id"})
		return
	}
	if !validate.ResourceID(req.ResourceID) {
		respondError(w, r, &models.ValidationError{Message: "invalid resource id"})
		return
	}

	workflowID, err := h.fixes.StartFix(r.Context(), clusterID, req.ResourceID, req.IssueDescription)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"workflow_id": workflowID})
}

// GetFix handles GET /api/v1/fix/{workflowId}.
func (h *Handler) GetFix(w http.ResponseWriter, r *http.Request) {
	workflowID := mux.Vars(r)["workflowId"]
	wf, err := h.fixes.GetStatus(workflowID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

type batchFixRequest struct {
	Issues []models.Issue `json:"issues"`
}

// RunBatch handles POST /api/v1/clusters/{clusterId}/fix/batch. The batch is
// driven synchronously; the response carries the full outcome.
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["clusterId"]

	var req batchFixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, &models.ValidationError{Message: "invalid request body"})
		return
	}

	run, err := h.fixes.RunBatch(r.Context(), clusterID, req.Issues)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, run)
}
