package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/kortexhq/kortex-backend/internal/models"
	"github.com/kortexhq/kortex-backend/internal/pkg/validate"
)

type startScanRequest struct {
	Mode    string   `json:"mode"`
	Filters []string `json:"filters,omitempty"`
}

// StartScan handles POST /api/v1/clusters/{clusterId}/scans.
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["clusterId"]
	if !validate.ClusterID(clusterID) {
		respondError(w, r, &models.ValidationError{Message: "invalid cluster id"})
		return
	}

	var req startScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, &models.ValidationError{Message: "invalid request body"})
		return
	}
	if req.Mode == "" {
		req.Mode = string(models.ScanModeFull)
	}

	scanID, err := h.scans.StartScan(r.Context(), clusterID, models.ScanMode(req.Mode), req.Filters)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"scan_id": scanID})
}

// GetScan handles GET /api/v1/scans/{scanId}.
func (h *Handler) GetScan(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["scanId"]
	session, err := h.scans.GetStatus(r.Context(), scanID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// ListScans handles GET /api/v1/scans.
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.scans.ListSessions(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []models.ScanSummary{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"scans": summaries})
}

// StopScan handles POST /api/v1/scans/{scanId}/stop.
func (h *Handler) StopScan(w http.ResponseWriter, r *http.Request) {
	scanID := mux.Vars(r)["scanId"]
	if err := h.scans.Stop(scanID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "stop requested"})
}

// ClearScanCache handles DELETE /api/v1/clusters/{clusterId}/scan-cache.
func (h *Handler) ClearScanCache(w http.ResponseWriter, r *http.Request) {
	clusterID := mux.Vars(r)["clusterId"]
	if err := h.scans.ClearCache(r.Context(), clusterID); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "scan cache cleared"})
}

// BlastRadius handles GET /api/v1/scans/{scanId}/blast-radius/{resourceId}?depth=N.
func (h *Handler) BlastRadius(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	scanID := vars["scanId"]
	resourceID := vars["resourceId"]
	depth := intQuery(r, "depth", 0)

	ids, err := h.scans.BlastRadius(scanID, resourceID, depth)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"resource_id": resourceID,
		"depth":       depth,
		"resources":   ids,
	})
}

func intQuery(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
