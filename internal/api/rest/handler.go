// Package rest exposes the scan and remediation API over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kortexhq/kortex-backend/internal/models"
	"github.com/kortexhq/kortex-backend/internal/repository"
)

// ScanService is the scan coordinator surface consumed by the handlers.
type ScanService interface {
	StartScan(ctx context.Context, clusterID string, mode models.ScanMode, filters []string) (string, error)
	GetStatus(ctx context.Context, sessionID string) (*models.ScanSession, error)
	Stop(sessionID string) error
	ListSessions(ctx context.Context) ([]models.ScanSummary, error)
	ClearCache(ctx context.Context, clusterID string) error
	BlastRadius(sessionID, resourceID string, depth int) ([]string, error)
}

// FixService is the remediation engine surface consumed by the handlers.
type FixService interface {
	StartFix(ctx context.Context, clusterID, resourceID, issueDescription string) (string, error)
	GetStatus(workflowID string) (*models.FixWorkflow, error)
	RunBatch(ctx context.Context, clusterID string, issues []models.Issue) (*models.BatchRun, error)
}

// ClusterLister reports the registered cluster ids.
type ClusterLister interface {
	ClusterIDs() []string
}

// Handler manages HTTP request handlers.
type Handler struct {
	scans    ScanService
	fixes    FixService
	clusters ClusterLister
	history  repository.HistoryRepository // nil disables the history endpoint
}

// NewHandler creates a new HTTP handler.
func NewHandler(scans ScanService, fixes FixService, clusters ClusterLister, history repository.HistoryRepository) *Handler {
	return &Handler{
		scans:    scans,
		fixes:    fixes,
		clusters: clusters,
		history:  history,
	}
}

// SetupRoutes configures API routes.
func SetupRoutes(router *mux.Router, h *Handler) {
	api := router.PathPrefix("/api/v1").Subrouter()

	// Scan routes
	api.HandleFunc("/clusters/{clusterId}/scans", h.StartScan).Methods("POST")
	api.HandleFunc("/scans", h.ListScans).Methods("GET")
	api.HandleFunc("/scans/{scanId}", h.GetScan).Methods("GET")
	api.HandleFunc("/scans/{scanId}/stop", h.StopScan).Methods("POST")
	api.HandleFunc("/scans/{scanId}/blast-radius/{resourceId:.*}", h.BlastRadius).Methods("GET")
	api.HandleFunc("/clusters/{clusterId}/scan-cache", h.ClearScanCache).Methods("DELETE")

	// Remediation routes
	api.HandleFunc("/clusters/{clusterId}/fix", h.StartFix).Methods("POST")
	api.HandleFunc("/clusters/{clusterId}/fix/batch", h.RunBatch).Methods("POST")
	api.HandleFunc("/fix/{workflowId}", h.GetFix).Methods("GET")

	// Cluster routes
	api.HandleFunc("/clusters", h.ListClusters).Methods("GET")
	api.HandleFunc("/clusters/{clusterId}/history", h.GetHistory).Methods("GET")

	// Health check
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")
}

// ListClusters handles GET /api/v1/clusters.
func (h *Handler) ListClusters(w http.ResponseWriter, r *http.Request) {
	ids := h.clusters.ClusterIDs()
	if ids == nil {
		ids = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"clusters": ids})
}

// GetHistory handles GET /api/v1/clusters/{clusterId}/history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{"history": []models.HistoryEntry{}})
		return
	}
	clusterID := mux.Vars(r)["clusterId"]
	limit := intQuery(r, "limit", 50)
	entries, err := h.history.ListHistory(r.Context(), clusterID, limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if entries == nil {
		entries = []models.HistoryEntry{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}
