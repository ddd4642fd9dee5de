package rest

import (
	"encoding/json"
	"net/http"

	"github.com/kortexhq/kortex-backend/internal/models"
	"github.com/kortexhq/kortex-backend/internal/pkg/logger"
)

// APIError represents a structured API error response.
type APIError struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// Error codes for common scenarios.
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeUpstream         = "UPSTREAM_UNAVAILABLE"
	ErrCodeAnalysisFailed   = "ANALYSIS_FAILED"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
)

// respondError maps a service error onto the HTTP status and code taxonomy:
// conflicts to 409, unknown ids to 404, bad input to 400, unreachable
// collaborators to 502, everything else to 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := ErrCodeInternalError
	switch {
	case models.IsConflict(err):
		status, code = http.StatusConflict, ErrCodeConflict
	case models.IsNotFound(err):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case models.IsValidation(err):
		status, code = http.StatusBadRequest, ErrCodeValidationFailed
	case models.IsConnectivity(err):
		status, code = http.StatusBadGateway, ErrCodeUpstream
	case models.IsAnalysis(err):
		status, code = http.StatusBadGateway, ErrCodeAnalysisFailed
	}
	respondErrorWithCode(w, status, code, err.Error(), logger.FromContext(r.Context()))
}

func respondErrorWithCode(w http.ResponseWriter, status int, code, message, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	apiErr := APIError{
		Error:     message,
		Code:      code,
		Message:   message,
		RequestID: requestID,
	}
	json.NewEncoder(w).Encode(apiErr)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
