package middleware

import (
	"net/http"
	"strings"
)

const (
	// DefaultStandardMaxBodyBytes is the max request body for most API requests (512KB).
	DefaultStandardMaxBodyBytes = 512 * 1024
	// DefaultBatchMaxBodyBytes is the max request body for batch fix requests,
	// which carry whole issue lists with manifests (5MB).
	DefaultBatchMaxBodyBytes = 5 * 1024 * 1024
)

// MaxBodySize limits request body size: batchMax for POST .../fix/batch,
// standardMax otherwise. GET/HEAD/DELETE are not limited.
func MaxBodySize(standardMax, batchMax int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil {
				next.ServeHTTP(w, r)
				return
			}
			max := standardMax
			if r.Method == http.MethodPost &&
				strings.HasSuffix(strings.TrimSuffix(r.URL.Path, "/"), "/fix/batch") {
				max = batchMax
			}
			r.Body = http.MaxBytesReader(w, r.Body, max)
			next.ServeHTTP(w, r)
		})
	}
}
