package logger

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestLogEmitsOneJSONLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log")
	out, err := os.Create(path)
	require.NoError(t, err)

	RequestLog(out, "req-1", "prod", "POST", "/api/v1/clusters/prod/scans", 202, 12*time.Millisecond, "")
	require.NoError(t, out.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "prod", entry["cluster_id"])
	assert.Equal(t, float64(202), entry["status"])
	assert.NotContains(t, entry, "error")
}

func TestRequestLogLevels(t *testing.T) {
	write := func(status int) map[string]interface{} {
		path := filepath.Join(t.TempDir(), "log")
		out, err := os.Create(path)
		require.NoError(t, err)
		RequestLog(out, "req-1", "", "GET", "/api/v1/scans", status, time.Millisecond, "")
		require.NoError(t, out.Close())
		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &entry))
		return entry
	}

	assert.Equal(t, "warn", write(404)["level"])
	assert.Equal(t, "error", write(500)["level"])
}

func TestFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-9")
	assert.Equal(t, "req-9", FromContext(ctx))
	assert.Empty(t, FromContext(context.Background()))
}
