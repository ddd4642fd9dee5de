package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortexhq/kortex-backend/internal/models"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	schema, err := os.ReadFile("../../migrations/001_initial_schema.sql")
	require.NoError(t, err)
	require.NoError(t, repo.RunMigrations(string(schema)))
	return repo
}

func sampleSession(id string, status models.ScanStatus) *models.ScanSession {
	return &models.ScanSession{
		ID:             id,
		ClusterID:      "prod",
		Mode:           models.ScanModeFull,
		Status:         status,
		Progress:       40,
		TotalResources: 10,
		Analyzed:       4,
		Logs:           []models.LogEntry{{Timestamp: "10:00:00", Message: "scan started"}},
		ResourceStatus: map[string]models.ResourceScanStatus{
			"pod/default/web": models.ResourceAnalyzed,
			"pod/default/db":  models.ResourcePending,
		},
		Result:    models.ScanResult{Issues: []models.Issue{}},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGetSession(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session := sampleSession("scan-1", models.ScanStatusAnalyzing)
	require.NoError(t, repo.SaveSession(ctx, session))

	got, err := repo.GetSession(ctx, "scan-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, session.Status, got.Status)
	assert.Equal(t, session.ResourceStatus, got.ResourceStatus)
	assert.Len(t, got.Logs, 1)
}

func TestSaveSessionUpsert(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	session := sampleSession("scan-1", models.ScanStatusAnalyzing)
	require.NoError(t, repo.SaveSession(ctx, session))

	session.Status = models.ScanStatusCompleted
	session.Progress = 100
	require.NoError(t, repo.SaveSession(ctx, session))

	got, err := repo.GetSession(ctx, "scan-1")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)

	summaries, err := repo.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, summaries, 1)
}

func TestGetSessionNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetSession(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestMarkInterrupted(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveSession(ctx, sampleSession("running", models.ScanStatusAnalyzing)))
	require.NoError(t, repo.SaveSession(ctx, sampleSession("done", models.ScanStatusCompleted)))

	n, err := repo.MarkInterrupted(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.GetSession(ctx, "running")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusFailed, got.Status)

	got, err = repo.GetSession(ctx, "done")
	require.NoError(t, err)
	assert.Equal(t, models.ScanStatusCompleted, got.Status)
}

func TestBaselineRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// Missing baseline reads as empty, not an error.
	baseline, err := repo.GetBaseline(ctx, "prod")
	require.NoError(t, err)
	assert.Empty(t, baseline)

	fingerprints := map[string]string{
		"pod/default/web": "abc123",
		"pod/default/db":  "def456",
	}
	require.NoError(t, repo.SaveBaseline(ctx, "prod", fingerprints))

	baseline, err = repo.GetBaseline(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, fingerprints, baseline)

	// Overwrite replaces, not merges.
	require.NoError(t, repo.SaveBaseline(ctx, "prod", map[string]string{"pod/default/web": "zzz"}))
	baseline, err = repo.GetBaseline(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pod/default/web": "zzz"}, baseline)

	require.NoError(t, repo.DeleteBaseline(ctx, "prod"))
	baseline, err = repo.GetBaseline(ctx, "prod")
	require.NoError(t, err)
	assert.Empty(t, baseline)
}

func TestHistoryNewestFirst(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, action := range []string{"scan_started", "scan_completed", "fix_applied"} {
		entry := &models.HistoryEntry{
			ClusterID: "prod",
			Action:    action,
			Details:   "entry " + action,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, repo.AppendHistory(ctx, entry))
		assert.NotEmpty(t, entry.ID)
	}

	entries, err := repo.ListHistory(ctx, "prod", 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "fix_applied", entries[0].Action)
	assert.Equal(t, "scan_completed", entries[1].Action)

	entries, err = repo.ListHistory(ctx, "other", 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
