// Package repository persists scan history, smart-scan fingerprint baselines,
// and the cluster action history.
package repository

import (
	"context"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// ScanRepository stores scan sessions for history and reporting.
type ScanRepository interface {
	SaveSession(ctx context.Context, session *models.ScanSession) error
	GetSession(ctx context.Context, id string) (*models.ScanSession, error)
	ListSessions(ctx context.Context) ([]models.ScanSummary, error)
	// MarkInterrupted flags sessions left in a non-terminal status (after a
	// process restart) as failed. Returns the number of sessions updated.
	MarkInterrupted(ctx context.Context) (int, error)
}

// BaselineRepository stores the smart-scan fingerprint baseline per cluster.
type BaselineRepository interface {
	GetBaseline(ctx context.Context, clusterID string) (map[string]string, error)
	SaveBaseline(ctx context.Context, clusterID string, fingerprints map[string]string) error
	DeleteBaseline(ctx context.Context, clusterID string) error
}

// HistoryRepository stores user-visible cluster actions, newest first.
type HistoryRepository interface {
	AppendHistory(ctx context.Context, entry *models.HistoryEntry) error
	ListHistory(ctx context.Context, clusterID string, limit int) ([]models.HistoryEntry, error)
}

// Repository is the full persistence surface consumed by the services.
type Repository interface {
	ScanRepository
	BaselineRepository
	HistoryRepository
	RunMigrations(migrationSQL string) error
	Close() error
}
