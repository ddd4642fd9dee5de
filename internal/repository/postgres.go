package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// PostgresRepository implements Repository on PostgreSQL for shared
// deployments where multiple backend replicas read the same history.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

func (r *PostgresRepository) SaveSession(ctx context.Context, session *models.ScanSession) error {
	row, err := sessionToRow(session)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scans (id, cluster_id, mode, status, progress, total_resources, analyzed_resources, filters, logs, resource_status, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			total_resources = EXCLUDED.total_resources,
			analyzed_resources = EXCLUDED.analyzed_resources,
			logs = EXCLUDED.logs,
			resource_status = EXCLUDED.resource_status,
			result = EXCLUDED.result`,
		row.ID, row.ClusterID, row.Mode, row.Status, row.Progress, row.TotalResources,
		row.Analyzed, row.Filters, row.Logs, row.ResourceStatus, row.Result, row.CreatedAt)
	return err
}

func (r *PostgresRepository) GetSession(ctx context.Context, id string) (*models.ScanSession, error) {
	var row scanRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM scans WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Message: "scan " + id + " not found"}
	}
	if err != nil {
		return nil, err
	}
	return rowToSession(&row)
}

func (r *PostgresRepository) ListSessions(ctx context.Context) ([]models.ScanSummary, error) {
	var rows []scanRow
	err := r.db.SelectContext(ctx, &rows, "SELECT * FROM scans ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	summaries := make([]models.ScanSummary, 0, len(rows))
	for i := range rows {
		session, err := rowToSession(&rows[i])
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, models.ScanSummary{
			ID:          session.ID,
			ClusterID:   session.ClusterID,
			Mode:        session.Mode,
			Status:      session.Status,
			Progress:    session.Progress,
			TotalIssues: len(session.Result.Issues),
			CreatedAt:   session.CreatedAt,
		})
	}
	return summaries, nil
}

func (r *PostgresRepository) MarkInterrupted(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scans SET status = $1
		WHERE status IN ($2, $3, $4)`,
		string(models.ScanStatusFailed),
		string(models.ScanStatusInitializing),
		string(models.ScanStatusFetching),
		string(models.ScanStatusAnalyzing),
	)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *PostgresRepository) GetBaseline(ctx context.Context, clusterID string) (map[string]string, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw,
		"SELECT fingerprints FROM scan_baselines WHERE cluster_id = $1", clusterID)
	if err == sql.ErrNoRows {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	baseline := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &baseline); err != nil {
		return nil, fmt.Errorf("corrupt baseline for cluster %s: %w", clusterID, err)
	}
	return baseline, nil
}

func (r *PostgresRepository) SaveBaseline(ctx context.Context, clusterID string, fingerprints map[string]string) error {
	raw, err := json.Marshal(fingerprints)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scan_baselines (cluster_id, fingerprints, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (cluster_id) DO UPDATE SET
			fingerprints = EXCLUDED.fingerprints,
			updated_at = EXCLUDED.updated_at`,
		clusterID, string(raw), time.Now().UTC())
	return err
}

func (r *PostgresRepository) DeleteBaseline(ctx context.Context, clusterID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM scan_baselines WHERE cluster_id = $1", clusterID)
	return err
}

func (r *PostgresRepository) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO history (id, cluster_id, action, details, timestamp)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.ClusterID, entry.Action, entry.Details, entry.Timestamp)
	return err
}

func (r *PostgresRepository) ListHistory(ctx context.Context, clusterID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.HistoryEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM history WHERE cluster_id = $1
		ORDER BY timestamp DESC LIMIT $2`, clusterID, limit)
	return entries, err
}
