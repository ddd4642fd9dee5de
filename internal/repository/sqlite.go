package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// SQLiteRepository implements Repository on a local SQLite file.
type SQLiteRepository struct {
	db *sqlx.DB
}

// NewSQLiteRepository opens (or creates) the SQLite database.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// RunMigrations runs database migrations.
func (r *SQLiteRepository) RunMigrations(migrationSQL string) error {
	_, err := r.db.Exec(migrationSQL)
	return err
}

// scanRow is the flat DB shape of a ScanSession; structured fields are JSON.
type scanRow struct {
	ID             string    `db:"id"`
	ClusterID      string    `db:"cluster_id"`
	Mode           string    `db:"mode"`
	Status         string    `db:"status"`
	Progress       int       `db:"progress"`
	TotalResources int       `db:"total_resources"`
	Analyzed       int       `db:"analyzed_resources"`
	Filters        string    `db:"filters"`
	Logs           string    `db:"logs"`
	ResourceStatus string    `db:"resource_status"`
	Result         string    `db:"result"`
	CreatedAt      time.Time `db:"created_at"`
}

func (r *SQLiteRepository) SaveSession(ctx context.Context, session *models.ScanSession) error {
	row, err := sessionToRow(session)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO scans (id, cluster_id, mode, status, progress, total_resources, analyzed_resources, filters, logs, resource_status, result, created_at)
		VALUES (:id, :cluster_id, :mode, :status, :progress, :total_resources, :analyzed_resources, :filters, :logs, :resource_status, :result, :created_at)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			total_resources = excluded.total_resources,
			analyzed_resources = excluded.analyzed_resources,
			logs = excluded.logs,
			resource_status = excluded.resource_status,
			result = excluded.result
	`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*models.ScanSession, error) {
	var row scanRow
	err := r.db.GetContext(ctx, &row, "SELECT * FROM scans WHERE id = ?", id)
	if err == sql.ErrNoRows {
		return nil, &models.NotFoundError{Message: "scan " + id + " not found"}
	}
	if err != nil {
		return nil, err
	}
	return rowToSession(&row)
}

func (r *SQLiteRepository) ListSessions(ctx context.Context) ([]models.ScanSummary, error) {
	var rows []scanRow
	err := r.db.SelectContext(ctx, &rows,
		"SELECT * FROM scans ORDER BY created_at DESC")
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

func (r *SQLiteRepository) MarkInterrupted(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scans SET status = ?
		WHERE status IN (?, ?, ?)`,
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

func (r *SQLiteRepository) GetBaseline(ctx context.Context, clusterID string) (map[string]string, error) {
	var raw string
	err := r.db.GetContext(ctx, &raw,
		"SELECT fingerprints FROM scan_baselines WHERE cluster_id = ?", clusterID)
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

func (r *SQLiteRepository) SaveBaseline(ctx context.Context, clusterID string, fingerprints map[string]string) error {
	raw, err := json.Marshal(fingerprints)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO scan_baselines (cluster_id, fingerprints, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cluster_id) DO UPDATE SET
			fingerprints = excluded.fingerprints,
			updated_at = excluded.updated_at`,
		clusterID, string(raw), time.Now().UTC())
	return err
}

func (r *SQLiteRepository) DeleteBaseline(ctx context.Context, clusterID string) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM scan_baselines WHERE cluster_id = ?", clusterID)
	return err
}

func (r *SQLiteRepository) AppendHistory(ctx context.Context, entry *models.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO history (id, cluster_id, action, details, timestamp)
		VALUES (:id, :cluster_id, :action, :details, :timestamp)`, entry)
	return err
}

func (r *SQLiteRepository) ListHistory(ctx context.Context, clusterID string, limit int) ([]models.HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []models.HistoryEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT * FROM history WHERE cluster_id = ?
		ORDER BY timestamp DESC LIMIT ?`, clusterID, limit)
	return entries, err
}

func sessionToRow(s *models.ScanSession) (*scanRow, error) {
	filters, err := json.Marshal(s.Filters)
	if err != nil {
		return nil, err
	}
	logs, err := json.Marshal(s.Logs)
	if err != nil {
		return nil, err
	}
	statuses, err := json.Marshal(s.ResourceStatus)
	if err != nil {
		return nil, err
	}
	result, err := json.Marshal(s.Result)
	if err != nil {
		return nil, err
	}
	return &scanRow{
		ID:             s.ID,
		ClusterID:      s.ClusterID,
		Mode:           string(s.Mode),
		Status:         string(s.Status),
		Progress:       s.Progress,
		TotalResources: s.TotalResources,
		Analyzed:       s.Analyzed,
		Filters:        string(filters),
		Logs:           string(logs),
		ResourceStatus: string(statuses),
		Result:         string(result),
		CreatedAt:      s.CreatedAt,
	}, nil
}

func rowToSession(row *scanRow) (*models.ScanSession, error) {
	s := &models.ScanSession{
		ID:             row.ID,
		ClusterID:      row.ClusterID,
		Mode:           models.ScanMode(row.Mode),
		Status:         models.ScanStatus(row.Status),
		Progress:       row.Progress,
		TotalResources: row.TotalResources,
		Analyzed:       row.Analyzed,
		CreatedAt:      row.CreatedAt,
	}
	if err := json.Unmarshal([]byte(row.Filters), &s.Filters); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(row.Logs), &s.Logs); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(row.ResourceStatus), &s.ResourceStatus); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(row.Result), &s.Result); err != nil {
		return nil, err
	}
	if s.ResourceStatus == nil {
		s.ResourceStatus = map[string]models.ResourceScanStatus{}
	}
	return s, nil
}
