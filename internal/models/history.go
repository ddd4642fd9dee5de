package models

import "time"

// HistoryEntry records a user-visible action against a cluster (scan started,
// fix started, batch completed). Newest first; external collaborators render it.
type HistoryEntry struct {
	ID        string    `json:"id" db:"id"`
	ClusterID string    `json:"cluster_id" db:"cluster_id"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}
