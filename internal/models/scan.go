package models

import "time"

// ScanMode selects full or incremental (smart) analysis.
type ScanMode string

const (
	ScanModeFull  ScanMode = "full"
	ScanModeSmart ScanMode = "smart"
)

// ScanStatus is the lifecycle state of a scan session.
type ScanStatus string

const (
	ScanStatusIdle         ScanStatus = "idle"
	ScanStatusInitializing ScanStatus = "initializing"
	ScanStatusFetching     ScanStatus = "fetching_resources"
	ScanStatusAnalyzing    ScanStatus = "analyzing"
	ScanStatusCompleted    ScanStatus = "completed"
	ScanStatusFailed       ScanStatus = "failed"
	ScanStatusStopped      ScanStatus = "stopped"
)

// Terminal reports whether no further transitions are possible.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusCompleted || s == ScanStatusFailed || s == ScanStatusStopped
}

// ResourceScanStatus is the per-resource state within a scan session.
type ResourceScanStatus string

const (
	ResourcePending  ResourceScanStatus = "pending"
	ResourceAnalyzed ResourceScanStatus = "analyzed"
	ResourceError    ResourceScanStatus = "error"
	ResourceIgnored  ResourceScanStatus = "ignored"
)

// LogEntry is one timestamped line in a scan or workflow log.
type LogEntry struct {
	Timestamp string `json:"timestamp"` // HH:MM:SS wall clock
	Message   string `json:"message"`
}

// ScanResult is the aggregate outcome of a completed scan.
type ScanResult struct {
	Issues    []Issue    `json:"issues"`
	Summary   string     `json:"summary"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// ScanSession is the full state of one scan. Mutated only by the scan
// coordinator's worker; callers receive copied snapshots.
type ScanSession struct {
	ID             string                        `json:"id"`
	ClusterID      string                        `json:"cluster_id"`
	Mode           ScanMode                      `json:"mode"`
	Filters        []string                      `json:"filters,omitempty"`
	Status         ScanStatus                    `json:"status"`
	Progress       int                           `json:"progress"` // 0-100
	Logs           []LogEntry                    `json:"logs"`
	ResourceStatus map[string]ResourceScanStatus `json:"resource_status"`
	Result         ScanResult                    `json:"result"`
	TotalResources int                           `json:"total_resources"`
	Analyzed       int                           `json:"analyzed_resources"`
	CreatedAt      time.Time                     `json:"created_at"`
}

// ScanSummary is a lightweight listing view of a session.
type ScanSummary struct {
	ID          string     `json:"id"`
	ClusterID   string     `json:"cluster_id"`
	Mode        ScanMode   `json:"mode"`
	Status      ScanStatus `json:"status"`
	Progress    int        `json:"progress"`
	TotalIssues int        `json:"total_issues"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Clone returns a deep copy safe to hand to readers while the worker keeps
// mutating the original.
func (s *ScanSession) Clone() *ScanSession {
	cp := *s
	cp.Filters = append([]string(nil), s.Filters...)
	cp.Logs = append([]LogEntry(nil), s.Logs...)
	cp.ResourceStatus = make(map[string]ResourceScanStatus, len(s.ResourceStatus))
	for k, v := range s.ResourceStatus {
		cp.ResourceStatus[k] = v
	}
	cp.Result.Issues = append([]Issue(nil), s.Result.Issues...)
	return &cp
}
