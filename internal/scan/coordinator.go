// Package scan orchestrates full and incremental (smart) cluster analysis
// sessions: inventory fetch, dependency graph construction, per-resource
// analyzer calls, and the session state machine.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kortexhq/kortex-backend/internal/analyzer"
	"github.com/kortexhq/kortex-backend/internal/graph"
	"github.com/kortexhq/kortex-backend/internal/k8s"
	"github.com/kortexhq/kortex-backend/internal/models"
	"github.com/kortexhq/kortex-backend/internal/pkg/metrics"
	"github.com/kortexhq/kortex-backend/internal/pkg/tracing"
	"github.com/kortexhq/kortex-backend/internal/repository"
)

const maxSessionLogs = 1000

// Inventory fetches the current resource set of a cluster.
type Inventory interface {
	FetchResources(ctx context.Context, clusterID string) ([]models.ResourceRecord, error)
}

// Broadcaster pushes session snapshots to subscribers (WebSocket hub).
type Broadcaster interface {
	BroadcastScan(session *models.ScanSession)
}

// Options tunes coordinator behavior. Zero values fall back to safe defaults.
type Options struct {
	IgnoredNamespaces []string      // inventoried and graphed, never analyzed
	ScanTimeout       time.Duration // whole-session budget; 0 = unbounded
	FetchTimeout      time.Duration // inventory fetch budget; 0 = 60s
	GraphDepthDefault int           // blast-radius depth when the caller passes none
	GraphCacheSize    int           // LRU entries of built graphs, keyed by session id
}

// Coordinator owns all scan sessions. Sessions are mutated only by their
// worker goroutine; every mutation happens under mu and readers receive
// cloned snapshots, so no lock is ever held across an analyzer or cluster
// call.
type Coordinator struct {
	inventory Inventory
	analyzer  analyzer.Analyzer
	repo      repository.Repository // nil disables persistence
	broadcast Broadcaster           // nil disables push updates
	log       *slog.Logger
	opts      Options

	mu        sync.Mutex
	sessions  map[string]*models.ScanSession
	stops     map[string]*atomic.Bool
	resources map[string][]models.ResourceRecord // inventory snapshot per session
	graphs    *lru.Cache[string, *graph.Graph]
}

func NewCoordinator(inv Inventory, az analyzer.Analyzer, repo repository.Repository, broadcast Broadcaster, log *slog.Logger, opts Options) (*Coordinator, error) {
	if opts.GraphCacheSize <= 0 {
		opts.GraphCacheSize = 16
	}
	if opts.GraphDepthDefault <= 0 {
		opts.GraphDepthDefault = 1
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 60 * time.Second
	}
	graphs, err := lru.New[string, *graph.Graph](opts.GraphCacheSize)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		inventory: inv,
		analyzer:  az,
		repo:      repo,
		broadcast: broadcast,
		log:       log,
		opts:      opts,
		sessions:  make(map[string]*models.ScanSession),
		stops:     make(map[string]*atomic.Bool),
		resources: make(map[string][]models.ResourceRecord),
		graphs:    graphs,
	}, nil
}

// StartScan creates a session and launches its worker. At most one
// non-terminal session may exist per cluster.
func (c *Coordinator) StartScan(ctx context.Context, clusterID string, mode models.ScanMode, filters []string) (string, error) {
	if clusterID == "" {
		return "", &models.ValidationError{Message: "cluster id is required"}
	}
	if mode != models.ScanModeFull && mode != models.ScanModeSmart {
		return "", &models.ValidationError{Message: fmt.Sprintf("unknown scan mode %q", mode)}
	}
	// Filters are advisory and only meaningful for smart scans.
	if mode == models.ScanModeSmart {
		for _, f := range filters {
			if !k8s.KnownKind(f) {
				return "", &models.ValidationError{Message: fmt.Sprintf("unknown resource kind in filters: %q", f)}
			}
		}
	} else {
		filters = nil
	}

	c.mu.Lock()
	for _, s := range c.sessions {
		if s.ClusterID == clusterID && !s.Status.Terminal() {
			c.mu.Unlock()
			return "", &models.ConflictError{Message: "an active scan already exists for cluster " + clusterID}
		}
	}
	session := &models.ScanSession{
		ID:             uuid.New().String(),
		ClusterID:      clusterID,
		Mode:           mode,
		Filters:        append([]string(nil), filters...),
		Status:         models.ScanStatusInitializing,
		ResourceStatus: map[string]models.ResourceScanStatus{},
		CreatedAt:      time.Now().UTC(),
	}
	stop := &atomic.Bool{}
	c.sessions[session.ID] = session
	c.stops[session.ID] = stop
	c.mu.Unlock()

	metrics.ScansStartedTotal.WithLabelValues(string(mode)).Inc()
	c.appendLog(session, fmt.Sprintf("Scan started (mode=%s)", mode))
	c.recordHistory(clusterID, "scan_started", fmt.Sprintf("%s scan %s", mode, session.ID))
	c.log.Info("scan started", "scan_id", session.ID, "cluster_id", clusterID, "mode", mode)

	// The worker outlives the HTTP request that started it.
	runCtx := context.Background()
	var cancel context.CancelFunc = func() {}
	if c.opts.ScanTimeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, c.opts.ScanTimeout)
	}
	go func() {
		defer cancel()
		c.run(runCtx, session, stop)
	}()

	return session.ID, nil
}

// GetStatus returns a snapshot of a session, falling back to persisted
// history for sessions from earlier process runs.
func (c *Coordinator) GetStatus(ctx context.Context, sessionID string) (*models.ScanSession, error) {
	c.mu.Lock()
	if s, ok := c.sessions[sessionID]; ok {
		snapshot := s.Clone()
		c.mu.Unlock()
		return snapshot, nil
	}
	c.mu.Unlock()
	if c.repo != nil {
		return c.repo.GetSession(ctx, sessionID)
	}
	return nil, &models.NotFoundError{Message: "scan " + sessionID + " not found"}
}

// Stop requests cooperative cancellation. Stopping a terminal or already
// stopping session is a no-op; the call is idempotent.
func (c *Coordinator) Stop(sessionID string) error {
	c.mu.Lock()
	stop, ok := c.stops[sessionID]
	c.mu.Unlock()
	if ok {
		stop.Store(true)
		return nil
	}
	// Sessions from earlier process runs exist only in the repository and are
	// terminal after MarkInterrupted; stopping them is a no-op.
	if c.repo != nil {
		if _, err := c.repo.GetSession(context.Background(), sessionID); err == nil {
			return nil
		}
	}
	return &models.NotFoundError{Message: "scan " + sessionID + " not found"}
}

// ListSessions returns newest-first summaries of all known sessions.
func (c *Coordinator) ListSessions(ctx context.Context) ([]models.ScanSummary, error) {
	seen := map[string]bool{}
	var summaries []models.ScanSummary

	c.mu.Lock()
	for _, s := range c.sessions {
		seen[s.ID] = true
		summaries = append(summaries, models.ScanSummary{
			ID:          s.ID,
			ClusterID:   s.ClusterID,
			Mode:        s.Mode,
			Status:      s.Status,
			Progress:    s.Progress,
			TotalIssues: len(s.Result.Issues),
			CreatedAt:   s.CreatedAt,
		})
	}
	c.mu.Unlock()

	if c.repo != nil {
		persisted, err := c.repo.ListSessions(ctx)
		if err != nil {
			return nil, err
		}
		for _, s := range persisted {
			if !seen[s.ID] {
				summaries = append(summaries, s)
			}
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries, nil
}

// ClearCache deletes the smart-scan fingerprint baseline for a cluster. The
// next smart scan behaves like a first scan and targets everything.
func (c *Coordinator) ClearCache(ctx context.Context, clusterID string) error {
	if c.repo != nil {
		if err := c.repo.DeleteBaseline(ctx, clusterID); err != nil {
			return err
		}
	}
	c.recordHistory(clusterID, "scan_cache_cleared", "smart-scan baseline reset")
	return nil
}

// BlastRadius returns the ids within depth hops of resourceID in the
// dependency graph built for a session. depth <= 0 uses the configured
// default. The graph is cached per session; on eviction it is rebuilt from
// the session's inventory snapshot.
func (c *Coordinator) BlastRadius(sessionID, resourceID string, depth int) ([]string, error) {
	if depth <= 0 {
		depth = c.opts.GraphDepthDefault
	}
	g, ok := c.graphs.Get(sessionID)
	if ok {
		metrics.GraphCacheHitsTotal.Inc()
	} else {
		c.mu.Lock()
		records, have := c.resources[sessionID]
		c.mu.Unlock()
		if !have {
			return nil, &models.NotFoundError{Message: "no dependency graph for scan " + sessionID}
		}
		g = graph.Build(records)
		c.graphs.Add(sessionID, g)
	}
	if !g.HasNode(resourceID) {
		return nil, &models.NotFoundError{Message: "resource " + resourceID + " not found in scan " + sessionID}
	}
	set := g.WithinDepth(resourceID, depth)
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// run is the session worker. It owns all state transitions for its session.
func (c *Coordinator) run(ctx context.Context, s *models.ScanSession, stop *atomic.Bool) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "scan.run",
		attribute.String("scan.id", s.ID),
		attribute.String("cluster.id", s.ClusterID),
		attribute.String("scan.mode", string(s.Mode)),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.ScanDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	fetchCtx, cancel := context.WithTimeout(ctx, c.opts.FetchTimeout)
	records, err := c.inventory.FetchResources(fetchCtx, s.ClusterID)
	cancel()
	if err != nil {
		c.fail(ctx, s, fmt.Sprintf("inventory fetch failed: %v", err))
		return
	}

	c.mu.Lock()
	c.resources[s.ID] = records
	c.mu.Unlock()
	c.graphs.Add(s.ID, graph.Build(records))
	c.appendLog(s, fmt.Sprintf("Inventory fetched: %d resources, dependency graph built", len(records)))

	targets, err := c.selectTargets(ctx, s, records)
	if err != nil {
		c.fail(ctx, s, err.Error())
		return
	}

	c.setStatus(s, models.ScanStatusAnalyzing, func(sess *models.ScanSession) {
		sess.TotalResources = len(targets)
	})
	c.appendLog(s, fmt.Sprintf("Analyzing %d of %d resources", len(targets), len(records)))

	if len(targets) == 0 {
		c.complete(ctx, s, records, nil)
		return
	}

	var issues []models.Issue
	processed := 0
	for _, record := range targets {
		if stop.Load() || ctx.Err() != nil {
			c.stopSession(ctx, s)
			return
		}

		result, err := c.analyzeOne(ctx, s, record)
		processed++
		c.mu.Lock()
		if err != nil {
			s.ResourceStatus[record.ID] = models.ResourceError
		} else {
			s.ResourceStatus[record.ID] = models.ResourceAnalyzed
			s.Analyzed++
			issues = append(issues, result.Issues...)
		}
		s.Progress = processed * 100 / len(targets)
		c.mu.Unlock()

		if err != nil {
			c.appendLog(s, fmt.Sprintf("Analysis of %s failed: %v", record.ID, err))
		} else if n := len(result.Issues); n > 0 {
			c.appendLog(s, fmt.Sprintf("Analyzed %s: %d issue(s)", record.ID, n))
			for _, issue := range result.Issues {
				metrics.IssuesFoundTotal.WithLabelValues(string(issue.Severity)).Inc()
			}
		} else {
			c.appendLog(s, fmt.Sprintf("Analyzed %s: clean", record.ID))
		}
		c.publish(ctx, s)
	}

	c.complete(ctx, s, records, issues)
}

// selectTargets marks every inventoried resource in the status map and
// returns the subset that will be analyzed, in stable id order.
func (c *Coordinator) selectTargets(ctx context.Context, s *models.ScanSession, records []models.ResourceRecord) ([]models.ResourceRecord, error) {
	ignoredNS := map[string]bool{}
	for _, ns := range c.opts.IgnoredNamespaces {
		ignoredNS[ns] = true
	}
	kindFilter := map[string]bool{}
	for _, f := range s.Filters {
		kindFilter[f] = true
	}

	var baseline map[string]string
	if s.Mode == models.ScanModeSmart && c.repo != nil {
		var err error
		baseline, err = c.repo.GetBaseline(ctx, s.ClusterID)
		if err != nil {
			return nil, fmt.Errorf("failed to load scan baseline: %w", err)
		}
	}

	var targets []models.ResourceRecord
	c.mu.Lock()
	for _, r := range records {
		switch {
		case ignoredNS[r.Namespace]:
			s.ResourceStatus[r.ID] = models.ResourceIgnored
		case s.Mode == models.ScanModeSmart && len(kindFilter) > 0 && !kindFilter[r.Kind]:
			s.ResourceStatus[r.ID] = models.ResourceIgnored
		case s.Mode == models.ScanModeSmart && baseline[r.ID] == r.Fingerprint:
			// Unchanged since the last completed scan.
			s.ResourceStatus[r.ID] = models.ResourceIgnored
		default:
			s.ResourceStatus[r.ID] = models.ResourcePending
			targets = append(targets, r)
		}
	}
	c.mu.Unlock()
	return targets, nil
}

func (c *Coordinator) analyzeOne(ctx context.Context, s *models.ScanSession, record models.ResourceRecord) (*models.AnalysisResult, error) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "scan.analyze_resource",
		attribute.String("resource.id", record.ID),
	)
	defer span.End()

	// Call latency is observed inside the analyzer client.
	return c.analyzer.AnalyzeResource(ctx, record, s.ClusterID)
}

func (c *Coordinator) complete(ctx context.Context, s *models.ScanSession, records []models.ResourceRecord, issues []models.Issue) {
	now := time.Now().UTC()
	bySeverity := map[models.Severity]int{}
	for _, issue := range issues {
		bySeverity[issue.Severity]++
	}
	summary := fmt.Sprintf("Scan completed: %d resource(s) analyzed, %d issue(s) found (%d critical, %d high, %d medium, %d low)",
		s.Analyzed, len(issues),
		bySeverity[models.SeverityCritical], bySeverity[models.SeverityHigh],
		bySeverity[models.SeverityMedium], bySeverity[models.SeverityLow])

	c.setStatus(s, models.ScanStatusCompleted, func(sess *models.ScanSession) {
		sess.Progress = 100
		sess.Result = models.ScanResult{
			Issues:    append([]models.Issue(nil), issues...),
			Summary:   summary,
			Timestamp: &now,
		}
	})
	c.appendLog(s, summary)

	// The baseline advances only on successful completion, so stopped and
	// failed scans never hide changes from the next smart scan.
	if c.repo != nil {
		fingerprints := make(map[string]string, len(records))
		for _, r := range records {
			fingerprints[r.ID] = r.Fingerprint
		}
		if err := c.repo.SaveBaseline(ctx, s.ClusterID, fingerprints); err != nil {
			c.log.Error("failed to save scan baseline", "scan_id", s.ID, "error", err)
		}
	}

	metrics.ScansFinishedTotal.WithLabelValues(string(models.ScanStatusCompleted)).Inc()
	c.recordHistory(s.ClusterID, "scan_completed", summary)
	c.log.Info("scan completed", "scan_id", s.ID, "issues", len(issues))
	c.publish(ctx, s)
}

func (c *Coordinator) fail(ctx context.Context, s *models.ScanSession, reason string) {
	c.appendLog(s, reason)
	c.setStatus(s, models.ScanStatusFailed, nil)
	metrics.ScansFinishedTotal.WithLabelValues(string(models.ScanStatusFailed)).Inc()
	c.recordHistory(s.ClusterID, "scan_failed", reason)
	c.log.Error("scan failed", "scan_id", s.ID, "reason", reason)
	c.publish(ctx, s)
}

// stopSession finalizes a cooperative cancel, preserving partial results and
// the resource status map as-is.
func (c *Coordinator) stopSession(ctx context.Context, s *models.ScanSession) {
	c.appendLog(s, "Scan stopped by request")
	c.setStatus(s, models.ScanStatusStopped, nil)
	metrics.ScansFinishedTotal.WithLabelValues(string(models.ScanStatusStopped)).Inc()
	c.recordHistory(s.ClusterID, "scan_stopped", "scan "+s.ID+" stopped")
	c.log.Info("scan stopped", "scan_id", s.ID)
	c.publish(ctx, s)
}

func (c *Coordinator) setStatus(s *models.ScanSession, status models.ScanStatus, mutate func(*models.ScanSession)) {
	c.mu.Lock()
	s.Status = status
	if mutate != nil {
		mutate(s)
	}
	c.mu.Unlock()
}

func (c *Coordinator) appendLog(s *models.ScanSession, message string) {
	entry := models.LogEntry{
		Timestamp: time.Now().UTC().Format("15:04:05"),
		Message:   message,
	}
	c.mu.Lock()
	s.Logs = append(s.Logs, entry)
	if len(s.Logs) > maxSessionLogs {
		s.Logs = s.Logs[len(s.Logs)-maxSessionLogs:]
	}
	c.mu.Unlock()
}

// publish persists the current state and pushes a snapshot to subscribers.
func (c *Coordinator) publish(ctx context.Context, s *models.ScanSession) {
	c.mu.Lock()
	snapshot := s.Clone()
	c.mu.Unlock()
	if c.repo != nil {
		if err := c.repo.SaveSession(ctx, snapshot); err != nil {
			c.log.Error("failed to persist scan session", "scan_id", s.ID, "error", err)
		}
	}
	if c.broadcast != nil {
		c.broadcast.BroadcastScan(snapshot)
	}
}

func (c *Coordinator) recordHistory(clusterID, action, details string) {
	if c.repo == nil {
		return
	}
	entry := &models.HistoryEntry{ClusterID: clusterID, Action: action, Details: details}
	if err := c.repo.AppendHistory(context.Background(), entry); err != nil {
		c.log.Error("failed to append history", "cluster_id", clusterID, "error", err)
	}
}
