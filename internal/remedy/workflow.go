// Package remedy drives autonomous remediation: a six-gate fix workflow that
// proves every patch in a disposable shadow cluster before touching
// production, and a batch coordinator that sequences workflows over a scan's
// issue list.
package remedy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kortexhq/kortex-backend/internal/analyzer"
	"github.com/kortexhq/kortex-backend/internal/models"
	"github.com/kortexhq/kortex-backend/internal/pkg/metrics"
	"github.com/kortexhq/kortex-backend/internal/pkg/tracing"
	"github.com/kortexhq/kortex-backend/internal/pkg/validate"
	"github.com/kortexhq/kortex-backend/internal/repository"
	"github.com/kortexhq/kortex-backend/internal/shadow"
)

// ResourceGetter looks up a live resource by id.
type ResourceGetter interface {
	GetResource(ctx context.Context, clusterID, resourceID string) (*models.ResourceRecord, error)
}

// ProductionApplier applies patches to the real cluster and checks readiness.
type ProductionApplier interface {
	Apply(ctx context.Context, clusterID, manifest string) error
	Validate(ctx context.Context, clusterID, resourceID string) (bool, error)
}

// Options tunes workflow behavior.
type Options struct {
	ShadowSettle   time.Duration // wait after an apply before validating
	PollInterval   time.Duration // batch poll cadence
	KubeconfigPath string        // host kubeconfig shadows are provisioned into
	GateTimeout    time.Duration // per-gate budget; 0 = 10m
}

// Engine owns all fix workflows. A workflow is mutated only by its own
// goroutine; mutations happen under mu and readers get cloned snapshots, so
// no lock is held across a gate operation.
type Engine struct {
	resources ResourceGetter
	patcher   analyzer.PatchGenerator
	shadows   shadow.Environment
	cluster   ProductionApplier
	repo      repository.HistoryRepository // nil disables history
	log       *slog.Logger
	opts      Options

	mu        sync.Mutex
	workflows map[string]*models.FixWorkflow
	active    map[string]string // resource id -> non-terminal workflow id
}

func NewEngine(resources ResourceGetter, patcher analyzer.PatchGenerator, shadows shadow.Environment, cluster ProductionApplier, repo repository.HistoryRepository, log *slog.Logger, opts Options) *Engine {
	if opts.ShadowSettle <= 0 {
		opts.ShadowSettle = 5 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.GateTimeout <= 0 {
		opts.GateTimeout = 10 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		resources: resources,
		patcher:   patcher,
		shadows:   shadows,
		cluster:   cluster,
		repo:      repo,
		log:       log,
		opts:      opts,
		workflows: make(map[string]*models.FixWorkflow),
		active:    make(map[string]string),
	}
}

// StartFix launches a workflow for one resource and issue. At most one
// non-terminal workflow may target a resource at a time.
func (e *Engine) StartFix(ctx context.Context, clusterID, resourceID, issueDescription string) (string, error) {
	if clusterID == "" || resourceID == "" {
		return "", &models.ValidationError{Message: "cluster id and resource id are required"}
	}
	if issueDescription == "" {
		return "", &models.ValidationError{Message: "issue description is required"}
	}

	e.mu.Lock()
	if wfID, busy := e.active[resourceID]; busy {
		e.mu.Unlock()
		return "", &models.ConflictError{Message: fmt.Sprintf("workflow %s is already remediating %s", wfID, resourceID)}
	}
	wf := &models.FixWorkflow{
		ID:         uuid.New().String(),
		ClusterID:  clusterID,
		ResourceID: resourceID,
		Issue:      issueDescription,
		Status:     models.WorkflowRunning,
		CreatedAt:  time.Now().UTC(),
	}
	e.workflows[wf.ID] = wf
	e.active[resourceID] = wf.ID
	e.mu.Unlock()

	e.appendLog(wf, fmt.Sprintf("Fix workflow started for %s", resourceID))
	e.recordHistory(clusterID, "fix_started", fmt.Sprintf("remediating %s: %s", resourceID, issueDescription))
	e.log.Info("fix workflow started", "workflow_id", wf.ID, "cluster_id", clusterID, "resource_id", resourceID)

	go e.run(context.Background(), wf)
	return wf.ID, nil
}

// GetStatus returns a snapshot of a workflow.
func (e *Engine) GetStatus(workflowID string) (*models.FixWorkflow, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.workflows[workflowID]
	if !ok {
		return nil, &models.NotFoundError{Message: "workflow " + workflowID + " not found"}
	}
	return wf.Clone(), nil
}

// gateState is the data threaded through the gate pipeline.
type gateState struct {
	resource    *models.ResourceRecord
	remediation *models.Remediation
	env         *shadow.Env
}

// run executes the gates in order. Any gate failure is terminal for the
// workflow; the shadow environment is torn down no matter what.
func (e *Engine) run(ctx context.Context, wf *models.FixWorkflow) {
	ctx, span := tracing.StartSpanWithAttributes(ctx, "remedy.workflow",
		attribute.String("workflow.id", wf.ID),
		attribute.String("resource.id", wf.ResourceID),
	)
	defer span.End()

	state := &gateState{}
	defer e.teardown(ctx, wf, state)

	for _, step := range models.WorkflowSteps {
		e.mu.Lock()
		wf.CurrentStep = step
		wf.StepsRun = append(wf.StepsRun, step)
		e.mu.Unlock()
		e.appendLog(wf, "Step "+string(step)+" started")

		if err := e.runGate(ctx, wf, step, state); err != nil {
			e.fail(wf, step, err)
			return
		}
		e.appendLog(wf, "Step "+string(step)+" completed")
	}

	e.mu.Lock()
	wf.Status = models.WorkflowCompleted
	delete(e.active, wf.ResourceID)
	e.mu.Unlock()
	e.appendLog(wf, "Fix applied and validated in production")
	metrics.WorkflowsFinishedTotal.WithLabelValues(string(models.WorkflowCompleted), "").Inc()
	e.recordHistory(wf.ClusterID, "fix_completed", "remediated "+wf.ResourceID)
	e.log.Info("fix workflow completed", "workflow_id", wf.ID, "resource_id", wf.ResourceID)
}

func (e *Engine) runGate(ctx context.Context, wf *models.FixWorkflow, step models.WorkflowStep, state *gateState) error {
	gateCtx, cancel := context.WithTimeout(ctx, e.opts.GateTimeout)
	defer cancel()
	gateCtx, span := tracing.StartSpan(gateCtx, "remedy.gate."+string(step))
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.WorkflowGateDurationSeconds.WithLabelValues(string(step)).Observe(time.Since(start).Seconds())
	}()

	switch step {
	case models.StepCreateVCluster:
		env, err := e.shadows.Create(gateCtx, shadow.Scope{
			ClusterID:      wf.ClusterID,
			KubeconfigPath: e.opts.KubeconfigPath,
		})
		if err != nil {
			return err
		}
		state.env = env
		e.appendLog(wf, "Shadow cluster "+env.ID+" ready")
		return nil

	case models.StepAnalysis:
		resource, err := e.resources.GetResource(gateCtx, wf.ClusterID, wf.ResourceID)
		if err != nil {
			return err
		}
		remediation, err := e.patcher.GeneratePatch(gateCtx, *resource, wf.Issue)
		if err != nil {
			return err
		}
		state.resource = resource
		state.remediation = remediation
		e.mu.Lock()
		wf.Remediation = remediation
		e.mu.Unlock()
		e.appendLog(wf, "Remediation generated: "+remediation.Description)
		return nil

	case models.StepApplyVCluster:
		return e.shadows.Apply(gateCtx, state.env, state.remediation.Manifest)

	case models.StepValidateVCluster:
		e.settle(gateCtx)
		ok, err := e.shadows.Validate(gateCtx, state.env, wf.ResourceID)
		if err != nil {
			return err
		}
		if !ok {
			return &models.ValidationError{Message: "patched resource did not become ready in the shadow cluster"}
		}
		return nil

	case models.StepApplyReal:
		for _, warning := range validate.ManifestWarnings(state.remediation.Manifest) {
			e.appendLog(wf, "Manifest warning: "+warning)
		}
		return e.cluster.Apply(gateCtx, wf.ClusterID, state.remediation.Manifest)

	case models.StepFinalValidate:
		e.settle(gateCtx)
		ok, err := e.cluster.Validate(gateCtx, wf.ClusterID, wf.ResourceID)
		if err != nil {
			return err
		}
		if !ok {
			// The patch is already live. There is no automatic rollback;
			// the failure is surfaced for manual intervention.
			e.appendLog(wf, "MANUAL INTERVENTION REQUIRED: patch applied to production but resource is not ready")
			return &models.ValidationError{Message: "production resource did not become ready after apply"}
		}
		return nil
	}
	return fmt.Errorf("unknown workflow step %q", step)
}

func (e *Engine) fail(wf *models.FixWorkflow, step models.WorkflowStep, err error) {
	e.appendLog(wf, fmt.Sprintf("Step %s failed: %v", step, err))
	e.mu.Lock()
	wf.Status = models.WorkflowFailed
	delete(e.active, wf.ResourceID)
	e.mu.Unlock()
	metrics.WorkflowsFinishedTotal.WithLabelValues(string(models.WorkflowFailed), string(step)).Inc()
	e.recordHistory(wf.ClusterID, "fix_failed", fmt.Sprintf("remediation of %s failed at %s", wf.ResourceID, step))
	e.log.Error("fix workflow failed", "workflow_id", wf.ID, "resource_id", wf.ResourceID, "step", step, "error", err)
}

// teardown destroys the shadow environment if one was created. It runs on
// every workflow exit and never influences the workflow outcome.
func (e *Engine) teardown(ctx context.Context, wf *models.FixWorkflow, state *gateState) {
	if state.env == nil {
		return
	}
	if err := e.shadows.Teardown(ctx, state.env); err != nil {
		e.appendLog(wf, fmt.Sprintf("Shadow cleanup warning: %v", err))
		e.log.Warn("shadow teardown failed", "workflow_id", wf.ID, "shadow_id", state.env.ID, "error", err)
		return
	}
	e.appendLog(wf, "Shadow cluster "+state.env.ID+" removed")
}

func (e *Engine) settle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(e.opts.ShadowSettle):
	}
}

func (e *Engine) appendLog(wf *models.FixWorkflow, message string) {
	e.mu.Lock()
	wf.Logs = append(wf.Logs, time.Now().UTC().Format("15:04:05")+" "+message)
	e.mu.Unlock()
}

func (e *Engine) recordHistory(clusterID, action, details string) {
	if e.repo == nil {
		return
	}
	entry := &models.HistoryEntry{ClusterID: clusterID, Action: action, Details: details}
	if err := e.repo.AppendHistory(context.Background(), entry); err != nil {
		e.log.Error("failed to append history", "cluster_id", clusterID, "error", err)
	}
}
