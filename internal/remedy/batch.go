package remedy

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// RunBatch remediates a list of issues sequentially: one fix workflow at a
// time, each driven to a terminal status before the next starts. Issues with
// no affected resource are skipped as not fixable. Individual failures are
// logged and never halt the batch. Cancelling ctx stops the batch between
// issues, like a scan's cooperative stop.
func (e *Engine) RunBatch(ctx context.Context, clusterID string, issues []models.Issue) (*models.BatchRun, error) {
	if clusterID == "" {
		return nil, &models.ValidationError{Message: "cluster id is required"}
	}

	run := &models.BatchRun{
		ID:        uuid.New().String(),
		ClusterID: clusterID,
		StartedAt: time.Now().UTC(),
	}
	run.Log = append(run.Log, fmt.Sprintf("Batch remediation started: %d issue(s)", len(issues)))
	e.recordHistory(clusterID, "batch_started", fmt.Sprintf("batch %s: %d issue(s)", run.ID, len(issues)))

	for i, issue := range issues {
		if ctx.Err() != nil {
			run.Log = append(run.Log, "Batch cancelled before issue "+fmt.Sprint(i+1))
			break
		}

		if len(issue.AffectedResourceIDs) == 0 {
			run.Items = append(run.Items, models.BatchItem{
				IssueTitle: issue.Title,
				Outcome:    models.BatchItemNotFixable,
			})
			run.Skipped++
			run.Log = append(run.Log, fmt.Sprintf("Skipping %q: no affected resource, not fixable", issue.Title))
			continue
		}

		resourceID := issue.AffectedResourceIDs[0]
		run.Log = append(run.Log, fmt.Sprintf("Fixing %q on %s (%d/%d)", issue.Title, resourceID, i+1, len(issues)))

		item := e.fixOne(ctx, clusterID, resourceID, issue)
		run.Items = append(run.Items, item)
		switch item.Outcome {
		case models.BatchItemSuccess:
			run.Succeeded++
			run.Log = append(run.Log, fmt.Sprintf("[SUCCESS] %q on %s", issue.Title, resourceID))
		case models.BatchItemFailed:
			run.Failed++
			run.Log = append(run.Log, fmt.Sprintf("[FAILED] %q on %s", issue.Title, resourceID))
		}
	}

	run.EndedAt = time.Now().UTC()
	run.Log = append(run.Log, fmt.Sprintf("Batch finished: %d succeeded, %d failed, %d skipped",
		run.Succeeded, run.Failed, run.Skipped))
	e.recordHistory(clusterID, "batch_completed", fmt.Sprintf("batch %s: %d succeeded, %d failed, %d skipped",
		run.ID, run.Succeeded, run.Failed, run.Skipped))
	e.log.Info("batch remediation finished", "batch_id", run.ID,
		"succeeded", run.Succeeded, "failed", run.Failed, "skipped", run.Skipped)
	return run, nil
}

// fixOne starts a workflow for one issue and polls it to a terminal status.
func (e *Engine) fixOne(ctx context.Context, clusterID, resourceID string, issue models.Issue) models.BatchItem {
	item := models.BatchItem{
		IssueTitle: issue.Title,
		ResourceID: resourceID,
	}

	description := issue.Title
	if issue.Description != "" {
		description = issue.Title + ": " + issue.Description
	}
	wfID, err := e.StartFix(ctx, clusterID, resourceID, description)
	if err != nil {
		item.Outcome = models.BatchItemFailed
		return item
	}
	item.WorkflowID = wfID

	for {
		wf, err := e.GetStatus(wfID)
		if err != nil {
			item.Outcome = models.BatchItemFailed
			return item
		}
		if wf.Status.Terminal() {
			if wf.Status == models.WorkflowCompleted {
				item.Outcome = models.BatchItemSuccess
			} else {
				item.Outcome = models.BatchItemFailed
			}
			return item
		}
		select {
		case <-ctx.Done():
			// The workflow keeps running; the batch just stops waiting.
			item.Outcome = models.BatchItemFailed
			return item
		case <-time.After(e.opts.PollInterval):
		}
	}
}
