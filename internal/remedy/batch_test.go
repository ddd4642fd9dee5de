package remedy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortexhq/kortex-backend/internal/models"
)

func issue(title string, resourceIDs ...string) models.Issue {
	return models.Issue{
		Severity:            models.SeverityHigh,
		Category:            models.CategoryReliability,
		Title:               title,
		Description:         "details for " + title,
		AffectedResourceIDs: resourceIDs,
	}
}

func TestRunBatchPartialFailure(t *testing.T) {
	// Three issues; the middle one fails in the shadow apply gate.
	sh := newFakeShadow()
	sh.failApplyFor = map[string]bool{"patched-pod/default/b": true}
	cl := newFakeCluster()
	e := testEngine(sh, cl, &fakeResources{}, &fakePatcher{})

	issues := []models.Issue{
		issue("missing limits", "pod/default/a"),
		issue("bad probe", "pod/default/b"),
		issue("no seccomp profile", "pod/default/c"),
	}
	run, err := e.RunBatch(context.Background(), "prod", issues)
	require.NoError(t, err)

	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 0, run.Skipped)
	require.Len(t, run.Items, 3)
	assert.Equal(t, models.BatchItemSuccess, run.Items[0].Outcome)
	assert.Equal(t, models.BatchItemFailed, run.Items[1].Outcome)
	assert.Equal(t, models.BatchItemSuccess, run.Items[2].Outcome)

	// Every item ran through its own workflow.
	for _, item := range run.Items {
		assert.NotEmpty(t, item.WorkflowID)
	}
	failed, err := e.GetStatus(run.Items[1].WorkflowID)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowFailed, failed.Status)
	assert.Equal(t, models.WorkflowSteps[:3], failed.StepsRun)

	log := strings.Join(run.Log, "\n")
	assert.Equal(t, 2, strings.Count(log, "[SUCCESS]"))
	assert.Equal(t, 1, strings.Count(log, "[FAILED]"))

	// The failed fix never reached production; the two good ones did.
	assert.Equal(t, 2, cl.applyCount())
	// Each workflow's shadow was torn down.
	assert.Equal(t, 3, sh.teardownCount())
}

func TestRunBatchSkipsUnfixableIssues(t *testing.T) {
	e := testEngine(newFakeShadow(), newFakeCluster(), &fakeResources{}, &fakePatcher{})

	issues := []models.Issue{
		issue("cluster-wide observation"), // no affected resource ids
		issue("missing limits", "pod/default/a"),
	}
	run, err := e.RunBatch(context.Background(), "prod", issues)
	require.NoError(t, err)

	assert.Equal(t, 1, run.Succeeded)
	assert.Equal(t, 0, run.Failed)
	assert.Equal(t, 1, run.Skipped)
	require.Len(t, run.Items, 2)
	assert.Equal(t, models.BatchItemNotFixable, run.Items[0].Outcome)
	assert.Empty(t, run.Items[0].WorkflowID)
	assert.Equal(t, models.BatchItemSuccess, run.Items[1].Outcome)

	log := strings.Join(run.Log, "\n")
	assert.Contains(t, log, "not fixable")
}

func TestRunBatchEmptyIssueList(t *testing.T) {
	e := testEngine(newFakeShadow(), newFakeCluster(), &fakeResources{}, &fakePatcher{})

	run, err := e.RunBatch(context.Background(), "prod", nil)
	require.NoError(t, err)
	assert.Empty(t, run.Items)
	assert.Equal(t, 0, run.Succeeded+run.Failed+run.Skipped)
	assert.False(t, run.EndedAt.IsZero())
}

func TestRunBatchValidation(t *testing.T) {
	e := testEngine(newFakeShadow(), newFakeCluster(), &fakeResources{}, &fakePatcher{})
	_, err := e.RunBatch(context.Background(), "", nil)
	assert.True(t, models.IsValidation(err))
}

func TestRunBatchCancelledBetweenIssues(t *testing.T) {
	e := testEngine(newFakeShadow(), newFakeCluster(), &fakeResources{}, &fakePatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := e.RunBatch(ctx, "prod", []models.Issue{
		issue("missing limits", "pod/default/a"),
	})
	require.NoError(t, err)
	assert.Empty(t, run.Items)
	assert.Contains(t, strings.Join(run.Log, "\n"), "Batch cancelled")
}
