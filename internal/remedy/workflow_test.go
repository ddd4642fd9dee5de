package remedy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortexhq/kortex-backend/internal/models"
	"github.com/kortexhq/kortex-backend/internal/shadow"
)

type fakeResources struct {
	err error
}

func (f *fakeResources) GetResource(_ context.Context, _, resourceID string) (*models.ResourceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.ResourceRecord{
		ID:   resourceID,
		Kind: "Pod",
		Manifest: map[string]interface{}{
			"kind": "Pod",
		},
	}, nil
}

type fakePatcher struct {
	err error
}

func (f *fakePatcher) GeneratePatch(_ context.Context, r models.ResourceRecord, _ string) (*models.Remediation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Remediation{
		Description:      "add resource limits",
		ActionType:       "PATCH",
		Manifest:         "patched-" + r.ID,
		TargetResourceID: r.ID,
	}, nil
}

type fakeShadow struct {
	mu           sync.Mutex
	createErr    error
	createBlock  chan struct{} // when non-nil, Create waits on it
	applyErr     error
	failApplyFor map[string]bool // manifests whose apply fails
	validateOK   bool
	validateErr  error
	creates      int
	teardowns    int
}

func newFakeShadow() *fakeShadow {
	return &fakeShadow{validateOK: true}
}

func (f *fakeShadow) Create(ctx context.Context, _ shadow.Scope) (*shadow.Env, error) {
	if f.createBlock != nil {
		select {
		case <-f.createBlock:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	f.creates++
	n := f.creates
	f.mu.Unlock()
	return &shadow.Env{ID: fmt.Sprintf("shadow-%d", n), Namespace: "shadow"}, nil
}

func (f *fakeShadow) Apply(_ context.Context, _ *shadow.Env, manifest string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	if f.failApplyFor[manifest] {
		return errors.New("shadow apply rejected " + manifest)
	}
	return nil
}

func (f *fakeShadow) Validate(_ context.Context, _ *shadow.Env, _ string) (bool, error) {
	return f.validateOK, f.validateErr
}

func (f *fakeShadow) Teardown(_ context.Context, _ *shadow.Env) error {
	f.mu.Lock()
	f.teardowns++
	f.mu.Unlock()
	return nil
}

func (f *fakeShadow) teardownCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.teardowns
}

type fakeCluster struct {
	mu          sync.Mutex
	applies     []string
	applyErr    error
	validateOK  bool
	validateErr error
}

func newFakeCluster() *fakeCluster {
	return &fakeCluster{validateOK: true}
}

func (f *fakeCluster) Apply(_ context.Context, _, manifest string) error {
	f.mu.Lock()
	f.applies = append(f.applies, manifest)
	f.mu.Unlock()
	return f.applyErr
}

func (f *fakeCluster) Validate(_ context.Context, _, _ string) (bool, error) {
	return f.validateOK, f.validateErr
}

func (f *fakeCluster) applyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applies)
}

func testEngine(sh *fakeShadow, cl *fakeCluster, res *fakeResources, p *fakePatcher) *Engine {
	return NewEngine(res, p, sh, cl, nil, nil, Options{
		ShadowSettle: time.Millisecond,
		PollInterval: time.Millisecond,
	})
}

func waitWorkflow(t *testing.T, e *Engine, id string) *models.FixWorkflow {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		wf, err := e.GetStatus(id)
		require.NoError(t, err)
		if wf.Status.Terminal() {
			return wf
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("workflow never reached a terminal status")
	return nil
}

func TestStartFixValidation(t *testing.T) {
	e := testEngine(newFakeShadow(), newFakeCluster(), &fakeResources{}, &fakePatcher{})

	_, err := e.StartFix(context.Background(), "", "pod/default/web", "issue")
	assert.True(t, models.IsValidation(err))
	_, err = e.StartFix(context.Background(), "prod", "", "issue")
	assert.True(t, models.IsValidation(err))
	_, err = e.StartFix(context.Background(), "prod", "pod/default/web", "")
	assert.True(t, models.IsValidation(err))
}

func TestWorkflowRunsAllGatesInOrder(t *testing.T) {
	sh := newFakeShadow()
	cl := newFakeCluster()
	e := testEngine(sh, cl, &fakeResources{}, &fakePatcher{})

	id, err := e.StartFix(context.Background(), "prod", "pod/default/web", "runs as root")
	require.NoError(t, err)
	wf := waitWorkflow(t, e, id)

	assert.Equal(t, models.WorkflowCompleted, wf.Status)
	assert.Equal(t, models.WorkflowSteps, wf.StepsRun)
	require.NotNil(t, wf.Remediation)
	assert.Equal(t, "patched-pod/default/web", wf.Remediation.Manifest)
	assert.Equal(t, []string{"patched-pod/default/web"}, cl.applies)
	assert.Equal(t, 1, sh.teardownCount())
}

func TestWorkflowGatePrefixOnFailure(t *testing.T) {
	cases := []struct {
		name   string
		shadow func() *fakeShadow
		res    *fakeResources
		patch  *fakePatcher
		wantN  int // gates run before stopping
	}{
		{
			name:   "create_vcluster fails",
			shadow: func() *fakeShadow { s := newFakeShadow(); s.createErr = errors.New("no capacity"); return s },
			res:    &fakeResources{},
			patch:  &fakePatcher{},
			wantN:  1,
		},
		{
			name:   "analysis fails on missing resource",
			shadow: newFakeShadow,
			res:    &fakeResources{err: &models.NotFoundError{Message: "gone"}},
			patch:  &fakePatcher{},
			wantN:  2,
		},
		{
			name:   "analysis fails on unusable patch",
			shadow: newFakeShadow,
			res:    &fakeResources{},
			patch:  &fakePatcher{err: &models.AnalysisError{Message: "empty manifest"}},
			wantN:  2,
		},
		{
			name:   "apply_vcluster fails",
			shadow: func() *fakeShadow { s := newFakeShadow(); s.applyErr = errors.New("invalid manifest"); return s },
			res:    &fakeResources{},
			patch:  &fakePatcher{},
			wantN:  3,
		},
		{
			name:   "validate_vcluster not ready",
			shadow: func() *fakeShadow { s := newFakeShadow(); s.validateOK = false; return s },
			res:    &fakeResources{},
			patch:  &fakePatcher{},
			wantN:  4,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sh := tc.shadow()
			cl := newFakeCluster()
			e := testEngine(sh, cl, tc.res, tc.patch)

			id, err := e.StartFix(context.Background(), "prod", "pod/default/web", "issue")
			require.NoError(t, err)
			wf := waitWorkflow(t, e, id)

			assert.Equal(t, models.WorkflowFailed, wf.Status)
			// The recorded steps are always a strict prefix of the gate order.
			require.Len(t, wf.StepsRun, tc.wantN)
			assert.Equal(t, models.WorkflowSteps[:tc.wantN], wf.StepsRun)
			// A failed shadow validation must never reach production.
			assert.Equal(t, 0, cl.applyCount())
		})
	}
}

func TestWorkflowTeardownRunsOnFailure(t *testing.T) {
	sh := newFakeShadow()
	sh.validateOK = false
	e := testEngine(sh, newFakeCluster(), &fakeResources{}, &fakePatcher{})

	id, err := e.StartFix(context.Background(), "prod", "pod/default/web", "issue")
	require.NoError(t, err)
	wf := waitWorkflow(t, e, id)

	assert.Equal(t, models.WorkflowFailed, wf.Status)
	assert.Equal(t, 1, sh.teardownCount())
}

func TestFinalValidateFailureFlagsManualIntervention(t *testing.T) {
	sh := newFakeShadow()
	cl := newFakeCluster()
	cl.validateOK = false
	e := testEngine(sh, cl, &fakeResources{}, &fakePatcher{})

	id, err := e.StartFix(context.Background(), "prod", "pod/default/web", "issue")
	require.NoError(t, err)
	wf := waitWorkflow(t, e, id)

	assert.Equal(t, models.WorkflowFailed, wf.Status)
	assert.Equal(t, models.WorkflowSteps, wf.StepsRun)
	// The production apply happened exactly once; nothing is rolled back.
	assert.Equal(t, 1, cl.applyCount())
	joined := ""
	for _, line := range wf.Logs {
		joined += line + "\n"
	}
	assert.Contains(t, joined, "MANUAL INTERVENTION REQUIRED")
	assert.Equal(t, 1, sh.teardownCount())
}

func TestStartFixConflictPerResource(t *testing.T) {
	sh := newFakeShadow()
	sh.createBlock = make(chan struct{})
	e := testEngine(sh, newFakeCluster(), &fakeResources{}, &fakePatcher{})

	id, err := e.StartFix(context.Background(), "prod", "pod/default/web", "issue")
	require.NoError(t, err)

	_, err = e.StartFix(context.Background(), "prod", "pod/default/web", "another issue")
	assert.True(t, models.IsConflict(err))

	// A different resource is not blocked.
	id2, err := e.StartFix(context.Background(), "prod", "pod/default/db", "issue")
	require.NoError(t, err)

	close(sh.createBlock)
	waitWorkflow(t, e, id)
	waitWorkflow(t, e, id2)

	// Terminal workflows release the resource.
	_, err = e.StartFix(context.Background(), "prod", "pod/default/web", "issue")
	require.NoError(t, err)
}

func TestGetStatusUnknownWorkflow(t *testing.T) {
	e := testEngine(newFakeShadow(), newFakeCluster(), &fakeResources{}, &fakePatcher{})
	_, err := e.GetStatus("nope")
	assert.True(t, models.IsNotFound(err))
}

func TestGetStatusReturnsSnapshot(t *testing.T) {
	e := testEngine(newFakeShadow(), newFakeCluster(), &fakeResources{}, &fakePatcher{})

	id, err := e.StartFix(context.Background(), "prod", "pod/default/web", "issue")
	require.NoError(t, err)
	wf := waitWorkflow(t, e, id)

	wf.StepsRun = nil
	wf.Logs = nil
	fresh, err := e.GetStatus(id)
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowSteps, fresh.StepsRun)
	assert.NotEmpty(t, fresh.Logs)
}
