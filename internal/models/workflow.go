package models

import "time"

// WorkflowStep is one of the six ordered remediation gates.
type WorkflowStep string

const (
	StepCreateVCluster   WorkflowStep = "create_vcluster"
	StepAnalysis         WorkflowStep = "analysis"
	StepApplyVCluster    WorkflowStep = "apply_vcluster"
	StepValidateVCluster WorkflowStep = "validate_vcluster"
	StepApplyReal        WorkflowStep = "apply_real"
	StepFinalValidate    WorkflowStep = "final_validate"
)

// WorkflowSteps is the gate order. A workflow's recorded step sequence is
// always a prefix of this list.
var WorkflowSteps = []WorkflowStep{
	StepCreateVCluster,
	StepAnalysis,
	StepApplyVCluster,
	StepValidateVCluster,
	StepApplyReal,
	StepFinalValidate,
}

// WorkflowStatus is the lifecycle state of a fix workflow.
type WorkflowStatus string

const (
	WorkflowRunning   WorkflowStatus = "running"
	WorkflowCompleted WorkflowStatus = "completed"
	WorkflowFailed    WorkflowStatus = "failed"
)

// Terminal reports whether the workflow reached a final outcome.
func (s WorkflowStatus) Terminal() bool {
	return s == WorkflowCompleted || s == WorkflowFailed
}

// FixWorkflow is the state of one remediation run through the gate pipeline.
type FixWorkflow struct {
	ID          string         `json:"id"`
	ClusterID   string         `json:"cluster_id"`
	ResourceID  string         `json:"resource_id"`
	Issue       string         `json:"issue"`
	CurrentStep WorkflowStep   `json:"current_step,omitempty"`
	StepsRun    []WorkflowStep `json:"steps_run"`
	Status      WorkflowStatus `json:"status"`
	Logs        []string       `json:"logs"`
	Remediation *Remediation   `json:"remediation,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Clone returns a reader-safe deep copy.
func (w *FixWorkflow) Clone() *FixWorkflow {
	cp := *w
	cp.StepsRun = append([]WorkflowStep(nil), w.StepsRun...)
	cp.Logs = append([]string(nil), w.Logs...)
	if w.Remediation != nil {
		r := *w.Remediation
		cp.Remediation = &r
	}
	return &cp
}

// BatchItemOutcome is the per-issue result of a batch run.
type BatchItemOutcome string

const (
	BatchItemSuccess    BatchItemOutcome = "success"
	BatchItemFailed     BatchItemOutcome = "failed"
	BatchItemNotFixable BatchItemOutcome = "not_fixable"
)

// BatchItem records one issue's fate within a batch run.
type BatchItem struct {
	IssueTitle string           `json:"issue_title"`
	ResourceID string           `json:"resource_id,omitempty"`
	WorkflowID string           `json:"workflow_id,omitempty"`
	Outcome    BatchItemOutcome `json:"outcome"`
}

// BatchRun is the aggregate state of a sequenced batch remediation.
// It exists only for the duration of batch execution.
type BatchRun struct {
	ID        string      `json:"id"`
	ClusterID string      `json:"cluster_id"`
	Items     []BatchItem `json:"items"`
	Log       []string    `json:"log"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Skipped   int         `json:"skipped"`
	StartedAt time.Time   `json:"started_at"`
	EndedAt   time.Time   `json:"ended_at"`
}
