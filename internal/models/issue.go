package models

import "time"

// Severity of a detected issue.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// IssueCategory classifies what kind of defect an issue describes.
type IssueCategory string

const (
	CategorySecurity     IssueCategory = "SECURITY"
	CategoryPerformance  IssueCategory = "PERFORMANCE"
	CategoryReliability  IssueCategory = "RELIABILITY"
	CategoryScalability  IssueCategory = "SCALABILITY"
	CategoryCost         IssueCategory = "COST"
	CategoryBestPractice IssueCategory = "BEST_PRACTICE"
)

// Remediation is a candidate fix for an issue: a manifest to apply plus a
// human-readable description of the change.
type Remediation struct {
	Description      string `json:"description"`
	ActionType       string `json:"action_type"` // "PATCH", "APPLY", "DELETE"
	Manifest         string `json:"manifest"`    // YAML manifest of the fixed resource
	TargetResourceID string `json:"target_resource_id"`
}

// Issue is a defect detected by the analyzer. Immutable once emitted into a
// scan result.
type Issue struct {
	Severity               Severity      `json:"severity"`
	Category               IssueCategory `json:"category"`
	Title                  string        `json:"title"`
	Description            string        `json:"description"`
	AffectedResourceIDs    []string      `json:"affected_resource_ids"`
	RemediationSuggestion  *Remediation  `json:"remediation_suggestion,omitempty"`
	DocumentationReference string        `json:"documentation_reference,omitempty"`
}

// AnalysisResult is the output of one analyzer call.
type AnalysisResult struct {
	Timestamp time.Time `json:"timestamp"`
	Issues    []Issue   `json:"issues"`
	Summary   string    `json:"summary"`
}
