// Package analyzer wraps the AI engine that detects issues in cluster
// resources and generates remediation patches. The engine is consumed as an
// opaque analysis function; this package owns only the transport and the
// response parsing.
package analyzer

import (
	"context"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// Analyzer detects issues in a single resource given cluster context.
type Analyzer interface {
	AnalyzeResource(ctx context.Context, resource models.ResourceRecord, clusterContext string) (*models.AnalysisResult, error)
}

// PatchGenerator produces a concrete fix manifest for a resource and issue.
type PatchGenerator interface {
	GeneratePatch(ctx context.Context, resource models.ResourceRecord, issueDescription string) (*models.Remediation, error)
}
