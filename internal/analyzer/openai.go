package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"sigs.k8s.io/yaml"

	"github.com/kortexhq/kortex-backend/internal/models"
	"github.com/kortexhq/kortex-backend/internal/pkg/metrics"
	"github.com/kortexhq/kortex-backend/internal/pkg/redact"
)

const maxTokens = 2048

// Client talks to an OpenAI-compatible chat completion endpoint. A custom base
// URL covers Ollama and self-hosted gateways.
type Client struct {
	api   *openai.Client
	model string
}

// Options configures the analyzer client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string // empty = api.openai.com
}

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}
	model := opts.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

// analysisResponse is the JSON contract the model is instructed to emit.
type analysisResponse struct {
	Summary string `json:"summary"`
	Issues  []struct {
		Severity    string `json:"severity"`
		Category    string `json:"category"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Remediation string `json:"remediation"`
	} `json:"issues"`
}

type patchResponse struct {
	Description string `json:"description"`
	ActionType  string `json:"action_type"`
	Manifest    string `json:"manifest"`
}

// promptManifest encodes the manifest for a prompt. Secret values are
// redacted; the model sees key names only.
func promptManifest(resource models.ResourceRecord) ([]byte, error) {
	manifest := resource.Manifest
	if redact.IsSecretKind(resource.Kind) {
		manifest = deepCopy(manifest)
		redact.SecretData(manifest)
	}
	return yaml.Marshal(manifest)
}

func deepCopy(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if m, ok := v.(map[string]interface{}); ok {
			out[k] = deepCopy(m)
		} else {
			out[k] = v
		}
	}
	return out
}

// AnalyzeResource asks the model to inspect one resource. Unusable model
// output surfaces as an AnalysisError.
func (c *Client) AnalyzeResource(ctx context.Context, resource models.ResourceRecord, clusterContext string) (*models.AnalysisResult, error) {
	manifestYAML, err := promptManifest(resource)
	if err != nil {
		return nil, &models.AnalysisError{Message: "failed to encode manifest", Err: err}
	}

	user := fmt.Sprintf("Cluster context: %s\n\nResource %s:\n%s", clusterContext, resource.ID, manifestYAML)
	start := time.Now()
	content, err := c.complete(ctx, analysisSystemPrompt, user)
	metrics.AnalyzerCallDurationSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var parsed analysisResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, &models.AnalysisError{Message: "analyzer returned malformed JSON", Err: err}
	}

	result := &models.AnalysisResult{
		Timestamp: time.Now().UTC(),
		Summary:   parsed.Summary,
	}
	for _, i := range parsed.Issues {
		issue := models.Issue{
			Severity:            normalizeSeverity(i.Severity),
			Category:            normalizeCategory(i.Category),
			Title:               i.Title,
			Description:         i.Description,
			AffectedResourceIDs: []string{resource.ID},
		}
		if i.Remediation != "" {
			issue.RemediationSuggestion = &models.Remediation{
				Description:      i.Remediation,
				ActionType:       "APPLY",
				TargetResourceID: resource.ID,
			}
		}
		result.Issues = append(result.Issues, issue)
	}
	return result, nil
}

// GeneratePatch asks the model for a corrected manifest. A response without a
// manifest is an AnalysisError (the patch generator could not produce a
// usable change).
func (c *Client) GeneratePatch(ctx context.Context, resource models.ResourceRecord, issueDescription string) (*models.Remediation, error) {
	manifestYAML, err := promptManifest(resource)
	if err != nil {
		return nil, &models.AnalysisError{Message: "failed to encode manifest", Err: err}
	}

	user := fmt.Sprintf("Issue: %s\n\nResource %s:\n%s", issueDescription, resource.ID, manifestYAML)
	content, err := c.complete(ctx, patchSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	var parsed patchResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, &models.AnalysisError{Message: "patch generator returned malformed JSON", Err: err}
	}
	if strings.TrimSpace(parsed.Manifest) == "" {
		return nil, &models.AnalysisError{Message: "patch generator produced no manifest"}
	}

	actionType := parsed.ActionType
	if actionType == "" {
		actionType = "APPLY"
	}
	return &models.Remediation{
		Description:      parsed.Description,
		ActionType:       actionType,
		Manifest:         parsed.Manifest,
		TargetResourceID: resource.ID,
	}, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	}
	// Reasoning models (o1/o3/o4/gpt-5*) take MaxCompletionTokens instead of MaxTokens
	if strings.HasPrefix(c.model, "o1") || strings.HasPrefix(c.model, "o3") ||
		strings.HasPrefix(c.model, "o4") || strings.HasPrefix(c.model, "gpt-5") {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &models.AnalysisError{Message: "chat completion failed", Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", &models.AnalysisError{Message: "chat completion returned no choices"}
	}
	return resp.Choices[0].Message.Content, nil
}

func normalizeSeverity(s string) models.Severity {
	switch models.Severity(strings.ToUpper(strings.TrimSpace(s))) {
	case models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical:
		return models.Severity(strings.ToUpper(strings.TrimSpace(s)))
	default:
		return models.SeverityMedium
	}
}

func normalizeCategory(s string) models.IssueCategory {
	switch models.IssueCategory(strings.ToUpper(strings.TrimSpace(s))) {
	case models.CategorySecurity, models.CategoryPerformance, models.CategoryReliability,
		models.CategoryScalability, models.CategoryCost, models.CategoryBestPractice:
		return models.IssueCategory(strings.ToUpper(strings.TrimSpace(s)))
	default:
		return models.CategoryBestPractice
	}
}
