package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kortexhq/kortex-backend/internal/models"
)

func TestNormalizeSeverity(t *testing.T) {
	assert.Equal(t, models.SeverityCritical, normalizeSeverity("critical"))
	assert.Equal(t, models.SeverityLow, normalizeSeverity(" LOW "))
	assert.Equal(t, models.SeverityMedium, normalizeSeverity("unknown"))
	assert.Equal(t, models.SeverityMedium, normalizeSeverity(""))
}

func TestNormalizeCategory(t *testing.T) {
	assert.Equal(t, models.CategorySecurity, normalizeCategory("security"))
	assert.Equal(t, models.CategoryCost, normalizeCategory("COST"))
	assert.Equal(t, models.CategoryBestPractice, normalizeCategory("something-else"))
}

func TestNewClientDefaultsModel(t *testing.T) {
	c := NewClient(Options{APIKey: "test"})

	assert.NotNil(t, c.api)
	assert.NotEmpty(t, c.model)
}

func TestPromptManifestRedactsSecrets(t *testing.T) {
	secret := models.ResourceRecord{
		ID:   "secret/default/db-creds",
		Kind: "Secret",
		Manifest: map[string]interface{}{
			"kind": "Secret",
			"data": map[string]interface{}{
				"password": "aHVudGVyMg==",
			},
		},
	}
	out, err := promptManifest(secret)
	assert.NoError(t, err)
	assert.NotContains(t, string(out), "aHVudGVyMg==")
	assert.Contains(t, string(out), "password")

	// The record itself must keep the real value for the apply path.
	data := secret.Manifest["data"].(map[string]interface{})
	assert.Equal(t, "aHVudGVyMg==", data["password"])
}
