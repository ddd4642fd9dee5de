package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir()) // no config file present

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "./kortex.db", cfg.DatabasePath)
	assert.Equal(t, "ollama", cfg.AnalyzerProvider)
	assert.Equal(t, 1, cfg.GraphDepthDefault)
	assert.Contains(t, cfg.IgnoredNamespaces, "kube-system")
	assert.Equal(t, 500, cfg.WorkflowPollIntervalMs)
	assert.Equal(t, "vcluster", cfg.VClusterBinary)
}

func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("KORTEX_PORT", "9999")
	t.Setenv("KORTEX_ANALYZER_MODEL", "gpt-4o")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "gpt-4o", cfg.AnalyzerModel)
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("KORTEX_DATABASE_DRIVER", "postgres")

	_, err := Load()
	require.Error(t, err)
}
