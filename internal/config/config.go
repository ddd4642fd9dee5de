package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Port           int      `mapstructure:"port"`
	DatabaseDriver string   `mapstructure:"database_driver"` // "sqlite" or "postgres"
	DatabasePath   string   `mapstructure:"database_path"`   // sqlite file path
	DatabaseDSN    string   `mapstructure:"database_dsn"`    // postgres connection string
	LogLevel       string   `mapstructure:"log_level"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	KubeconfigPath string   `mapstructure:"kubeconfig_path"`

	// Analyzer (AI) provider settings. The API key is read from the
	// environment (KORTEX_ANALYZER_API_KEY), never from the config file.
	AnalyzerProvider string `mapstructure:"analyzer_provider"` // "openai" or "ollama"
	AnalyzerModel    string `mapstructure:"analyzer_model"`
	AnalyzerBaseURL  string `mapstructure:"analyzer_base_url"` // for ollama / compatible gateways
	AnalyzerAPIKey   string `mapstructure:"analyzer_api_key"`

	// Scan behavior
	IgnoredNamespaces []string `mapstructure:"ignored_namespaces"` // mapped but never analyzed
	ScanTimeoutSec    int      `mapstructure:"scan_timeout_sec"`   // whole-session budget; 0 = none
	FetchTimeoutSec   int      `mapstructure:"fetch_timeout_sec"`  // inventory fetch budget
	GraphDepthDefault int      `mapstructure:"graph_depth_default"`
	GraphCacheSize    int      `mapstructure:"graph_cache_size"` // LRU entries of built graphs

	// Remediation behavior
	WorkflowPollIntervalMs int    `mapstructure:"workflow_poll_interval_ms"` // batch drive loop poll
	ShadowSettleSec        int    `mapstructure:"shadow_settle_sec"`         // wait after apply before validation
	VClusterBinary         string `mapstructure:"vcluster_binary"`

	// Outbound K8s API calls
	K8sTimeoutSec      int     `mapstructure:"k8s_timeout_sec"`
	K8sRateLimitPerSec float64 `mapstructure:"k8s_rate_limit_per_sec"` // token bucket per cluster; 0 = no limit
	K8sRateLimitBurst  int     `mapstructure:"k8s_rate_limit_burst"`

	// Server
	RequestTimeoutSec  int `mapstructure:"request_timeout_sec"`
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_sec"`

	// Observability
	OTLPEndpoint     string  `mapstructure:"otlp_endpoint"` // empty = tracing disabled
	TraceSampleRatio float64 `mapstructure:"trace_sample_ratio"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/kortex/")
	viper.AddConfigPath("$HOME/.kortex")
	viper.AddConfigPath(".")

	// Defaults
	viper.SetDefault("port", 8080)
	viper.SetDefault("database_driver", "sqlite")
	viper.SetDefault("database_path", "./kortex.db")
	viper.SetDefault("database_dsn", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("allowed_origins", []string{"*"})
	viper.SetDefault("kubeconfig_path", "")
	viper.SetDefault("analyzer_provider", "ollama")
	viper.SetDefault("analyzer_model", "llama3")
	viper.SetDefault("analyzer_base_url", "http://localhost:11434/v1")
	viper.SetDefault("ignored_namespaces", []string{"kube-system", "kube-public", "kube-node-lease"})
	viper.SetDefault("scan_timeout_sec", 0)
	viper.SetDefault("fetch_timeout_sec", 60)
	viper.SetDefault("graph_depth_default", 1)
	viper.SetDefault("graph_cache_size", 16)
	viper.SetDefault("workflow_poll_interval_ms", 500)
	viper.SetDefault("shadow_settle_sec", 5)
	viper.SetDefault("vcluster_binary", "vcluster")
	viper.SetDefault("k8s_timeout_sec", 30)
	viper.SetDefault("k8s_rate_limit_per_sec", 0)
	viper.SetDefault("k8s_rate_limit_burst", 0)
	viper.SetDefault("request_timeout_sec", 30)
	viper.SetDefault("shutdown_timeout_sec", 15)
	viper.SetDefault("otlp_endpoint", "")
	viper.SetDefault("trace_sample_ratio", 1.0)

	// Environment variables (KORTEX_PORT, KORTEX_ANALYZER_API_KEY, ...)
	viper.SetEnvPrefix("KORTEX")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; using defaults and env vars
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.DatabaseDriver == "postgres" && cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("database_driver postgres requires database_dsn")
	}

	return &cfg, nil
}
