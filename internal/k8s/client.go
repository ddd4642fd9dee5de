package k8s

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// GetKubeconfigContexts returns all context names and the current context from a kubeconfig file.
func GetKubeconfigContexts(kubeconfigPath string) ([]string, string, error) {
	if kubeconfigPath == "" {
		homeDir, _ := os.UserHomeDir()
		if homeDir != "" {
			kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
		}
	}
	if kubeconfigPath == "" {
		return nil, "", nil
	}
	raw, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
		&clientcmd.ConfigOverrides{},
	).RawConfig()
	if err != nil {
		return nil, "", err
	}
	names := make([]string, 0, len(raw.Contexts))
	for name := range raw.Contexts {
		names = append(names, name)
	}
	return names, raw.CurrentContext, nil
}

// Client wraps Kubernetes client-go for one cluster connection.
type Client struct {
	Clientset kubernetes.Interface
	Dynamic   dynamic.Interface
	Config    *rest.Config
	Context   string
	// Timeout for outbound K8s API calls; 0 means no timeout (use request context only).
	Timeout time.Duration
	// limiter optionally rate-limits outbound API calls per cluster. Nil = no limit.
	limiter *rate.Limiter
}

// ClientOptions tunes per-cluster API behavior.
type ClientOptions struct {
	Timeout         time.Duration
	RateLimitPerSec float64
	RateLimitBurst  int
}

// NewClient creates a new Kubernetes client from a kubeconfig path and context.
// An empty path tries in-cluster config first, then the default kubeconfig.
func NewClient(kubeconfigPath, contextName string, opts ClientOptions) (*Client, error) {
	var config *rest.Config
	var err error

	if kubeconfigPath == "" {
		config, err = rest.InClusterConfig()
		if err != nil {
			homeDir, _ := os.UserHomeDir()
			if homeDir != "" {
				kubeconfigPath = filepath.Join(homeDir, ".kube", "config")
			}
		}
	}

	if config == nil {
		config, err = buildConfigFromFlags(contextName, kubeconfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to build config: %w", err)
		}
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create dynamic client: %w", err)
	}

	c := &Client{
		Clientset: clientset,
		Dynamic:   dyn,
		Config:    config,
		Context:   contextName,
		Timeout:   opts.Timeout,
	}
	if opts.RateLimitPerSec > 0 && opts.RateLimitBurst > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)
	}
	return c, nil
}

func buildConfigFromFlags(contextName, kubeconfigPath string) (*rest.Config, error) {
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		&clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath},
		&clientcmd.ConfigOverrides{CurrentContext: contextName},
	).ClientConfig()
}

// CheckConnection verifies the API server is reachable.
func (c *Client) CheckConnection(ctx context.Context) error {
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	_, err := c.Clientset.Discovery().ServerVersion()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// callContext applies the per-client timeout when configured.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// waitRateLimit blocks until the per-cluster token bucket permits a call.
func (c *Client) waitRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}
