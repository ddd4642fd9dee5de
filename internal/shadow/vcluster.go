package shadow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kortexhq/kortex-backend/internal/k8s"
	"github.com/kortexhq/kortex-backend/internal/models"
)

const (
	createTimeout     = 5 * time.Minute
	kubeconfigTimeout = 30 * time.Second
	connectRetries    = 10
)

// VCluster provisions shadow environments with the vcluster CLI. Each shadow
// lives in its own namespace of the host cluster and gets a dedicated
// kubeconfig written under baseDir.
type VCluster struct {
	binary  string
	baseDir string
	k8sOpts k8s.ClientOptions
}

func NewVCluster(binary, baseDir string, k8sOpts k8s.ClientOptions) (*VCluster, error) {
	if binary == "" {
		binary = "vcluster"
	}
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "kortex-vclusters")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create vcluster dir: %w", err)
	}
	return &VCluster{binary: binary, baseDir: baseDir, k8sOpts: k8sOpts}, nil
}

// Create provisions an isolated vcluster inside the host cluster and waits for
// its kubeconfig to become usable.
func (v *VCluster) Create(ctx context.Context, scope Scope) (*Env, error) {
	name := fmt.Sprintf("shadow-%s-%s", scope.ClusterID, randomSuffix())
	kubeconfig := filepath.Join(v.baseDir, name+".yaml")

	createCtx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	create := exec.CommandContext(createCtx, v.binary, "create", name,
		"--namespace", name,
		"--isolate",
		"--connect=false",
	)
	create.Env = hostEnv(scope.KubeconfigPath)
	if out, err := create.CombinedOutput(); err != nil {
		return nil, &models.ConnectivityError{
			Message: fmt.Sprintf("failed to create shadow cluster %s: %s", name, string(out)),
			Err:     err,
		}
	}

	connect := exec.CommandContext(createCtx, v.binary, "connect", name,
		"--namespace", name,
		"--update-current=false",
		"--kube-config", kubeconfig,
	)
	connect.Env = hostEnv(scope.KubeconfigPath)
	if out, err := connect.CombinedOutput(); err != nil {
		v.deleteVCluster(name, scope.KubeconfigPath)
		return nil, &models.ConnectivityError{
			Message: fmt.Sprintf("failed to connect to shadow cluster %s: %s", name, string(out)),
			Err:     err,
		}
	}

	if err := waitForFile(createCtx, kubeconfig, kubeconfigTimeout); err != nil {
		v.deleteVCluster(name, scope.KubeconfigPath)
		return nil, err
	}

	env := &Env{ID: name, Namespace: name, KubeconfigPath: kubeconfig}

	// API server pods may still be spinning up; retry connectivity.
	if err := v.waitReady(ctx, env); err != nil {
		v.deleteVCluster(name, scope.KubeconfigPath)
		return nil, err
	}
	return env, nil
}

// Apply applies a patch manifest inside the shadow only.
func (v *VCluster) Apply(ctx context.Context, env *Env, manifest string) error {
	client, err := v.client(env)
	if err != nil {
		return err
	}
	_, err = client.ApplyYAML(ctx, manifest)
	return err
}

// Validate runs the post-apply readiness check inside the shadow.
func (v *VCluster) Validate(ctx context.Context, env *Env, resourceID string) (bool, error) {
	client, err := v.client(env)
	if err != nil {
		return false, err
	}
	return client.ValidateResource(ctx, resourceID)
}

// Teardown deletes the vcluster and its kubeconfig. Idempotent; errors are
// returned but callers treat them as cleanup warnings.
func (v *VCluster) Teardown(ctx context.Context, env *Env) error {
	if env == nil {
		return nil
	}
	err := v.deleteVCluster(env.ID, "")
	_ = os.Remove(env.KubeconfigPath)
	return err
}

func (v *VCluster) client(env *Env) (*k8s.Client, error) {
	return k8s.NewClient(env.KubeconfigPath, "", v.k8sOpts)
}

func (v *VCluster) waitReady(ctx context.Context, env *Env) error {
	client, err := v.client(env)
	if err != nil {
		return err
	}
	var lastErr error
	for i := 0; i < connectRetries; i++ {
		if lastErr = client.CheckConnection(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return &models.ConnectivityError{Message: "shadow cluster " + env.ID + " never became reachable", Err: lastErr}
}

func (v *VCluster) deleteVCluster(name, kubeconfigPath string) error {
	del := exec.Command(v.binary, "delete", name, "--namespace", name)
	del.Env = hostEnv(kubeconfigPath)
	if out, err := del.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to delete vcluster %s: %s: %w", name, string(out), err)
	}
	return nil
}

func hostEnv(kubeconfigPath string) []string {
	env := os.Environ()
	if kubeconfigPath != "" {
		env = append(env, "KUBECONFIG="+kubeconfigPath)
	}
	return env
}

func waitForFile(ctx context.Context, path string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return fmt.Errorf("timed out waiting for shadow kubeconfig %s", path)
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
