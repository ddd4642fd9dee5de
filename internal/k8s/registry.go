package k8s

import (
	"context"
	"fmt"
	"sync"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// Registry holds live cluster connections keyed by cluster id. It adapts the
// per-cluster Client to the cluster-id based collaborator contracts consumed
// by the scan coordinator and fix workflow engine.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	opts    ClientOptions
}

func NewRegistry(opts ClientOptions) *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		opts:    opts,
	}
}

// Connect builds a client for a kubeconfig context and registers it under clusterID.
func (r *Registry) Connect(ctx context.Context, clusterID, kubeconfigPath, contextName string) error {
	client, err := NewClient(kubeconfigPath, contextName, r.opts)
	if err != nil {
		return fmt.Errorf("failed to build client for cluster %s: %w", clusterID, err)
	}
	if err := client.CheckConnection(ctx); err != nil {
		return &models.ConnectivityError{Message: "cluster " + clusterID + " is unreachable", Err: err}
	}
	r.mu.Lock()
	r.clients[clusterID] = client
	r.mu.Unlock()
	return nil
}

// LoadFromKubeconfig registers every context of a kubeconfig as a cluster,
// using the context name as cluster id. Unreachable contexts are skipped.
func (r *Registry) LoadFromKubeconfig(ctx context.Context, kubeconfigPath string) ([]string, error) {
	contexts, _, err := GetKubeconfigContexts(kubeconfigPath)
	if err != nil {
		return nil, err
	}
	var connected []string
	for _, name := range contexts {
		if err := r.Connect(ctx, name, kubeconfigPath, name); err != nil {
			continue
		}
		connected = append(connected, name)
	}
	return connected, nil
}

// Client returns the live client for a cluster.
func (r *Registry) Client(clusterID string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[clusterID]
	if !ok {
		return nil, &models.NotFoundError{Message: "cluster " + clusterID + " not found or disconnected"}
	}
	return client, nil
}

// ClusterIDs returns the ids of all registered clusters.
func (r *Registry) ClusterIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// FetchResources implements the inventory contract for the scan coordinator.
func (r *Registry) FetchResources(ctx context.Context, clusterID string) ([]models.ResourceRecord, error) {
	client, err := r.Client(clusterID)
	if err != nil {
		return nil, err
	}
	return client.FetchResources(ctx)
}

// GetResource implements the resource lookup contract for the fix workflow engine.
func (r *Registry) GetResource(ctx context.Context, clusterID, resourceID string) (*models.ResourceRecord, error) {
	client, err := r.Client(clusterID)
	if err != nil {
		return nil, err
	}
	return client.GetResource(ctx, resourceID)
}

// Apply implements the production-applier contract: apply a patch manifest to
// the real cluster.
func (r *Registry) Apply(ctx context.Context, clusterID, manifest string) error {
	client, err := r.Client(clusterID)
	if err != nil {
		return err
	}
	_, err = client.ApplyYAML(ctx, manifest)
	return err
}

// Validate implements the production-applier readiness check.
func (r *Registry) Validate(ctx context.Context, clusterID, resourceID string) (bool, error) {
	client, err := r.Client(clusterID)
	if err != nil {
		return false, err
	}
	return client.ValidateResource(ctx, resourceID)
}
