package k8s

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// inventoryKinds maps the resource kinds the engine understands to their GVRs.
// Filter validation and the dependency graph both work against this set.
var inventoryKinds = map[string]schema.GroupVersionResource{
	"Pod":                   {Version: "v1", Resource: "pods"},
	"Service":               {Version: "v1", Resource: "services"},
	"ConfigMap":             {Version: "v1", Resource: "configmaps"},
	"Secret":                {Version: "v1", Resource: "secrets"},
	"PersistentVolumeClaim": {Version: "v1", Resource: "persistentvolumeclaims"},
	"PersistentVolume":      {Version: "v1", Resource: "persistentvolumes"},
	"Node":                  {Version: "v1", Resource: "nodes"},
	"ServiceAccount":        {Version: "v1", Resource: "serviceaccounts"},
	"Namespace":             {Version: "v1", Resource: "namespaces"},
	"Deployment":            {Group: "apps", Version: "v1", Resource: "deployments"},
	"StatefulSet":           {Group: "apps", Version: "v1", Resource: "statefulsets"},
	"DaemonSet":             {Group: "apps", Version: "v1", Resource: "daemonsets"},
	"ReplicaSet":            {Group: "apps", Version: "v1", Resource: "replicasets"},
	"Job":                   {Group: "batch", Version: "v1", Resource: "jobs"},
	"CronJob":               {Group: "batch", Version: "v1", Resource: "cronjobs"},
	"Ingress":               {Group: "networking.k8s.io", Version: "v1", Resource: "ingresses"},
}

// KnownKind reports whether a kind filter refers to a kind the inventory fetches.
func KnownKind(kind string) bool {
	_, ok := inventoryKinds[kind]
	return ok
}

// KnownKinds returns the sorted list of supported resource kinds.
func KnownKinds() []string {
	kinds := make([]string, 0, len(inventoryKinds))
	for k := range inventoryKinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

const maxConcurrentKindFetches = 6

// FetchResources lists every supported kind and converts the objects into
// ResourceRecords with content fingerprints. Kind listings run in parallel;
// a single unreachable API surfaces as a ConnectivityError.
func (c *Client) FetchResources(ctx context.Context) ([]models.ResourceRecord, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	var mu sync.Mutex
	var records []models.ResourceRecord

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentKindFetches)

	for kind, gvr := range inventoryKinds {
		g.Go(func() error {
			if err := c.waitRateLimit(gctx); err != nil {
				return err
			}
			list, err := c.Dynamic.Resource(gvr).List(gctx, metav1.ListOptions{})
			if err != nil {
				return &models.ConnectivityError{
					Message: "failed to list " + strings.ToLower(kind) + "s",
					Err:     err,
				}
			}
			batch := make([]models.ResourceRecord, 0, len(list.Items))
			for _, item := range list.Items {
				obj := item.Object
				rec := models.ResourceRecord{
					Kind:       kind,
					APIVersion: item.GetAPIVersion(),
					Namespace:  item.GetNamespace(),
					Name:       item.GetName(),
					UID:        string(item.GetUID()),
					Labels:     item.GetLabels(),
					Manifest:   obj,
				}
				rec.ID = models.ResourceID(rec.Kind, rec.Namespace, rec.Name)
				rec.Fingerprint = models.FingerprintManifest(obj)
				batch = append(batch, rec)
			}
			mu.Lock()
			records = append(records, batch...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Stable order keeps scan processing and progress deterministic.
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

// GetResource fetches a single resource by its derived id.
func (c *Client) GetResource(ctx context.Context, resourceID string) (*models.ResourceRecord, error) {
	records, err := c.FetchResources(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == resourceID {
			return &records[i], nil
		}
	}
	return nil, &models.NotFoundError{Message: "resource " + resourceID + " not found in cluster"}
}
