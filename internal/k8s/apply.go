package k8s

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/yaml"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// AppliedResource describes a resource that was created or updated by ApplyYAML.
type AppliedResource struct {
	Kind      string `json:"kind"`
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Action    string `json:"action"` // "created" or "updated"
}

// ApplyYAML decodes YAML (single or multi-doc) and creates or updates each resource
// via the dynamic client. Returns the applied resources and the first error.
func (c *Client) ApplyYAML(ctx context.Context, yamlContent string) ([]AppliedResource, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	docs := splitYAMLDocuments(yamlContent)
	var applied []AppliedResource
	for _, doc := range docs {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		var m map[string]interface{}
		if err := yaml.Unmarshal([]byte(doc), &m); err != nil {
			return applied, fmt.Errorf("invalid YAML: %w", err)
		}
		if len(m) == 0 {
			continue
		}
		obj := &unstructured.Unstructured{Object: m}
		action, err := c.applyOne(ctx, obj)
		if err != nil {
			return applied, err
		}
		applied = append(applied, AppliedResource{
			Kind:      obj.GetKind(),
			Namespace: obj.GetNamespace(),
			Name:      obj.GetName(),
			Action:    action,
		})
	}
	return applied, nil
}

func (c *Client) applyOne(ctx context.Context, obj *unstructured.Unstructured) (string, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return "", err
	}
	apiVersion := obj.GetAPIVersion()
	kind := obj.GetKind()
	name := obj.GetName()
	namespace := obj.GetNamespace()
	if name == "" {
		return "", fmt.Errorf("resource missing metadata.name")
	}

	// Default namespace for namespaced resources
	if namespace == "" && IsNamespaced(kind) {
		namespace = "default"
		obj.SetNamespace(namespace)
	}

	gv, err := schema.ParseGroupVersion(apiVersion)
	if err != nil {
		return "", fmt.Errorf("invalid apiVersion %q: %w", apiVersion, err)
	}
	gvr := gv.WithResource(NormalizeKindToResource(kind))

	// Remove read-only fields that would cause conflicts
	objCopy := obj.DeepCopy()
	unstructured.RemoveNestedField(objCopy.Object, "metadata", "resourceVersion")
	unstructured.RemoveNestedField(objCopy.Object, "metadata", "uid")
	unstructured.RemoveNestedField(objCopy.Object, "metadata", "creationTimestamp")
	unstructured.RemoveNestedField(objCopy.Object, "status")

	// Namespace("") yields the cluster-scoped interface for cluster-scoped resources
	nsClient := c.Dynamic.Resource(gvr).Namespace(namespace)

	existing, err := nsClient.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			_, createErr := nsClient.Create(ctx, objCopy, metav1.CreateOptions{})
			if createErr != nil {
				return "", createErr
			}
			return "created", nil
		}
		return "", &models.ConnectivityError{Message: "failed to read " + kind + "/" + name, Err: err}
	}

	// Updates need the live resourceVersion
	objCopy.SetResourceVersion(existing.GetResourceVersion())
	if _, updateErr := nsClient.Update(ctx, objCopy, metav1.UpdateOptions{}); updateErr != nil {
		return "", updateErr
	}
	return "updated", nil
}

// ValidateResource checks that a resource exists and, for workloads, that it
// reports ready replicas. Used as the post-apply readiness gate.
func (c *Client) ValidateResource(ctx context.Context, resourceID string) (bool, error) {
	ctx, cancel := c.callContext(ctx)
	defer cancel()

	rec, err := c.GetResource(ctx, resourceID)
	if err != nil {
		if models.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	status, _ := rec.Manifest["status"].(map[string]interface{})
	switch rec.Kind {
	case "Deployment", "StatefulSet", "ReplicaSet":
		want := nestedInt(rec.Manifest, "spec", "replicas")
		got := nestedInt(rec.Manifest, "status", "readyReplicas")
		if want == 0 {
			return true, nil
		}
		return got >= want, nil
	case "DaemonSet":
		want := nestedInt(rec.Manifest, "status", "desiredNumberScheduled")
		got := nestedInt(rec.Manifest, "status", "numberReady")
		return got >= want, nil
	case "Pod":
		phase, _ := status["phase"].(string)
		return corev1.PodPhase(phase) == corev1.PodRunning || corev1.PodPhase(phase) == corev1.PodSucceeded, nil
	default:
		// Config objects have no readiness; existence is enough.
		return true, nil
	}
}

func nestedInt(m map[string]interface{}, path ...string) int {
	cur := interface{}(m)
	for _, p := range path {
		mp, ok := cur.(map[string]interface{})
		if !ok {
			return 0
		}
		cur = mp[p]
	}
	switch v := cur.(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// NormalizeKindToResource converts a Kind to its plural lowercase resource name.
func NormalizeKindToResource(kind string) string {
	s := strings.ToLower(strings.TrimSpace(kind))
	if s == "" {
		return s
	}
	if gvr, ok := inventoryKinds[strings.TrimSpace(kind)]; ok {
		return gvr.Resource
	}
	switch {
	case strings.HasSuffix(s, "ss"):
		return s + "es"
	case strings.HasSuffix(s, "y"):
		return strings.TrimSuffix(s, "y") + "ies"
	case strings.HasSuffix(s, "s"):
		return s
	default:
		return s + "s"
	}
}

// IsNamespaced reports whether a kind lives inside a namespace.
func IsNamespaced(kind string) bool {
	clusterScoped := map[string]bool{
		"Node":               true,
		"Namespace":          true,
		"PersistentVolume":   true,
		"StorageClass":       true,
		"ClusterRole":        true,
		"ClusterRoleBinding": true,
		"IngressClass":       true,
	}
	return !clusterScoped[strings.TrimSpace(kind)]
}

// splitYAMLDocuments splits multi-doc YAML by "---" (with optional surrounding newlines).
func splitYAMLDocuments(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	parts := strings.Split(content, "\n---")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []string{content}
	}
	return out
}
