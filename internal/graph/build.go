package graph

import (
	"strings"

	"github.com/kortexhq/kortex-backend/internal/models"
)

// Build constructs the dependency index from an inventory snapshot. Edges are
// inferred from owner references, service label selectors, pod volume
// references, PVC-to-PV bindings, and pod node placement.
func Build(resources []models.ResourceRecord) *Graph {
	g := New()

	// kind/namespace/name lookup for owner-reference resolution
	byRef := make(map[string]string, len(resources))
	for _, r := range resources {
		g.AddNode(r.ID)
		byRef[refKey(r.Kind, r.Namespace, r.Name)] = r.ID
	}

	for _, r := range resources {
		inferOwnerEdges(g, r, byRef)

		switch r.Kind {
		case "Service":
			inferSelectorEdges(g, r, resources)
		case "Pod":
			inferVolumeEdges(g, r, byRef)
			inferNodeEdge(g, r, byRef)
		case "PersistentVolumeClaim":
			inferBindingEdge(g, r, byRef)
		}
	}
	return g
}

func refKey(kind, namespace, name string) string {
	return strings.ToLower(kind + "|" + namespace + "|" + name)
}

// inferOwnerEdges links a resource to each of its owners, resolved by kind and
// name within the same namespace.
func inferOwnerEdges(g *Graph, r models.ResourceRecord, byRef map[string]string) {
	refs := nestedSlice(r.Manifest, "metadata", "ownerReferences")
	for _, raw := range refs {
		ref, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		kind, _ := ref["kind"].(string)
		name, _ := ref["name"].(string)
		if kind == "" || name == "" {
			continue
		}
		if ownerID, ok := byRef[refKey(kind, r.Namespace, name)]; ok {
			g.AddEdge(ownerID, r.ID)
		}
	}
}

// inferSelectorEdges links a service to every pod in its namespace whose
// labels carry all of the service's selector key/value pairs.
func inferSelectorEdges(g *Graph, svc models.ResourceRecord, resources []models.ResourceRecord) {
	selector := nestedStringMap(svc.Manifest, "spec", "selector")
	if len(selector) == 0 {
		return
	}
	for _, r := range resources {
		if r.Kind != "Pod" || r.Namespace != svc.Namespace {
			continue
		}
		if labelsMatch(selector, r.Labels) {
			g.AddEdge(svc.ID, r.ID)
		}
	}
}

func labelsMatch(selector, labels map[string]string) bool {
	for k, v := range selector {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// inferVolumeEdges links a pod to the configmaps, secrets, and PVCs backing
// its volumes. Backing objects absent from the snapshot are skipped so the
// graph never grows nodes the inventory does not contain.
func inferVolumeEdges(g *Graph, pod models.ResourceRecord, byRef map[string]string) {
	volumes := nestedSlice(pod.Manifest, "spec", "volumes")
	for _, raw := range volumes {
		vol, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		if cm, ok := vol["configMap"].(map[string]interface{}); ok {
			if name, _ := cm["name"].(string); name != "" {
				if id, ok := byRef[refKey("ConfigMap", pod.Namespace, name)]; ok {
					g.AddEdge(pod.ID, id)
				}
			}
		}
		if sec, ok := vol["secret"].(map[string]interface{}); ok {
			if name, _ := sec["secretName"].(string); name != "" {
				if id, ok := byRef[refKey("Secret", pod.Namespace, name)]; ok {
					g.AddEdge(pod.ID, id)
				}
			}
		}
		if pvc, ok := vol["persistentVolumeClaim"].(map[string]interface{}); ok {
			if name, _ := pvc["claimName"].(string); name != "" {
				if id, ok := byRef[refKey("PersistentVolumeClaim", pod.Namespace, name)]; ok {
					g.AddEdge(pod.ID, id)
				}
			}
		}
	}
}

// inferNodeEdge links a scheduled pod to its node.
func inferNodeEdge(g *Graph, pod models.ResourceRecord, byRef map[string]string) {
	nodeName := nestedString(pod.Manifest, "spec", "nodeName")
	if nodeName == "" {
		return
	}
	if nodeID, ok := byRef[refKey("Node", "", nodeName)]; ok {
		g.AddEdge(pod.ID, nodeID)
	}
}

// inferBindingEdge links a bound PVC to its persistent volume, when the
// volume is part of the snapshot.
func inferBindingEdge(g *Graph, pvc models.ResourceRecord, byRef map[string]string) {
	volumeName := nestedString(pvc.Manifest, "spec", "volumeName")
	if volumeName == "" {
		return
	}
	if pvID, ok := byRef[refKey("PersistentVolume", "", volumeName)]; ok {
		g.AddEdge(pvc.ID, pvID)
	}
}

// map navigation helpers (manifests are decoded JSON/YAML maps)

func nestedValue(m map[string]interface{}, path ...string) interface{} {
	cur := interface{}(m)
	for _, p := range path {
		mp, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = mp[p]
	}
	return cur
}

func nestedSlice(m map[string]interface{}, path ...string) []interface{} {
	s, _ := nestedValue(m, path...).([]interface{})
	return s
}

func nestedString(m map[string]interface{}, path ...string) string {
	s, _ := nestedValue(m, path...).(string)
	return s
}

func nestedStringMap(m map[string]interface{}, path ...string) map[string]string {
	raw, _ := nestedValue(m, path...).(map[string]interface{})
	if raw == nil {
		return nil
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}
