package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kortexhq/kortex-backend/internal/models"
)

func record(kind, namespace, name string, manifest map[string]interface{}, labels map[string]string) models.ResourceRecord {
	if manifest == nil {
		manifest = map[string]interface{}{}
	}
	return models.ResourceRecord{
		ID:        models.ResourceID(kind, namespace, name),
		Kind:      kind,
		Namespace: namespace,
		Name:      name,
		Labels:    labels,
		Manifest:  manifest,
	}
}

func TestBuildOwnerReferenceEdges(t *testing.T) {
	deploy := record("Deployment", "default", "web", nil, nil)
	rs := record("ReplicaSet", "default", "web-abc", map[string]interface{}{
		"metadata": map[string]interface{}{
			"ownerReferences": []interface{}{
				map[string]interface{}{"kind": "Deployment", "name": "web"},
			},
		},
	}, nil)

	g := Build([]models.ResourceRecord{deploy, rs})

	assert.Contains(t, g.Neighbors(deploy.ID), rs.ID)
}

func TestBuildServiceSelectorEdges(t *testing.T) {
	svc := record("Service", "default", "web", map[string]interface{}{
		"spec": map[string]interface{}{
			"selector": map[string]interface{}{"app": "web", "tier": "frontend"},
		},
	}, nil)
	matching := record("Pod", "default", "web-1", nil, map[string]string{"app": "web", "tier": "frontend", "extra": "ok"})
	wrongLabel := record("Pod", "default", "web-2", nil, map[string]string{"app": "web"})
	wrongNS := record("Pod", "other", "web-3", nil, map[string]string{"app": "web", "tier": "frontend"})

	g := Build([]models.ResourceRecord{svc, matching, wrongLabel, wrongNS})

	neighbors := g.Neighbors(svc.ID)
	assert.Contains(t, neighbors, matching.ID)
	assert.NotContains(t, neighbors, wrongLabel.ID)
	assert.NotContains(t, neighbors, wrongNS.ID)
}

func TestBuildVolumeEdges(t *testing.T) {
	pod := record("Pod", "default", "app", map[string]interface{}{
		"spec": map[string]interface{}{
			"volumes": []interface{}{
				map[string]interface{}{"configMap": map[string]interface{}{"name": "app-config"}},
				map[string]interface{}{"secret": map[string]interface{}{"secretName": "app-secret"}},
				map[string]interface{}{"persistentVolumeClaim": map[string]interface{}{"claimName": "app-data"}},
			},
		},
	}, nil)
	cm := record("ConfigMap", "default", "app-config", nil, nil)
	sec := record("Secret", "default", "app-secret", nil, nil)
	pvc := record("PersistentVolumeClaim", "default", "app-data", nil, nil)

	g := Build([]models.ResourceRecord{pod, cm, sec, pvc})

	neighbors := g.Neighbors(pod.ID)
	assert.Contains(t, neighbors, cm.ID)
	assert.Contains(t, neighbors, sec.ID)
	assert.Contains(t, neighbors, pvc.ID)
}

func TestBuildSkipsReferencesOutsideSnapshot(t *testing.T) {
	// References to objects the inventory did not return must not grow
	// phantom nodes; blast-radius results stay within the snapshot.
	pod := record("Pod", "default", "app", map[string]interface{}{
		"spec": map[string]interface{}{
			"volumes": []interface{}{
				map[string]interface{}{"configMap": map[string]interface{}{"name": "missing-config"}},
				map[string]interface{}{"secret": map[string]interface{}{"secretName": "missing-secret"}},
			},
		},
	}, nil)
	pvc := record("PersistentVolumeClaim", "default", "data", map[string]interface{}{
		"spec": map[string]interface{}{"volumeName": "missing-pv"},
	}, nil)

	g := Build([]models.ResourceRecord{pod, pvc})

	assert.Empty(t, g.Neighbors(pod.ID))
	assert.Empty(t, g.Neighbors(pvc.ID))
	assert.False(t, g.HasNode(models.ResourceID("ConfigMap", "default", "missing-config")))
	assert.False(t, g.HasNode(models.ResourceID("PersistentVolume", "", "missing-pv")))
}

func TestBuildPVCBindingAndNodeEdges(t *testing.T) {
	pvc := record("PersistentVolumeClaim", "default", "data", map[string]interface{}{
		"spec": map[string]interface{}{"volumeName": "pv-001"},
	}, nil)
	pv := record("PersistentVolume", "", "pv-001", nil, nil)
	pod := record("Pod", "default", "app", map[string]interface{}{
		"spec": map[string]interface{}{"nodeName": "node-a"},
	}, nil)
	node := record("Node", "", "node-a", nil, nil)

	g := Build([]models.ResourceRecord{pvc, pv, pod, node})

	assert.Contains(t, g.Neighbors(pvc.ID), pv.ID)
	assert.Contains(t, g.Neighbors(pod.ID), node.ID)
}

func TestBuildBlastRadiusExample(t *testing.T) {
	// Service S selects Pod P; P mounts ConfigMap M.
	svc := record("Service", "default", "s", map[string]interface{}{
		"spec": map[string]interface{}{
			"selector": map[string]interface{}{"app": "p"},
		},
	}, nil)
	pod := record("Pod", "default", "p", map[string]interface{}{
		"spec": map[string]interface{}{
			"volumes": []interface{}{
				map[string]interface{}{"configMap": map[string]interface{}{"name": "m"}},
			},
		},
	}, map[string]string{"app": "p"})
	cm := record("ConfigMap", "default", "m", nil, nil)

	g := Build([]models.ResourceRecord{svc, pod, cm})

	depth1 := g.WithinDepth(svc.ID, 1)
	require.Len(t, depth1, 2)
	assert.Contains(t, depth1, svc.ID)
	assert.Contains(t, depth1, pod.ID)

	depth2 := g.WithinDepth(svc.ID, 2)
	require.Len(t, depth2, 3)
	assert.Contains(t, depth2, cm.ID)
}
