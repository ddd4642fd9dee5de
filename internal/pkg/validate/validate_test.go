package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterID(t *testing.T) {
	assert.True(t, ClusterID("prod"))
	assert.True(t, ClusterID("kind-kortex_test-1"))
	assert.False(t, ClusterID(""))
	assert.False(t, ClusterID("has space"))
	assert.False(t, ClusterID("../etc/passwd"))
	long := make([]byte, ClusterIDMaxLen+1)
	for i := range long {
		long[i] = 'a'
	}
	assert.False(t, ClusterID(string(long)))
}

func TestResourceID(t *testing.T) {
	assert.True(t, ResourceID("pod/default/web"))
	assert.True(t, ResourceID("node/_cluster/worker-1"))
	assert.False(t, ResourceID("pod/default"))
	assert.False(t, ResourceID("pod/default/web/extra"))
	assert.False(t, ResourceID("po d/default/web"))
	assert.False(t, ResourceID("pod/default/"))
}

func TestManifestWarnings(t *testing.T) {
	manifest := `
apiVersion: v1
kind: Pod
spec:
  hostPID: true
  containers:
    - name: app
      securityContext:
        privileged: true
`
	warnings := ManifestWarnings(manifest)
	assert.Len(t, warnings, 2)

	assert.Empty(t, ManifestWarnings("apiVersion: v1\nkind: ConfigMap\n"))
	assert.Empty(t, ManifestWarnings("{invalid yaml"))
}
