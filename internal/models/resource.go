package models

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
)

// ResourceRecord is an immutable snapshot of a single Kubernetes object taken
// during inventory fetch. Records are replaced wholesale on the next fetch.
type ResourceRecord struct {
	ID         string                 `json:"id"`
	Kind       string                 `json:"kind"`
	APIVersion string                 `json:"apiVersion"`
	Namespace  string                 `json:"namespace"`
	Name       string                 `json:"name"`
	UID        string                 `json:"uid,omitempty"`
	Labels     map[string]string      `json:"labels,omitempty"`
	Manifest   map[string]interface{} `json:"manifest"`
	// Fingerprint is a sha256 hash of the normalized manifest, used for
	// smart-scan change detection.
	Fingerprint string `json:"fingerprint"`
}

// ResourceID derives the globally-unique id for a resource.
func ResourceID(kind, namespace, name string) string {
	if namespace == "" {
		namespace = "_cluster"
	}
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", kind, namespace, name))
}

// volatile metadata fields excluded from fingerprinting: they change on every
// write or are server-managed, and would defeat change detection.
var volatileMetadataFields = []string{
	"resourceVersion",
	"managedFields",
	"generation",
	"uid",
	"creationTimestamp",
	"selfLink",
}

// FingerprintManifest hashes a normalized copy of the manifest. The status
// subtree and volatile metadata are stripped first; encoding/json sorts map
// keys, so the hash is deterministic for equal content.
func FingerprintManifest(manifest map[string]interface{}) string {
	normalized := deepCopyMap(manifest)
	delete(normalized, "status")
	if meta, ok := normalized["metadata"].(map[string]interface{}); ok {
		for _, f := range volatileMetadataFields {
			delete(meta, f)
		}
		if ann, ok := meta["annotations"].(map[string]interface{}); ok {
			delete(ann, "kubectl.kubernetes.io/last-applied-configuration")
			if len(ann) == 0 {
				delete(meta, "annotations")
			}
		}
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		// Marshal of map[string]interface{} from JSON/YAML decode cannot fail;
		// fall back to an empty-content hash to keep the caller total.
		data = nil
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

func deepCopyMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		cp := make([]interface{}, len(t))
		for i, e := range t {
			cp[i] = deepCopyValue(e)
		}
		return cp
	default:
		return v
	}
}
