// Package validate provides input validation for API path and body parameters.
package validate

import (
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClusterIDMaxLen is the maximum allowed length for clusterId (stored in DB, used in paths).
const ClusterIDMaxLen = 128

// K8s name regex: DNS subdomain per RFC 1123, lowercase alphanumeric with '-' or '.', max 253.
var k8sNameRe = regexp.MustCompile(`^[a-z0-9]([-a-z0-9]*[a-z0-9])?(\.[a-z0-9]([-a-z0-9]*[a-z0-9])?)*$`)

// ClusterID validates clusterId from path: alphanumeric, hyphen, underscore; 1–ClusterIDMaxLen.
func ClusterID(id string) bool {
	if id == "" || len(id) > ClusterIDMaxLen {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}

// Kind validates a Kubernetes resource kind: alphanumeric, no path chars; 1–64 chars.
func Kind(kind string) bool {
	if kind == "" || len(kind) > 64 {
		return false
	}
	for _, r := range kind {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			continue
		}
		return false
	}
	return true
}

// Name validates a resource name: valid DNS subdomain.
func Name(name string) bool {
	if name == "" || len(name) > 253 {
		return false
	}
	return k8sNameRe.MatchString(strings.ToLower(name))
}

// ResourceID validates the kind/namespace/name triple used as a resource id.
// The namespace segment "_cluster" marks cluster-scoped resources.
func ResourceID(id string) bool {
	parts := strings.Split(id, "/")
	if len(parts) != 3 {
		return false
	}
	kind, namespace, name := parts[0], parts[1], parts[2]
	if !Kind(kind) || !Name(name) {
		return false
	}
	if namespace == "_cluster" {
		return true
	}
	return len(namespace) <= 253 && k8sNameRe.MatchString(strings.ToLower(namespace))
}

// ManifestWarnings parses a patch manifest (single or multi-doc YAML) and
// returns warnings for dangerous pod/container settings, e.g. hostPID: true
// or privileged: true. The remediation engine logs these before a production
// apply; it does not reject.
func ManifestWarnings(yamlContent string) []string {
	var warnings []string
	for _, doc := range strings.Split(yamlContent, "---") {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		var m map[string]interface{}
		if err := yaml.Unmarshal([]byte(doc), &m); err != nil {
			continue // invalid YAML fragment; apply will fail later
		}
		walkForDangerous(m, "", &warnings)
	}
	return warnings
}

func walkForDangerous(node interface{}, path string, warnings *[]string) {
	switch n := node.(type) {
	case map[string]interface{}:
		for k, v := range n {
			p := path + "/" + k
			switch strings.ToLower(k) {
			case "hostpid":
				if b, ok := v.(bool); ok && b {
					*warnings = append(*warnings, p+" hostPID: true (pod can see host PID namespace)")
				}
			case "privileged":
				if b, ok := v.(bool); ok && b {
					*warnings = append(*warnings, p+" privileged: true (container runs privileged)")
				}
			case "hostnetwork":
				if b, ok := v.(bool); ok && b {
					*warnings = append(*warnings, p+" hostNetwork: true (pod uses host network)")
				}
			}
			walkForDangerous(v, p, warnings)
		}
	case []interface{}:
		for i, v := range n {
			walkForDangerous(v, path+"/["+strconv.Itoa(i)+"]", warnings)
		}
	}
}
