// Package redact keeps secret values out of analyzer prompts, API responses,
// and logs.
package redact

const redactedValue = "***REDACTED***"

// SecretData redacts Kubernetes Secret .data and .stringData values in obj
// (in place). Key names are kept so the analyzer can still reason about which
// keys exist; values are replaced with ***REDACTED***.
func SecretData(obj map[string]interface{}) {
	if obj == nil {
		return
	}
	if data, ok := obj["data"].(map[string]interface{}); ok {
		for k := range data {
			data[k] = redactedValue
		}
	}
	if stringData, ok := obj["stringData"].(map[string]interface{}); ok {
		for k := range stringData {
			stringData[k] = redactedValue
		}
	}
}

// IsSecretKind returns true if kind indicates a Kubernetes Secret.
func IsSecretKind(kind string) bool {
	switch kind {
	case "Secret", "secret", "Secrets", "secrets":
		return true
	}
	return false
}
