// Package shadow manages isolated, disposable copies of a cluster used to
// validate remediation patches before they touch production.
package shadow

import "context"

// Scope names the production slice a shadow environment mirrors.
type Scope struct {
	ClusterID      string
	KubeconfigPath string // host cluster kubeconfig the shadow is provisioned into
	Namespace      string // namespace of the target resource
}

// Env is a handle to one provisioned shadow environment.
type Env struct {
	ID             string
	Namespace      string
	KubeconfigPath string // kubeconfig for the shadow's own API server
}

// Environment provisions, exercises, and destroys shadow copies. Teardown is
// unconditional cleanup, never a gate: callers invoke it regardless of the
// workflow outcome.
type Environment interface {
	Create(ctx context.Context, scope Scope) (*Env, error)
	Apply(ctx context.Context, env *Env, manifest string) error
	Validate(ctx context.Context, env *Env, resourceID string) (bool, error)
	Teardown(ctx context.Context, env *Env) error
}
