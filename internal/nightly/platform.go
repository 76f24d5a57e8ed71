package nightly

import "context"

// DeploymentStatus is the observed state of a deployment.
type DeploymentStatus struct {
	// Endpoint is the network endpoint; empty until the platform assigns one.
	Endpoint string
	// Phase is the readiness phase.
	Phase Phase
}

// Platform is the subset of the deployment platform used by the sweep.
type Platform interface {
	CreateDeployment(ctx context.Context, spec DeploymentSpec) (string, error)
	GetDeployment(ctx context.Context, id string) (DeploymentStatus, error)
	ListDeployments(ctx context.Context) ([]string, error)
	DeleteDeployment(ctx context.Context, id string) error
}

// Prober sends a synthetic inference request to a deployment endpoint.
type Prober interface {
	Probe(ctx context.Context, endpoint string) error
}
