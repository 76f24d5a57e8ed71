package modelz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/codex-k8s/nightly/internal/nightly"
)

// Deployments manages deployments in one user cluster.
type Deployments struct {
	client *Client
	prefix string
	header http.Header
}

var _ nightly.Platform = (*Deployments)(nil)

type deploymentSpec struct {
	ID               string         `json:"id,omitempty"`
	Name             string         `json:"name,omitempty"`
	DeploymentSource map[string]any `json:"deployment_source,omitempty"`
	ServerResource   string         `json:"server_resource,omitempty"`
	Framework        string         `json:"framework,omitempty"`
	MinReplicas      int            `json:"min_replicas"`
	MaxReplicas      int            `json:"max_replicas"`
	TargetLoad       int            `json:"target_load"`
	StartupDuration  int            `json:"startup_duration"`
	Port             int            `json:"port,omitempty"`
	Command          string         `json:"command,omitempty"`
	HTTPProbePath    string         `json:"http_probe_path,omitempty"`
}

type deploymentStatus struct {
	Phase    string `json:"phase"`
	Endpoint string `json:"endpoint"`
}

type deployment struct {
	Spec   deploymentSpec   `json:"spec"`
	Status deploymentStatus `json:"status"`
}

type createRequest struct {
	Spec deploymentSpec `json:"spec"`
}

type listResponse struct {
	Deployments []deployment `json:"deployments"`
}

// CreateDeployment submits spec and returns the platform-assigned id.
func (d *Deployments) CreateDeployment(ctx context.Context, spec nightly.DeploymentSpec) (string, error) {
	req := createRequest{Spec: deploymentSpec{
		Name:             spec.Name,
		DeploymentSource: spec.Source,
		ServerResource:   spec.ServerResource,
		Framework:        spec.Framework,
		MinReplicas:      spec.MinReplicas,
		MaxReplicas:      spec.MaxReplicas,
		TargetLoad:       spec.TargetLoad,
		StartupDuration:  spec.StartupDuration,
		Port:             spec.Port,
		Command:          spec.Command,
		HTTPProbePath:    spec.HTTPProbePath,
	}}
	var out deployment
	if err := d.client.do(ctx, http.MethodPost, d.prefix, d.header, req, &out); err != nil {
		return "", fmt.Errorf("create deployment %s: %w", spec.Name, err)
	}
	if out.Spec.ID == "" {
		return "", errors.New("create deployment: response has no deployment id")
	}
	return out.Spec.ID, nil
}

// GetDeployment returns the current endpoint and phase of a deployment.
func (d *Deployments) GetDeployment(ctx context.Context, id string) (nightly.DeploymentStatus, error) {
	var out deployment
	if err := d.client.do(ctx, http.MethodGet, d.prefix+"/"+url.PathEscape(id), d.header, nil, &out); err != nil {
		return nightly.DeploymentStatus{}, fmt.Errorf("get deployment %s: %w", id, err)
	}
	return nightly.DeploymentStatus{
		Endpoint: out.Status.Endpoint,
		Phase:    nightly.Phase(out.Status.Phase),
	}, nil
}

// ListDeployments returns the ids of every deployment in the cluster.
func (d *Deployments) ListDeployments(ctx context.Context) ([]string, error) {
	var out listResponse
	if err := d.client.do(ctx, http.MethodGet, d.prefix, d.header, nil, &out); err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	ids := make([]string, 0, len(out.Deployments))
	for _, dep := range out.Deployments {
		if dep.Spec.ID != "" {
			ids = append(ids, dep.Spec.ID)
		}
	}
	return ids, nil
}

// DeleteDeployment removes a deployment.
func (d *Deployments) DeleteDeployment(ctx context.Context, id string) error {
	if err := d.client.do(ctx, http.MethodDelete, d.prefix+"/"+url.PathEscape(id), d.header, nil, nil); err != nil {
		return fmt.Errorf("delete deployment %s: %w", id, err)
	}
	return nil
}
