// Package nightly implements the deployment validation sweep: the per-template
// lifecycle controller, the outcome classifier, the concurrent fan-out and the
// account-wide purge.
package nightly

import "fmt"

// Fixed scaling policy applied to every validation deployment.
const (
	// MinReplicas lets the platform scale the deployment down to zero.
	MinReplicas = 0
	// MaxReplicas caps the deployment at a single replica.
	MaxReplicas = 1
	// TargetLoad is the per-replica inflight target used by the autoscaler.
	TargetLoad = 10
	// StartupDuration is the platform-side startup budget in seconds.
	StartupDuration = 300
)

// DeploymentSource carries the platform template fields copied into a deployment request.
type DeploymentSource struct {
	// SuggestName is the deployment name proposed by the template.
	SuggestName string
	// Source is the opaque deployment source descriptor (image, repository, etc.).
	Source map[string]any
	// ServerResource selects the hardware profile.
	ServerResource string
	// Framework names the serving framework (e.g. mosec, gradio).
	Framework string
	// Port is the container port exposed by the workload.
	Port int
	// Command overrides the container command when set.
	Command string
	// HTTPProbePath is the readiness probe path.
	HTTPProbePath string
}

// Template is a named deployment blueprint under validation.
type Template struct {
	// Name is the unique template name on the platform.
	Name string
	// DocURL points to the template documentation and is part of the report label.
	DocURL string
	// Spec holds the platform template fields used to build the deployment request.
	Spec DeploymentSource
}

// Label returns the markdown link used as the template key in the history ledger.
func (t Template) Label() string {
	return fmt.Sprintf("[%s](%s)", t.Name, t.DocURL)
}

// DeploymentSpec is the request submitted to the platform to create a deployment.
type DeploymentSpec struct {
	Name            string
	Source          map[string]any
	ServerResource  string
	Framework       string
	MinReplicas     int
	MaxReplicas     int
	TargetLoad      int
	StartupDuration int
	Port            int
	Command         string
	HTTPProbePath   string
}

// NewDeploymentSpec derives a deployment request from a template using the fixed policy.
func NewDeploymentSpec(t Template) DeploymentSpec {
	return DeploymentSpec{
		Name:            t.Spec.SuggestName,
		Source:          t.Spec.Source,
		ServerResource:  t.Spec.ServerResource,
		Framework:       t.Spec.Framework,
		MinReplicas:     MinReplicas,
		MaxReplicas:     MaxReplicas,
		TargetLoad:      TargetLoad,
		StartupDuration: StartupDuration,
		Port:            t.Spec.Port,
		Command:         t.Spec.Command,
		HTTPProbePath:   t.Spec.HTTPProbePath,
	}
}
