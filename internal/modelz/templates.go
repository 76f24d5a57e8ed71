package modelz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codex-k8s/nightly/internal/nightly"
)

// PublicTemplate is a template as listed by the platform.
type PublicTemplate struct {
	Name             string         `json:"name"`
	SuggestName      string         `json:"suggest_name"`
	DeploymentSource map[string]any `json:"deployment_source"`
	ServerResource   string         `json:"server_resource"`
	Framework        string         `json:"framework"`
	Port             int            `json:"port"`
	Command          string         `json:"command,omitempty"`
	HTTPProbePath    string         `json:"http_probe_path,omitempty"`
}

// Wanted names a template required by the run and its documentation URL.
type Wanted struct {
	Name   string
	DocURL string
}

// MissingTemplatesError lists wanted templates absent from the public catalog.
type MissingTemplatesError struct {
	Names []string
}

func (e *MissingTemplatesError) Error() string {
	return fmt.Sprintf("templates not found on the platform: %s", strings.Join(e.Names, ", "))
}

// IsMissingTemplatesError reports whether err is a MissingTemplatesError.
func IsMissingTemplatesError(err error) bool {
	var target *MissingTemplatesError
	return errors.As(err, &target)
}

// FilterTemplates selects the wanted templates from the public list in wanted order.
// Every wanted name must be present; otherwise nothing is returned.
func FilterTemplates(public []PublicTemplate, wanted []Wanted) ([]nightly.Template, error) {
	byName := make(map[string]PublicTemplate, len(public))
	for _, t := range public {
		byName[t.Name] = t
	}

	var missing []string
	out := make([]nightly.Template, 0, len(wanted))
	for _, w := range wanted {
		pt, ok := byName[w.Name]
		if !ok {
			missing = append(missing, w.Name)
			continue
		}
		out = append(out, nightly.Template{
			Name:   w.Name,
			DocURL: w.DocURL,
			Spec: nightly.DeploymentSource{
				SuggestName:    pt.SuggestName,
				Source:         pt.DeploymentSource,
				ServerResource: pt.ServerResource,
				Framework:      pt.Framework,
				Port:           pt.Port,
				Command:        pt.Command,
				HTTPProbePath:  pt.HTTPProbePath,
			},
		})
	}
	if len(missing) > 0 {
		return nil, &MissingTemplatesError{Names: missing}
	}
	return out, nil
}
