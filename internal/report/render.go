package report

import (
	"embed"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
	"time"

	"github.com/codex-k8s/nightly/internal/nightly"
)

//go:embed templates/*.tmpl
var reportTemplates embed.FS

const defaultTemplate = "templates/README.md.tmpl"

// Renderer renders a Grid into the markdown status report.
type Renderer struct {
	tmpl  *template.Template
	limit time.Duration
	now   func() time.Time
}

// NewRenderer parses the report template. An empty path selects the embedded template.
// limit is the readiness time limit shown on timed-out badges.
func NewRenderer(path string, limit time.Duration) (*Renderer, error) {
	var (
		name string
		data []byte
		err  error
	)
	if path == "" {
		name = defaultTemplate
		data, err = reportTemplates.ReadFile(defaultTemplate)
	} else {
		name = filepath.Base(path)
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load report template %s: %w", name, err)
	}

	r := &Renderer{limit: limit, now: time.Now}
	funcs := template.FuncMap{
		"badge":        func(out nightly.Outcome) string { return Badge(out, r.limit) },
		"badgeURL":     func(out nightly.Outcome) string { return BadgeURL(out, r.limit) },
		"badgeText":    func(out nightly.Outcome) string { return BadgeText(out, r.limit) },
		"limitSeconds": func() int64 { return int64(r.limit / time.Second) },
	}
	tmpl, err := template.New(name).Funcs(funcs).Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse report template %s: %w", name, err)
	}
	r.tmpl = tmpl
	return r, nil
}

// reportData is the value exposed to report templates.
type reportData struct {
	Grid
	GeneratedAt time.Time
}

// Render writes the report for grid to w.
func (r *Renderer) Render(w io.Writer, grid Grid) error {
	data := reportData{Grid: grid, GeneratedAt: r.now().UTC()}
	if err := r.tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("execute report template: %w", err)
	}
	return nil
}

// RenderFile renders the report into path, replacing its content.
func (r *Renderer) RenderFile(path string, grid Grid) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir %q: %w", dir, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report %q: %w", path, err)
	}
	if err := r.Render(f, grid); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report %q: %w", path, err)
	}
	return nil
}
