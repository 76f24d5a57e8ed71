package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates.yaml
var defaultCatalog []byte

// CatalogEntry names one platform template under validation.
type CatalogEntry struct {
	// Name is the exact public template name on the platform.
	Name string `yaml:"name"`
	// Docs is the documentation URL shown in the report.
	Docs string `yaml:"docs"`
}

// Catalog is the ordered list of templates exercised every night.
type Catalog struct {
	Templates []CatalogEntry `yaml:"templates"`
}

// Names returns the template names in catalog order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Templates))
	for _, t := range c.Templates {
		names = append(names, t.Name)
	}
	return names
}

// Docs returns the documentation URL for name.
func (c *Catalog) Docs(name string) (string, bool) {
	for _, t := range c.Templates {
		if t.Name == name {
			return t.Docs, true
		}
	}
	return "", false
}

// LoadCatalog reads the catalog from path, or the embedded default when path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	data := defaultCatalog
	source := "embedded catalog"
	if p := strings.TrimSpace(path); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read template catalog %q: %w", p, err)
		}
		data = raw
		source = p
	}
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	return cat, nil
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse template catalog: %w", err)
	}
	if len(cat.Templates) == 0 {
		return nil, errors.New("template catalog is empty")
	}
	seen := make(map[string]bool, len(cat.Templates))
	for i, t := range cat.Templates {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("template #%d has no name", i+1)
		}
		if strings.TrimSpace(t.Docs) == "" {
			return nil, fmt.Errorf("template %q has no docs url", name)
		}
		if seen[name] {
			return nil, fmt.Errorf("template %q is listed twice", name)
		}
		seen[name] = true
		cat.Templates[i].Name = name
	}
	return &cat, nil
}
