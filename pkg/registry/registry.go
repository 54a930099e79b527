// pkg/registry/registry.go
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// Default returns the built-in expression catalog.
func Default() *Catalog {
	cat, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("registry: built-in catalog: %v", err))
	}
	return cat
}

// LoadCatalog reads a YAML or JSON catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cat, nil
}

func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	if len(c.Expressions) == 0 {
		return fmt.Errorf("catalog has no expressions")
	}
	seen := make(map[string]bool, len(c.Expressions))
	for i, e := range c.Expressions {
		label := strings.TrimSpace(e.Label)
		if label == "" {
			return fmt.Errorf("expression %d has no label", i)
		}
		key := strings.ToLower(label)
		if seen[key] {
			return fmt.Errorf("duplicate expression %q", label)
		}
		seen[key] = true
	}
	return nil
}

// Labels returns every label in catalog order.
func (c *Catalog) Labels() []string {
	out := make([]string, len(c.Expressions))
	for i, e := range c.Expressions {
		out[i] = e.Label
	}
	return out
}

// DefaultLabels returns the labels marked default, or all labels when none are.
func (c *Catalog) DefaultLabels() []string {
	var out []string
	for _, e := range c.Expressions {
		if e.Default {
			out = append(out, e.Label)
		}
	}
	if len(out) == 0 {
		return c.Labels()
	}
	return out
}

// Find looks a label up case-insensitively.
func (c *Catalog) Find(label string) (Expression, bool) {
	key := strings.ToLower(strings.TrimSpace(label))
	for _, e := range c.Expressions {
		if strings.ToLower(e.Label) == key {
			return e, true
		}
	}
	return Expression{}, false
}

// Resolve maps requested names to labels, using the catalog spelling for
// known expressions and keeping custom ones as given. Repeated names are
// dropped.
func (c *Catalog) Resolve(names []string) []string {
	out := make([]string, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if e, ok := c.Find(n); ok {
			n = e.Label
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// WithTag returns the labels carrying tag.
func (c *Catalog) WithTag(tag string) []string {
	var out []string
	for _, e := range c.Expressions {
		for _, t := range e.Tags {
			if strings.EqualFold(t, tag) {
				out = append(out, e.Label)
				break
			}
		}
	}
	return out
}
