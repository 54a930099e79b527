// pkg/registry/schema.go
package registry

// Catalog is the selectable set of expressions plus an optional prompt
// template overriding the configured one.
type Catalog struct {
	Version        string       `yaml:"version" json:"version"`
	LastUpdated    string       `yaml:"lastUpdated" json:"lastUpdated"`
	PromptTemplate string       `yaml:"promptTemplate,omitempty" json:"promptTemplate,omitempty"`
	Expressions    []Expression `yaml:"expressions" json:"expressions"`
}

type Expression struct {
	Label       string   `yaml:"label" json:"label"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Default     bool     `yaml:"default,omitempty" json:"default,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}
