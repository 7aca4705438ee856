package odm

import (
	"sort"

	"gopkg.in/yaml.v3"
)

type manifestField struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"`
	Required bool   `yaml:"required,omitempty"`
	Nullable bool   `yaml:"nullable,omitempty"`
	Default  bool   `yaml:"default,omitempty"`
	Elem     string `yaml:"elem,omitempty"`
	Embeds   string `yaml:"embeds,omitempty"`
}

type manifestSchema struct {
	Name       string          `yaml:"name"`
	Collection string          `yaml:"collection"`
	Fields     []manifestField `yaml:"fields"`
}

// Manifest renders the registered schemas to YAML, sorted by schema name,
// for inspection and documentation tooling.
func (r *Registry) Manifest() ([]byte, error) {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]manifestSchema, 0, len(names))
	for _, name := range names {
		s := r.schemas[name]
		ms := manifestSchema{Name: s.name, Collection: s.collection}
		for _, f := range s.fields {
			mf := manifestField{
				Name:     f.name,
				Kind:     f.typ.Kind().String(),
				Required: f.required,
				Nullable: f.nullable,
				Default:  f.hasDefault,
			}
			if elem, ok := ElemType(f.typ); ok {
				mf.Elem = elem.Kind().String()
				if sch, err := EmbeddedSchema(elem); err == nil {
					mf.Embeds = sch.Name()
				}
			}
			if sch, err := EmbeddedSchema(f.typ); err == nil {
				mf.Embeds = sch.Name()
			}
			ms.Fields = append(ms.Fields, mf)
		}
		out = append(out, ms)
	}
	return yaml.Marshal(out)
}

// Manifest renders the default registry.
func Manifest() ([]byte, error) { return defaultRegistry.Manifest() }
