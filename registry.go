package odm

import (
	"fmt"

	"go.uber.org/zap"
)

// SchemaRef resolves to a registered schema. Direct references (Ref) are
// checked at registration; deferred references (Deferred) resolve on first
// serialize/deserialize and are the sanctioned mechanism for forward and
// mutual embedding.
type SchemaRef interface {
	Resolve() (*Schema, error)
}

type directRef struct{ s *Schema }

func (r directRef) Resolve() (*Schema, error) { return r.s, nil }

// Ref returns a direct reference to an already-registered schema.
func Ref(s *Schema) SchemaRef { return directRef{s: s} }

type deferredRef struct {
	r    *Registry
	name string
}

func (r deferredRef) Resolve() (*Schema, error) { return r.r.Resolve(r.name) }

// Registry maps schema names to registered schemas. Registration is
// append-only for the process lifetime; complete all registration before the
// first resolution, there is no cross-goroutine synchronization by design.
type Registry struct {
	schemas map[string]*Schema
	frozen  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{schemas: map[string]*Schema{}}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used by the package
// level Register, Resolve and Deferred helpers.
func DefaultRegistry() *Registry { return defaultRegistry }

// Register indexes the field descriptors under the schema name. An "_id"
// ObjectID descriptor is added when none is declared. Fails on duplicate
// schema names, duplicate field names, invalid names and embedded cycles
// reachable through resolvable references.
func (r *Registry) Register(name string, fields ...*FieldDescriptor) (*Schema, error) {
	if r.frozen {
		return nil, fmt.Errorf("%w: cannot register %q", ErrFrozenRegistry, name)
	}
	if _, dup := r.schemas[name]; dup {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateSchema, name)
	}
	s, err := newSchema(name, fields)
	if err != nil {
		return nil, err
	}
	if err := r.checkCycle(s); err != nil {
		return nil, err
	}
	s.freeze()
	r.schemas[name] = s
	Logger().Debug("schema registered",
		zap.String("schema", name),
		zap.String("collection", s.collection),
		zap.Int("fields", len(s.fields)))
	return s, nil
}

// MustRegister is Register but panics on error.
func (r *Registry) MustRegister(name string, fields ...*FieldDescriptor) *Schema {
	s, err := r.Register(name, fields...)
	if err != nil {
		panic(err.Error())
	}
	return s
}

// Resolve returns the schema registered under name, failing with
// ErrUnknownSchema.
func (r *Registry) Resolve(name string) (*Schema, error) {
	if s, ok := r.schemas[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSchema, name)
}

// Deferred returns a reference token resolved against this registry on first
// use rather than at registration.
func (r *Registry) Deferred(name string) SchemaRef {
	return deferredRef{r: r, name: name}
}

// Freeze switches the registry to its read-only lifecycle phase; later
// Register calls fail with ErrFrozenRegistry.
func (r *Registry) Freeze() { r.frozen = true }

// Schemas returns the registered schemas keyed by name.
func (r *Registry) Schemas() map[string]*Schema {
	out := make(map[string]*Schema, len(r.schemas))
	for k, v := range r.schemas {
		out[k] = v
	}
	return out
}

// checkCycle walks embedded references that resolve right now and rejects a
// registration that would reach itself. Deferred references to schemas that
// are not yet registered stay unchecked here; serialization follows values,
// not types, so deferred mutual embedding still terminates at runtime.
func (r *Registry) checkCycle(s *Schema) error {
	visited := map[string]bool{}
	var walk func(cur *Schema) error
	walk = func(cur *Schema) error {
		if visited[cur.name] {
			return nil
		}
		visited[cur.name] = true
		for _, f := range cur.fields {
			t := f.typ
			if a, ok := ElemType(t); ok {
				t = a
			}
			e, ok := t.(embeddedType)
			if !ok {
				continue
			}
			next, err := e.ref.Resolve()
			if err != nil {
				continue // deferred and not yet registered
			}
			if next.name == s.name {
				return fmt.Errorf("%w: schema %q reaches itself through field %q", ErrEmbeddedCycle, s.name, f.name)
			}
			if err := walk(next); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(s)
}

// Register registers a schema on the default registry.
func Register(name string, fields ...*FieldDescriptor) (*Schema, error) {
	return defaultRegistry.Register(name, fields...)
}

// MustRegister registers a schema on the default registry, panicking on error.
func MustRegister(name string, fields ...*FieldDescriptor) *Schema {
	return defaultRegistry.MustRegister(name, fields...)
}

// Resolve resolves a schema by name on the default registry.
func Resolve(name string) (*Schema, error) { return defaultRegistry.Resolve(name) }

// Deferred returns a lazily resolved reference on the default registry.
func Deferred(name string) SchemaRef { return defaultRegistry.Deferred(name) }
