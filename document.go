package odm

import (
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is a live instance of a schema: a field-value mapping with
// dirty-field tracking. Instances are not safe for concurrent mutation; the
// caller owns that discipline.
type Document struct {
	schema    *Schema
	values    map[string]any
	dirty     map[string]struct{}
	defaulted map[string]struct{}
}

// New creates an instance with all configured defaults materialized.
// Materialization failures are programming errors (a default that fails its
// own descriptor) and panic.
func (s *Schema) New() *Document {
	d := &Document{
		schema:    s,
		values:    map[string]any{},
		dirty:     map[string]struct{}{},
		defaulted: map[string]struct{}{},
	}
	for _, f := range s.fields {
		if !f.hasDefault {
			continue
		}
		v, err := f.DefaultValue()
		if err != nil {
			panic(fmt.Sprintf("odm: default for %s.%s: %v", s.name, f.name, err))
		}
		d.values[f.name] = v
		d.defaulted[f.name] = struct{}{}
	}
	return d
}

// Schema returns the owning schema.
func (d *Document) Schema() *Schema { return d.schema }

// Get returns the current value of a field, failing with ErrUnknownField.
// Fields that are unset return nil.
func (d *Document) Get(name string) (any, error) {
	if _, err := d.schema.Field(name); err != nil {
		return nil, err
	}
	return d.values[name], nil
}

// MustGet is Get but panics on unknown fields.
func (d *Document) MustGet(name string) any {
	v, err := d.Get(name)
	if err != nil {
		panic(err.Error())
	}
	return v
}

// Has reports whether the field currently holds a value (explicitly set,
// defaulted or deserialized).
func (d *Document) Has(name string) bool {
	_, ok := d.values[name]
	return ok
}

// Set validates the value through the field descriptor and stores it,
// marking the field dirty. On validation failure the instance is left
// unchanged.
func (d *Document) Set(name string, v any) error {
	f, err := d.schema.Field(name)
	if err != nil {
		return err
	}
	norm, err := f.Validate(v)
	if err != nil {
		return err
	}
	d.values[name] = norm
	d.dirty[name] = struct{}{}
	delete(d.defaulted, name)
	return nil
}

// Unset removes the field's value and marks it dirty, so a partial update
// can translate it to an $unset.
func (d *Document) Unset(name string) error {
	if _, err := d.schema.Field(name); err != nil {
		return err
	}
	delete(d.values, name)
	delete(d.defaulted, name)
	d.dirty[name] = struct{}{}
	return nil
}

// DirtyFields returns the names of fields mutated since load or the last
// ClearDirty, sorted for determinism.
func (d *Document) DirtyFields() []string {
	out := make([]string, 0, len(d.dirty))
	for name := range d.dirty {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ClearDirty resets dirty tracking. The manager calls it after the driver
// acknowledges a save; callers doing their own I/O own that responsibility.
func (d *Document) ClearDirty() { d.dirty = map[string]struct{}{} }

// DefaultApplied reports whether the field's current value was materialized
// from its default rather than set or deserialized.
func (d *Document) DefaultApplied(name string) bool {
	_, ok := d.defaulted[name]
	return ok
}

// ID returns the primary key when one is assigned.
func (d *Document) ID() (primitive.ObjectID, bool) {
	id, ok := d.values[PrimaryKey].(primitive.ObjectID)
	return id, ok
}

// SetID assigns the primary key without marking it dirty; it records a
// driver-assigned identity, not a mutation.
func (d *Document) SetID(id primitive.ObjectID) {
	d.values[PrimaryKey] = id
}

// Validate checks the whole instance: every required field holds a value and
// every held value still conforms to its descriptor. Used before inserts and
// by embedded-field validation.
func (d *Document) Validate() error {
	var iss Issues
	for _, f := range d.schema.fields {
		v, ok := d.values[f.name]
		if !ok {
			if f.required && !f.hasDefault {
				iss = append(iss, Issue{Path: "/" + f.name, Code: CodeRequired, Message: "required field is unset"})
			}
			continue
		}
		if v == nil {
			if !f.nullable {
				iss = append(iss, Issue{Path: "/" + f.name, Code: CodeNullability, Message: "field is not nullable"})
			}
			continue
		}
		if _, fieldIss := f.typ.Validate(v); fieldIss != nil {
			iss = append(iss, prefixIssues(f.name, fieldIss)...)
		}
	}
	return wrapIssues(ErrValidation, iss)
}

// JSON renders the document as JSON with ObjectIDs as hex strings, times as
// RFC3339 and embedded documents as nested objects.
func (d *Document) JSON() ([]byte, error) {
	return json.Marshal(d.plain())
}

func (d *Document) plain() map[string]any {
	out := make(map[string]any, len(d.values))
	for _, f := range d.schema.fields {
		v, ok := d.values[f.name]
		if !ok {
			continue
		}
		out[f.name] = plainValue(v)
	}
	return out
}

func plainValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return t.String()
	case *Document:
		return t.plain()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	default:
		return v
	}
}
