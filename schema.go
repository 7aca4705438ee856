package odm

import (
	"fmt"
	"regexp"
	"strings"
)

// PrimaryKey is the reserved name of the document identifier field. Every
// schema carries an optional nullable ObjectID descriptor under this name
// unless one was declared explicitly.
const PrimaryKey = "_id"

// Schema is the ordered set of field descriptors registered under one name.
// Immutable after registration.
type Schema struct {
	name       string
	collection string
	fields     []*FieldDescriptor
	index      map[string]*FieldDescriptor
}

func newSchema(name string, fields []*FieldDescriptor) (*Schema, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty schema name", ErrInvalidCollection)
	}
	s := &Schema{
		name:       name,
		collection: toSnakeCase(name),
		index:      map[string]*FieldDescriptor{},
	}
	if err := validateCollectionName(s.collection, name); err != nil {
		return nil, err
	}
	if _, ok := lookupField(fields, PrimaryKey); !ok {
		fields = append([]*FieldDescriptor{Field(PrimaryKey, ObjectID()).Nullable()}, fields...)
	}
	for _, f := range fields {
		if err := validateFieldName(f.name); err != nil {
			return nil, err
		}
		if _, dup := s.index[f.name]; dup {
			return nil, fmt.Errorf("%w: %q on schema %q", ErrDuplicateField, f.name, name)
		}
		s.fields = append(s.fields, f)
		s.index[f.name] = f
	}
	return s, nil
}

// Name returns the schema identity key.
func (s *Schema) Name() string { return s.name }

// Collection returns the bound collection name, by default the snake_case
// form of the schema name.
func (s *Schema) Collection() string { return s.collection }

// WithCollection overrides the collection name before first use. It panics
// on invalid names, the same way registration rejects them.
func (s *Schema) WithCollection(name string) *Schema {
	if err := validateCollectionName(name, s.name); err != nil {
		panic(err.Error())
	}
	s.collection = name
	return s
}

// Fields returns the descriptors in declaration order.
func (s *Schema) Fields() []*FieldDescriptor {
	out := make([]*FieldDescriptor, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field resolves a descriptor by name, failing with ErrUnknownField.
func (s *Schema) Field(name string) (*FieldDescriptor, error) {
	if f, ok := s.index[name]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%w: %q on schema %q", ErrUnknownField, name, s.name)
}

// MustField is Field but panics on unknown names; intended for descriptor
// lookup in declarations where a miss is a programming error.
func (s *Schema) MustField(name string) *FieldDescriptor {
	f, err := s.Field(name)
	if err != nil {
		panic(err.Error())
	}
	return f
}

func (s *Schema) freeze() {
	for _, f := range s.fields {
		f.frozen = true
	}
}

func lookupField(fields []*FieldDescriptor, name string) (*FieldDescriptor, bool) {
	for _, f := range fields {
		if f.name == name {
			return f, true
		}
	}
	return nil, false
}

// MongoDB naming restrictions, see
// https://docs.mongodb.com/manual/reference/limits/
func validateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidFieldName)
	}
	if strings.HasPrefix(name, "$") {
		return fmt.Errorf("%w: %q cannot start with '$'", ErrInvalidFieldName, name)
	}
	if strings.Contains(name, ".") {
		return fmt.Errorf("%w: %q cannot contain '.'", ErrInvalidFieldName, name)
	}
	return nil
}

func validateCollectionName(collection, schemaName string) error {
	if collection == "" {
		return fmt.Errorf("%w: empty name for schema %q", ErrInvalidCollection, schemaName)
	}
	if strings.Contains(collection, "$") {
		return fmt.Errorf("%w: %q for schema %q cannot contain '$'", ErrInvalidCollection, collection, schemaName)
	}
	if strings.HasPrefix(collection, "system.") {
		return fmt.Errorf("%w: %q for schema %q cannot start with 'system.'", ErrInvalidCollection, collection, schemaName)
	}
	return nil
}

var (
	snakeFirst = regexp.MustCompile("(.)([A-Z][a-z]+)")
	snakeRest  = regexp.MustCompile("([a-z0-9])([A-Z])")
)

func toSnakeCase(s string) string {
	tmp := snakeFirst.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(snakeRest.ReplaceAllString(tmp, "${1}_${2}"))
}
