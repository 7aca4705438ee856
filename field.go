package odm

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Type validates, serializes and deserializes values of one declared kind.
// Validate returns the normalized in-memory value (for example int32 input is
// widened to int64 for integer fields); Serialize converts an in-memory value
// to the wire representation and Deserialize is the inverse. All three report
// findings as Issues with paths relative to the value itself.
type Type interface {
	Kind() Kind
	Validate(v any) (any, Issues)
	Serialize(v any) (any, Issues)
	Deserialize(v any, opt DecodeOpt) (any, Issues)
}

// String returns a string field type.
func String() Type { return stringType{} }

// Int returns an integer field type. Values are held as int64; int and int32
// inputs are widened on the way in.
func Int() Type { return intType{} }

// Float returns a floating point field type. Values are held as float64;
// integer inputs widen to float64, the only sanctioned cross-kind coercion.
func Float() Type { return floatType{} }

// Bool returns a boolean field type.
func Bool() Type { return boolType{} }

// Time returns a time field type. Values are held as time.Time; wire values
// may arrive as primitive.DateTime from the driver.
func Time() Type { return timeType{} }

// ObjectID returns a BSON ObjectID field type. Valid hex strings are coerced
// to primitive.ObjectID on assignment, mirroring the driver's own leniency.
func ObjectID() Type { return objectIDType{} }

// UUID returns a UUID field type held as uuid.UUID and stored as its
// canonical string form.
func UUID() Type { return uuidType{} }

// Array returns an array field type with the given element type. Elements
// are validated one by one; the first invalid element fails with its index
// in the issue path.
func Array(elem Type) Type { return arrayType{elem: elem} }

// Embedded returns a nested-document field type resolving its schema through
// ref. Use Ref for already-registered schemas and Deferred for references
// that must resolve lazily (mutual embedding).
func Embedded(ref SchemaRef) Type { return embeddedType{ref: ref} }

type stringType struct{}

func (stringType) Kind() Kind { return KindString }

func (stringType) Validate(v any) (any, Issues) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return nil, typeIssue("string", v)
}

func (t stringType) Serialize(v any) (any, Issues)                { return t.Validate(v) }
func (t stringType) Deserialize(v any, _ DecodeOpt) (any, Issues) { return t.Validate(v) }

type intType struct{}

func (intType) Kind() Kind { return KindInt }

func (intType) Validate(v any) (any, Issues) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	}
	return nil, typeIssue("int", v)
}

func (t intType) Serialize(v any) (any, Issues)                { return t.Validate(v) }
func (t intType) Deserialize(v any, _ DecodeOpt) (any, Issues) { return t.Validate(v) }

type floatType struct{}

func (floatType) Kind() Kind { return KindFloat }

func (floatType) Validate(v any) (any, Issues) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	}
	return nil, typeIssue("float", v)
}

func (t floatType) Serialize(v any) (any, Issues)                { return t.Validate(v) }
func (t floatType) Deserialize(v any, _ DecodeOpt) (any, Issues) { return t.Validate(v) }

type boolType struct{}

func (boolType) Kind() Kind { return KindBool }

func (boolType) Validate(v any) (any, Issues) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, typeIssue("bool", v)
}

func (t boolType) Serialize(v any) (any, Issues)                { return t.Validate(v) }
func (t boolType) Deserialize(v any, _ DecodeOpt) (any, Issues) { return t.Validate(v) }

type timeType struct{}

func (timeType) Kind() Kind { return KindTime }

func (timeType) Validate(v any) (any, Issues) {
	if t, ok := v.(time.Time); ok {
		return t, nil
	}
	return nil, typeIssue("time.Time", v)
}

func (timeType) Serialize(v any) (any, Issues) {
	if t, ok := v.(time.Time); ok {
		return t.UTC(), nil
	}
	return nil, typeIssue("time.Time", v)
}

func (timeType) Deserialize(v any, _ DecodeOpt) (any, Issues) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), nil
	case primitive.DateTime:
		return t.Time().UTC(), nil
	}
	return nil, typeIssue("time.Time", v)
}

type objectIDType struct{}

func (objectIDType) Kind() Kind { return KindObjectID }

func (objectIDType) Validate(v any) (any, Issues) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, nil
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return nil, Issues{{Path: "/", Code: CodeInvalidValue, Message: "not a valid ObjectId", Cause: err}}
		}
		return oid, nil
	}
	return nil, typeIssue("ObjectID", v)
}

func (t objectIDType) Serialize(v any) (any, Issues) { return t.Validate(v) }

func (objectIDType) Deserialize(v any, _ DecodeOpt) (any, Issues) {
	if id, ok := v.(primitive.ObjectID); ok {
		return id, nil
	}
	return nil, typeIssue("ObjectID", v)
}

type uuidType struct{}

func (uuidType) Kind() Kind { return KindUUID }

func (uuidType) Validate(v any) (any, Issues) {
	switch u := v.(type) {
	case uuid.UUID:
		return u, nil
	case string:
		id, err := uuid.Parse(u)
		if err != nil {
			return nil, Issues{{Path: "/", Code: CodeInvalidValue, Message: "not a valid UUID", Cause: err}}
		}
		return id, nil
	}
	return nil, typeIssue("UUID", v)
}

func (uuidType) Serialize(v any) (any, Issues) {
	u, iss := (uuidType{}).Validate(v)
	if iss != nil {
		return nil, iss
	}
	return u.(uuid.UUID).String(), nil
}

func (uuidType) Deserialize(v any, _ DecodeOpt) (any, Issues) {
	s, ok := v.(string)
	if !ok {
		return nil, typeIssue("UUID string", v)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, Issues{{Path: "/", Code: CodeInvalidValue, Message: "not a valid UUID", Cause: err}}
	}
	return id, nil
}

type arrayType struct{ elem Type }

func (arrayType) Kind() Kind { return KindArray }

func (a arrayType) Elem() Type { return a.elem }

func (a arrayType) Validate(v any) (any, Issues) {
	return a.each(v, func(e any) (any, Issues) { return a.elem.Validate(e) })
}

func (a arrayType) Serialize(v any) (any, Issues) {
	items, iss := a.each(v, func(e any) (any, Issues) { return a.elem.Serialize(e) })
	if iss != nil {
		return nil, iss
	}
	return bson.A(items.([]any)), nil
}

func (a arrayType) Deserialize(v any, opt DecodeOpt) (any, Issues) {
	return a.each(v, func(e any) (any, Issues) { return a.elem.Deserialize(e, opt) })
}

// each applies fn element-wise, stopping at the first invalid element and
// reporting its index in the issue path.
func (a arrayType) each(v any, fn func(any) (any, Issues)) (any, Issues) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, typeIssue("array", v)
	}
	out := make([]any, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		e, iss := fn(rv.Index(i).Interface())
		if iss != nil {
			return nil, prefixIssues(fmt.Sprintf("%d", i), iss)
		}
		out = append(out, e)
	}
	return out, nil
}

type embeddedType struct{ ref SchemaRef }

func (embeddedType) Kind() Kind { return KindDocument }

func (e embeddedType) Schema() (*Schema, error) { return e.ref.Resolve() }

func (e embeddedType) Validate(v any) (any, Issues) {
	sch, err := e.ref.Resolve()
	if err != nil {
		return nil, Issues{{Path: "/", Code: CodeInvalidValue, Message: "unresolvable embedded schema", Cause: err}}
	}
	switch d := v.(type) {
	case *Document:
		if d.schema != sch {
			return nil, Issues{{Path: "/", Code: CodeInvalidType,
				Message: fmt.Sprintf("expected document of schema %q, got %q", sch.name, d.schema.name)}}
		}
		return d, nil
	case map[string]any:
		doc := sch.New()
		for k, val := range d {
			if err := doc.Set(k, val); err != nil {
				iss, _ := AsIssues(err)
				if iss == nil {
					iss = Issues{{Path: "/" + k, Code: CodeInvalidValue, Message: err.Error(), Cause: err}}
				}
				return nil, iss
			}
		}
		return doc, nil
	}
	return nil, typeIssue("embedded document", v)
}

func (e embeddedType) Serialize(v any) (any, Issues) {
	d, iss := e.Validate(v)
	if iss != nil {
		return nil, iss
	}
	wire, err := Encode(d.(*Document))
	if err != nil {
		iss, _ := AsIssues(err)
		if iss == nil {
			iss = Issues{{Path: "/", Code: CodeInvalidValue, Message: err.Error(), Cause: err}}
		}
		return nil, iss
	}
	return wire, nil
}

func (e embeddedType) Deserialize(v any, opt DecodeOpt) (any, Issues) {
	sch, err := e.ref.Resolve()
	if err != nil {
		return nil, Issues{{Path: "/", Code: CodeInvalidValue, Message: "unresolvable embedded schema", Cause: err}}
	}
	switch v.(type) {
	case bson.D, bson.M, map[string]any:
		doc, err := Decode(sch, v, opt)
		if err != nil {
			iss, _ := AsIssues(err)
			if iss == nil {
				iss = Issues{{Path: "/", Code: CodeInvalidType, Message: err.Error(), Cause: err}}
			}
			return nil, iss
		}
		return doc, nil
	}
	return nil, typeIssue("embedded document", v)
}

// ElemType returns the element type of an array Type.
func ElemType(t Type) (Type, bool) {
	if a, ok := t.(arrayType); ok {
		return a.elem, true
	}
	return nil, false
}

// EmbeddedSchema resolves the schema of an embedded Type.
func EmbeddedSchema(t Type) (*Schema, error) {
	e, ok := t.(embeddedType)
	if !ok {
		return nil, fmt.Errorf("%w: not an embedded type", ErrValidation)
	}
	return e.Schema()
}

func typeIssue(want string, got any) Issues {
	return Issues{{Path: "/", Code: CodeInvalidType,
		Message: fmt.Sprintf("expected %s, got %T", want, got)}}
}

// FieldDescriptor is a typed accessor bound to one schema attribute. It is
// mutable only through the chained builder methods and becomes immutable once
// the owning schema is registered.
type FieldDescriptor struct {
	name       string
	typ        Type
	required   bool
	nullable   bool
	hasDefault bool
	defValue   any
	defFunc    func() any
	frozen     bool
}

// Field starts a descriptor for the named attribute with the given type.
func Field(name string, t Type) *FieldDescriptor {
	return &FieldDescriptor{name: name, typ: t}
}

// Required marks the field as required at serialization time.
func (f *FieldDescriptor) Required() *FieldDescriptor {
	f.mutable()
	f.required = true
	return f
}

// Nullable allows explicit nil values for the field.
func (f *FieldDescriptor) Nullable() *FieldDescriptor {
	f.mutable()
	f.nullable = true
	return f
}

// Default sets a static default value.
func (f *FieldDescriptor) Default(v any) *FieldDescriptor {
	f.mutable()
	f.hasDefault = true
	f.defValue = v
	f.defFunc = nil
	return f
}

// DefaultFunc sets a zero-argument default producer, evaluated each time a
// default is materialized.
func (f *FieldDescriptor) DefaultFunc(fn func() any) *FieldDescriptor {
	f.mutable()
	f.hasDefault = true
	f.defFunc = fn
	f.defValue = nil
	return f
}

func (f *FieldDescriptor) mutable() {
	if f.frozen {
		panic(fmt.Sprintf("odm: field %q belongs to a registered schema and is immutable", f.name))
	}
}

// Name returns the schema attribute name.
func (f *FieldDescriptor) Name() string { return f.name }

// Type returns the declared value type.
func (f *FieldDescriptor) Type() Type { return f.typ }

// IsRequired reports whether the field must be present when serializing.
func (f *FieldDescriptor) IsRequired() bool { return f.required }

// IsNullable reports whether explicit nil values are allowed.
func (f *FieldDescriptor) IsNullable() bool { return f.nullable }

// HasDefault reports whether a default value or producer is configured.
func (f *FieldDescriptor) HasDefault() bool { return f.hasDefault }

// DefaultValue materializes the configured default, validated through the
// field type. It fails with ErrMissingDefault when none is configured.
func (f *FieldDescriptor) DefaultValue() (any, error) {
	if !f.hasDefault {
		return nil, fmt.Errorf("%w: field %q", ErrMissingDefault, f.name)
	}
	raw := f.defValue
	if f.defFunc != nil {
		raw = f.defFunc()
	}
	if raw == nil {
		if f.nullable {
			return nil, nil
		}
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, Issues{{
			Path: "/", Code: CodeNullability, Message: "nil default on non-nullable field"}}))
	}
	v, iss := f.typ.Validate(raw)
	if iss != nil {
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, iss))
	}
	return v, nil
}

// Validate checks nullability and type conformance and returns the
// normalized in-memory value. The error wraps ErrValidation and carries
// Issues with paths rooted at the field name.
func (f *FieldDescriptor) Validate(v any) (any, error) {
	if v == nil {
		if f.nullable {
			return nil, nil
		}
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, Issues{{
			Path: "/", Code: CodeNullability, Message: "field is not nullable"}}))
	}
	out, iss := f.typ.Validate(v)
	if iss != nil {
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, iss))
	}
	return out, nil
}

// WireValue validates an operand and converts it to its wire representation.
// Query and update builders use it to reject mistyped operands before any
// document is rendered.
func (f *FieldDescriptor) WireValue(v any) (any, error) {
	if v == nil {
		if f.nullable {
			return nil, nil
		}
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, Issues{{
			Path: "/", Code: CodeNullability, Message: "field is not nullable"}}))
	}
	norm, iss := f.typ.Validate(v)
	if iss != nil {
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, iss))
	}
	wire, iss := f.typ.Serialize(norm)
	if iss != nil {
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, iss))
	}
	return wire, nil
}

// ElemWireValue validates an operand against the element type of an array
// field and converts it to wire form.
func (f *FieldDescriptor) ElemWireValue(v any) (any, error) {
	elem, ok := ElemType(f.typ)
	if !ok {
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, Issues{{
			Path: "/", Code: CodeInvalidType, Message: "field is not an array"}}))
	}
	norm, iss := elem.Validate(v)
	if iss != nil {
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, iss))
	}
	wire, iss := elem.Serialize(norm)
	if iss != nil {
		return nil, wrapIssues(ErrValidation, prefixIssues(f.name, iss))
	}
	return wire, nil
}
