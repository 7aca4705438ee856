package odm

import (
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/bson"
)

// Encode serializes all fields in schema order into the driver's document
// representation. Absent optional fields without defaults are omitted (never
// written as null); absent defaulted fields are written with their default;
// absent required fields fail with ErrMissingRequiredField.
func Encode(d *Document) (bson.D, error) {
	return encode(d, d.schema.fields, false)
}

// EncodeDirty serializes only the dirty fields, in schema order, for partial
// update payloads.
func EncodeDirty(d *Document) (bson.D, error) {
	fields := make([]*FieldDescriptor, 0, len(d.dirty))
	for _, f := range d.schema.fields {
		if _, ok := d.dirty[f.name]; ok {
			fields = append(fields, f)
		}
	}
	return encode(d, fields, true)
}

func encode(d *Document, fields []*FieldDescriptor, partial bool) (bson.D, error) {
	out := bson.D{}
	for _, f := range fields {
		v, ok := d.values[f.name]
		switch {
		case ok && v == nil:
			out = append(out, bson.E{Key: f.name, Value: nil})
			continue
		case !ok && f.hasDefault && !partial:
			def, err := f.DefaultValue()
			if err != nil {
				return nil, err
			}
			v = def
			if v == nil {
				out = append(out, bson.E{Key: f.name, Value: nil})
				continue
			}
		case !ok && f.required && !partial:
			return nil, wrapIssues(ErrMissingRequiredField, Issues{{
				Path: "/" + f.name, Code: CodeRequired, Message: "required field is unset"}})
		case !ok:
			continue
		}
		wire, iss := f.typ.Serialize(v)
		if iss != nil {
			return nil, wrapIssues(ErrValidation, prefixIssues(f.name, iss))
		}
		out = append(out, bson.E{Key: f.name, Value: wire})
	}
	return out, nil
}

// Decode builds a document instance from a wire document (bson.M, bson.D or
// a plain map). Unknown keys follow opt.Unknown; missing defaulted fields
// are materialized from their defaults; missing required fields are
// tolerated so that projected reads still decode. Shape mismatches fail
// with ErrDeserialization, arrays failing on the first invalid element with
// its index in the issue path. Decoded values are not marked dirty.
func Decode(s *Schema, wire any, opt DecodeOpt) (*Document, error) {
	pairs, err := wirePairs(wire)
	if err != nil {
		return nil, err
	}
	d := &Document{
		schema:    s,
		values:    map[string]any{},
		dirty:     map[string]struct{}{},
		defaulted: map[string]struct{}{},
	}
	var iss Issues
	for _, p := range pairs {
		f, ok := s.index[p.Key]
		if !ok {
			if opt.Unknown == UnknownStrict {
				iss = append(iss, Issue{Path: "/" + p.Key, Code: CodeUnknownKey, Message: "key not declared on schema"})
			}
			continue
		}
		if p.Value == nil {
			if !f.nullable {
				iss = append(iss, Issue{Path: "/" + f.name, Code: CodeNullability, Message: "null on non-nullable field"})
				continue
			}
			d.values[f.name] = nil
			continue
		}
		v, fieldIss := f.typ.Deserialize(p.Value, opt)
		if fieldIss != nil {
			iss = append(iss, prefixIssues(f.name, fieldIss)...)
			continue
		}
		d.values[f.name] = v
	}
	if len(iss) > 0 {
		return nil, wrapIssues(ErrDeserialization, iss)
	}
	for _, f := range s.fields {
		if _, ok := d.values[f.name]; ok || !f.hasDefault {
			continue
		}
		def, err := f.DefaultValue()
		if err != nil {
			return nil, err
		}
		d.values[f.name] = def
		d.defaulted[f.name] = struct{}{}
	}
	return d, nil
}

func wirePairs(wire any) (bson.D, error) {
	switch w := wire.(type) {
	case bson.D:
		return w, nil
	case bson.M:
		return mapPairs(map[string]any(w)), nil
	case map[string]any:
		return mapPairs(w), nil
	}
	return nil, fmt.Errorf("%w: unsupported wire document %T", ErrDeserialization, wire)
}

// mapPairs orders map keys lexicographically so decoding stays
// deterministic; maps carry no order of their own.
func mapPairs(m map[string]any) bson.D {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(bson.D, 0, len(m))
	for _, k := range keys {
		out = append(out, bson.E{Key: k, Value: m[k]})
	}
	return out
}
