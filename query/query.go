// Package query builds filter and update expressions from field descriptors.
// Expressions are immutable trees validated at construction and rendered to
// the driver's native document syntax on demand; misuse surfaces from Err or
// Render before any I/O happens.
package query

import (
	"fmt"

	odm "github.com/ramzitannous/mongo-odm"
	"go.mongodb.org/mongo-driver/bson"
)

// Expr is an immutable filter expression node.
type Expr interface {
	// Render converts the tree to the driver's filter syntax. Operands of
	// And/Or render in construction order.
	Render() (bson.D, error)
	// Err reports a construction error (operand type mismatch, empty
	// operand list) captured inside the node.
	Err() error
}

type cmp struct {
	field string
	op    string
	value any
	err   error
}

func (c cmp) Err() error { return c.err }

func (c cmp) Render() (bson.D, error) {
	if c.err != nil {
		return nil, c.err
	}
	return bson.D{{Key: c.field, Value: bson.D{{Key: c.op, Value: c.value}}}}, nil
}

func compare(f *odm.FieldDescriptor, op string, v any) Expr {
	w, err := f.WireValue(v)
	if err != nil {
		return cmp{err: fmt.Errorf("%w: %s %s: %v", odm.ErrQueryType, f.Name(), op, err)}
	}
	return cmp{field: f.Name(), op: op, value: w}
}

// Eq matches documents whose field equals the operand.
func Eq(f *odm.FieldDescriptor, v any) Expr { return compare(f, "$eq", v) }

// Ne matches documents whose field differs from the operand.
func Ne(f *odm.FieldDescriptor, v any) Expr { return compare(f, "$ne", v) }

// Gt matches documents whose field is greater than the operand.
func Gt(f *odm.FieldDescriptor, v any) Expr { return compare(f, "$gt", v) }

// Gte matches documents whose field is greater than or equal to the operand.
func Gte(f *odm.FieldDescriptor, v any) Expr { return compare(f, "$gte", v) }

// Lt matches documents whose field is less than the operand.
func Lt(f *odm.FieldDescriptor, v any) Expr { return compare(f, "$lt", v) }

// Lte matches documents whose field is less than or equal to the operand.
func Lte(f *odm.FieldDescriptor, v any) Expr { return compare(f, "$lte", v) }

func membership(f *odm.FieldDescriptor, op string, vs []any) Expr {
	if len(vs) == 0 {
		return cmp{err: fmt.Errorf("%w: %s %s needs at least one operand", odm.ErrQueryType, f.Name(), op)}
	}
	wire := make(bson.A, 0, len(vs))
	for _, v := range vs {
		w, err := f.WireValue(v)
		if err != nil {
			return cmp{err: fmt.Errorf("%w: %s %s: %v", odm.ErrQueryType, f.Name(), op, err)}
		}
		wire = append(wire, w)
	}
	return cmp{field: f.Name(), op: op, value: wire}
}

// In matches documents whose field equals any of the operands.
func In(f *odm.FieldDescriptor, vs ...any) Expr { return membership(f, "$in", vs) }

// Nin matches documents whose field equals none of the operands.
func Nin(f *odm.FieldDescriptor, vs ...any) Expr { return membership(f, "$nin", vs) }

// Exists matches documents by field presence.
func Exists(f *odm.FieldDescriptor, want bool) Expr {
	return cmp{field: f.Name(), op: "$exists", value: want}
}

type logical struct {
	op   string
	subs []Expr
	err  error
}

func (l logical) Err() error {
	if l.err != nil {
		return l.err
	}
	for _, s := range l.subs {
		if err := s.Err(); err != nil {
			return err
		}
	}
	return nil
}

func (l logical) Render() (bson.D, error) {
	if l.err != nil {
		return nil, l.err
	}
	rendered := make(bson.A, 0, len(l.subs))
	for _, s := range l.subs {
		doc, err := s.Render()
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, doc)
	}
	return bson.D{{Key: l.op, Value: rendered}}, nil
}

func combine(op string, subs []Expr) Expr {
	if len(subs) == 0 {
		return logical{err: fmt.Errorf("%w: %s needs at least one sub-expression", odm.ErrQueryType, op)}
	}
	return logical{op: op, subs: subs}
}

// And matches documents satisfying every sub-expression, rendered in
// construction order.
func And(subs ...Expr) Expr { return combine("$and", subs) }

// Or matches documents satisfying at least one sub-expression, rendered in
// construction order.
func Or(subs ...Expr) Expr { return combine("$or", subs) }

// Not negates a single expression. Rendered as $nor with one operand, which
// negates arbitrary sub-trees.
func Not(sub Expr) Expr { return combine("$nor", []Expr{sub}) }

// All matches every document; the empty filter.
func All() Expr { return empty{} }

type empty struct{}

func (empty) Err() error              { return nil }
func (empty) Render() (bson.D, error) { return bson.D{}, nil }
