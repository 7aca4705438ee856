package query

import (
	"fmt"

	odm "github.com/ramzitannous/mongo-odm"
	"go.mongodb.org/mongo-driver/bson"
)

// Update accumulates (operator, field, value) entries and renders them to
// the driver's update syntax. A field may appear under exactly one operator;
// a second operator for the same field fails with ErrConflictingUpdate.
// Builder methods mutate the receiver during construction; rendering never
// mutates.
type Update struct {
	order   []string          // operators in first-use order
	entries map[string]bson.D // operator -> field entries in add order
	owner   map[string]string // field -> operator
	err     error
}

// NewUpdate returns an empty update expression.
func NewUpdate() *Update {
	return &Update{
		entries: map[string]bson.D{},
		owner:   map[string]string{},
	}
}

func (u *Update) add(op, field string, v any) *Update {
	if u.err != nil {
		return u
	}
	if prev, taken := u.owner[field]; taken && prev != op {
		u.err = fmt.Errorf("%w: field %q under %s and %s", odm.ErrConflictingUpdate, field, prev, op)
		return u
	}
	if _, seen := u.entries[op]; !seen {
		u.order = append(u.order, op)
	}
	u.entries[op] = append(u.entries[op], bson.E{Key: field, Value: v})
	u.owner[field] = op
	return u
}

func (u *Update) fail(err error) *Update {
	if u.err == nil {
		u.err = err
	}
	return u
}

// Set assigns a new value to the field.
func (u *Update) Set(f *odm.FieldDescriptor, v any) *Update {
	w, err := f.WireValue(v)
	if err != nil {
		return u.fail(fmt.Errorf("%w: %s $set: %v", odm.ErrQueryType, f.Name(), err))
	}
	return u.add("$set", f.Name(), w)
}

// Unset removes the field from matched documents.
func (u *Update) Unset(f *odm.FieldDescriptor) *Update {
	return u.add("$unset", f.Name(), "")
}

// Inc increments a numeric field by the given delta.
func (u *Update) Inc(f *odm.FieldDescriptor, delta any) *Update {
	k := f.Type().Kind()
	if k != odm.KindInt && k != odm.KindFloat {
		return u.fail(fmt.Errorf("%w: %s $inc on non-numeric field", odm.ErrQueryType, f.Name()))
	}
	w, err := f.WireValue(delta)
	if err != nil {
		return u.fail(fmt.Errorf("%w: %s $inc: %v", odm.ErrQueryType, f.Name(), err))
	}
	return u.add("$inc", f.Name(), w)
}

// Push appends a value to an array field.
func (u *Update) Push(f *odm.FieldDescriptor, v any) *Update {
	w, err := f.ElemWireValue(v)
	if err != nil {
		return u.fail(fmt.Errorf("%w: %s $push: %v", odm.ErrQueryType, f.Name(), err))
	}
	return u.add("$push", f.Name(), w)
}

// Pull removes matching values from an array field.
func (u *Update) Pull(f *odm.FieldDescriptor, v any) *Update {
	w, err := f.ElemWireValue(v)
	if err != nil {
		return u.fail(fmt.Errorf("%w: %s $pull: %v", odm.ErrQueryType, f.Name(), err))
	}
	return u.add("$pull", f.Name(), w)
}

// CurrentDate sets a time field to the server's current date.
func (u *Update) CurrentDate(f *odm.FieldDescriptor) *Update {
	if f.Type().Kind() != odm.KindTime {
		return u.fail(fmt.Errorf("%w: %s $currentDate on non-time field", odm.ErrQueryType, f.Name()))
	}
	return u.add("$currentDate", f.Name(), true)
}

// Err reports a construction error captured during building.
func (u *Update) Err() error { return u.err }

// Render converts the expression to the driver's update syntax, operators in
// first-use order.
func (u *Update) Render() (bson.D, error) {
	if u.err != nil {
		return nil, u.err
	}
	if len(u.order) == 0 {
		return nil, fmt.Errorf("%w: empty update expression", odm.ErrQueryType)
	}
	out := make(bson.D, 0, len(u.order))
	for _, op := range u.order {
		out = append(out, bson.E{Key: op, Value: u.entries[op]})
	}
	return out, nil
}
