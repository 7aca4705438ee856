package manager

import (
	"context"

	odm "github.com/ramzitannous/mongo-odm"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/multierr"
)

// Cursor is a one-shot lazy sequence of document instances built over the
// driver cursor. Each wire document is deserialized as the sequence is
// consumed; it is not restartable.
type Cursor struct {
	schema  *odm.Schema
	dc      DriverCursor
	opt     odm.DecodeOpt
	current *odm.Document
	err     error
	closed  bool
}

func newCursor(schema *odm.Schema, dc DriverCursor, opt odm.DecodeOpt) *Cursor {
	return &Cursor{schema: schema, dc: dc, opt: opt}
}

// Next advances to the next document, deserializing it. It returns false at
// the end of the sequence or on error; check Err afterwards.
func (c *Cursor) Next(ctx context.Context) bool {
	if c.err != nil || c.closed {
		return false
	}
	if !c.dc.Next(ctx) {
		c.err = c.dc.Err()
		return false
	}
	var wire bson.M
	if err := c.dc.Decode(&wire); err != nil {
		c.err = err
		return false
	}
	doc, err := odm.Decode(c.schema, wire, c.opt)
	if err != nil {
		c.err = err
		return false
	}
	c.current = doc
	return true
}

// Document returns the instance produced by the last successful Next.
func (c *Cursor) Document() *odm.Document { return c.current }

// Err returns the first driver or deserialization error encountered.
func (c *Cursor) Err() error { return c.err }

// Close releases the underlying driver cursor. Safe to call more than once.
func (c *Cursor) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.dc.Close(ctx)
}

// All drains the remainder of the sequence and closes the cursor.
func (c *Cursor) All(ctx context.Context) ([]*odm.Document, error) {
	out := []*odm.Document{}
	for c.Next(ctx) {
		out = append(out, c.Document())
	}
	err := multierr.Append(c.Err(), c.Close(ctx))
	if err != nil {
		return nil, err
	}
	return out, nil
}
