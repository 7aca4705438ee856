package manager

import (
	"context"
	"errors"
	"fmt"

	odm "github.com/ramzitannous/mongo-odm"
	"github.com/ramzitannous/mongo-odm/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNotFound is returned when a single-document lookup matches nothing.
var ErrNotFound = errors.New("manager: document not found")

// Manager binds a schema to a collection handle and exposes the typed
// find/insert/update/delete surface. All I/O is delegated to the external
// driver; the manager only validates, serializes and renders.
type Manager struct {
	schema *odm.Schema
	col    Collection
	opt    odm.DecodeOpt
}

// New binds a schema to a collection handle.
func New(schema *odm.Schema, col Collection) *Manager {
	return &Manager{schema: schema, col: col}
}

// For builds a manager from the package-level configuration, binding the
// schema's collection name on the configured database.
func For(schema *odm.Schema) (*Manager, error) {
	db, err := odm.Database()
	if err != nil {
		return nil, err
	}
	return New(schema, WrapCollection(db.Collection(schema.Collection()))), nil
}

// WithDecodeOpt returns a manager that deserializes results with the given
// options (strict unknown-key handling, for example).
func (m *Manager) WithDecodeOpt(opt odm.DecodeOpt) *Manager {
	return &Manager{schema: m.schema, col: m.col, opt: opt}
}

// Schema returns the bound schema.
func (m *Manager) Schema() *odm.Schema { return m.schema }

// Insert validates and serializes the document, forwards it to the driver
// and assigns the driver-generated identifier back onto the instance. The
// dirty set is cleared on acknowledgment.
func (m *Manager) Insert(ctx context.Context, doc *odm.Document) (any, error) {
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	wire, err := odm.Encode(doc)
	if err != nil {
		return nil, err
	}
	id, err := m.col.InsertOne(ctx, wire)
	if err != nil {
		return nil, err
	}
	if oid, ok := id.(primitive.ObjectID); ok {
		doc.SetID(oid)
	}
	doc.ClearDirty()
	return id, nil
}

// InsertMany serializes all documents before touching the driver,
// aggregating per-document failures; nothing is inserted when any document
// is invalid. Driver-assigned identifiers are set back in order.
func (m *Manager) InsertMany(ctx context.Context, docs []*odm.Document) ([]any, error) {
	wires := make([]any, 0, len(docs))
	var verr error
	for i, doc := range docs {
		if err := doc.Validate(); err != nil {
			verr = multierr.Append(verr, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		wire, err := odm.Encode(doc)
		if err != nil {
			verr = multierr.Append(verr, fmt.Errorf("document %d: %w", i, err))
			continue
		}
		wires = append(wires, wire)
	}
	if verr != nil {
		return nil, verr
	}
	ids, err := m.col.InsertMany(ctx, wires)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if i >= len(docs) {
			break
		}
		if oid, ok := id.(primitive.ObjectID); ok {
			docs[i].SetID(oid)
		}
		docs[i].ClearDirty()
	}
	return ids, nil
}

// Find renders the filter and returns a lazy one-shot cursor of document
// instances. A nil expression matches everything.
func (m *Manager) Find(ctx context.Context, expr query.Expr) (*Cursor, error) {
	return m.find(ctx, expr, FindOptions{})
}

func (m *Manager) find(ctx context.Context, expr query.Expr, opts FindOptions) (*Cursor, error) {
	filter, err := renderFilter(expr)
	if err != nil {
		return nil, err
	}
	dc, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	return newCursor(m.schema, dc, m.opt), nil
}

// FindOne renders the filter and deserializes the first match, failing with
// ErrNotFound when nothing matches.
func (m *Manager) FindOne(ctx context.Context, expr query.Expr) (*odm.Document, error) {
	return m.findOne(ctx, expr, FindOptions{})
}

func (m *Manager) findOne(ctx context.Context, expr query.Expr, opts FindOptions) (*odm.Document, error) {
	filter, err := renderFilter(expr)
	if err != nil {
		return nil, err
	}
	wire, err := m.col.FindOne(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	if wire == nil {
		return nil, ErrNotFound
	}
	return odm.Decode(m.schema, wire, m.opt)
}

// Get looks a document up by its identifier.
func (m *Manager) Get(ctx context.Context, id primitive.ObjectID) (*odm.Document, error) {
	return m.FindOne(ctx, query.Eq(m.schema.MustField(odm.PrimaryKey), id))
}

// UpdateOne renders both expressions and forwards them; the driver's
// matched/modified counts pass through unchanged.
func (m *Manager) UpdateOne(ctx context.Context, expr query.Expr, upd *query.Update) (UpdateSummary, error) {
	filter, update, err := renderUpdate(expr, upd)
	if err != nil {
		return UpdateSummary{}, err
	}
	return m.col.UpdateOne(ctx, filter, update)
}

// UpdateMany is UpdateOne across all matches.
func (m *Manager) UpdateMany(ctx context.Context, expr query.Expr, upd *query.Update) (UpdateSummary, error) {
	filter, update, err := renderUpdate(expr, upd)
	if err != nil {
		return UpdateSummary{}, err
	}
	return m.col.UpdateMany(ctx, filter, update)
}

// DeleteOne renders the filter and deletes the first match.
func (m *Manager) DeleteOne(ctx context.Context, expr query.Expr) (DeleteSummary, error) {
	filter, err := renderFilter(expr)
	if err != nil {
		return DeleteSummary{}, err
	}
	return m.col.DeleteOne(ctx, filter)
}

// DeleteMany renders the filter and deletes all matches.
func (m *Manager) DeleteMany(ctx context.Context, expr query.Expr) (DeleteSummary, error) {
	filter, err := renderFilter(expr)
	if err != nil {
		return DeleteSummary{}, err
	}
	return m.col.DeleteMany(ctx, filter)
}

// Count counts the documents matching the filter.
func (m *Manager) Count(ctx context.Context, expr query.Expr) (int64, error) {
	filter, err := renderFilter(expr)
	if err != nil {
		return 0, err
	}
	return m.col.CountDocuments(ctx, filter, CountOptions{})
}

// Save persists the instance: documents without an identifier are inserted
// whole; documents with one get a partial $set/$unset of their dirty fields.
// The dirty set is cleared once the driver acknowledges.
func (m *Manager) Save(ctx context.Context, doc *odm.Document) error {
	id, ok := doc.ID()
	if !ok {
		_, err := m.Insert(ctx, doc)
		return err
	}
	dirty := doc.DirtyFields()
	if len(dirty) == 0 {
		return nil
	}
	set, err := odm.EncodeDirty(doc)
	if err != nil {
		return err
	}
	update := bson.D{}
	if len(set) > 0 {
		update = append(update, bson.E{Key: "$set", Value: set})
	}
	if unset := unsetFields(doc, dirty); len(unset) > 0 {
		update = append(update, bson.E{Key: "$unset", Value: unset})
	}
	if len(update) == 0 {
		return nil
	}
	summary, err := m.col.UpdateOne(ctx, bson.D{{Key: odm.PrimaryKey, Value: id}}, update)
	if err != nil {
		return err
	}
	if summary.Matched == 0 {
		return ErrNotFound
	}
	odm.Logger().Debug("document saved",
		zap.String("schema", m.schema.Name()),
		zap.String("collection", m.col.Name()),
		zap.Strings("fields", dirty))
	doc.ClearDirty()
	return nil
}

// unsetFields lists dirty fields that no longer hold a value.
func unsetFields(doc *odm.Document, dirty []string) bson.D {
	out := bson.D{}
	for _, name := range dirty {
		if !doc.Has(name) {
			out = append(out, bson.E{Key: name, Value: ""})
		}
	}
	return out
}

// Query starts a chainable query bound to this manager.
func (m *Manager) Query() *QuerySet {
	return &QuerySet{m: m}
}

func renderFilter(expr query.Expr) (bson.D, error) {
	if expr == nil {
		return bson.D{}, nil
	}
	return expr.Render()
}

func renderUpdate(expr query.Expr, upd *query.Update) (bson.D, bson.D, error) {
	filter, err := renderFilter(expr)
	if err != nil {
		return nil, nil, err
	}
	if upd == nil {
		return nil, nil, fmt.Errorf("%w: nil update expression", odm.ErrQueryType)
	}
	update, err := upd.Render()
	if err != nil {
		return nil, nil, err
	}
	return filter, update, nil
}
