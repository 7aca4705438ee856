package manager

import (
	"context"
	"errors"

	odm "github.com/ramzitannous/mongo-odm"
	"github.com/ramzitannous/mongo-odm/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// ErrPrimaryKeyExcluded is returned when a projection tries to exclude the
// primary key.
var ErrPrimaryKeyExcluded = errors.New("manager: primary key \"_id\" cannot be excluded")

// QuerySet is a chainable, clone-on-write query bound to a manager. Chaining
// never touches the database; evaluation happens in All, First, Iter, Count
// and Delete.
type QuerySet struct {
	m          *Manager
	filter     query.Expr
	limit      *int64
	skip       *int64
	projection bson.D
	sort       bson.D
	err        error
}

func (q *QuerySet) clone() *QuerySet {
	next := *q
	next.projection = append(bson.D{}, q.projection...)
	next.sort = append(bson.D{}, q.sort...)
	return &next
}

func (q *QuerySet) fail(err error) *QuerySet {
	next := q.clone()
	if next.err == nil {
		next.err = err
	}
	return next
}

// Filter replaces the query's filter expression.
func (q *QuerySet) Filter(expr query.Expr) *QuerySet {
	next := q.clone()
	next.filter = expr
	return next
}

// Only restricts returned fields to the given names.
func (q *QuerySet) Only(fields ...string) *QuerySet {
	next := q.clone()
	for _, name := range fields {
		if _, err := q.m.schema.Field(name); err != nil {
			return q.fail(err)
		}
		next.projection = append(next.projection, bson.E{Key: name, Value: 1})
	}
	return next
}

// Exclude removes the given fields from returned documents. The primary key
// cannot be excluded.
func (q *QuerySet) Exclude(fields ...string) *QuerySet {
	next := q.clone()
	for _, name := range fields {
		if name == odm.PrimaryKey {
			return q.fail(ErrPrimaryKeyExcluded)
		}
		if _, err := q.m.schema.Field(name); err != nil {
			return q.fail(err)
		}
		next.projection = append(next.projection, bson.E{Key: name, Value: 0})
	}
	return next
}

// Limit caps the number of returned documents.
func (q *QuerySet) Limit(n int64) *QuerySet {
	next := q.clone()
	next.limit = &n
	return next
}

// Skip skips the first n matches.
func (q *QuerySet) Skip(n int64) *QuerySet {
	next := q.clone()
	next.skip = &n
	return next
}

// Sort orders results by the given field, descending when desc is set.
func (q *QuerySet) Sort(field string, desc bool) *QuerySet {
	next := q.clone()
	if _, err := q.m.schema.Field(field); err != nil {
		return q.fail(err)
	}
	dir := 1
	if desc {
		dir = -1
	}
	next.sort = append(next.sort, bson.E{Key: field, Value: dir})
	return next
}

func (q *QuerySet) options() FindOptions {
	return FindOptions{Limit: q.limit, Skip: q.skip, Projection: q.projection, Sort: q.sort}
}

// Iter evaluates the query and returns the lazy cursor.
func (q *QuerySet) Iter(ctx context.Context) (*Cursor, error) {
	if q.err != nil {
		return nil, q.err
	}
	return q.m.find(ctx, q.filter, q.options())
}

// All evaluates the query and drains the cursor.
func (q *QuerySet) All(ctx context.Context) ([]*odm.Document, error) {
	cur, err := q.Iter(ctx)
	if err != nil {
		return nil, err
	}
	return cur.All(ctx)
}

// First returns the first match, failing with ErrNotFound when there is
// none.
func (q *QuerySet) First(ctx context.Context) (*odm.Document, error) {
	if q.err != nil {
		return nil, q.err
	}
	opts := q.options()
	opts.Limit = nil
	return q.m.findOne(ctx, q.filter, opts)
}

// Count counts the matches, honoring limit and skip.
func (q *QuerySet) Count(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	filter, err := renderFilter(q.filter)
	if err != nil {
		return 0, err
	}
	return q.m.col.CountDocuments(ctx, filter, CountOptions{Limit: q.limit, Skip: q.skip})
}

// Delete removes every match and returns the deleted count.
func (q *QuerySet) Delete(ctx context.Context) (int64, error) {
	if q.err != nil {
		return 0, q.err
	}
	summary, err := q.m.DeleteMany(ctx, q.filter)
	if err != nil {
		return 0, err
	}
	return summary.Deleted, nil
}

// Debug logs the query's rendered filter and modifiers at debug level.
func (q *QuerySet) Debug() {
	filter, err := renderFilter(q.filter)
	fields := []zap.Field{
		zap.String("schema", q.m.schema.Name()),
		zap.Any("filter", filter),
		zap.Any("projection", q.projection),
	}
	if q.limit != nil {
		fields = append(fields, zap.Int64("limit", *q.limit))
	}
	if q.skip != nil {
		fields = append(fields, zap.Int64("skip", *q.skip))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	odm.Logger().Debug("queryset", fields...)
}
