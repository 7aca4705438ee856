package manager_test

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	odm "github.com/ramzitannous/mongo-odm"
	"github.com/ramzitannous/mongo-odm/manager"
)

// fakeCursor yields canned wire documents, mirroring the one-shot driver
// cursor contract.
type fakeCursor struct {
	docs   []bson.M
	pos    int
	err    error
	closed bool
}

func (c *fakeCursor) Next(ctx context.Context) bool {
	if c.closed || c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(val any) error {
	out, ok := val.(*bson.M)
	if !ok {
		panic("fakeCursor: expected *bson.M")
	}
	*out = c.docs[c.pos-1]
	return nil
}

func (c *fakeCursor) Err() error { return c.err }

func (c *fakeCursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

// fakeCollection records forwarded calls and returns canned results.
type fakeCollection struct {
	name string

	insertedDocs []any
	insertErr    error

	findDocs   []bson.M
	lastFilter any
	lastOpts   manager.FindOptions
	lastUpdate any

	updateSummary manager.UpdateSummary
	deleteSummary manager.DeleteSummary
	countResult   int64
	driverErr     error
	cursor        *fakeCursor
}

func (f *fakeCollection) Name() string { return f.name }

func (f *fakeCollection) InsertOne(ctx context.Context, doc any) (any, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.insertedDocs = append(f.insertedDocs, doc)
	return primitive.NewObjectID(), nil
}

func (f *fakeCollection) InsertMany(ctx context.Context, docs []any) ([]any, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	ids := make([]any, 0, len(docs))
	for _, d := range docs {
		f.insertedDocs = append(f.insertedDocs, d)
		ids = append(ids, primitive.NewObjectID())
	}
	return ids, nil
}

func (f *fakeCollection) Find(ctx context.Context, filter any, opts manager.FindOptions) (manager.DriverCursor, error) {
	if f.driverErr != nil {
		return nil, f.driverErr
	}
	f.lastFilter = filter
	f.lastOpts = opts
	f.cursor = &fakeCursor{docs: f.findDocs}
	return f.cursor, nil
}

func (f *fakeCollection) FindOne(ctx context.Context, filter any, opts manager.FindOptions) (bson.M, error) {
	if f.driverErr != nil {
		return nil, f.driverErr
	}
	f.lastFilter = filter
	f.lastOpts = opts
	if len(f.findDocs) == 0 {
		return nil, nil
	}
	return f.findDocs[0], nil
}

func (f *fakeCollection) UpdateOne(ctx context.Context, filter, update any) (manager.UpdateSummary, error) {
	if f.driverErr != nil {
		return manager.UpdateSummary{}, f.driverErr
	}
	f.lastFilter = filter
	f.lastUpdate = update
	return f.updateSummary, nil
}

func (f *fakeCollection) UpdateMany(ctx context.Context, filter, update any) (manager.UpdateSummary, error) {
	return f.UpdateOne(ctx, filter, update)
}

func (f *fakeCollection) DeleteOne(ctx context.Context, filter any) (manager.DeleteSummary, error) {
	if f.driverErr != nil {
		return manager.DeleteSummary{}, f.driverErr
	}
	f.lastFilter = filter
	return f.deleteSummary, nil
}

func (f *fakeCollection) DeleteMany(ctx context.Context, filter any) (manager.DeleteSummary, error) {
	return f.DeleteOne(ctx, filter)
}

func (f *fakeCollection) CountDocuments(ctx context.Context, filter any, opts manager.CountOptions) (int64, error) {
	if f.driverErr != nil {
		return 0, f.driverErr
	}
	f.lastFilter = filter
	return f.countResult, nil
}

func newTestManager(t *testing.T) (*manager.Manager, *fakeCollection, *odm.Schema) {
	t.Helper()
	sch := odm.NewRegistry().MustRegister("User",
		odm.Field("name", odm.String()).Required(),
		odm.Field("age", odm.Int()).Default(int64(0)),
	)
	col := &fakeCollection{name: sch.Collection()}
	return manager.New(sch, col), col, sch
}
