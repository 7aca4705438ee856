// Package manager binds registered schemas to database collections and
// forwards rendered filter and update documents to the external driver. It
// performs no retries and no caching; driver errors and result summaries
// pass through unchanged.
package manager

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpdateSummary mirrors the driver's matched/modified counts.
type UpdateSummary struct {
	Matched  int64
	Modified int64
	Upserted int64
}

// DeleteSummary mirrors the driver's deleted count.
type DeleteSummary struct {
	Deleted int64
}

// FindOptions narrows the driver's find options to what the manager uses.
type FindOptions struct {
	Limit      *int64
	Skip       *int64
	Projection bson.D
	Sort       bson.D
}

// CountOptions narrows the driver's count options.
type CountOptions struct {
	Limit *int64
	Skip  *int64
}

// DriverCursor is the one-shot lazy sequence of wire documents produced by a
// find. It mirrors the driver cursor contract.
type DriverCursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// Collection is the narrow slice of the external driver the manager
// consumes. WrapCollection adapts the real driver; tests substitute fakes.
type Collection interface {
	Name() string
	InsertOne(ctx context.Context, doc any) (any, error)
	InsertMany(ctx context.Context, docs []any) ([]any, error)
	Find(ctx context.Context, filter any, opts FindOptions) (DriverCursor, error)
	// FindOne returns (nil, nil) when no document matches.
	FindOne(ctx context.Context, filter any, opts FindOptions) (bson.M, error)
	UpdateOne(ctx context.Context, filter, update any) (UpdateSummary, error)
	UpdateMany(ctx context.Context, filter, update any) (UpdateSummary, error)
	DeleteOne(ctx context.Context, filter any) (DeleteSummary, error)
	DeleteMany(ctx context.Context, filter any) (DeleteSummary, error)
	CountDocuments(ctx context.Context, filter any, opts CountOptions) (int64, error)
}

type mongoCollection struct {
	col *mongo.Collection
}

// WrapCollection adapts a driver collection handle to the Collection
// interface.
func WrapCollection(col *mongo.Collection) Collection {
	return &mongoCollection{col: col}
}

func (m *mongoCollection) Name() string { return m.col.Name() }

func (m *mongoCollection) InsertOne(ctx context.Context, doc any) (any, error) {
	res, err := m.col.InsertOne(ctx, doc)
	if err != nil {
		return nil, err
	}
	return res.InsertedID, nil
}

func (m *mongoCollection) InsertMany(ctx context.Context, docs []any) ([]any, error) {
	res, err := m.col.InsertMany(ctx, docs)
	if err != nil {
		return nil, err
	}
	return res.InsertedIDs, nil
}

func (m *mongoCollection) Find(ctx context.Context, filter any, opts FindOptions) (DriverCursor, error) {
	fo := options.Find()
	if opts.Limit != nil {
		fo.SetLimit(*opts.Limit)
	}
	if opts.Skip != nil {
		fo.SetSkip(*opts.Skip)
	}
	if opts.Projection != nil {
		fo.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		fo.SetSort(opts.Sort)
	}
	return m.col.Find(ctx, filter, fo)
}

func (m *mongoCollection) FindOne(ctx context.Context, filter any, opts FindOptions) (bson.M, error) {
	fo := options.FindOne()
	if opts.Skip != nil {
		fo.SetSkip(*opts.Skip)
	}
	if opts.Projection != nil {
		fo.SetProjection(opts.Projection)
	}
	if opts.Sort != nil {
		fo.SetSort(opts.Sort)
	}
	var out bson.M
	err := m.col.FindOne(ctx, filter, fo).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *mongoCollection) UpdateOne(ctx context.Context, filter, update any) (UpdateSummary, error) {
	res, err := m.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return UpdateSummary{}, err
	}
	return updateSummary(res), nil
}

func (m *mongoCollection) UpdateMany(ctx context.Context, filter, update any) (UpdateSummary, error) {
	res, err := m.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return UpdateSummary{}, err
	}
	return updateSummary(res), nil
}

func updateSummary(res *mongo.UpdateResult) UpdateSummary {
	s := UpdateSummary{Matched: res.MatchedCount, Modified: res.ModifiedCount}
	if res.UpsertedCount > 0 {
		s.Upserted = res.UpsertedCount
	}
	return s
}

func (m *mongoCollection) DeleteOne(ctx context.Context, filter any) (DeleteSummary, error) {
	res, err := m.col.DeleteOne(ctx, filter)
	if err != nil {
		return DeleteSummary{}, err
	}
	return DeleteSummary{Deleted: res.DeletedCount}, nil
}

func (m *mongoCollection) DeleteMany(ctx context.Context, filter any) (DeleteSummary, error) {
	res, err := m.col.DeleteMany(ctx, filter)
	if err != nil {
		return DeleteSummary{}, err
	}
	return DeleteSummary{Deleted: res.DeletedCount}, nil
}

func (m *mongoCollection) CountDocuments(ctx context.Context, filter any, opts CountOptions) (int64, error) {
	co := options.Count()
	if opts.Limit != nil {
		co.SetLimit(*opts.Limit)
	}
	if opts.Skip != nil {
		co.SetSkip(*opts.Skip)
	}
	return m.col.CountDocuments(ctx, filter, co)
}
