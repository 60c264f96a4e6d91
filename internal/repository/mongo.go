package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/arzan03/natours/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Mongo[T any] struct {
	coll *mongo.Collection
	opts Options
}

func NewMongo[T any](coll *mongo.Collection, opts Options) *Mongo[T] {
	return &Mongo[T]{coll: coll, opts: opts}
}

func (m *Mongo[T]) scoped(filter bson.M) bson.M {
	return And(m.opts.Scope, filter)
}

func (m *Mongo[T]) Insert(ctx context.Context, doc *T) error {
	EnsureID(doc)
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert into %s: %w", m.coll.Name(), err)
	}
	return nil
}

func (m *Mongo[T]) FindByID(ctx context.Context, id primitive.ObjectID) (*T, error) {
	return m.FindOne(ctx, bson.M{"_id": id})
}

func (m *Mongo[T]) FindOne(ctx context.Context, filter bson.M) (*T, error) {
	var doc T
	if err := m.coll.FindOne(ctx, m.scoped(filter)).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find in %s: %w", m.coll.Name(), err)
	}
	return &doc, nil
}

func (m *Mongo[T]) Find(ctx context.Context, filter bson.M, q *query.Query) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if q != nil {
		filter = And(filter, q.Filter)
		opts.SetSort(q.Sort).SetSkip(q.Skip).SetLimit(q.Limit).SetProjection(q.Projection)
	}

	cursor, err := m.coll.Find(ctx, m.scoped(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", m.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	docs := make([]T, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.coll.Name(), err)
	}
	return docs, nil
}

func (m *Mongo[T]) Replace(ctx context.Context, doc *T) error {
	res, err := m.coll.ReplaceOne(ctx, m.scoped(bson.M{"_id": IDOf(doc)}), doc)
	if err != nil {
		return fmt.Errorf("replace in %s: %w", m.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo[T]) UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	res, err := m.coll.UpdateOne(ctx, m.scoped(bson.M{"_id": id}), bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update in %s: %w", m.coll.Name(), err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo[T]) DeleteByID(ctx context.Context, id primitive.ObjectID) error {
	if m.opts.SoftDelete != "" {
		return m.UpdateFields(ctx, id, bson.M{m.opts.SoftDelete: false})
	}

	res, err := m.coll.DeleteOne(ctx, m.scoped(bson.M{"_id": id}))
	if err != nil {
		return fmt.Errorf("delete from %s: %w", m.coll.Name(), err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo[T]) Count(ctx context.Context, filter bson.M) (int64, error) {
	return m.coll.CountDocuments(ctx, m.scoped(filter))
}

func (m *Mongo[T]) Unscoped() Store[T] {
	return &Mongo[T]{coll: m.coll, opts: Options{SoftDelete: m.opts.SoftDelete}}
}
