// Package repository stores entities in MongoDB collections behind a small
// generic capability that the HTTP layer is written against.
package repository

import (
	"context"

	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// ErrNotFound is returned when no document matches an id or filter
var ErrNotFound = mongo.ErrNoDocuments

type Store[T any] interface {
	Insert(ctx context.Context, doc *T) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*T, error)
	FindOne(ctx context.Context, filter bson.M) (*T, error)
	// Find applies q when it is not nil; a nil q returns every match in insertion order
	Find(ctx context.Context, filter bson.M, q *query.Query) ([]T, error)
	Replace(ctx context.Context, doc *T) error
	UpdateFields(ctx context.Context, id primitive.ObjectID, fields bson.M) error
	DeleteByID(ctx context.Context, id primitive.ObjectID) error
	Count(ctx context.Context, filter bson.M) (int64, error)
	// Unscoped drops the default scope, e.g. to reach inactive users or secret tours
	Unscoped() Store[T]
}

type Options struct {
	// Scope is ANDed into every read, update and delete
	Scope bson.M
	// SoftDelete names a boolean field set to false instead of removing the document
	SoftDelete string
}

// UserOptions hides deactivated accounts and never removes them
func UserOptions() Options {
	return Options{Scope: bson.M{"active": bson.M{"$ne": false}}, SoftDelete: "active"}
}

// TourOptions hides secret tours
func TourOptions() Options {
	return Options{Scope: bson.M{"secretTour": bson.M{"$ne": true}}}
}

// And joins the non-empty filters with $and
func And(parts ...bson.M) bson.M {
	nonEmpty := make(bson.A, 0, len(parts))
	var only bson.M
	for _, p := range parts {
		if len(p) > 0 {
			nonEmpty = append(nonEmpty, p)
			only = p
		}
	}
	switch len(nonEmpty) {
	case 0:
		return bson.M{}
	case 1:
		return only
	default:
		return bson.M{"$and": nonEmpty}
	}
}

// EnsureID assigns a new ObjectID to an entity that has none
func EnsureID(doc any) primitive.ObjectID {
	e, ok := doc.(models.Entity)
	if !ok {
		return primitive.NilObjectID
	}
	if e.GetID().IsZero() {
		e.SetID(primitive.NewObjectID())
	}
	return e.GetID()
}

// IDOf returns the entity id, or the nil id for other values
func IDOf(doc any) primitive.ObjectID {
	if e, ok := doc.(models.Entity); ok {
		return e.GetID()
	}
	return primitive.NilObjectID
}
