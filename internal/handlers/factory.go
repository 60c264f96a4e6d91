package handlers

import (
	"context"
	"errors"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Entity is satisfied by the pointer type of every stored model
type Entity[T any] interface {
	*T
	models.Entity
}

// Hooks customise the generic handlers for one collection
type Hooks[T any] struct {
	// Prepare runs after the body is applied and before BeforeSave and validation
	Prepare func(c *fiber.Ctx, doc *T, isNew bool) error
	// AfterWrite runs once a write is stored; previous is nil on create, current is nil on delete
	AfterWrite func(ctx context.Context, previous, current *T) error
	// PopulateOne and PopulateMany resolve references before responding
	PopulateOne  func(ctx context.Context, doc *T) error
	PopulateMany func(ctx context.Context, docs []T) error
	// Conflict replaces the generic duplicate-key message
	Conflict string
	// ParentParam scopes list reads to a route parameter, e.g. tourId -> tour
	ParentParam string
	ParentField string
}

// Factory builds the CRUD handlers shared by every collection
type Factory[T any, PT Entity[T]] struct {
	store repository.Store[T]
	spec  query.Spec
	hooks Hooks[T]
}

func NewFactory[T any, PT Entity[T]](store repository.Store[T], spec query.Spec, hooks Hooks[T]) *Factory[T, PT] {
	return &Factory[T, PT]{store: store, spec: spec, hooks: hooks}
}

func (f *Factory[T, PT]) GetAll(c *fiber.Ctx) error {
	ctx := c.UserContext()
	q, err := query.Build(queryValues(c), f.spec)
	if err != nil {
		return err
	}

	filter := bson.M{}
	if f.hooks.ParentParam != "" && c.Params(f.hooks.ParentParam) != "" {
		parent, err := paramID(c, f.hooks.ParentParam)
		if err != nil {
			return err
		}
		filter[f.hooks.ParentField] = parent
	}

	docs, err := f.store.Find(ctx, filter, q)
	if err != nil {
		return err
	}
	if f.hooks.PopulateMany != nil {
		if err := f.hooks.PopulateMany(ctx, docs); err != nil {
			return err
		}
	}
	if len(q.Fields) == 0 && len(q.Exclude) == 0 {
		return sendList(c, len(docs), docs)
	}

	projected, err := project(docs, q)
	if err != nil {
		return err
	}
	return sendList(c, len(projected), projected)
}

func (f *Factory[T, PT]) GetOne(c *fiber.Ctx) error {
	ctx := c.UserContext()
	doc, err := f.load(c)
	if err != nil {
		return err
	}
	if f.hooks.PopulateOne != nil {
		if err := f.hooks.PopulateOne(ctx, doc); err != nil {
			return err
		}
	}
	return sendData(c, fiber.StatusOK, "data", doc)
}

func (f *Factory[T, PT]) CreateOne(c *fiber.Ctx) error {
	ctx := c.UserContext()
	doc := new(T)
	if d, ok := any(doc).(models.Defaulter); ok {
		d.ApplyDefaults()
	}
	if err := decodeBody(c, doc); err != nil {
		return err
	}
	PT(doc).SetID(primitive.NilObjectID)

	if err := f.save(c, doc, true); err != nil {
		return err
	}
	if err := f.store.Insert(ctx, doc); err != nil {
		return f.conflict(err)
	}
	if err := f.afterWrite(ctx, nil, doc); err != nil {
		return err
	}
	return sendData(c, fiber.StatusCreated, "data", doc)
}

func (f *Factory[T, PT]) UpdateOne(c *fiber.Ctx) error {
	ctx := c.UserContext()
	doc, err := f.load(c)
	if err != nil {
		return err
	}
	previous := *doc
	id := PT(doc).GetID()

	if err := decodeBody(c, doc); err != nil {
		return err
	}
	PT(doc).SetID(id)

	if err := f.save(c, doc, false); err != nil {
		return err
	}
	if err := f.store.Replace(ctx, doc); err != nil {
		return f.conflict(err)
	}
	if err := f.afterWrite(ctx, &previous, doc); err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "data", doc)
}

func (f *Factory[T, PT]) DeleteOne(c *fiber.Ctx) error {
	ctx := c.UserContext()
	doc, err := f.load(c)
	if err != nil {
		return err
	}
	if err := f.store.DeleteByID(ctx, PT(doc).GetID()); err != nil {
		return err
	}
	if err := f.afterWrite(ctx, doc, nil); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (f *Factory[T, PT]) load(c *fiber.Ctx) (*T, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	doc, err := f.store.FindByID(c.UserContext(), id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("No document found with that ID")
	}
	return doc, err
}

func (f *Factory[T, PT]) save(c *fiber.Ctx, doc *T, isNew bool) error {
	if f.hooks.Prepare != nil {
		if err := f.hooks.Prepare(c, doc, isNew); err != nil {
			return err
		}
	}
	if b, ok := any(doc).(models.BeforeSaver); ok {
		b.BeforeSave(isNew)
	}
	return models.Validate(doc)
}

func (f *Factory[T, PT]) afterWrite(ctx context.Context, previous, current *T) error {
	if f.hooks.AfterWrite == nil {
		return nil
	}
	return f.hooks.AfterWrite(ctx, previous, current)
}

func (f *Factory[T, PT]) conflict(err error) error {
	if f.hooks.Conflict == "" {
		return err
	}
	if ae := apperr.Normalize(err); ae.Code == apperr.CodeConflict {
		return apperr.Wrap(apperr.Conflict(f.hooks.Conflict), err)
	}
	return err
}

// project re-encodes docs and applies the field selection of q
func project[T any](docs []T, q *query.Query) ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(docs))
	for i := range docs {
		raw, err := json.Marshal(docs[i])
		if err != nil {
			return nil, err
		}
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if len(q.Fields) > 0 {
			m = query.Project(m, q.Fields)
		} else {
			m = query.Omit(m, q.Exclude)
		}
		out = append(out, m)
	}
	return out, nil
}
