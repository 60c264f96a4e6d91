package handlers

import (
	"context"

	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/repository"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReviewHandler struct {
	*Factory[models.Review, *models.Review]
	ratings *services.RatingService
}

func NewReviewHandler(store repository.Store[models.Review], ratings *services.RatingService, populate *services.Populator) *ReviewHandler {
	h := &ReviewHandler{ratings: ratings}
	h.Factory = NewFactory[models.Review](store, query.Reviews, Hooks[models.Review]{
		Prepare:    setTourUserIDs,
		AfterWrite: h.recalculate,
		PopulateOne: func(ctx context.Context, r *models.Review) error {
			single := []models.Review{*r}
			if err := populate.ReviewAuthors(ctx, single); err != nil {
				return err
			}
			*r = single[0]
			return nil
		},
		PopulateMany: populate.ReviewAuthors,
		Conflict:     "You have already reviewed this tour",
		ParentParam:  "tourId",
		ParentField:  "tour",
	})
	return h
}

// setTourUserIDs fills a new review's tour from the nested route and its author from the principal
func setTourUserIDs(c *fiber.Ctx, r *models.Review, isNew bool) error {
	if !isNew {
		return nil
	}
	if r.Tour.IsZero() && c.Params("tourId") != "" {
		id, err := paramID(c, "tourId")
		if err != nil {
			return err
		}
		r.Tour = id
	}
	if r.User.IsZero() {
		if user := middleware.CurrentUser(c); user != nil {
			r.User = user.ID
		}
	}
	return nil
}

// recalculate refreshes the rating of every tour the write touched
func (h *ReviewHandler) recalculate(ctx context.Context, previous, current *models.Review) error {
	var tours []primitive.ObjectID
	if previous != nil {
		tours = append(tours, previous.Tour)
	}
	if current != nil && (previous == nil || current.Tour != previous.Tour) {
		tours = append(tours, current.Tour)
	}
	for _, id := range tours {
		if err := h.ratings.Recalculate(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
