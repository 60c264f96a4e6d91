package services

import (
	"context"
	"errors"

	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RatingSource aggregates the current reviews of a tour
type RatingSource interface {
	RatingStats(ctx context.Context, tourID primitive.ObjectID) (quantity int, average float64, err error)
}

type RatingService struct {
	tours   repository.Store[models.Tour]
	ratings RatingSource
	log     *zap.Logger
}

func NewRatingService(tours repository.Store[models.Tour], ratings RatingSource, log *zap.Logger) *RatingService {
	return &RatingService{tours: tours.Unscoped(), ratings: ratings, log: log}
}

// Recalculate rewrites a tour's aggregate from all of its reviews.
// Concurrent review writes may briefly leave an older aggregate; the next write corrects it.
func (s *RatingService) Recalculate(ctx context.Context, tourID primitive.ObjectID) error {
	quantity, average, err := s.ratings.RatingStats(ctx, tourID)
	if err != nil {
		return err
	}
	if quantity == 0 {
		average = models.DefaultRating
	}

	err = s.tours.UpdateFields(ctx, tourID, bson.M{
		"ratingsQuantity": quantity,
		"ratingsAverage":  models.RoundRating(average),
	})
	if errors.Is(err, repository.ErrNotFound) {
		s.log.Debug("Review references a missing tour", zap.String("tour", tourID.Hex()))
		return nil
	}
	return err
}
