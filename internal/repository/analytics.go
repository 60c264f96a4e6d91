package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type TourStat struct {
	Difficulty string  `bson:"_id" json:"_id"`
	NumTours   int     `bson:"numTours" json:"numTours"`
	NumRatings int     `bson:"numRatings" json:"numRatings"`
	AvgRating  float64 `bson:"avgRating" json:"avgRating"`
	AvgPrice   float64 `bson:"avgPrice" json:"avgPrice"`
	MinPrice   float64 `bson:"minPrice" json:"minPrice"`
	MaxPrice   float64 `bson:"maxPrice" json:"maxPrice"`
}

type MonthPlan struct {
	Month         int      `bson:"month" json:"month"`
	NumTourStarts int      `bson:"numTourStarts" json:"numTourStarts"`
	Tours         []string `bson:"tours" json:"tours"`
}

type TourDistance struct {
	ID       primitive.ObjectID `bson:"_id" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Distance float64            `bson:"distance" json:"distance"`
}

var HideSecret = bson.D{{Key: "$match", Value: bson.M{"secretTour": bson.M{"$ne": true}}}}

// StatsPipeline groups well-rated tours by difficulty
func StatsPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		HideSecret,
		{{Key: "$match", Value: bson.M{"ratingsAverage": bson.M{"$gte": 4.5}}}},
		{{Key: "$group", Value: bson.M{
			"_id":        bson.M{"$toUpper": "$difficulty"},
			"numTours":   bson.M{"$sum": 1},
			"numRatings": bson.M{"$sum": "$ratingsQuantity"},
			"avgRating":  bson.M{"$avg": "$ratingsAverage"},
			"avgPrice":   bson.M{"$avg": "$price"},
			"minPrice":   bson.M{"$min": "$price"},
			"maxPrice":   bson.M{"$max": "$price"},
		}}},
		{{Key: "$sort", Value: bson.M{"avgPrice": 1}}},
	}
}

// MonthlyPlanPipeline counts tour starts per month of year, busiest month first
func MonthlyPlanPipeline(year int) mongo.Pipeline {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
	return mongo.Pipeline{
		HideSecret,
		{{Key: "$unwind", Value: "$startDates"}},
		{{Key: "$match", Value: bson.M{"startDates": bson.M{"$gte": from, "$lte": to}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           bson.M{"$month": "$startDates"},
			"numTourStarts": bson.M{"$sum": 1},
			"tours":         bson.M{"$push": "$name"},
		}}},
		{{Key: "$addFields", Value: bson.M{"month": "$_id"}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
		{{Key: "$sort", Value: bson.D{{Key: "numTourStarts", Value: -1}, {Key: "month", Value: 1}}}},
		{{Key: "$limit", Value: 12}},
	}
}

// DistancesPipeline must start with $geoNear, so the secret filter moves into its query
func DistancesPipeline(lng, lat, multiplier float64) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.M{
			"near":               bson.M{"type": "Point", "coordinates": bson.A{lng, lat}},
			"distanceField":      "distance",
			"distanceMultiplier": multiplier,
			"query":              bson.M{"secretTour": bson.M{"$ne": true}},
		}}},
		{{Key: "$project", Value: bson.M{"distance": 1, "name": 1}}},
	}
}

// WithinFilter matches tours starting inside a sphere of radius radians
func WithinFilter(lng, lat, radius float64) bson.M {
	return bson.M{"startLocation": bson.M{"$geoWithin": bson.M{
		"$centerSphere": bson.A{bson.A{lng, lat}, radius},
	}}}
}

type TourAnalytics struct {
	coll *mongo.Collection
}

func NewTourAnalytics(coll *mongo.Collection) *TourAnalytics {
	return &TourAnalytics{coll: coll}
}

func (a *TourAnalytics) Stats(ctx context.Context) ([]TourStat, error) {
	return aggregate[TourStat](ctx, a.coll, StatsPipeline())
}

func (a *TourAnalytics) MonthlyPlan(ctx context.Context, year int) ([]MonthPlan, error) {
	return aggregate[MonthPlan](ctx, a.coll, MonthlyPlanPipeline(year))
}

func (a *TourAnalytics) Distances(ctx context.Context, lng, lat, multiplier float64) ([]TourDistance, error) {
	return aggregate[TourDistance](ctx, a.coll, DistancesPipeline(lng, lat, multiplier))
}

// ReviewRatings aggregates the reviews collection per tour
type ReviewRatings struct {
	coll *mongo.Collection
}

func NewReviewRatings(coll *mongo.Collection) *ReviewRatings {
	return &ReviewRatings{coll: coll}
}

func (r *ReviewRatings) RatingStats(ctx context.Context, tourID primitive.ObjectID) (int, float64, error) {
	type result struct {
		NRating   int     `bson:"nRating"`
		AvgRating float64 `bson:"avgRating"`
	}
	res, err := aggregate[result](ctx, r.coll, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"tour": tourID}}},
		{{Key: "$group", Value: bson.M{
			"_id":       "$tour",
			"nRating":   bson.M{"$sum": 1},
			"avgRating": bson.M{"$avg": "$rating"},
		}}},
	})
	if err != nil || len(res) == 0 {
		return 0, 0, err
	}
	return res[0].NRating, res[0].AvgRating, nil
}

func aggregate[R any](ctx context.Context, coll *mongo.Collection, pipeline mongo.Pipeline) ([]R, error) {
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", coll.Name(), err)
	}
	defer cursor.Close(ctx)

	out := make([]R, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s aggregate: %w", coll.Name(), err)
	}
	return out, nil
}
