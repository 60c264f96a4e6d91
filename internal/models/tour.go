package models

import (
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gosimple/slug"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"

	// DefaultRating is the neutral average used before a tour has any reviews
	DefaultRating = 4.5
)

// GeoPoint is a GeoJSON point; coordinates are [lng, lat]
type GeoPoint struct {
	Type        string    `bson:"type" json:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates" validate:"omitempty,len=2"`
	Address     string    `bson:"address,omitempty" json:"address,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
}

// Location is a waypoint owned by its tour
type Location struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Type        string             `bson:"type" json:"type" validate:"omitempty,eq=Point"`
	Coordinates []float64          `bson:"coordinates" json:"coordinates" validate:"omitempty,len=2"`
	Address     string             `bson:"address,omitempty" json:"address,omitempty"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Day         int                `bson:"day,omitempty" json:"day,omitempty"`
}

type Tour struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty" json:"id,omitempty"`
	Name            string               `bson:"name" json:"name" validate:"required,min=10,max=40"`
	Slug            string               `bson:"slug" json:"slug"`
	Duration        int                  `bson:"duration" json:"duration" validate:"required"`
	MaxGroupSize    int                  `bson:"maxGroupSize" json:"maxGroupSize" validate:"required"`
	Difficulty      string               `bson:"difficulty" json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64              `bson:"ratingsAverage" json:"ratingsAverage" validate:"gte=1,lte=5"`
	RatingsQuantity int                  `bson:"ratingsQuantity" json:"ratingsQuantity"`
	Price           float64              `bson:"price" json:"price" validate:"required"`
	PriceDiscount   *float64             `bson:"priceDiscount,omitempty" json:"priceDiscount,omitempty"`
	Summary         string               `bson:"summary" json:"summary" validate:"required"`
	Description     string               `bson:"description,omitempty" json:"description,omitempty"`
	ImageCover      string               `bson:"imageCover" json:"imageCover" validate:"required"`
	Images          []string             `bson:"images" json:"images"`
	CreatedAt       time.Time            `bson:"createdAt" json:"createdAt"`
	StartDates      []time.Time          `bson:"startDates" json:"startDates"`
	SecretTour      bool                 `bson:"secretTour" json:"secretTour"`
	StartLocation   *GeoPoint            `bson:"startLocation,omitempty" json:"startLocation,omitempty"`
	Locations       []Location           `bson:"locations" json:"locations" validate:"dive"`
	Guides          []primitive.ObjectID `bson:"guides" json:"guides"`

	// populated on read, never stored
	GuideDetails []UserSummary `bson:"-" json:"-"`
	Reviews      []Review      `bson:"-" json:"-"`
}

func (t *Tour) GetID() primitive.ObjectID   { return t.ID }
func (t *Tour) SetID(id primitive.ObjectID) { t.ID = id }

func (t *Tour) ApplyDefaults() {
	t.RatingsAverage = DefaultRating
	t.CreatedAt = time.Now()
}

// BeforeSave derives the slug from the current name and normalises stored values
func (t *Tour) BeforeSave(bool) {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.Slug = slug.Make(t.Name)
	t.RatingsAverage = RoundRating(t.RatingsAverage)
	if t.StartLocation != nil && t.StartLocation.Type == "" {
		t.StartLocation.Type = "Point"
	}
	for i := range t.Locations {
		if t.Locations[i].Type == "" {
			t.Locations[i].Type = "Point"
		}
		if t.Locations[i].ID.IsZero() {
			t.Locations[i].ID = primitive.NewObjectID()
		}
	}
}

// DurationWeeks is derived, not stored
func (t *Tour) DurationWeeks() float64 {
	return float64(t.Duration) / 7
}

func (t Tour) MarshalJSON() ([]byte, error) {
	type plain Tour
	out := struct {
		plain
		Guides        any      `json:"guides"`
		Reviews       []Review `json:"reviews,omitempty"`
		DurationWeeks float64  `json:"durationWeeks"`
	}{
		plain:         plain(t),
		Guides:        t.Guides,
		Reviews:       t.Reviews,
		DurationWeeks: t.DurationWeeks(),
	}
	if t.GuideDetails != nil {
		out.Guides = t.GuideDetails
	}
	return json.Marshal(out)
}

// RoundRating keeps one decimal, e.g. 4.666 becomes 4.7
func RoundRating(v float64) float64 {
	return math.Round(v*10) / 10
}

func tourLevel(sl validator.StructLevel) {
	t := sl.Current().Interface().(Tour)
	if t.PriceDiscount != nil && *t.PriceDiscount >= t.Price {
		sl.ReportError(t.PriceDiscount, "priceDiscount", "PriceDiscount", "discount", "")
	}
}
