package models

import (
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Review    string             `bson:"review" json:"review" validate:"required"`
	Rating    float64            `bson:"rating" json:"rating" validate:"gte=1,lte=5"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User      primitive.ObjectID `bson:"user" json:"user" validate:"required"`

	Author *UserSummary `bson:"-" json:"-"`
}

func (r *Review) GetID() primitive.ObjectID   { return r.ID }
func (r *Review) SetID(id primitive.ObjectID) { r.ID = id }

func (r *Review) ApplyDefaults() {
	r.Rating = DefaultRating
	r.CreatedAt = time.Now()
}

func (r Review) MarshalJSON() ([]byte, error) {
	type plain Review
	out := struct {
		plain
		User any `json:"user"`
	}{plain: plain(r), User: r.User}
	if r.Author != nil {
		out.User = UserSummary{ID: r.Author.ID, Name: r.Author.Name, Photo: r.Author.Photo}
	}
	return json.Marshal(out)
}
