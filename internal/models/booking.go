package models

import (
	"time"

	"github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Booking struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Tour      primitive.ObjectID `bson:"tour" json:"tour" validate:"required"`
	User      primitive.ObjectID `bson:"user" json:"user" validate:"required"`
	Price     float64            `bson:"price" json:"price" validate:"required,gt=0"`
	Paid      bool               `bson:"paid" json:"paid"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`

	TourName string       `bson:"-" json:"-"`
	Buyer    *UserSummary `bson:"-" json:"-"`
}

func (b *Booking) GetID() primitive.ObjectID   { return b.ID }
func (b *Booking) SetID(id primitive.ObjectID) { b.ID = id }

func (b *Booking) ApplyDefaults() {
	b.Paid = true
}

func (b *Booking) BeforeSave(isNew bool) {
	now := time.Now()
	if isNew || b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func (b Booking) MarshalJSON() ([]byte, error) {
	type plain Booking
	out := struct {
		plain
		Tour any `json:"tour"`
		User any `json:"user"`
	}{plain: plain(b), Tour: b.Tour, User: b.User}
	if b.TourName != "" {
		out.Tour = map[string]any{"id": b.Tour, "name": b.TourName}
	}
	if b.Buyer != nil {
		out.User = b.Buyer
	}
	return json.Marshal(out)
}
