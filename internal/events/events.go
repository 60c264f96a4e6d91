package events

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const SubjectBookingCreated = "bookings.created"

type BookingCreated struct {
	BookingID string    `json:"bookingId"`
	TourID    string    `json:"tourId"`
	UserID    string    `json:"userId"`
	Price     float64   `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

type Publisher interface {
	PublishBookingCreated(ctx context.Context, evt BookingCreated) error
}

type NATSPublisher struct {
	conn *nats.Conn
}

// Connect retries while the NATS server comes up
func Connect(url string, attempts int, log *zap.Logger) (*nats.Conn, error) {
	var (
		conn *nats.Conn
		err  error
	)
	for i := 0; i < attempts; i++ {
		conn, err = nats.Connect(url, nats.Name("natours-api"))
		if err == nil {
			log.Info("Connected to NATS", zap.String("url", url))
			return conn, nil
		}
		log.Warn("Waiting for NATS to be ready", zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to NATS after retries: %w", err)
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func (p *NATSPublisher) PublishBookingCreated(_ context.Context, evt BookingCreated) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectBookingCreated, data)
}

// Direct hands events to an in-process handler when no broker is configured.
// Events published before Handle is called are dropped.
type Direct struct {
	handle func(context.Context, BookingCreated) error
}

func (d *Direct) Handle(handle func(context.Context, BookingCreated) error) {
	d.handle = handle
}

func (d *Direct) PublishBookingCreated(ctx context.Context, evt BookingCreated) error {
	if d.handle == nil {
		return nil
	}
	return d.handle(ctx, evt)
}

// SubscribeBookings hands every booking event to handle
func SubscribeBookings(conn *nats.Conn, log *zap.Logger, handle func(context.Context, BookingCreated) error) (*nats.Subscription, error) {
	return conn.Subscribe(SubjectBookingCreated, func(msg *nats.Msg) {
		var evt BookingCreated
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.Warn("Failed to parse booking event", zap.Error(err))
			return
		}
		if err := handle(context.Background(), evt); err != nil {
			log.Warn("Failed to handle booking event", zap.String("booking", evt.BookingID), zap.Error(err))
		}
	})
}
