package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/events"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/payment"
	"github.com/arzan03/natours/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type BookingService struct {
	tours    repository.Store[models.Tour]
	users    repository.Store[models.User]
	bookings repository.Store[models.Booking]
	gateway  payment.Gateway
	events   events.Publisher
	mail     Mail
	log      *zap.Logger
}

func NewBookingService(
	tours repository.Store[models.Tour],
	users repository.Store[models.User],
	bookings repository.Store[models.Booking],
	gateway payment.Gateway,
	publisher events.Publisher,
	mail Mail,
	log *zap.Logger,
) *BookingService {
	return &BookingService{
		tours:    tours,
		users:    users,
		bookings: bookings,
		gateway:  gateway,
		events:   publisher,
		mail:     mail,
		log:      log,
	}
}

// CreateCheckoutSession starts a provider-hosted payment for one place on a tour
func (s *BookingService) CreateCheckoutSession(ctx context.Context, tourID primitive.ObjectID, principal *models.User, baseURL string) (*payment.Session, error) {
	tour, err := s.tours.FindByID(ctx, tourID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("No tour found with that ID")
	}
	if err != nil {
		return nil, err
	}

	return s.gateway.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		TourID:        tour.ID.Hex(),
		TourName:      tour.Name,
		Summary:       tour.Summary,
		ImageURL:      fmt.Sprintf("%s/img/tours/%s", baseURL, tour.ImageCover),
		Price:         tour.Price,
		CustomerEmail: principal.Email,
		SuccessURL:    fmt.Sprintf("%s/my-tours?alert=booking", baseURL),
		CancelURL:     fmt.Sprintf("%s/tour/%s", baseURL, tour.Slug),
	})
}

// HandleWebhook records a booking for every completed checkout; other events are acknowledged
func (s *BookingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	completed, err := s.gateway.ParseWebhook(payload, signature)
	if errors.Is(err, payment.ErrInvalidSignature) {
		return apperr.Wrap(apperr.BadRequest("Webhook error: invalid signature"), err)
	}
	if err != nil {
		return err
	}
	if completed == nil {
		return nil
	}

	tourID, err := primitive.ObjectIDFromHex(completed.TourID)
	if err != nil {
		return apperr.BadRequest("Webhook error: unknown tour " + completed.TourID)
	}
	user, err := s.users.FindOne(ctx, bson.M{"email": completed.CustomerEmail})
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.BadRequest("Webhook error: unknown customer " + completed.CustomerEmail)
	}
	if err != nil {
		return err
	}

	booking := &models.Booking{Tour: tourID, User: user.ID, Price: completed.Amount}
	booking.ApplyDefaults()
	booking.BeforeSave(true)
	if err := models.Validate(booking); err != nil {
		return err
	}
	if err := s.bookings.Insert(ctx, booking); err != nil {
		return err
	}
	s.Booked(ctx, booking)
	return nil
}

// Booked announces a stored booking; publish failures are logged only
func (s *BookingService) Booked(ctx context.Context, b *models.Booking) {
	err := s.events.PublishBookingCreated(ctx, events.BookingCreated{
		BookingID: b.ID.Hex(),
		TourID:    b.Tour.Hex(),
		UserID:    b.User.Hex(),
		Price:     b.Price,
		CreatedAt: b.CreatedAt,
	})
	if err != nil {
		s.log.Warn("Failed to publish booking event", zap.String("booking", b.ID.Hex()), zap.Error(err))
	}
}

// NotifyBooked emails the buyer a confirmation for a booking event
func (s *BookingService) NotifyBooked(ctx context.Context, evt events.BookingCreated) error {
	userID, err := primitive.ObjectIDFromHex(evt.UserID)
	if err != nil {
		return err
	}
	tourID, err := primitive.ObjectIDFromHex(evt.TourID)
	if err != nil {
		return err
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("booking %s user: %w", evt.BookingID, err)
	}
	tour, err := s.tours.Unscoped().FindByID(ctx, tourID)
	if err != nil {
		return fmt.Errorf("booking %s tour: %w", evt.BookingID, err)
	}
	return s.mail.SendBookingConfirmation(ctx, user.Email, user.Name, tour.Name, evt.Price)
}

// MyTours lists the tours the user has booked
func (s *BookingService) MyTours(ctx context.Context, principal *models.User) ([]models.Tour, error) {
	bookings, err := s.bookings.Find(ctx, bson.M{"user": principal.ID}, nil)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.Tour)
	}
	if len(ids) == 0 {
		return []models.Tour{}, nil
	}
	return s.tours.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, nil)
}
