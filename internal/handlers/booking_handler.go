package handlers

import (
	"context"

	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/repository"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the payment provider's webhook signature
const SignatureHeader = "Stripe-Signature"

type BookingHandler struct {
	*Factory[models.Booking, *models.Booking]
	bookings  *services.BookingService
	publicURL string
}

func NewBookingHandler(store repository.Store[models.Booking], bookings *services.BookingService, populate *services.Populator, publicURL string) *BookingHandler {
	return &BookingHandler{
		Factory: NewFactory[models.Booking](store, query.Bookings, Hooks[models.Booking]{
			AfterWrite: func(ctx context.Context, previous, current *models.Booking) error {
				if previous == nil && current != nil {
					bookings.Booked(ctx, current)
				}
				return nil
			},
			PopulateOne: func(ctx context.Context, b *models.Booking) error {
				single := []models.Booking{*b}
				if err := populate.BookingRefs(ctx, single); err != nil {
					return err
				}
				*b = single[0]
				return nil
			},
			PopulateMany: populate.BookingRefs,
		}),
		bookings:  bookings,
		publicURL: publicURL,
	}
}

func (h *BookingHandler) GetCheckoutSession(c *fiber.Ctx) error {
	tourID, err := paramID(c, "tourId")
	if err != nil {
		return err
	}
	base := h.publicURL
	if base == "" {
		base = baseURL(c)
	}

	session, err := h.bookings.CreateCheckoutSession(c.UserContext(), tourID, middleware.CurrentUser(c), base)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "session": session})
}

func (h *BookingHandler) GetMyTours(c *fiber.Ctx) error {
	tours, err := h.bookings.MyTours(c.UserContext(), middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return sendList(c, len(tours), tours)
}

// WebhookCheckout verifies the raw body against the signature header before parsing it
func (h *BookingHandler) WebhookCheckout(c *fiber.Ctx) error {
	payload := append([]byte(nil), c.Body()...)
	if err := h.bookings.HandleWebhook(c.UserContext(), payload, c.Get(SignatureHeader)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"received": true})
}
