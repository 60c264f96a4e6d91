package payment

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/arzan03/natours/internal/config"
	"github.com/goccy/go-json"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrInvalidSignature = errors.New("invalid webhook signature")

type CheckoutRequest struct {
	TourID        string
	TourName      string
	Summary       string
	ImageURL      string
	Price         float64
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CompletedCheckout carries what a booking needs from a paid session
type CompletedCheckout struct {
	SessionID     string
	TourID        string
	CustomerEmail string
	Amount        float64
}

type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	// ParseWebhook returns nil, nil for events other than a completed checkout
	ParseWebhook(payload []byte, signature string) (*CompletedCheckout, error)
}

type Stripe struct {
	api           *client.API
	webhookSecret string
	currency      string
}

func NewStripe(cfg config.PaymentConfig) *Stripe {
	return &Stripe{
		api:           client.New(cfg.StripeSecretKey, nil),
		webhookSecret: cfg.StripeWebhookSecret,
		currency:      cfg.Currency,
	}
}

func (s *Stripe) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		CustomerEmail:      stripe.String(req.CustomerEmail),
		ClientReferenceID:  stripe.String(req.TourID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(s.currency),
				UnitAmount: stripe.Int64(int64(math.Round(req.Price * 100))),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(req.TourName + " Tour"),
					Description: stripe.String(req.Summary),
					Images:      stripe.StringSlice([]string{req.ImageURL}),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &Session{ID: sess.ID, URL: sess.URL}, nil
}

func (s *Stripe) ParseWebhook(payload []byte, signature string) (*CompletedCheckout, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return nil, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	email := sess.CustomerEmail
	if email == "" && sess.CustomerDetails != nil {
		email = sess.CustomerDetails.Email
	}
	return &CompletedCheckout{
		SessionID:     sess.ID,
		TourID:        sess.ClientReferenceID,
		CustomerEmail: email,
		Amount:        float64(sess.AmountTotal) / 100,
	}, nil
}
