package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/events"
	"github.com/arzan03/natours/internal/mailer"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/payment"
	"github.com/arzan03/natours/internal/repository"
	"github.com/arzan03/natours/internal/repository/memstore"
	"github.com/arzan03/natours/internal/storage"
	"github.com/arzan03/natours/internal/utils"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type outbox struct {
	mu   sync.Mutex
	msgs []mailer.Message
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) last() mailer.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.msgs[len(o.msgs)-1]
}

type fakeGateway struct {
	requests  []payment.CheckoutRequest
	completed *payment.CompletedCheckout
	err       error
}

func (g *fakeGateway) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	g.requests = append(g.requests, req)
	return &payment.Session{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/pay/cs_test_1"}, nil
}

func (g *fakeGateway) ParseWebhook([]byte, string) (*payment.CompletedCheckout, error) {
	return g.completed, g.err
}

type publisher struct {
	events []events.BookingCreated
}

func (p *publisher) PublishBookingCreated(_ context.Context, evt events.BookingCreated) error {
	p.events = append(p.events, evt)
	return nil
}

type env struct {
	users    *memstore.Memory[models.User]
	tours    *memstore.Memory[models.Tour]
	reviews  *memstore.Memory[models.Review]
	bookings *memstore.Memory[models.Booking]
	outbox   *outbox
	pool     *utils.WorkerPool
	auth     *AuthService
	gateway  *fakeGateway
	events   *publisher
	booking  *BookingService
	ratings  *RatingService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log := zap.NewNop()
	e := &env{
		users:    memstore.New[models.User]("users", repository.UserOptions(), []string{"email"}),
		tours:    memstore.New[models.Tour]("tours", repository.TourOptions(), []string{"name"}),
		reviews:  memstore.New[models.Review]("reviews", repository.Options{}, []string{"tour", "user"}),
		bookings: memstore.New[models.Booking]("bookings", repository.Options{}),
		outbox:   &outbox{},
		pool:     utils.NewWorkerPool(2, log),
		gateway:  &fakeGateway{},
		events:   &publisher{},
	}
	t.Cleanup(e.pool.Close)

	m := mailer.New(e.outbox, e.pool, log)
	cfg := config.JWTConfig{Secret: "test-secret", ExpiresIn: time.Hour, ResetTokenTTL: 10 * time.Minute, PasswordMargin: time.Second}
	e.auth = NewAuthService(e.users, NewTokenService(cfg), m, cfg, log)
	e.auth.SetHashCost(bcrypt.MinCost)
	e.booking = NewBookingService(e.tours, e.users, e.bookings, e.gateway, e.events, m, log)
	e.ratings = NewRatingService(e.tours, memstore.Ratings{Reviews: e.reviews}, log)
	return e
}

func (e *env) signup(t *testing.T, name, email string) (*models.User, string) {
	t.Helper()
	u, token, err := e.auth.Signup(context.Background(), SignupInput{
		Name:          name,
		Email:         email,
		PasswordInput: models.PasswordInput{Password: "test1234", PasswordConfirm: "test1234"},
	}, "http://localhost:3000/me")
	require.NoError(t, err)
	return u, token
}

func (e *env) tour(t *testing.T, name string, price float64) *models.Tour {
	t.Helper()
	tour := &models.Tour{}
	tour.ApplyDefaults()
	tour.Name, tour.Duration, tour.MaxGroupSize = name, 5, 10
	tour.Difficulty, tour.Price, tour.Summary, tour.ImageCover = models.DifficultyEasy, price, "summary", "cover.jpg"
	tour.BeforeSave(true)
	require.NoError(t, e.tours.Insert(context.Background(), tour))
	return tour
}

func statusOf(err error) int {
	return apperr.Normalize(err).StatusCode
}

func TestSignupHashesPasswordAndSendsWelcome(t *testing.T) {
	e := newEnv(t)
	u, token := e.signup(t, "Leo Gillespie", "Leo@Example.io")

	assert.NotEmpty(t, token)
	assert.Equal(t, "leo@example.io", u.Email)
	assert.Equal(t, models.RoleUser, u.Role)
	assert.NotEqual(t, "test1234", u.Password)
	assert.True(t, VerifyPassword("test1234", u.Password))
	assert.Nil(t, u.PasswordChangedAt)

	e.pool.Wait()
	assert.Equal(t, "Welcome to the Natours Family!", e.outbox.last().Subject)
}

func TestSignupRejectsMismatchedPasswords(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.auth.Signup(context.Background(), SignupInput{
		Name:          "Max",
		Email:         "max@example.io",
		PasswordInput: models.PasswordInput{Password: "test1234", PasswordConfirm: "nope1234"},
	}, "")
	require.Error(t, err)
	assert.Equal(t, 400, statusOf(err))
}

func TestSignupDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	e.signup(t, "Ann", "ann@example.io")
	_, _, err := e.auth.Signup(context.Background(), SignupInput{
		Name:          "Ann Two",
		Email:         "ANN@example.io",
		PasswordInput: models.PasswordInput{Password: "test1234", PasswordConfirm: "test1234"},
	}, "")
	assert.Equal(t, 409, statusOf(err))
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	e.signup(t, "Kate", "kate@example.io")
	ctx := context.Background()

	_, token, err := e.auth.Login(ctx, "KATE@example.io", "test1234")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	_, _, err = e.auth.Login(ctx, "kate@example.io", "wrong-password")
	assert.Equal(t, 401, statusOf(err))

	_, _, err = e.auth.Login(ctx, "", "")
	assert.Equal(t, 400, statusOf(err))
}

func TestAuthenticate(t *testing.T) {
	e := newEnv(t)
	u, token := e.signup(t, "Jen", "jen@example.io")
	ctx := context.Background()

	got, err := e.auth.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = e.auth.Authenticate(ctx, "")
	assert.Equal(t, 401, statusOf(err))

	_, err = e.auth.Authenticate(ctx, token+"x")
	assert.Equal(t, 401, statusOf(err))

	require.NoError(t, e.users.DeleteByID(ctx, u.ID))
	_, err = e.auth.Authenticate(ctx, token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer exist")
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	e := newEnv(t)
	_, token := e.signup(t, "Old", "old@example.io")

	e.auth.tokens.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := e.auth.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.Equal(t, "Your token has expired! Please log in again.", apperr.Normalize(err).Message)
}

func TestPasswordChangeInvalidatesOlderTokens(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	start := time.Now()

	// token issued a minute ago
	e.auth.tokens.now = func() time.Time { return start.Add(-time.Minute) }
	u, oldToken := e.signup(t, "Sam", "sam@example.io")
	e.auth.tokens.now = time.Now

	_, newToken, err := e.auth.UpdatePassword(ctx, u, "test1234", models.PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
	require.NoError(t, err)

	_, err = e.auth.Authenticate(ctx, oldToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recently changed password")

	// issued right after the change, inside the skew margin
	_, err = e.auth.Authenticate(ctx, newToken)
	assert.NoError(t, err)
}

func TestUpdatePasswordChecksCurrent(t *testing.T) {
	e := newEnv(t)
	u, _ := e.signup(t, "Eve", "eve@example.io")

	_, _, err := e.auth.UpdatePassword(context.Background(), u, "wrong", models.PasswordInput{Password: "newpass123", PasswordConfirm: "newpass123"})
	assert.Equal(t, 401, statusOf(err))
}

func TestForgotAndResetPassword(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, _ := e.signup(t, "Rita", "rita@example.io")

	var plain string
	err := e.auth.ForgotPassword(ctx, "rita@example.io", func(token string) string {
		plain = token
		return "http://localhost/api/v1/users/resetPassword/" + token
	})
	require.NoError(t, err)
	require.Len(t, plain, 64)
	assert.Contains(t, e.outbox.last().Body, plain)

	stored, err := e.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, hashToken(plain), stored.PasswordResetToken)
	assert.NotEqual(t, plain, stored.PasswordResetToken)

	_, token, err := e.auth.ResetPassword(ctx, plain, models.PasswordInput{Password: "brandnew1", PasswordConfirm: "brandnew1"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	stored, err = e.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.PasswordResetToken)
	assert.NotNil(t, stored.PasswordChangedAt)
	assert.True(t, VerifyPassword("brandnew1", stored.Password))

	// a token is single use
	_, _, err = e.auth.ResetPassword(ctx, plain, models.PasswordInput{Password: "brandnew2", PasswordConfirm: "brandnew2"})
	assert.Equal(t, 400, statusOf(err))
}

func TestResetTokenExpires(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.signup(t, "Tim", "tim@example.io")

	var plain string
	require.NoError(t, e.auth.ForgotPassword(ctx, "tim@example.io", func(token string) string { plain = token; return token }))

	e.auth.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	_, _, err := e.auth.ResetPassword(ctx, plain, models.PasswordInput{Password: "brandnew1", PasswordConfirm: "brandnew1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid or has expired")
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	e := newEnv(t)
	err := e.auth.ForgotPassword(context.Background(), "ghost@example.io", func(string) string { return "" })
	assert.Equal(t, 404, statusOf(err))
}

func TestUpdateMe(t *testing.T) {
	e := newEnv(t)
	u, _ := e.signup(t, "Ben", "ben@example.io")
	svc := NewUserService(e.users)
	ctx := context.Background()

	name := "Ben Hadley"
	updated, err := svc.UpdateMe(ctx, u, UpdateMeInput{Name: &name}, "user-1.jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Ben Hadley", updated.Name)
	assert.Equal(t, "ben@example.io", updated.Email)
	assert.Equal(t, "user-1.jpeg", updated.Photo)

	_, err = svc.UpdateMe(ctx, u, UpdateMeInput{Password: "x"}, "")
	assert.Equal(t, 400, statusOf(err))

	require.NoError(t, svc.DeleteMe(ctx, u))
	_, err = e.users.FindByID(ctx, u.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	kept, err := e.users.Unscoped().FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, kept.Active)
}

func TestRatingsFollowReviews(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tour := e.tour(t, "The Northern Lights", 1497)

	var ids []primitive.ObjectID
	for _, rating := range []float64{5, 4, 4} {
		r := &models.Review{Review: "ok", Rating: rating, Tour: tour.ID, User: primitive.NewObjectID()}
		require.NoError(t, e.reviews.Insert(ctx, r))
		require.NoError(t, e.ratings.Recalculate(ctx, tour.ID))
		ids = append(ids, r.ID)
	}

	got, err := e.tours.FindByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RatingsQuantity)
	assert.Equal(t, 4.3, got.RatingsAverage)

	for _, id := range ids {
		require.NoError(t, e.reviews.DeleteByID(ctx, id))
		require.NoError(t, e.ratings.Recalculate(ctx, tour.ID))
	}
	got, err = e.tours.FindByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RatingsQuantity)
	assert.Equal(t, models.DefaultRating, got.RatingsAverage)
}

func TestRatingsUpdateSecretTours(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tour := e.tour(t, "The Secret Hideaway", 200)
	require.NoError(t, e.tours.UpdateFields(ctx, tour.ID, map[string]any{"secretTour": true}))

	require.NoError(t, e.reviews.Insert(ctx, &models.Review{Review: "shh", Rating: 2, Tour: tour.ID, User: primitive.NewObjectID()}))
	require.NoError(t, e.ratings.Recalculate(ctx, tour.ID))

	got, err := e.tours.Unscoped().FindByID(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, 2.0, got.RatingsAverage)
}

func TestCheckoutSession(t *testing.T) {
	e := newEnv(t)
	u, _ := e.signup(t, "Buyer", "buyer@example.io")
	tour := e.tour(t, "The Sea Explorer", 497)

	sess, err := e.booking.CreateCheckoutSession(context.Background(), tour.ID, u, "http://localhost:3000")
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)

	req := e.gateway.requests[0]
	assert.Equal(t, tour.ID.Hex(), req.TourID)
	assert.Equal(t, "buyer@example.io", req.CustomerEmail)
	assert.Equal(t, 497.0, req.Price)
	assert.Equal(t, "http://localhost:3000/tour/the-sea-explorer", req.CancelURL)

	_, err = e.booking.CreateCheckoutSession(context.Background(), primitive.NewObjectID(), u, "")
	assert.Equal(t, 404, statusOf(err))
}

func TestWebhookCreatesBooking(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u, _ := e.signup(t, "Payer", "payer@example.io")
	tour := e.tour(t, "The Wine Taster", 1997)
	e.gateway.completed = &payment.CompletedCheckout{TourID: tour.ID.Hex(), CustomerEmail: "payer@example.io", Amount: 1997}

	require.NoError(t, e.booking.HandleWebhook(ctx, []byte("{}"), "sig"))

	bookings, err := e.bookings.Find(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, u.ID, bookings[0].User)
	assert.True(t, bookings[0].Paid)
	require.Len(t, e.events.events, 1)
	assert.Equal(t, bookings[0].ID.Hex(), e.events.events[0].BookingID)

	require.NoError(t, e.booking.NotifyBooked(ctx, e.events.events[0]))
	assert.Contains(t, e.outbox.last().Body, "The Wine Taster")

	mine, err := e.booking.MyTours(ctx, u)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, tour.ID, mine[0].ID)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.booking.HandleWebhook(context.Background(), []byte("{}"), "sig"))
	assert.Empty(t, e.events.events)
}

func TestWebhookBadSignature(t *testing.T) {
	e := newEnv(t)
	e.gateway.err = payment.ErrInvalidSignature
	err := e.booking.HandleWebhook(context.Background(), []byte("{}"), "sig")
	assert.Equal(t, 400, statusOf(err))
}

func TestParseLatLng(t *testing.T) {
	lat, lng, err := ParseLatLng("34.111745,-118.113491")
	require.NoError(t, err)
	assert.Equal(t, 34.111745, lat)
	assert.Equal(t, -118.113491, lng)

	_, _, err = ParseLatLng("34.1")
	assert.Equal(t, 400, statusOf(err))
}

func TestWithin(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	tour := e.tour(t, "The Sea Explorer", 497)
	tour.StartLocation = &models.GeoPoint{Type: "Point", Coordinates: []float64{-80.185942, 25.774772}}
	require.NoError(t, e.tours.Replace(ctx, tour))

	svc := NewTourService(e.tours, nil)
	found, err := svc.Within(ctx, "250", "25.79,-80.13", "mi")
	require.NoError(t, err)
	assert.Len(t, found, 1)

	_, err = svc.Within(ctx, "250", "25.79,-80.13", "parsecs")
	assert.Equal(t, 400, statusOf(err))
}

func testImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func TestResizeImages(t *testing.T) {
	store := storage.NewMemory()
	svc := NewImageService(store)
	ctx := context.Background()

	photo, err := svc.ResizeUserPhoto(ctx, "abc", testImage(t, 800, 600))
	require.NoError(t, err)
	stored, err := imaging.Decode(bytes.NewReader(store.Objects[storage.UserFolder+"/"+photo]))
	require.NoError(t, err)
	assert.Equal(t, 500, stored.Bounds().Dx())
	assert.Equal(t, 500, stored.Bounds().Dy())

	cover, images, err := svc.ResizeTourImages(ctx, "t1", testImage(t, 40, 30), [][]byte{testImage(t, 10, 10), testImage(t, 20, 20)})
	require.NoError(t, err)
	assert.Contains(t, cover, "-cover.jpeg")
	require.Len(t, images, 2)
	assert.Len(t, store.Objects, 4)

	_, _, err = svc.ResizeTourImages(ctx, "t1", []byte("not an image"), nil)
	assert.Equal(t, 400, statusOf(err))
}
