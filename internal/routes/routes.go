// Package routes assembles the fiber application: global middleware, the
// /api/v1 resources and the payment webhook.
package routes

import (
	"context"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/handlers"
	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/repository"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// uploadLimit bounds multipart bodies; JSON bodies are capped by the sanitizer
const uploadLimit = 16 << 20

// Deps are the stores and services the routes are wired to
type Deps struct {
	Users    repository.Store[models.User]
	Tours    repository.Store[models.Tour]
	Reviews  repository.Store[models.Review]
	Bookings repository.Store[models.Booking]

	AuthService    *services.AuthService
	UserService    *services.UserService
	TourService    *services.TourService
	RatingService  *services.RatingService
	BookingService *services.BookingService
	ImageService   *services.ImageService

	// Ping backs the health check
	Ping        func(ctx context.Context) error
	RequestLogs bool
}

// NewApp builds the fiber app with the central error handler and global middleware
func NewApp(cfg *config.Config, log *zap.Logger, d Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "natours",
		ErrorHandler: middleware.ErrorHandler(cfg.IsProduction(), log),
		BodyLimit:    uploadLimit,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(helmet.New())
	app.Use(cors.New())
	if d.RequestLogs {
		app.Use(logger.New())
	}

	Register(app, cfg, d)
	return app
}

// Register mounts every route; unknown paths fall through to the 404 handler
func Register(app *fiber.App, cfg *config.Config, d Deps) {
	populate := services.NewPopulator(d.Users, d.Tours, d.Reviews)
	uploads := handlers.NewUploadHandler(d.ImageService)

	auth := handlers.NewAuthHandler(d.AuthService, cfg.JWT, cfg.IsProduction())
	me := handlers.NewUserHandler(d.UserService, uploads)
	adminUsers := handlers.NewAdminUsers(d.Users)
	tours := handlers.NewTourHandler(d.Tours, d.TourService, populate)
	reviews := handlers.NewReviewHandler(d.Reviews, d.RatingService, populate)
	bookings := handlers.NewBookingHandler(d.Bookings, d.BookingService, populate, cfg.Server.PublicURL)

	protect := middleware.Protect(d.AuthService)
	staff := middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide)
	adminOnly := middleware.RestrictTo(models.RoleAdmin)

	app.Get("/health", handlers.Health(d.Ping))

	// the signature covers the raw body, so this stays outside the sanitizer
	app.Post("/webhook-checkout", bookings.WebhookCheckout)

	api := app.Group("/api", middleware.RateLimit(cfg.RateLimit))
	v1 := api.Group("/v1", middleware.Sanitize(cfg.Server.BodyLimit))

	// Tours
	tourRoutes := v1.Group("/tours")
	tourRoutes.Get("/top-5-cheap", handlers.AliasTopTours, tours.GetAll)
	tourRoutes.Get("/tour-stats", tours.GetTourStats)
	tourRoutes.Get("/monthly-plan/:year", protect,
		middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide), tours.GetMonthlyPlan)
	tourRoutes.Get("/tours-within/:distance/center/:latlng/unit/:unit", tours.GetToursWithin)
	tourRoutes.Get("/distances/:latlng/unit/:unit", tours.GetDistances)
	tourRoutes.Get("/", tours.GetAll)
	tourRoutes.Post("/", protect, staff, tours.CreateOne)
	tourRoutes.Get("/:id", tours.GetOne)
	tourRoutes.Patch("/:id", protect, staff, uploads.TourImages, tours.UpdateOne)
	tourRoutes.Delete("/:id", protect, staff, tours.DeleteOne)

	// Reviews, also nested under a tour
	mountReviews(tourRoutes.Group("/:tourId/reviews"), protect, reviews)
	mountReviews(v1.Group("/reviews"), protect, reviews)

	// Users
	userRoutes := v1.Group("/users")
	userRoutes.Post("/signup", auth.Signup)
	userRoutes.Post("/login", auth.Login)
	userRoutes.Get("/logout", auth.Logout)
	userRoutes.Post("/forgotPassword", auth.ForgotPassword)
	userRoutes.Patch("/resetPassword/:token", auth.ResetPassword)

	userRoutes.Patch("/updateMyPassword", protect, auth.UpdateMyPassword)
	userRoutes.Get("/me", protect, me.GetMe)
	userRoutes.Patch("/updateMe", protect, me.UpdateMe)
	userRoutes.Delete("/deleteMe", protect, me.DeleteMe)

	userRoutes.Get("/", protect, adminOnly, adminUsers.GetAll)
	userRoutes.Post("/", protect, adminOnly, adminUsers.CreateUser)
	userRoutes.Get("/:id", protect, adminOnly, adminUsers.GetOne)
	userRoutes.Patch("/:id", protect, adminOnly, adminUsers.UpdateOne)
	userRoutes.Delete("/:id", protect, adminOnly, adminUsers.DeleteOne)

	// Bookings
	bookingRoutes := v1.Group("/bookings")
	bookingRoutes.Get("/checkout-session/:tourId", protect, bookings.GetCheckoutSession)
	bookingRoutes.Get("/my-tours", protect, bookings.GetMyTours)
	bookingRoutes.Get("/", protect, staff, bookings.GetAll)
	bookingRoutes.Post("/", protect, staff, bookings.CreateOne)
	bookingRoutes.Get("/:id", protect, staff, bookings.GetOne)
	bookingRoutes.Patch("/:id", protect, staff, bookings.UpdateOne)
	bookingRoutes.Delete("/:id", protect, staff, bookings.DeleteOne)

	app.Use(middleware.NotFound)
}

func mountReviews(r fiber.Router, protect fiber.Handler, reviews *handlers.ReviewHandler) {
	r.Get("/", protect, reviews.GetAll)
	r.Post("/", protect, middleware.RestrictTo(models.RoleUser), reviews.CreateOne)
	r.Get("/:id", protect, reviews.GetOne)
	r.Patch("/:id", protect, middleware.RestrictTo(models.RoleUser, models.RoleAdmin), reviews.UpdateOne)
	r.Delete("/:id", protect, middleware.RestrictTo(models.RoleUser, models.RoleAdmin), reviews.DeleteOne)
}
