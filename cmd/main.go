package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/db"
	"github.com/arzan03/natours/internal/events"
	"github.com/arzan03/natours/internal/logger"
	"github.com/arzan03/natours/internal/mailer"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/payment"
	"github.com/arzan03/natours/internal/repository"
	"github.com/arzan03/natours/internal/routes"
	"github.com/arzan03/natours/internal/services"
	"github.com/arzan03/natours/internal/storage"
	"github.com/arzan03/natours/internal/utils"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Error("Server stopped with error", zap.Error(err))
		_ = zlog.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, zlog *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to MongoDB
	client, err := db.ConnectMongoDB(ctx, cfg.Database.URI, cfg.Database.Timeout, zlog)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			zlog.Warn("MongoDB disconnect failed", zap.Error(err))
		}
	}()
	database := client.Database(cfg.Database.Name)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	// Initialize MinIO
	var images storage.ImageStore
	if cfg.Storage.Endpoint != "" {
		if images, err = storage.InitMinio(ctx, cfg.Storage, zlog); err != nil {
			return err
		}
	} else {
		zlog.Warn("No object storage configured, uploaded images are kept in memory")
		images = storage.NewMemory()
	}

	pool := utils.NewWorkerPool(cfg.Server.MailWorkers, zlog)
	defer pool.Close()
	mail := mailer.New(mailer.NewSMTPSender(cfg.Email, cfg.IsProduction()), pool, zlog)

	users := repository.NewMongo[models.User](database.Collection(db.Users), repository.UserOptions())
	tours := repository.NewMongo[models.Tour](database.Collection(db.Tours), repository.TourOptions())
	reviews := repository.NewMongo[models.Review](database.Collection(db.Reviews), repository.Options{})
	bookings := repository.NewMongo[models.Booking](database.Collection(db.Bookings), repository.Options{})

	// Booking events go through NATS when configured, otherwise straight to the mailer
	var (
		publisher events.Publisher
		conn      *nats.Conn
	)
	direct := &events.Direct{}
	if cfg.Events.NATSURL != "" {
		if conn, err = events.Connect(cfg.Events.NATSURL, 5, zlog); err != nil {
			return err
		}
		defer conn.Drain()
		publisher = events.NewNATSPublisher(conn)
	} else {
		publisher = direct
	}

	tokens := services.NewTokenService(cfg.JWT)
	auth := services.NewAuthService(users, tokens, mail, cfg.JWT, zlog)
	bookingService := services.NewBookingService(tours, users, bookings, payment.NewStripe(cfg.Payment), publisher, mail, zlog)
	direct.Handle(func(_ context.Context, evt events.BookingCreated) error {
		mail.Async("booking", func(ctx context.Context) error {
			return bookingService.NotifyBooked(ctx, evt)
		})
		return nil
	})
	if conn != nil {
		if _, err := events.SubscribeBookings(conn, zlog, direct.PublishBookingCreated); err != nil {
			return err
		}
	}

	app := routes.NewApp(cfg, zlog, routes.Deps{
		Users:          users,
		Tours:          tours,
		Reviews:        reviews,
		Bookings:       bookings,
		AuthService:    auth,
		UserService:    services.NewUserService(users),
		TourService:    services.NewTourService(tours, repository.NewTourAnalytics(database.Collection(db.Tours))),
		RatingService:  services.NewRatingService(tours, repository.NewReviewRatings(database.Collection(db.Reviews)), zlog),
		BookingService: bookingService,
		ImageService:   services.NewImageService(images),
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
		RequestLogs: !cfg.IsProduction(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zlog.Info("Server starting", zap.String("port", cfg.Server.Port), zap.String("environment", cfg.Environment))
		return app.Listen(":" + cfg.Server.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info("Shutting down server")
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			return err
		}
		pool.Wait()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	zlog.Info("Server stopped")
	return nil
}
