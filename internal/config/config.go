package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Environment string

	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Email     EmailConfig
	Payment   PaymentConfig
	Storage   StorageConfig
	Events    EventsConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port            string
	PublicURL       string
	BodyLimit       int
	ShutdownTimeout time.Duration
	MailWorkers     int
}

type DatabaseConfig struct {
	URI     string
	Name    string
	Timeout time.Duration
}

type JWTConfig struct {
	Secret         string
	ExpiresIn      time.Duration
	CookieExpires  time.Duration
	ResetTokenTTL  time.Duration
	PasswordMargin time.Duration
}

// EmailConfig selects between a development SMTP relay and SendGrid in production
type EmailConfig struct {
	SMTPHost         string
	SMTPPort         string
	SMTPUsername     string
	SMTPPassword     string
	SendGridUsername string
	SendGridPassword string
	FromEmail        string
	FromName         string
}

type PaymentConfig struct {
	StripeSecretKey     string
	StripeWebhookSecret string
	Currency            string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type EventsConfig struct {
	NATSURL string
}

type RateLimitConfig struct {
	Max    int
	Window time.Duration
}

// Load reads the .env file if it exists and builds the configuration from the environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading it, using environment variables")
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port:            getEnv("PORT", "3000"),
			PublicURL:       getEnv("PUBLIC_URL", ""),
			BodyLimit:       getEnvAsInt("BODY_LIMIT", 10*1024),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
			MailWorkers:     getEnvAsInt("MAIL_WORKERS", 4),
		},
		Database: DatabaseConfig{
			URI:     databaseURI(getEnv("DATABASE", "mongodb://localhost:27017"), os.Getenv("DATABASE_PASSWORD")),
			Name:    getEnv("DATABASE_NAME", "natours"),
			Timeout: getDurationEnv("DATABASE_TIMEOUT", 10*time.Second),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			ExpiresIn:      getDurationEnv("JWT_EXPIRES_IN", 90*24*time.Hour),
			CookieExpires:  time.Duration(getEnvAsInt("JWT_COOKIE_EXPIRES_IN", 90)) * 24 * time.Hour,
			ResetTokenTTL:  getDurationEnv("PASSWORD_RESET_TTL", 10*time.Minute),
			PasswordMargin: time.Second,
		},
		Email: EmailConfig{
			SMTPHost:         getEnv("EMAIL_HOST", "localhost"),
			SMTPPort:         getEnv("EMAIL_PORT", "2525"),
			SMTPUsername:     os.Getenv("EMAIL_USERNAME"),
			SMTPPassword:     os.Getenv("EMAIL_PASSWORD"),
			SendGridUsername: getEnv("SENDGRID_USERNAME", "apikey"),
			SendGridPassword: os.Getenv("SENDGRID_PASSWORD"),
			FromEmail:        getEnv("EMAIL_FROM", "hello@natours.io"),
			FromName:         getEnv("EMAIL_FROM_NAME", "Natours"),
		},
		Payment: PaymentConfig{
			StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
			StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
			Currency:            getEnv("STRIPE_CURRENCY", "usd"),
		},
		Storage: StorageConfig{
			Endpoint:  os.Getenv("MINIO_ENDPOINT"),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("MINIO_BUCKET", "natours-img"),
			UseSSL:    getBoolEnv("MINIO_USE_SSL", false),
		},
		Events: EventsConfig{
			NATSURL: os.Getenv("NATS_URL"),
		},
		RateLimit: RateLimitConfig{
			Max:    getEnvAsInt("RATE_LIMIT_MAX", 100),
			Window: getDurationEnv("RATE_LIMIT_WINDOW", time.Hour),
		},
	}

	return cfg, cfg.Validate()
}

// IsProduction reports whether errors and logs should use the production posture
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.Database.URI == "" {
		return errors.New("DATABASE is required")
	}
	if c.JWT.ExpiresIn <= 0 {
		return errors.New("JWT_EXPIRES_IN must be positive")
	}
	return nil
}

// databaseURI fills the <PASSWORD> placeholder of a templated connection string
func databaseURI(template, password string) string {
	return strings.ReplaceAll(template, "<PASSWORD>", password)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90h") and the "<n>d" day shorthand
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if days, ok := strings.CutSuffix(value, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
