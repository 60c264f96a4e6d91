package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const DefaultHashCost = 12

// Mail is the outgoing mail the services rely on
type Mail interface {
	SendWelcome(ctx context.Context, to, name, url string) error
	SendPasswordReset(ctx context.Context, to, name, url string) error
	SendBookingConfirmation(ctx context.Context, to, name, tourName string, price float64) error
	Async(kind string, send func(ctx context.Context) error)
}

type SignupInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	models.PasswordInput
}

type AuthService struct {
	users    repository.Store[models.User]
	tokens   *TokenService
	mail     Mail
	log      *zap.Logger
	resetTTL time.Duration
	margin   time.Duration
	cost     int
	now      func() time.Time
}

func NewAuthService(users repository.Store[models.User], tokens *TokenService, mail Mail, cfg config.JWTConfig, log *zap.Logger) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		mail:     mail,
		log:      log,
		resetTTL: cfg.ResetTokenTTL,
		margin:   cfg.PasswordMargin,
		cost:     DefaultHashCost,
		now:      time.Now,
	}
}

// SetHashCost lowers the bcrypt cost, for tests
func (a *AuthService) SetHashCost(cost int) {
	a.cost = cost
}

func (a *AuthService) Tokens() *TokenService {
	return a.tokens
}

// HashPassword hashes a password using bcrypt
func (a *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	return string(hash), err
}

// VerifyPassword compares a plain password with a hashed password
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// SetPassword validates and hashes in.Password into u. The plaintext confirmation
// is never stored. Existing users get passwordChangedAt stamped slightly in the
// past so a token issued right after the change is still accepted.
func (a *AuthService) SetPassword(u *models.User, in models.PasswordInput, isNew bool) error {
	if err := models.Validate(&in); err != nil {
		return err
	}
	hash, err := a.HashPassword(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = hash
	if !isNew {
		changed := a.now().Add(-a.margin)
		u.PasswordChangedAt = &changed
	}
	return nil
}

// Signup always creates a standard user; roles are granted by admins
func (a *AuthService) Signup(ctx context.Context, in SignupInput, welcomeURL string) (*models.User, string, error) {
	user := &models.User{}
	user.ApplyDefaults()
	user.Name = in.Name
	user.Email = in.Email
	user.BeforeSave(true)

	if err := models.Validate(user); err != nil {
		return nil, "", err
	}
	if err := a.SetPassword(user, in.PasswordInput, true); err != nil {
		return nil, "", err
	}
	if err := a.users.Insert(ctx, user); err != nil {
		return nil, "", err
	}

	a.mail.Async("welcome", func(ctx context.Context) error {
		return a.mail.SendWelcome(ctx, user.Email, user.Name, welcomeURL)
	})

	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (a *AuthService) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	if email == "" || password == "" {
		return nil, "", apperr.BadRequest("Please provide email and password!")
	}

	user, err := a.users.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, "", err
	}
	if user == nil || !VerifyPassword(password, user.Password) {
		return nil, "", apperr.Unauthorized("Incorrect email or password")
	}

	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate resolves the principal for a bearer token
func (a *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Unauthorized("You are not logged in! Please log in to get access.")
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	id, _ := primitive.ObjectIDFromHex(claims.UserID)

	user, err := a.users.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Unauthorized("The user belonging to this token does no longer exist.")
	}
	if err != nil {
		return nil, err
	}

	if user.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperr.Unauthorized("User recently changed password! Please log in again.")
	}
	return user, nil
}

// ForgotPassword stores the hash of a random token and mails the token itself.
// resetURL builds the link from the plain token.
func (a *AuthService) ForgotPassword(ctx context.Context, email string, resetURL func(token string) string) error {
	user, err := a.users.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("There is no user with that email address.")
	}
	if err != nil {
		return err
	}

	token, err := randomToken()
	if err != nil {
		return err
	}
	expires := a.now().Add(a.resetTTL)
	if err := a.users.UpdateFields(ctx, user.ID, bson.M{
		"passwordResetToken":   hashToken(token),
		"passwordResetExpires": expires,
	}); err != nil {
		return err
	}

	if err := a.mail.SendPasswordReset(ctx, user.Email, user.Name, resetURL(token)); err != nil {
		a.log.Warn("Password reset email failed", zap.String("user", user.ID.Hex()), zap.Error(err))
		if err := a.users.UpdateFields(ctx, user.ID, bson.M{"passwordResetToken": "", "passwordResetExpires": nil}); err != nil {
			a.log.Error("Failed to clear reset token", zap.Error(err))
		}
		return apperr.New("EMAIL_FAILED", 500, "There was an error sending the email. Try again later!")
	}
	return nil
}

func (a *AuthService) ResetPassword(ctx context.Context, token string, in models.PasswordInput) (*models.User, string, error) {
	user, err := a.users.FindOne(ctx, bson.M{
		"passwordResetToken":   hashToken(token),
		"passwordResetExpires": bson.M{"$gt": a.now()},
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, "", apperr.BadRequest("Token is invalid or has expired")
	}
	if err != nil {
		return nil, "", err
	}

	if err := a.SetPassword(user, in, false); err != nil {
		return nil, "", err
	}
	user.PasswordResetToken = ""
	user.PasswordResetExpires = nil
	if err := a.users.Replace(ctx, user); err != nil {
		return nil, "", err
	}

	jwt, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, jwt, nil
}

func (a *AuthService) UpdatePassword(ctx context.Context, principal *models.User, current string, in models.PasswordInput) (*models.User, string, error) {
	user, err := a.users.FindByID(ctx, principal.ID)
	if err != nil {
		return nil, "", err
	}
	if !VerifyPassword(current, user.Password) {
		return nil, "", apperr.Unauthorized("Your current password is wrong.")
	}

	if err := a.SetPassword(user, in, false); err != nil {
		return nil, "", err
	}
	if err := a.users.Replace(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func randomToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", fmt.Errorf("failed to generate secure token: %w", err)
	}
	return hex.EncodeToString(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
