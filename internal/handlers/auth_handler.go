package handlers

import (
	"fmt"
	"time"

	"github.com/arzan03/natours/internal/config"
	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	auth       *services.AuthService
	cfg        config.JWTConfig
	production bool
}

func NewAuthHandler(auth *services.AuthService, cfg config.JWTConfig, production bool) *AuthHandler {
	return &AuthHandler{auth: auth, cfg: cfg, production: production}
}

// sendToken sets the session cookie and returns the token with the user
func (h *AuthHandler) sendToken(c *fiber.Ctx, status int, user *models.User, token string) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Expires:  time.Now().Add(h.cfg.CookieExpires),
		HTTPOnly: true,
		Secure:   h.production || c.Secure(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"token":  token,
		"data":   fiber.Map{"user": user},
	})
}

func baseURL(c *fiber.Ctx) string {
	return fmt.Sprintf("%s://%s", c.Protocol(), c.Hostname())
}

func (h *AuthHandler) Signup(c *fiber.Ctx) error {
	var request services.SignupInput
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	user, token, err := h.auth.Signup(c.UserContext(), request, baseURL(c)+"/me")
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusCreated, user, token)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	user, token, err := h.auth.Login(c.UserContext(), request.Email, request.Password)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}

// Logout overwrites the session cookie with a short-lived placeholder
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.TokenCookie,
		Value:    middleware.LoggedOutCookie,
		Expires:  time.Now().Add(10 * time.Second),
		HTTPOnly: true,
	})
	return c.JSON(fiber.Map{"status": "success"})
}

func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var request struct {
		Email string `json:"email"`
	}
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	base := baseURL(c)
	err := h.auth.ForgotPassword(c.UserContext(), request.Email, func(token string) string {
		return base + "/api/v1/users/resetPassword/" + token
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "message": "Token sent to email!"})
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var request models.PasswordInput
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	user, token, err := h.auth.ResetPassword(c.UserContext(), c.Params("token"), request)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}

func (h *AuthHandler) UpdateMyPassword(c *fiber.Ctx) error {
	var request struct {
		PasswordCurrent string `json:"passwordCurrent"`
		models.PasswordInput
	}
	if err := decodeBody(c, &request); err != nil {
		return err
	}

	user, token, err := h.auth.UpdatePassword(c.UserContext(), middleware.CurrentUser(c), request.PasswordCurrent, request.PasswordInput)
	if err != nil {
		return err
	}
	return h.sendToken(c, fiber.StatusOK, user, token)
}
