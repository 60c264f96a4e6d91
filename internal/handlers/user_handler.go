package handlers

import (
	"github.com/arzan03/natours/internal/middleware"
	"github.com/arzan03/natours/internal/services"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	users   *services.UserService
	uploads *UploadHandler
}

func NewUserHandler(users *services.UserService, uploads *UploadHandler) *UserHandler {
	return &UserHandler{users: users, uploads: uploads}
}

func (h *UserHandler) GetMe(c *fiber.Ctx) error {
	return sendData(c, fiber.StatusOK, "data", middleware.CurrentUser(c))
}

// UpdateMe accepts JSON, or a multipart form with name, email and photo
func (h *UserHandler) UpdateMe(c *fiber.Ctx) error {
	principal := middleware.CurrentUser(c)

	var request services.UpdateMeInput
	if isMultipart(c) {
		if v := c.FormValue("name"); v != "" {
			request.Name = &v
		}
		if v := c.FormValue("email"); v != "" {
			request.Email = &v
		}
		request.Password = c.FormValue("password")
		request.PasswordConfirm = c.FormValue("passwordConfirm")
	} else if err := decodeBody(c, &request); err != nil {
		return err
	}

	var photo string
	if request.Password == "" && request.PasswordConfirm == "" {
		var err error
		if photo, err = h.uploads.UserPhoto(c, principal.ID.Hex()); err != nil {
			return err
		}
	}

	user, err := h.users.UpdateMe(c.UserContext(), principal, request, photo)
	if err != nil {
		return err
	}
	return sendData(c, fiber.StatusOK, "user", user)
}

func (h *UserHandler) DeleteMe(c *fiber.Ctx) error {
	if err := h.users.DeleteMe(c.UserContext(), middleware.CurrentUser(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
