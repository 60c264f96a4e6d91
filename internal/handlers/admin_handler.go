package handlers

import (
	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/query"
	"github.com/arzan03/natours/internal/repository"
	"github.com/gofiber/fiber/v2"
)

// AdminUsers manages accounts for administrators. Passwords are never set
// here and deleting an account only deactivates it.
type AdminUsers struct {
	*Factory[models.User, *models.User]
}

func NewAdminUsers(users repository.Store[models.User]) *AdminUsers {
	return &AdminUsers{Factory: NewFactory[models.User](users, query.Users, Hooks[models.User]{})}
}

// CreateUser is not offered; accounts are created through signup
func (h *AdminUsers) CreateUser(*fiber.Ctx) error {
	return apperr.New("ROUTE_NOT_DEFINED", fiber.StatusInternalServerError, "This route is not defined! Please use /signup instead")
}
