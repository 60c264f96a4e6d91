package services

import (
	"context"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/arzan03/natours/internal/models"
	"github.com/arzan03/natours/internal/repository"
)

type UserService struct {
	users repository.Store[models.User]
}

func NewUserService(users repository.Store[models.User]) *UserService {
	return &UserService{users: users}
}

type UpdateMeInput struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Password        string  `json:"password"`
	PasswordConfirm string  `json:"passwordConfirm"`
}

// UpdateMe changes only name, email and photo of the current user
func (s *UserService) UpdateMe(ctx context.Context, principal *models.User, in UpdateMeInput, photo string) (*models.User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return nil, apperr.BadRequest("This route is not for password updates. Please use /updateMyPassword.")
	}

	user, err := s.users.FindByID(ctx, principal.ID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = *in.Email
	}
	if photo != "" {
		user.Photo = photo
	}

	user.BeforeSave(false)
	if err := models.Validate(user); err != nil {
		return nil, err
	}
	if err := s.users.Replace(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// DeleteMe deactivates the account; the record is kept
func (s *UserService) DeleteMe(ctx context.Context, principal *models.User) error {
	return s.users.DeleteByID(ctx, principal.ID)
}
