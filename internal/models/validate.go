package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/arzan03/natours/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// messages maps "<Struct>.<Field>.<tag>" to the message shown to clients.
// Keys starting with "*" match the field in any nested struct.
var messages = map[string]string{
	"Tour.Name.required":          "A tour must have a name.",
	"Tour.Name.max":               "A tour name must have less or equal to 40 characters.",
	"Tour.Name.min":               "A tour name must have more or equal to 10 characters.",
	"Tour.Duration.required":      "A tour must have a duration",
	"Tour.MaxGroupSize.required":  "A tour must have a max group size.",
	"Tour.Difficulty.required":    "A tour must have a difficulty",
	"Tour.Difficulty.oneof":       "Difficulty is either: easy, medium or difficult",
	"Tour.RatingsAverage.gte":     "Rating must be above 1.0",
	"Tour.RatingsAverage.lte":     "Rating must be below 5.0",
	"Tour.Price.required":         "A tour must have a price.",
	"Tour.PriceDiscount.discount": "Discount price should be below regular price.",
	"Tour.Summary.required":       "A tour must have a summary.",
	"Tour.ImageCover.required":    "A tour must have a cover image.",
	"*.Type.eq":                   "Location type must be Point",
	"*.Coordinates.len":           "Coordinates must be [lng, lat]",

	"User.Name.required":                     "Please tell us your name!",
	"User.Email.required":                    "Please provide your email.",
	"User.Email.email":                       "Please provide a valid email.",
	"User.Role.oneof":                        "Role is either: user, guide, lead-guide or admin",
	"PasswordInput.Password.required":        "Please provide a password.",
	"PasswordInput.Password.min":             "Password must have at least 8 characters.",
	"PasswordInput.PasswordConfirm.required": "Please confirm your password.",
	"PasswordInput.PasswordConfirm.eqfield":  "Passwords are not the same.",

	"Review.Review.required": "Review cannot be empty!",
	"Review.Rating.gte":      "Rating must be above 1.0",
	"Review.Rating.lte":      "Rating must be below 5.0",
	"Review.Tour.required":   "A review must belong to a tour.",
	"Review.User.required":   "A review must belong to a user.",

	"Booking.Tour.required":  "A booking must have a tour.",
	"Booking.User.required":  "A booking must have a user.",
	"Booking.Price.required": "A booking must have a price.",
	"Booking.Price.gt":       "A booking price must be positive.",
}

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		validate.RegisterStructValidation(tourLevel, Tour{})
	})
	return validate
}

// Validate checks v against its struct tags and struct-level rules
func Validate(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	details := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, apperr.FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return apperr.Validation(details...)
}

func message(fe validator.FieldError) string {
	keys := []string{
		fe.StructNamespace() + "." + fe.Tag(),
		"*." + fe.StructField() + "." + fe.Tag(),
	}
	for _, k := range keys {
		if m, ok := messages[k]; ok {
			return m
		}
	}
	return fmt.Sprintf("%s failed on the '%s' rule", fe.Field(), fe.Tag())
}
