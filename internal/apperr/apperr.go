// Package apperr separates operational errors, which carry a status code and a
// message safe to show the client, from unexpected programming errors.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// AppError is an operational error unless Code is CodeInternal.
type AppError struct {
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	StatusCode int          `json:"-"`
	Cause      error        `json:"-"`
	Details    []FieldError `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

const (
	CodeBadRequest      = "BAD_REQUEST"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeValidation      = "VALIDATION_ERROR"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL_ERROR"
)

func (e *AppError) Error() string {
	if e.Cause != nil && e.Code == CodeInternal {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Status is "fail" for client errors and "error" for server errors
func (e *AppError) Status() string {
	if e.StatusCode >= 400 && e.StatusCode < 500 {
		return "fail"
	}
	return "error"
}

func (e *AppError) IsOperational() bool {
	return e.Code != CodeInternal
}

func newError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Message: msg, StatusCode: status}
}

// New builds an operational error with any status, e.g. a 500 whose message is safe to show
func New(code string, status int, msg string) *AppError {
	return newError(code, status, msg)
}

func BadRequest(msg string) *AppError {
	return newError(CodeBadRequest, http.StatusBadRequest, msg)
}

func Unauthorized(msg string) *AppError {
	return newError(CodeUnauthorized, http.StatusUnauthorized, msg)
}

func Forbidden(msg string) *AppError {
	return newError(CodeForbidden, http.StatusForbidden, msg)
}

func NotFound(msg string) *AppError {
	return newError(CodeNotFound, http.StatusNotFound, msg)
}

func Conflict(msg string) *AppError {
	return newError(CodeConflict, http.StatusConflict, msg)
}

func TooManyRequests(msg string) *AppError {
	return newError(CodeTooManyRequests, http.StatusTooManyRequests, msg)
}

// Validation builds the 400 returned for schema violations.
// The message lists each field failure the same way the details do.
func Validation(details ...FieldError) *AppError {
	msgs := make([]string, 0, len(details))
	for _, d := range details {
		msgs = append(msgs, d.Message)
	}
	e := newError(CodeValidation, http.StatusBadRequest, "Invalid input data. "+strings.Join(msgs, ". "))
	e.Details = details
	return e
}

// Internal wraps an unexpected error; its cause is logged, never sent.
func Internal(cause error) *AppError {
	e := newError(CodeInternal, http.StatusInternalServerError, "Something went very wrong!")
	e.Cause = cause
	return e
}

// Wrap attaches a cause to an operational error without changing its message.
func Wrap(e *AppError, cause error) *AppError {
	e.Cause = cause
	return e
}

var dupKeyValue = regexp.MustCompile(`dup key: \{ ?[^:]*: "?([^"}]*?)"? ?\}`)

// Normalize converts database, token and framework errors into AppErrors.
// Anything unrecognised becomes an Internal error.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}

	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := CodeBadRequest
		switch fe.Code {
		case fiber.StatusNotFound:
			code = CodeNotFound
		case fiber.StatusUnauthorized:
			code = CodeUnauthorized
		case fiber.StatusForbidden:
			code = CodeForbidden
		case fiber.StatusTooManyRequests:
			code = CodeTooManyRequests
		}
		if fe.Code >= 500 {
			return Internal(err)
		}
		return Wrap(newError(code, fe.Code, fe.Message), err)
	}

	switch {
	case errors.Is(err, primitive.ErrInvalidHex):
		return Wrap(BadRequest("Invalid id"), err)
	case errors.Is(err, mongo.ErrNoDocuments):
		return Wrap(NotFound("No document found with that ID"), err)
	case mongo.IsDuplicateKeyError(err):
		return Wrap(Conflict(duplicateMessage(err)), err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return Wrap(Unauthorized("Your token has expired! Please log in again."), err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return Wrap(Unauthorized("Invalid token. Please log in again!"), err)
	}

	return Internal(err)
}

func duplicateMessage(err error) string {
	if m := dupKeyValue.FindStringSubmatch(err.Error()); len(m) == 2 {
		return fmt.Sprintf("Duplicate field value: %q. Please use another value!", m[1])
	}
	return "Duplicate field value. Please use another value!"
}
