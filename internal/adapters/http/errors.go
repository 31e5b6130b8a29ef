package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/pyrovision/pyrovision/internal/core/domain"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	reqID, _ := c.Locals("requestid").(string)
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: reqID,
	})
}

func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusBadRequest, "bad_request", msg)
}

func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusNotFound, "not_found", msg)
}

func errUnavailable(c *fiber.Ctx, msg string) error {
	return newError(c, fiber.StatusServiceUnavailable, "unavailable", msg)
}

// errFrom maps a service error onto a response by its kind.
func errFrom(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrConfiguration), errors.Is(err, domain.ErrMalformedRecord):
		return errBadRequest(c, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		return errNotFound(c, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		return newError(c, fiber.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, domain.ErrInference):
		return newError(c, fiber.StatusUnprocessableEntity, "inference_failed", err.Error())
	}
	LoggerFromCtx(c.UserContext()).Error("request failed", "path", c.Path(), "error", err)
	return newError(c, fiber.StatusInternalServerError, "internal_error", err.Error())
}

