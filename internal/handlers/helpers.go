package handlers

import (
	"errors"

	"auction-backend/internal/apperrors"

	"github.com/gofiber/fiber/v2"
)

// MapError converts a domain error into an HTTP status and a user-visible
// message. Validation failures keep their precise reason (bid bounds
// included); unexpected errors collapse to a generic 500.
func MapError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrBidTooLow),
		errors.Is(err, apperrors.ErrBidTooHigh),
		errors.Is(err, apperrors.ErrNotStarted),
		errors.Is(err, apperrors.ErrAlreadyEnded),
		errors.Is(err, apperrors.ErrInvalidInput):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.StatusNotFound, "not found"
	case errors.Is(err, apperrors.ErrNotAllowed):
		return fiber.StatusForbidden, "Not allowed"
	case errors.Is(err, apperrors.ErrPriceConflict):
		return fiber.StatusConflict, "auction price changed, retry your bid"
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}

// JSONError writes the mapped error response.
func JSONError(c *fiber.Ctx, err error) error {
	status, message := MapError(err)
	return c.Status(status).JSON(fiber.Map{"message": message})
}
