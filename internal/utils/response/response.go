package response

import (
	"errors"
	"log"

	apperrors "payroute/internal/errors"

	"github.com/gofiber/fiber/v2"
)

func Success(c *fiber.Ctx, message string, data interface{}) error {
	return c.JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Created(c *fiber.Ctx, message string, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": message,
		"data":    data,
	})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}

// CodedError adds the stable error code clients switch on.
func CodedError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

func ServerError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, message)
}

func Unauthorized(c *fiber.Ctx) error {
	return Error(c, fiber.StatusUnauthorized, "Unauthorized")
}

func Forbidden(c *fiber.Ctx) error {
	return Error(c, fiber.StatusForbidden, "Insufficient permissions")
}

func ValidationError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusBadRequest, message)
}

// StatusFor maps a domain error code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case apperrors.ErrInvalidRouteRequest.Code, apperrors.ErrRoutingConfigInvalid.Code:
		return fiber.StatusBadRequest
	case apperrors.ErrPSPNotFound.Code:
		return fiber.StatusNotFound
	case apperrors.ErrNoEligiblePSP.Code, apperrors.ErrProviderDeclined.Code:
		return fiber.StatusUnprocessableEntity
	case apperrors.ErrProviderTransport.Code:
		return fiber.StatusBadGateway
	case apperrors.ErrCapacityLedgerUnavailable.Code, apperrors.ErrRecorderWriteFailure.Code:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// FromError writes err as JSON. Domain errors keep their message and
// code; anything else is logged and hidden behind a generic message.
func FromError(c *fiber.Ctx, err error) error {
	return FromErrorWithData(c, err, nil)
}

// FromErrorWithData is FromError with a partial result attached under
// "data" when data is non-nil.
func FromErrorWithData(c *fiber.Ctx, err error, data interface{}) error {
	status := fiber.StatusInternalServerError
	body := fiber.Map{"error": "internal server error"}

	var de *apperrors.DomainError
	if errors.As(err, &de) {
		status = StatusFor(de.Code)
		body["code"] = de.Code
		body["error"] = de.Message
		if status == fiber.StatusBadRequest && de.Err != nil {
			body["error"] = de.Error()
		}
	}
	if status >= fiber.StatusInternalServerError {
		log.Printf("🚨 %s %s: %v", c.Method(), c.Path(), err)
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}
