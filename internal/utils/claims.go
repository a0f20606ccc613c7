package utils

import (
	"errors"

	"payroute/internal/models"

	"github.com/gofiber/fiber/v2"
)

// GetClaims extracts the operator claims from the Fiber context.
func GetClaims(c *fiber.Ctx) (*models.OperatorClaims, error) {
	v := c.Locals("claims")
	if v == nil {
		return nil, errors.New("claims not found in context")
	}

	claims, ok := v.(*models.OperatorClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
