package handlers

import (
	"strconv"

	apperrors "payroute/internal/errors"
	"payroute/internal/services/router"
	"payroute/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

type RoutingHandler struct {
	router router.Service
}

func NewRoutingHandler(r router.Service) *RoutingHandler {
	return &RoutingHandler{router: r}
}

// RoutePayment answers 200 when a PSP captured the payment and 402 when
// every attempt failed. The body carries the routing result either way,
// including when routing stopped on an error after attempts were made.
func (h *RoutingHandler) RoutePayment(c *fiber.Ctx) error {
	var req router.RouteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	result, err := h.router.RoutePayment(c.UserContext(), req)
	if err != nil {
		if result != nil {
			return response.FromErrorWithData(c, err, result)
		}
		return response.FromError(c, err)
	}

	if result.Success && result.RecordingFailed {
		return response.Success(c, "Payment completed, attempt record pending reconciliation", result)
	}

	if !result.Success {
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
			"message": "Payment was not completed",
			"data":    result,
		})
	}
	return response.Success(c, "Payment completed", result)
}

func (h *RoutingHandler) GetRemainingCapacity(c *fiber.Ctx) error {
	pspID, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid PSP ID")
	}

	view, err := h.router.GetRemainingCapacity(c.UserContext(), pspID)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "Remaining capacity retrieved", view)
}

func parseID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, apperrors.ErrInvalidRouteRequest
	}
	return uint(id), nil
}
