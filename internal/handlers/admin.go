package handlers

import (
	"errors"
	"strconv"

	"payroute/internal/models"
	"payroute/internal/services/dashboard"
	"payroute/internal/services/management"
	"payroute/internal/services/router"
	"payroute/internal/utils/pagination"
	"payroute/internal/utils/response"

	"github.com/gofiber/fiber/v2"
)

// MetricsReader exposes in-process routing counters.
type MetricsReader interface {
	Snapshot() router.MetricsSnapshot
}

type AdminHandler struct {
	management management.Service
	dashboard  dashboard.Service
	metrics    MetricsReader
}

func NewAdminHandler(m management.Service, d dashboard.Service, metrics MetricsReader) *AdminHandler {
	return &AdminHandler{management: m, dashboard: d, metrics: metrics}
}

func (h *AdminHandler) CreatePSP(c *fiber.Ctx) error {
	var input management.PSPInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	psp, err := h.management.CreatePSP(c.UserContext(), input)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Created(c, "PSP created successfully", psp)
}

func (h *AdminHandler) UpdatePSP(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid PSP ID")
	}

	var input management.PSPInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	psp, err := h.management.UpdatePSP(c.UserContext(), id, input)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "PSP updated successfully", psp)
}

func (h *AdminHandler) DeletePSP(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid PSP ID")
	}

	if err := h.management.DeletePSP(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "PSP deleted successfully", nil)
}

// ListPSPs returns every PSP with its capacity, stats and breaker state.
func (h *AdminHandler) ListPSPs(c *fiber.Ctx) error {
	overviews, err := h.dashboard.ListPSPOverviews(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "PSPs retrieved successfully", overviews)
}

func (h *AdminHandler) GetPSP(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid PSP ID")
	}

	overview, err := h.dashboard.GetPSPOverview(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "PSP retrieved successfully", overview)
}

func (h *AdminHandler) ListStorePSPs(c *fiber.Ctx) error {
	storeID, err := parseID(c, "storeId")
	if err != nil {
		return response.BadRequest(c, "Invalid store ID")
	}

	psps, err := h.management.ListStorePSPs(c.UserContext(), storeID)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Store PSPs retrieved successfully", psps)
}

func (h *AdminHandler) LinkStore(c *fiber.Ctx) error {
	storeID, pspID, err := storeAndPSP(c)
	if err != nil {
		return response.BadRequest(c, "Invalid store or PSP ID")
	}

	if err := h.management.LinkStore(c.UserContext(), storeID, pspID); err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "PSP linked to store", nil)
}

func (h *AdminHandler) UnlinkStore(c *fiber.Ctx) error {
	storeID, pspID, err := storeAndPSP(c)
	if err != nil {
		return response.BadRequest(c, "Invalid store or PSP ID")
	}

	if err := h.management.UnlinkStore(c.UserContext(), storeID, pspID); err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "PSP unlinked from store", nil)
}

func (h *AdminHandler) GetRoutingConfig(c *fiber.Ctx) error {
	storeID, err := parseID(c, "storeId")
	if err != nil {
		return response.BadRequest(c, "Invalid store ID")
	}

	cfg, err := h.management.GetRoutingConfig(c.UserContext(), storeID)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Routing config retrieved successfully", cfg)
}

func (h *AdminHandler) SaveRoutingConfig(c *fiber.Ctx) error {
	storeID, err := parseID(c, "storeId")
	if err != nil {
		return response.BadRequest(c, "Invalid store ID")
	}

	var input management.RoutingConfigInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	cfg, err := h.management.SaveRoutingConfig(c.UserContext(), storeID, input)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Routing config saved successfully", cfg)
}

// ListPayments pages through attempts, optionally filtered by store_id,
// psp_id, order_id and status.
func (h *AdminHandler) ListPayments(c *fiber.Ctx) error {
	p := pagination.ParseFromRequest(c)

	var filter models.PaymentFilter
	if v := c.Query("store_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid store_id")
		}
		storeID := uint(id)
		filter.StoreID = &storeID
	}
	if v := c.Query("psp_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return response.BadRequest(c, "Invalid psp_id")
		}
		pspID := uint(id)
		filter.PSPID = &pspID
	}
	filter.OrderID = c.Query("order_id")
	filter.Status = models.PaymentStatus(c.Query("status"))

	payments, total, err := h.management.ListPayments(c.UserContext(), filter, p.Limit, p.Offset)
	if err != nil {
		return h.fail(c, err)
	}

	p.Total = total
	return c.JSON(pagination.Response(p, payments))
}

func (h *AdminHandler) ListOrderAttempts(c *fiber.Ctx) error {
	attempts, err := h.management.ListOrderAttempts(c.UserContext(), c.Params("orderId"))
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Order attempts retrieved successfully", attempts)
}

// ResolveAttempt settles a PROCESSING attempt whose outcome was checked
// with the provider.
func (h *AdminHandler) ResolveAttempt(c *fiber.Ctx) error {
	var input management.ResolveInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request format")
	}

	attempt, err := h.management.ResolveAttempt(c.UserContext(), c.Params("intentId"), input)
	if err != nil {
		return h.fail(c, err)
	}
	return response.Success(c, "Attempt resolved successfully", attempt)
}

func (h *AdminHandler) Metrics(c *fiber.Ctx) error {
	return response.Success(c, "Routing metrics", h.metrics.Snapshot())
}

func (h *AdminHandler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, management.ErrSecretRequired):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, management.ErrInvalidResolution):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, management.ErrAttemptNotFound):
		return response.Error(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, management.ErrPSPInUse), errors.Is(err, management.ErrAttemptNotProcessing):
		return response.Error(c, fiber.StatusConflict, err.Error())
	default:
		return response.FromError(c, err)
	}
}

func storeAndPSP(c *fiber.Ctx) (uint, uint, error) {
	storeID, err := parseID(c, "storeId")
	if err != nil {
		return 0, 0, err
	}
	pspID, err := parseID(c, "pspId")
	if err != nil {
		return 0, 0, err
	}
	return storeID, pspID, nil
}
