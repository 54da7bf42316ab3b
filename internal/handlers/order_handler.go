package handlers

import (
	"fmt"
	"log"
	"time"

	"sewain/internal/middleware"
	"sewain/internal/models"
	"sewain/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const dateLayout = "2006-01-02"

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app. The router
// is expected to already require an authenticated, verified caller.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Post("/", h.HandleCreateOrder)
	orderRoutes.Get("/", h.HandleListOrders)
	orderRoutes.Get("/:id", h.HandleGetOrder)
	orderRoutes.Post("/:id/partner-confirm", h.HandlePartnerConfirm)
	orderRoutes.Post("/:id/partner-cancel", h.HandlePartnerCancel)
	orderRoutes.Post("/:id/partner-pickedup", h.HandlePartnerPickedUp)
	orderRoutes.Post("/:id/partner-finish", h.HandlePartnerFinish)
}

// RegisterAdminRoutes registers the admin order routes. The router is
// expected to already require the admin role.
func (h *OrderHandler) RegisterAdminRoutes(router fiber.Router) {
	router.Get("/orders", h.HandleAdminListOrders)
	router.Post("/orders/:id/status", h.HandleAdminSetStatus)
}

// CreateOrderRequest is the body for placing a rental order.
type CreateOrderRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Duration  int    `json:"duration" validate:"required,min=1"`
	StartDate string `json:"start_date" validate:"required"`
}

// HandleCreateOrder places a rental order for the authenticated user.
func (h *OrderHandler) HandleCreateOrder(c *fiber.Ctx) error {
	var req CreateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing create order body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return writeError(c, services.NewValidationError("start_date", "start date must be formatted as YYYY-MM-DD"))
	}

	order, err := h.service.CreateOrder(middleware.Actor(c), req.ProductID, req.Duration, startDate)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleListOrders returns the orders visible to the caller: customers get
// their own orders, partners the orders they fulfill, admins everything.
func (h *OrderHandler) HandleListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(middleware.Actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(orders)
}

// HandleGetOrder returns a single order within the caller's read scope.
func (h *OrderHandler) HandleGetOrder(c *fiber.Ctx) error {
	order, err := h.service.GetOrder(middleware.Actor(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(order)
}

// PartnerConfirmRequest is the body for the partner confirmation endpoint.
// Status, when present, may only request "ready".
type PartnerConfirmRequest struct {
	PickupAddress     string `json:"pickup_address" validate:"required"`
	ContactNumber     string `json:"contact_number" validate:"required"`
	PickupTime        string `json:"pickup_time" validate:"required"`
	Notes             string `json:"notes"`
	ReturnInformation string `json:"return_information"`
	Status            string `json:"status" validate:"omitempty,oneof=ready"`
}

// HandlePartnerConfirm updates the fulfillment fields of an order and, when
// status=ready is requested, moves it from waiting to ready.
func (h *OrderHandler) HandlePartnerConfirm(c *fiber.Ctx) error {
	var req PartnerConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing partner confirm body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	info := services.PickupInfo{
		PickupAddress:     req.PickupAddress,
		ContactNumber:     req.ContactNumber,
		PickupTime:        req.PickupTime,
		Notes:             req.Notes,
		ReturnInformation: req.ReturnInformation,
		MarkReady:         req.Status == string(models.StatusReady),
	}
	if err := h.service.ConfirmPickup(middleware.Actor(c), c.Params("id"), info); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandlePartnerCancel cancels a waiting order.
func (h *OrderHandler) HandlePartnerCancel(c *fiber.Ctx) error {
	if err := h.service.Cancel(middleware.Actor(c), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandlePartnerPickedUp marks a ready order as picked up.
func (h *OrderHandler) HandlePartnerPickedUp(c *fiber.Ctx) error {
	if err := h.service.MarkPickedUp(middleware.Actor(c), c.Params("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// PartnerFinishRequest is the body for finishing a returned order.
type PartnerFinishRequest struct {
	ReturnInformation string `json:"return_information"`
}

// HandlePartnerFinish completes an order that is due for return.
func (h *OrderHandler) HandlePartnerFinish(c *fiber.Ctx) error {
	var req PartnerFinishRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			log.Printf("Error parsing partner finish body: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"message": "Invalid request body",
				"error":   err.Error(),
			})
		}
	}
	if err := h.service.MarkFinished(middleware.Actor(c), c.Params("id"), req.ReturnInformation); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// HandleAdminListOrders returns every order with related summaries.
func (h *OrderHandler) HandleAdminListOrders(c *fiber.Ctx) error {
	orders, err := h.service.ListOrders(middleware.Actor(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(orders)
}

// AdminSetStatusRequest is the body for the admin status override.
type AdminSetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// HandleAdminSetStatus overwrites an order's status without state-machine
// enforcement. Used for manual correction.
func (h *OrderHandler) HandleAdminSetStatus(c *fiber.Ctx) error {
	var req AdminSetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing admin status body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return writeValidationErrors(c, err)
	}

	orderID := c.Params("id")
	if err := h.service.AdminSetStatus(middleware.Actor(c), orderID, models.OrderStatus(req.Status)); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("Order %s status updated successfully to %s", orderID, req.Status),
	})
}

// writeValidationErrors converts validator tag failures into the same
// field-map shape the services produce.
func writeValidationErrors(c *fiber.Ctx, err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request",
			"error":   err.Error(),
		})
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}
