package handler

import (
	"go-warehouse-fulfillment/internal/middleware"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/service"

	"github.com/gofiber/fiber/v2"
)

type SalesOrderHandler struct {
	service service.FulfillmentService
	retry   Retrier
}

func NewSalesOrderHandler(s service.FulfillmentService, retry Retrier) *SalesOrderHandler {
	return &SalesOrderHandler{service: s, retry: retry}
}

// POST /sales-orders
func (h *SalesOrderHandler) Create(c *fiber.Ctx) error {
	var req service.CreateSalesOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	order, err := h.service.CreateSalesOrder(c.UserContext(), middleware.Principal(c), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": "Sales order created", "data": order.ToResponse()})
}

// GET /sales-orders/:id
func (h *SalesOrderHandler) Get(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid sales order ID")
	}
	order, err := h.service.GetSalesOrder(c.UserContext(), orderID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(order.ToResponse())
}

// POST /sales-orders/:id/cancel
func (h *SalesOrderHandler) Cancel(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid sales order ID")
	}
	var req service.CancelSalesOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	var order *model.SalesOrder
	err := h.retry.Do(c.UserContext(), func() error {
		var err error
		order, err = h.service.Cancel(c.UserContext(), middleware.Principal(c), orderID, req.Reason)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Sales order cancelled", "data": order.ToResponse()})
}

// POST /sales-orders/:id/ship
func (h *SalesOrderHandler) Ship(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid sales order ID")
	}

	var order *model.SalesOrder
	err := h.retry.Do(c.UserContext(), func() error {
		var err error
		order, err = h.service.Ship(c.UserContext(), middleware.Principal(c), orderID)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Sales order shipped", "data": order.ToResponse()})
}
