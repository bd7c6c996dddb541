package handler

import (
	"context"

	"go-warehouse-fulfillment/internal/middleware"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type PickingHandler struct {
	service service.PickingService
	retry   Retrier
}

func NewPickingHandler(s service.PickingService, retry Retrier) *PickingHandler {
	return &PickingHandler{service: s, retry: retry}
}

// GET /pickings/suggestions?item_id=&quantity=
func (h *PickingHandler) Suggest(c *fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Query("item_id"))
	if err != nil {
		return badRequest(c, "Invalid item_id")
	}
	quantity := c.QueryInt("quantity", 0)

	plan, err := h.service.SuggestLocations(c.UserContext(), itemID, quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"item_id": itemID, "quantity": quantity, "suggestions": plan})
}

// POST /sales-orders/:id/picking
func (h *PickingHandler) Generate(c *fiber.Ctx) error {
	orderID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid sales order ID")
	}

	var picking *model.Picking
	err := h.retry.Do(c.UserContext(), func() error {
		var err error
		picking, err = h.service.Generate(c.UserContext(), middleware.Principal(c), orderID)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":        "Picking generated",
		"picking_id":     picking.ID,
		"picking_number": picking.PickingNumber,
		"data":           picking.ToResponse(),
	})
}

// POST /picking-details/:id/pick
func (h *PickingHandler) RecordPick(c *fiber.Ctx) error {
	detailID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid picking detail ID")
	}
	var req service.RecordPickRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}

	var detail *model.PickingDetail
	err := h.retry.Do(c.UserContext(), func() error {
		var err error
		detail, err = h.service.RecordPick(c.UserContext(), middleware.Principal(c), detailID, req.Quantity)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Pick recorded", "data": detail.ToResponse()})
}

// POST /pickings/:id/complete
func (h *PickingHandler) Complete(c *fiber.Ctx) error {
	return h.transition(c, "Picking completed", h.service.Complete)
}

// POST /pickings/:id/cancel
func (h *PickingHandler) Cancel(c *fiber.Ctx) error {
	return h.transition(c, "Picking cancelled", h.service.Cancel)
}

func (h *PickingHandler) transition(c *fiber.Ctx, message string, fn func(ctx context.Context, actor model.Principal, id uuid.UUID) (*model.Picking, error)) error {
	pickingID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid picking ID")
	}

	var picking *model.Picking
	err := h.retry.Do(c.UserContext(), func() error {
		var err error
		picking, err = fn(c.UserContext(), middleware.Principal(c), pickingID)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": message, "data": picking.ToResponse()})
}

// GET /pickings/:id
func (h *PickingHandler) Get(c *fiber.Ctx) error {
	pickingID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid picking ID")
	}
	picking, err := h.service.GetPicking(c.UserContext(), pickingID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(picking.ToResponse())
}
