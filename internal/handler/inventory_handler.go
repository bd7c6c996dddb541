package handler

import (
	"strings"

	"go-warehouse-fulfillment/internal/middleware"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/service"
	"go-warehouse-fulfillment/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type InventoryHandler struct {
	service service.LedgerService
	retry   Retrier
}

func NewInventoryHandler(s service.LedgerService, retry Retrier) *InventoryHandler {
	return &InventoryHandler{service: s, retry: retry}
}

func queryCategory(c *fiber.Ctx) (*model.LocationCategory, bool) {
	raw := strings.ToUpper(c.Query("category"))
	if raw == "" {
		return nil, true
	}
	cat := model.LocationCategory(raw)
	if cat != model.LocationStorage && cat != model.LocationOther {
		return nil, false
	}
	return &cat, true
}

// GET /inventory/available?item_id=&category=
func (h *InventoryHandler) Available(c *fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Query("item_id"))
	if err != nil {
		return badRequest(c, "Invalid item_id")
	}
	category, ok := queryCategory(c)
	if !ok {
		return badRequest(c, "Invalid category")
	}
	total, err := h.service.GetAvailable(c.UserContext(), itemID, category)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"item_id": itemID, "category": category, "available": total})
}

// GET /inventory/fifo?item_id=&category=&include_empty=
func (h *InventoryHandler) Fifo(c *fiber.Ctx) error {
	itemID, err := uuid.Parse(c.Query("item_id"))
	if err != nil {
		return badRequest(c, "Invalid item_id")
	}
	category, ok := queryCategory(c)
	if !ok {
		return badRequest(c, "Invalid category")
	}
	candidates, err := h.service.FifoCandidates(c.UserContext(), itemID, category, !c.QueryBool("include_empty", false))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"item_id": itemID, "candidates": candidates})
}

// POST /inventory/adjust
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var req service.AdjustRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return badRequest(c, "Validation failed: "+errs[0].Error())
	}

	var record *model.InventoryRecord
	err := h.retry.Do(c.UserContext(), func() error {
		var err error
		record, err = h.service.Adjust(c.UserContext(), middleware.Principal(c), req.ItemID, req.LocationID, req.Delta)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Stock adjusted", "data": record.ToResponse()})
}

// POST /inventory/move
func (h *InventoryHandler) Move(c *fiber.Ctx) error {
	var req service.MoveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	if errs := validator.ValidateStruct(&req); len(errs) > 0 {
		return badRequest(c, "Validation failed: "+errs[0].Error())
	}

	err := h.retry.Do(c.UserContext(), func() error {
		return h.service.Move(c.UserContext(), middleware.Principal(c), req.ItemID, req.FromLocationID, req.ToLocationID, req.Quantity)
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Stock moved"})
}
