package handler

import (
	"strings"

	"go-warehouse-fulfillment/internal/middleware"
	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/internal/service"

	"github.com/gofiber/fiber/v2"
)

type LocationHandler struct {
	service service.CapacityService
	retry   Retrier
}

func NewLocationHandler(s service.CapacityService, retry Retrier) *LocationHandler {
	return &LocationHandler{service: s, retry: retry}
}

// GET /locations?category=STORAGE
func (h *LocationHandler) List(c *fiber.Ctx) error {
	var category *model.LocationCategory
	if raw := strings.ToUpper(c.Query("category")); raw != "" {
		cat := model.LocationCategory(raw)
		if cat != model.LocationStorage && cat != model.LocationOther {
			return badRequest(c, "Invalid category")
		}
		category = &cat
	}

	locations, err := h.service.ListLocations(c.UserContext(), category)
	if err != nil {
		return writeError(c, err)
	}
	threshold := h.service.NearFullThreshold()
	out := make([]model.LocationResponse, len(locations))
	for i := range locations {
		out[i] = locations[i].ToResponse(threshold)
	}
	return c.JSON(out)
}

// POST /locations
func (h *LocationHandler) Create(c *fiber.Ctx) error {
	var req service.CreateLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid JSON")
	}
	location, err := h.service.CreateLocation(c.UserContext(), middleware.Principal(c), &req)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Location created",
		"data":    location.ToResponse(h.service.NearFullThreshold()),
	})
}

// DELETE /locations/:id
func (h *LocationHandler) Retire(c *fiber.Ctx) error {
	locationID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid location ID")
	}
	err := h.retry.Do(c.UserContext(), func() error {
		return h.service.Retire(c.UserContext(), middleware.Principal(c), locationID)
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Location retired"})
}

// POST /locations/:id/recompute
func (h *LocationHandler) Recompute(c *fiber.Ctx) error {
	locationID, ok := paramUUID(c, "id")
	if !ok {
		return badRequest(c, "Invalid location ID")
	}
	var capacity int
	err := h.retry.Do(c.UserContext(), func() error {
		var err error
		capacity, err = h.service.Recompute(c.UserContext(), middleware.Principal(c), locationID)
		return err
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"location_id": locationID, "current_capacity": capacity})
}
