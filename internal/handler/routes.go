package handler

import (
	"go-warehouse-fulfillment/internal/middleware"
	"go-warehouse-fulfillment/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// Handlers groups every HTTP handler of the API.
type Handlers struct {
	Picking    *PickingHandler
	SalesOrder *SalesOrderHandler
	Location   *LocationHandler
	Inventory  *InventoryHandler
}

// Register mounts the /api/v1 routes behind bearer auth and privilege checks.
func Register(app *fiber.App, h Handlers, tokens *jwt.Manager) {
	api := app.Group("/api/v1", middleware.RequireAuth(tokens))

	// Picking Routes
	api.Get("/pickings/suggestions", middleware.RequireAnyPrivilege(middleware.PrivPickingView, middleware.PrivPickingManage), h.Picking.Suggest)
	api.Get("/pickings/:id", middleware.RequirePrivilege(middleware.PrivPickingView), h.Picking.Get)
	api.Post("/pickings/:id/complete", middleware.RequirePrivilege(middleware.PrivPickingManage), h.Picking.Complete)
	api.Post("/pickings/:id/cancel", middleware.RequirePrivilege(middleware.PrivPickingManage), h.Picking.Cancel)
	api.Post("/picking-details/:id/pick", middleware.RequirePrivilege(middleware.PrivPickingPick), h.Picking.RecordPick)

	// Sales Order Routes
	api.Post("/sales-orders", middleware.RequirePrivilege(middleware.PrivSalesOrderEdit), h.SalesOrder.Create)
	api.Get("/sales-orders/:id", middleware.RequirePrivilege(middleware.PrivSalesOrderView), h.SalesOrder.Get)
	api.Post("/sales-orders/:id/picking", middleware.RequirePrivilege(middleware.PrivPickingManage), h.Picking.Generate)
	api.Post("/sales-orders/:id/cancel", middleware.RequirePrivilege(middleware.PrivSalesOrderEdit), h.SalesOrder.Cancel)
	api.Post("/sales-orders/:id/ship", middleware.RequirePrivilege(middleware.PrivSalesOrderShip), h.SalesOrder.Ship)

	// Location Routes
	api.Get("/locations", middleware.RequirePrivilege(middleware.PrivInventoryView), h.Location.List)
	api.Post("/locations", middleware.RequirePrivilege(middleware.PrivLocationManage), h.Location.Create)
	api.Delete("/locations/:id", middleware.RequirePrivilege(middleware.PrivLocationManage), h.Location.Retire)
	api.Post("/locations/:id/recompute", middleware.RequirePrivilege(middleware.PrivLocationManage), h.Location.Recompute)

	// Inventory Routes
	api.Get("/inventory/available", middleware.RequirePrivilege(middleware.PrivInventoryView), h.Inventory.Available)
	api.Get("/inventory/fifo", middleware.RequirePrivilege(middleware.PrivInventoryView), h.Inventory.Fifo)
	api.Post("/inventory/adjust", middleware.RequirePrivilege(middleware.PrivInventoryAdjust), h.Inventory.Adjust)
	api.Post("/inventory/move", middleware.RequirePrivilege(middleware.PrivInventoryAdjust), h.Inventory.Move)
}
