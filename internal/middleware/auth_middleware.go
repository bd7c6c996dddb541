package middleware

import (
	"strings"

	"go-warehouse-fulfillment/internal/model"
	"go-warehouse-fulfillment/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

// Privileges gating the fulfillment routes.
const (
	PrivInventoryView   = "inventory:view"
	PrivInventoryAdjust = "inventory:adjust"
	PrivLocationManage  = "location:manage"
	PrivPickingView     = "picking:view"
	PrivPickingManage   = "picking:manage"
	PrivPickingPick     = "picking:pick"
	PrivSalesOrderView  = "sales_order:view"
	PrivSalesOrderEdit  = "sales_order:manage"
	PrivSalesOrderShip  = "sales_order:ship"
)

const (
	localPrincipal  = "principal"
	localPrivileges = "user_privileges"
)

// RequireAuth is middleware that validates JWT token and sets the principal in context
func RequireAuth(tokens *jwt.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization token"})
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid authorization format. Use: Bearer <token>"})
		}

		claims, err := tokens.ValidateToken(parts[1])
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid or expired token"})
		}

		c.Locals(localPrincipal, model.Principal{
			ID:    claims.UserID,
			Name:  claims.Name,
			Email: claims.Email,
		})
		c.Locals(localPrivileges, claims.Privileges)

		return c.Next()
	}
}

// Principal returns the authenticated actor, or the system principal on unauthenticated routes.
func Principal(c *fiber.Ctx) model.Principal {
	if p, ok := c.Locals(localPrincipal).(model.Principal); ok {
		return p
	}
	return model.SystemPrincipal
}

// RequirePrivilege checks if the authenticated user has the required privilege
func RequirePrivilege(requiredPrivilege string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		privileges, ok := c.Locals(localPrivileges).([]string)
		if !ok {
			return c.Status(403).JSON(fiber.Map{"error": "No privileges found"})
		}

		for _, p := range privileges {
			if p == requiredPrivilege {
				return c.Next()
			}
		}

		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires '" + requiredPrivilege + "' privilege",
		})
	}
}

// RequireAnyPrivilege checks if the user has at least one of the specified privileges
func RequireAnyPrivilege(requiredPrivileges ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		privileges, ok := c.Locals(localPrivileges).([]string)
		if !ok {
			return c.Status(403).JSON(fiber.Map{"error": "No privileges found"})
		}

		for _, userPriv := range privileges {
			for _, reqPriv := range requiredPrivileges {
				if userPriv == reqPriv {
					return c.Next()
				}
			}
		}

		return c.Status(403).JSON(fiber.Map{
			"error": "Forbidden: requires one of " + strings.Join(requiredPrivileges, ", ") + " privileges",
		})
	}
}

// AllPrivileges is granted to tokens minted by the ops CLI.
func AllPrivileges() []string {
	return []string{
		PrivInventoryView, PrivInventoryAdjust, PrivLocationManage,
		PrivPickingView, PrivPickingManage, PrivPickingPick,
		PrivSalesOrderView, PrivSalesOrderEdit, PrivSalesOrderShip,
	}
}
