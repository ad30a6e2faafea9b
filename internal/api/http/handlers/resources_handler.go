package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/authguard/internal/auth"
)

// ResourcesHandler serves the sample role-gated resources.
type ResourcesHandler struct{}

// NewResourcesHandler constructs handler.
func NewResourcesHandler() *ResourcesHandler {
	return &ResourcesHandler{}
}

// Reports handles GET /reports.
func (h *ResourcesHandler) Reports(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{"resource": "reports", "viewer": viewer(c)}})
}

// Admin handles GET /admin.
func (h *ResourcesHandler) Admin(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": fiber.Map{"resource": "admin", "viewer": viewer(c)}})
}

func viewer(c *fiber.Ctx) fiber.Map {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return nil
	}
	return fiber.Map{"subject": claims.Subject, "role": claims.Role}
}
