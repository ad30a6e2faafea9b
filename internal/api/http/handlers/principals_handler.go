package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/authguard/internal/api/dto"
	"github.com/spec-kit/authguard/internal/domain"
	"github.com/spec-kit/authguard/internal/service"
)

// PrincipalsHandler exposes administrative principal endpoints.
type PrincipalsHandler struct {
	auth *service.AuthService
}

// NewPrincipalsHandler constructs handler.
func NewPrincipalsHandler(authService *service.AuthService) *PrincipalsHandler {
	return &PrincipalsHandler{auth: authService}
}

// Create handles POST /admin/principals.
func (h *PrincipalsHandler) Create(c *fiber.Ctx) error {
	var req dto.CreatePrincipalRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	principal, err := h.auth.CreatePrincipal(c.UserContext(), req.Identity, req.Password, req.ParsedRole())
	if err != nil {
		return mapServiceError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": principalResponse(principal)})
}

// ChangeRole handles PUT /admin/principals/:identity/role.
func (h *PrincipalsHandler) ChangeRole(c *fiber.Ctx) error {
	var req dto.ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	principal, err := h.auth.ChangeRole(c.UserContext(), c.Params("identity"), req.ParsedRole())
	if err != nil {
		return mapServiceError(err)
	}
	return c.JSON(fiber.Map{"data": principalResponse(principal)})
}

func principalResponse(p *domain.Principal) dto.PrincipalResponse {
	return dto.PrincipalResponse{
		ID:        p.ID,
		Identity:  p.Identity,
		Role:      string(p.Role),
		CreatedAt: p.CreatedAt.UTC(),
	}
}
