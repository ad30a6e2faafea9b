package auth

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/domain"
	apperrors "github.com/spec-kit/authguard/pkg/util/errorutil"
)

// RequireRoles authenticates and then requires one of roles.
func (m *Middleware) RequireRoles(roles ...domain.Role) fiber.Handler {
	allowed := domain.NewRoleSet(roles...)
	return func(c *fiber.Ctx) error {
		if err := m.authenticate(c); err != nil {
			return err
		}
		if err := m.authorize(c, allowed); err != nil {
			return err
		}
		m.forwarded(c)
		return c.Next()
	}
}

// Authorize requires one of roles from a caller already passed through Authenticate.
func (m *Middleware) Authorize(roles ...domain.Role) fiber.Handler {
	allowed := domain.NewRoleSet(roles...)
	return func(c *fiber.Ctx) error {
		if _, ok := ClaimsFromContext(c); !ok {
			return m.unauthorized(c, ErrMissingToken)
		}
		if err := m.authorize(c, allowed); err != nil {
			return err
		}
		return c.Next()
	}
}

func (m *Middleware) authorize(c *fiber.Ctx, allowed domain.RoleSet) error {
	claims, _ := ClaimsFromContext(c)
	if err := m.guard.Authorize(claims, allowed); err != nil {
		reason := Reason(err)
		m.recorder.RecordGuardDecision(c.UserContext(), OutcomeForbidden, reason)
		m.logger.Debug("guard denied",
			zap.String("path", c.Path()),
			zap.String("subject", claims.Subject),
			zap.String("role", claims.Role.String()),
			zap.String("reason", reason),
		)
		return apperrors.NewForbidden("forbidden").WithCause(err)
	}
	return nil
}
