package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/api/dto"
	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/observability"
	"github.com/spec-kit/authguard/internal/service"
	"github.com/spec-kit/authguard/internal/throttle"
	apperrors "github.com/spec-kit/authguard/pkg/util/errorutil"
)

// CookieConfig controls the optional token cookie set on login.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler exposes login, registration and self-service account endpoints.
type AuthHandler struct {
	auth            *service.AuthService
	limiter         throttle.Limiter
	throttleBackend string
	cookie          CookieConfig
	metrics         *observability.Metrics
	logger          *zap.Logger
}

// AuthHandlerDependencies encapsulates collaborators for the auth handler.
type AuthHandlerDependencies struct {
	Auth            *service.AuthService
	Limiter         throttle.Limiter
	ThrottleBackend string
	Cookie          CookieConfig
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// NewAuthHandler constructs handler. A nil limiter disables throttling.
func NewAuthHandler(deps AuthHandlerDependencies) *AuthHandler {
	h := &AuthHandler{
		auth:            deps.Auth,
		limiter:         deps.Limiter,
		throttleBackend: deps.ThrottleBackend,
		cookie:          deps.Cookie,
		metrics:         deps.Metrics,
		logger:          deps.Logger,
	}
	if h.limiter == nil {
		h.limiter = throttle.Off{}
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	return h
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := h.throttle(c, req.Identity); err != nil {
		return err
	}

	result, err := h.auth.Login(service.WithClientIP(c.UserContext(), c.IP()), req.Identity, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	h.setCookie(c, result.Token)
	return c.JSON(fiber.Map{"data": authData(result)})
}

// Register handles POST /auth/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if err := h.throttle(c, req.Identity); err != nil {
		return err
	}

	result, err := h.auth.Register(service.WithClientIP(c.UserContext(), c.IP()), req.Identity, req.Password)
	if err != nil {
		return mapServiceError(err)
	}
	h.setCookie(c, result.Token)
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": authData(result)})
}

// Profile handles GET /profile and echoes the verified claims.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthorized")
	}
	data := fiber.Map{
		"subject":    claims.Subject,
		"role":       claims.Role,
		"token_id":   claims.ID,
		"expires_at": claims.ExpiresAt.Time.UTC(),
	}
	if claims.IssuedAt != nil {
		data["issued_at"] = claims.IssuedAt.Time.UTC()
	}
	return c.JSON(fiber.Map{"data": data})
}

// ChangePassword handles POST /auth/password/change for the authenticated caller.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	claims, ok := auth.ClaimsFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("unauthorized")
	}
	var req dto.PasswordChangeRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidPayload(err)
	}
	if err := req.Validate(); err != nil {
		return err
	}

	if err := h.auth.ChangePassword(c.UserContext(), claims.Subject, req.CurrentPassword, req.NewPassword); err != nil {
		return mapServiceError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// throttle spends one attempt from the budget keyed by client IP and identity.
func (h *AuthHandler) throttle(c *fiber.Ctx, identity string) error {
	key := c.IP() + "|" + service.NormalizeIdentity(identity)
	decision, err := h.limiter.Allow(c.UserContext(), key)
	if err != nil {
		h.logger.Warn("throttle check failed", zap.Error(err))
		return nil
	}
	if decision.Allowed {
		return nil
	}
	h.metrics.RecordThrottled(c.UserContext(), h.throttleBackend)
	return apperrors.NewTooManyRequests(throttle.RetryAfterSeconds(decision.RetryAfter))
}

func (h *AuthHandler) setCookie(c *fiber.Ctx, issued auth.IssuedToken) {
	if h.cookie.Name == "" {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     h.cookie.Name,
		Value:    issued.Token,
		Path:     "/",
		Expires:  issued.ExpiresAt,
		Secure:   h.cookie.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func authData(result *service.LoginResult) fiber.Map {
	return fiber.Map{
		"auth": dto.AuthResponse{
			Token:     result.Token.Token,
			TokenType: "Bearer",
			ExpiresAt: result.Token.ExpiresAt.UTC(),
			ExpiresIn: int64(result.Token.ExpiresAt.Sub(result.Token.IssuedAt) / time.Second),
		},
		"principal": principalResponse(result.Principal),
	}
}
