package auth

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/authguard/pkg/util/errorutil"
)

const claimsKey = "auth_claims"

type claimsCtxKey struct{}

// Guard outcomes reported to the DecisionRecorder.
const (
	OutcomeForwarded    = "forwarded"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
)

// DecisionRecorder counts guard decisions.
type DecisionRecorder interface {
	RecordGuardDecision(ctx context.Context, outcome, reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordGuardDecision(context.Context, string, string) {}

// Middleware adapts a Guard to fiber handlers.
type Middleware struct {
	guard      *Guard
	logger     *zap.Logger
	recorder   DecisionRecorder
	cookieName string
	now        func() time.Time
}

// MiddlewareOption customizes a Middleware.
type MiddlewareOption func(*Middleware)

// WithCookie accepts the token from the named cookie when no bearer header is sent.
func WithCookie(name string) MiddlewareOption {
	return func(m *Middleware) { m.cookieName = name }
}

// WithRecorder sets the metrics sink for guard decisions.
func WithRecorder(recorder DecisionRecorder) MiddlewareOption {
	return func(m *Middleware) {
		if recorder != nil {
			m.recorder = recorder
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) MiddlewareOption {
	return func(m *Middleware) { m.now = now }
}

// NewMiddleware constructs middleware.
func NewMiddleware(guard *Guard, logger *zap.Logger, opts ...MiddlewareOption) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Middleware{guard: guard, logger: logger, recorder: nopRecorder{}, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticate enforces a valid token and stores its claims for later stages.
func (m *Middleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := m.authenticate(c); err != nil {
			return err
		}
		m.forwarded(c)
		return c.Next()
	}
}

func (m *Middleware) authenticate(c *fiber.Ctx) error {
	claims, err := m.guard.Authenticate(m.extractToken(c), m.now())
	if err != nil {
		return m.unauthorized(c, err)
	}
	c.Locals(claimsKey, claims)
	c.SetUserContext(WithClaims(c.UserContext(), claims))
	return nil
}

func (m *Middleware) unauthorized(c *fiber.Ctx, err error) error {
	reason := Reason(err)
	m.recorder.RecordGuardDecision(c.UserContext(), OutcomeUnauthorized, reason)
	m.logger.Debug("guard rejected",
		zap.String("path", c.Path()),
		zap.String("reason", reason),
		zap.Error(err),
	)
	if err == ErrMissingToken {
		c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
	} else {
		c.Set(fiber.HeaderWWWAuthenticate, `Bearer error="invalid_token"`)
	}
	return apperrors.NewUnauthorized("unauthorized").WithCause(err)
}

func (m *Middleware) forwarded(c *fiber.Ctx) {
	m.recorder.RecordGuardDecision(c.UserContext(), OutcomeForwarded, "ok")
}

// extractToken reads "Authorization: Bearer <token>", falling back to the configured cookie.
// Any other scheme counts as no token.
func (m *Middleware) extractToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}
	if m.cookieName != "" {
		return c.Cookies(m.cookieName)
	}
	return ""
}

// ClaimsFromContext retrieves the verified claims of the caller.
func ClaimsFromContext(c *fiber.Ctx) (*Claims, bool) {
	val := c.Locals(claimsKey)
	if val == nil {
		return nil, false
	}
	claims, ok := val.(*Claims)
	return claims, ok
}

// ClaimsFrom retrieves verified claims from a request context derived from the fiber user context.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsCtxKey{}).(*Claims)
	return claims, ok
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey{}, claims)
}
