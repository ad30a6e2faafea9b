package auth

import (
	"fmt"
	"time"

	"github.com/spec-kit/authguard/internal/domain"
)

// Verifier validates a raw token at a point in time.
type Verifier interface {
	Verify(token string, now time.Time) (*Claims, error)
}

// Guard decides whether a request may proceed. It performs no I/O and keeps no state, so it
// is safe to share across requests.
type Guard struct {
	verifier Verifier
}

// NewGuard builds a guard around verifier.
func NewGuard(verifier Verifier) *Guard {
	return &Guard{verifier: verifier}
}

// Authenticate verifies token. An empty token yields ErrMissingToken; verification errors
// are returned unchanged.
func (g *Guard) Authenticate(token string, now time.Time) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	return g.verifier.Verify(token, now)
}

// Authorize checks that the caller's role is in allowed. An empty allowed set admits any
// authenticated caller.
func (g *Guard) Authorize(claims *Claims, allowed domain.RoleSet) error {
	if claims == nil {
		return ErrMissingToken
	}
	if allowed.Len() == 0 {
		return nil
	}
	if !allowed.Contains(claims.Role) {
		return fmt.Errorf("%w: %s not in %s", ErrInsufficientRole, claims.Role, allowed)
	}
	return nil
}
