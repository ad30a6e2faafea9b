package repository

import (
	"context"
	"errors"

	"github.com/spec-kit/authguard/internal/domain"
)

var (
	// ErrPrincipalNotFound is returned when no principal has the requested identity.
	ErrPrincipalNotFound = errors.New("principal not found")
	// ErrPrincipalExists is returned when the identity is already registered.
	ErrPrincipalExists = errors.New("principal already exists")
)

// PrincipalRepository defines persistence access for registered principals.
type PrincipalRepository interface {
	// Create stores p, assigning ID and timestamps when unset.
	Create(ctx context.Context, p *domain.Principal) error
	GetByIdentity(ctx context.Context, identity string) (*domain.Principal, error)
	UpdateRole(ctx context.Context, identity string, role domain.Role) error
	UpdatePasswordHash(ctx context.Context, identity, hash string) error
	Ping(ctx context.Context) error
}
