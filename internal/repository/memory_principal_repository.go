package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/authguard/internal/domain"
)

type memoryPrincipalRepository struct {
	mu         sync.RWMutex
	principals map[string]domain.Principal
	now        func() time.Time
}

// NewMemoryPrincipalRepository returns an in-process store. Contents are lost on restart.
func NewMemoryPrincipalRepository() PrincipalRepository {
	return &memoryPrincipalRepository{principals: make(map[string]domain.Principal), now: time.Now}
}

func (r *memoryPrincipalRepository) Create(ctx context.Context, p *domain.Principal) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.principals[p.Identity]; exists {
		return ErrPrincipalExists
	}
	prepareForInsert(p, r.now())
	stored := *p
	stored.Identity = strings.Clone(p.Identity)
	stored.PasswordHash = strings.Clone(p.PasswordHash)
	r.principals[stored.Identity] = stored
	return nil
}

func (r *memoryPrincipalRepository) GetByIdentity(ctx context.Context, identity string) (*domain.Principal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principals[identity]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return &p, nil
}

func (r *memoryPrincipalRepository) UpdateRole(ctx context.Context, identity string, role domain.Role) error {
	return r.update(ctx, identity, func(p *domain.Principal) { p.Role = role })
}

func (r *memoryPrincipalRepository) UpdatePasswordHash(ctx context.Context, identity, hash string) error {
	hash = strings.Clone(hash)
	return r.update(ctx, identity, func(p *domain.Principal) { p.PasswordHash = hash })
}

func (r *memoryPrincipalRepository) update(ctx context.Context, identity string, mutate func(*domain.Principal)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.principals[identity]
	if !ok {
		return ErrPrincipalNotFound
	}
	mutate(&p)
	p.UpdatedAt = r.now().UTC()
	// Keyed by the stored identity: assigning with the caller's string would replace the key.
	r.principals[p.Identity] = p
	return nil
}

func (r *memoryPrincipalRepository) Ping(ctx context.Context) error {
	return ctx.Err()
}

func prepareForInsert(p *domain.Principal, now time.Time) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now = now.UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
