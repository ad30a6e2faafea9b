package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/authguard/internal/domain"
)

const pgUniqueViolation = "23505"

type postgresPrincipalRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPrincipalRepository returns a Postgres-backed implementation.
func NewPostgresPrincipalRepository(pool *pgxpool.Pool) PrincipalRepository {
	return &postgresPrincipalRepository{pool: pool}
}

func (r *postgresPrincipalRepository) Create(ctx context.Context, p *domain.Principal) error {
	const query = `
        INSERT INTO principals (id, identity, role, password_hash, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6)`

	prepareForInsert(p, time.Now())
	_, err := r.pool.Exec(ctx, query,
		p.ID,
		p.Identity,
		string(p.Role),
		p.PasswordHash,
		p.CreatedAt,
		p.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrPrincipalExists
	}
	return err
}

func (r *postgresPrincipalRepository) GetByIdentity(ctx context.Context, identity string) (*domain.Principal, error) {
	const query = `
        SELECT id::text, identity, role, password_hash, created_at, updated_at
        FROM principals WHERE identity=$1`

	var (
		p    domain.Principal
		role string
	)
	if err := r.pool.QueryRow(ctx, query, identity).Scan(
		&p.ID,
		&p.Identity,
		&role,
		&p.PasswordHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	p.Role = domain.Role(role)
	return &p, nil
}

func (r *postgresPrincipalRepository) UpdateRole(ctx context.Context, identity string, role domain.Role) error {
	const query = `UPDATE principals SET role=$1, updated_at=NOW() WHERE identity=$2`
	return r.exec(ctx, query, string(role), identity)
}

func (r *postgresPrincipalRepository) UpdatePasswordHash(ctx context.Context, identity, hash string) error {
	const query = `UPDATE principals SET password_hash=$1, updated_at=NOW() WHERE identity=$2`
	return r.exec(ctx, query, hash, identity)
}

func (r *postgresPrincipalRepository) exec(ctx context.Context, query string, args ...any) error {
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (r *postgresPrincipalRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
