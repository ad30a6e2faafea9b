package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/spec-kit/authguard/internal/domain"
)

type sqlitePrincipalRepository struct {
	db *sql.DB
}

// NewSQLitePrincipalRepository returns a sqlite-backed implementation. Timestamps are stored
// as RFC 3339 text.
func NewSQLitePrincipalRepository(db *sql.DB) PrincipalRepository {
	return &sqlitePrincipalRepository{db: db}
}

func (r *sqlitePrincipalRepository) Create(ctx context.Context, p *domain.Principal) error {
	const query = `
        INSERT INTO principals (id, identity, role, password_hash, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT (identity) DO NOTHING`

	prepareForInsert(p, time.Now())
	res, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Identity,
		string(p.Role),
		p.PasswordHash,
		p.CreatedAt.Format(time.RFC3339Nano),
		p.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if inserted == 0 {
		return ErrPrincipalExists
	}
	return nil
}

func (r *sqlitePrincipalRepository) GetByIdentity(ctx context.Context, identity string) (*domain.Principal, error) {
	const query = `
        SELECT id, identity, role, password_hash, created_at, updated_at
        FROM principals WHERE identity = ?`

	var (
		p                    domain.Principal
		role                 string
		createdAt, updatedAt string
	)
	if err := r.db.QueryRowContext(ctx, query, identity).Scan(
		&p.ID,
		&p.Identity,
		&role,
		&p.PasswordHash,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPrincipalNotFound
		}
		return nil, err
	}
	p.Role = domain.Role(role)

	var err error
	if p.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *sqlitePrincipalRepository) UpdateRole(ctx context.Context, identity string, role domain.Role) error {
	const query = `UPDATE principals SET role = ?, updated_at = ? WHERE identity = ?`
	return r.exec(ctx, query, string(role), time.Now().UTC().Format(time.RFC3339Nano), identity)
}

func (r *sqlitePrincipalRepository) UpdatePasswordHash(ctx context.Context, identity, hash string) error {
	const query = `UPDATE principals SET password_hash = ?, updated_at = ? WHERE identity = ?`
	return r.exec(ctx, query, hash, time.Now().UTC().Format(time.RFC3339Nano), identity)
}

func (r *sqlitePrincipalRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrPrincipalNotFound
	}
	return nil
}

func (r *sqlitePrincipalRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
