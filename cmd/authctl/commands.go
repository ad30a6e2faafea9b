package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/config"
	"github.com/spec-kit/authguard/internal/domain"
	"github.com/spec-kit/authguard/internal/repository"
	"github.com/spec-kit/authguard/internal/service"
)

// TokenOptions carries the signing material and claims for the token commands.
type TokenOptions struct {
	Secret  string
	KeyID   string
	Subject string
	Role    string
	TTL     time.Duration
}

func (o TokenOptions) manager() (*auth.TokenManager, error) {
	if err := auth.ValidateSecret(o.Secret); err != nil {
		return nil, err
	}
	ring := auth.NewKeyRing(auth.NewSigningKey(o.KeyID, []byte(o.Secret)))
	return auth.NewTokenManager(ring, domain.RoleSet{}, o.TTL), nil
}

// RunGenerateSecret prints a random secret suitable for AUTH_JWT_SECRET and its key id.
func RunGenerateSecret(w io.Writer, n int) error {
	if n < auth.MinSecretLength {
		return fmt.Errorf("bytes must be at least %d, got %d", auth.MinSecretLength, n)
	}
	raw := make([]byte, n)
	if _, err := rand.Read(raw); err != nil {
		return fmt.Errorf("failed to generate secret: %w", err)
	}
	secret := base64.RawURLEncoding.EncodeToString(raw)

	fmt.Fprintf(w, "AUTH_JWT_SECRET=%s\n", secret)
	fmt.Fprintf(w, "# kid: %s\n", auth.Fingerprint([]byte(secret)))
	return nil
}

// RunHashPassword prints the hash of password.
func RunHashPassword(w io.Writer, algorithm string, cost int, password string) error {
	hasher, err := auth.NewPasswordHasher(algorithm, cost)
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	fmt.Fprintln(w, hash)
	return nil
}

// RunIssueToken signs a token for opts.Subject and prints it.
func RunIssueToken(w io.Writer, opts TokenOptions, now time.Time) error {
	tm, err := opts.manager()
	if err != nil {
		return err
	}
	role, ok := domain.ParseRole(opts.Role)
	if !ok {
		return fmt.Errorf("%w: %q", auth.ErrUnknownRole, opts.Role)
	}
	issued, err := tm.Issue(opts.Subject, role, now, opts.TTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, issued.Token)
	return nil
}

type verifiedClaims struct {
	Subject   string    `json:"subject"`
	Role      string    `json:"role"`
	TokenID   string    `json:"token_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RunVerifyToken verifies token and prints its claims as JSON. A rejected token is reported
// with its reason label.
func RunVerifyToken(w io.Writer, opts TokenOptions, token string, now time.Time) error {
	tm, err := opts.manager()
	if err != nil {
		return err
	}
	claims, err := tm.Verify(token, now)
	if err != nil {
		return fmt.Errorf("token rejected (%s): %w", auth.Reason(err), err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(verifiedClaims{
		Subject:   claims.Subject,
		Role:      string(claims.Role),
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	})
}

// ErrEphemeralStore rejects commands whose writes would vanish when the process exits.
var ErrEphemeralStore = errors.New("CREDENTIAL_STORE=memory does not outlive this command; use postgres or sqlite")

// RunCreatePrincipal creates a principal in the store described by cfg, loading the
// environment configuration when cfg is nil.
func RunCreatePrincipal(ctx context.Context, w io.Writer, cfg *config.Config, identity, password, roleName string) error {
	if cfg == nil {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cfg.Store.Backend == config.StoreMemory {
		return ErrEphemeralStore
	}
	role, ok := domain.ParseRole(roleName)
	if !ok {
		return fmt.Errorf("%w: %q", auth.ErrUnknownRole, roleName)
	}

	logger := zap.NewNop()
	store, err := repository.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	hasher, err := auth.NewPasswordHasher(cfg.Auth.PasswordAlgorithm, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	key, err := cfg.Auth.SigningKey()
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(auth.NewKeyRing(key), cfg.Auth.RecognizedRoles, cfg.Auth.AccessTokenTTL)

	svc, err := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Principals: store.Principals,
		Hasher:     hasher,
		Tokens:     tokens,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	principal, err := svc.CreatePrincipal(ctx, identity, password, role)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "created %s with role %s (id %s)\n", principal.Identity, principal.Role, principal.ID)
	return nil
}
