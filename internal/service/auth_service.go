package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/config"
	"github.com/spec-kit/authguard/internal/domain"
	"github.com/spec-kit/authguard/internal/events"
	"github.com/spec-kit/authguard/internal/observability"
	"github.com/spec-kit/authguard/internal/repository"
)

// Login results reported to metrics.
const (
	loginSuccess = "success"
	loginFailure = "failure"
	loginError   = "error"
)

// LoginResult is a verified principal and the token issued for it.
type LoginResult struct {
	Principal *domain.Principal
	Token     auth.IssuedToken
}

// AuthService coordinates login, registration and account administration.
type AuthService struct {
	principals        repository.PrincipalRepository
	hasher            auth.PasswordHasher
	tokens            *auth.TokenManager
	dispatcher        events.Dispatcher
	metrics           *observability.Metrics
	logger            *zap.Logger
	storeTimeout      time.Duration
	allowRegistration bool
	dummyHash         string
	now               func() time.Time
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	Principals repository.PrincipalRepository
	Hasher     auth.PasswordHasher
	Tokens     *auth.TokenManager
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAuthService builds the service. It hashes a throwaway password once so failed lookups
// cost the same as failed comparisons.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) (*AuthService, error) {
	dummyHash, err := deps.Hasher.Hash("authguard-timing-equalizer")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	s := &AuthService{
		principals:        deps.Principals,
		hasher:            deps.Hasher,
		tokens:            deps.Tokens,
		dispatcher:        deps.Dispatcher,
		metrics:           deps.Metrics,
		logger:            deps.Logger,
		storeTimeout:      cfg.StoreTimeout,
		allowRegistration: cfg.AllowRegistration,
		dummyHash:         dummyHash,
		now:               deps.Clock,
	}
	if s.dispatcher == nil {
		s.dispatcher = events.NewInMemoryDispatcher()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = 3 * time.Second
	}
	return s, nil
}

// Login verifies credentials and issues a token. Unknown identity and wrong password are
// indistinguishable to the caller: both return an error matching auth.ErrAuthenticationFailed.
func (s *AuthService) Login(ctx context.Context, identity, password string) (*LoginResult, error) {
	identity = NormalizeIdentity(identity)

	principal, err := s.lookup(ctx, identity)
	switch {
	case errors.Is(err, repository.ErrPrincipalNotFound):
		s.hasher.Verify(password, s.dummyHash)
		return nil, s.loginFailed(ctx, identity, auth.ErrCredentialNotFound)
	case err != nil:
		s.metrics.RecordLogin(ctx, loginError)
		return nil, fmt.Errorf("lookup principal: %w", err)
	}

	if !s.hasher.Verify(password, principal.PasswordHash) {
		return nil, s.loginFailed(ctx, identity, auth.ErrCredentialMismatch)
	}

	issued, err := s.issue(ctx, principal)
	if err != nil {
		if errors.Is(err, auth.ErrUnknownRole) {
			return nil, s.loginFailed(ctx, identity, err)
		}
		s.metrics.RecordLogin(ctx, loginError)
		return nil, err
	}

	s.metrics.RecordLogin(ctx, loginSuccess)
	s.publish(ctx, events.Event{
		Type:    events.EventLoginSucceeded,
		Subject: identity,
		Payload: events.LoginPayload{Role: principal.Role, TokenID: issued.ID, ClientIP: clientIP(ctx)},
	})
	return &LoginResult{Principal: principal, Token: issued}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, identity string, cause error) error {
	s.metrics.RecordLogin(ctx, loginFailure)
	s.publish(ctx, events.Event{
		Type:    events.EventLoginFailed,
		Subject: identity,
		Payload: events.LoginPayload{Reason: auth.Reason(cause), ClientIP: clientIP(ctx)},
	})
	return fmt.Errorf("%w: %w", auth.ErrAuthenticationFailed, cause)
}

// Register creates a principal with the user role and logs it in.
func (s *AuthService) Register(ctx context.Context, identity, password string) (*LoginResult, error) {
	if !s.allowRegistration {
		return nil, ErrRegistrationDisabled
	}
	principal, err := s.create(ctx, identity, password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:    events.EventPrincipalRegistered,
		Subject: principal.Identity,
		Actor:   principal.Identity,
		Payload: events.PrincipalRegisteredPayload{Role: principal.Role, SelfService: true},
	})

	issued, err := s.issue(ctx, principal)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Principal: principal, Token: issued}, nil
}

// CreatePrincipal registers a principal with any recognized role.
func (s *AuthService) CreatePrincipal(ctx context.Context, identity, password string, role domain.Role) (*domain.Principal, error) {
	principal, err := s.create(ctx, identity, password, role)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, events.Event{
		Type:    events.EventPrincipalRegistered,
		Subject: principal.Identity,
		Actor:   actor(ctx),
		Payload: events.PrincipalRegisteredPayload{Role: principal.Role},
	})
	return principal, nil
}

// EnsurePrincipal creates the principal unless the identity already exists. It reports
// whether a principal was created; an existing one is left untouched.
func (s *AuthService) EnsurePrincipal(ctx context.Context, identity, password string, role domain.Role) (bool, error) {
	_, err := s.lookup(ctx, NormalizeIdentity(identity))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, repository.ErrPrincipalNotFound) {
		return false, err
	}

	if _, err := s.CreatePrincipal(ctx, identity, password, role); err != nil {
		if errors.Is(err, repository.ErrPrincipalExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ChangeRole replaces the role of an existing principal. Tokens already issued keep their
// old role until they expire.
func (s *AuthService) ChangeRole(ctx context.Context, identity string, role domain.Role) (*domain.Principal, error) {
	identity = NormalizeIdentity(identity)
	if err := s.checkRole(role); err != nil {
		return nil, err
	}

	principal, err := s.lookup(ctx, identity)
	if err != nil {
		return nil, err
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.principals.UpdateRole(ctx, identity, role)
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:    events.EventPrincipalRoleChanged,
		Subject: identity,
		Actor:   actor(ctx),
		Payload: events.RoleChangedPayload{OldRole: principal.Role, NewRole: role},
	})
	principal.Role = role
	return principal, nil
}

// ChangePassword replaces the password after verifying the current one.
func (s *AuthService) ChangePassword(ctx context.Context, identity, current, next string) error {
	identity = NormalizeIdentity(identity)
	if err := validatePassword(next); err != nil {
		return err
	}

	principal, err := s.lookup(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrPrincipalNotFound) {
			return fmt.Errorf("%w: %w", auth.ErrAuthenticationFailed, auth.ErrCredentialNotFound)
		}
		return err
	}
	if !s.hasher.Verify(current, principal.PasswordHash) {
		return fmt.Errorf("%w: %w", auth.ErrAuthenticationFailed, auth.ErrCredentialMismatch)
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.principals.UpdatePasswordHash(ctx, identity, hash)
	}); err != nil {
		return err
	}

	s.publish(ctx, events.Event{Type: events.EventPasswordChanged, Subject: identity, Actor: actor(ctx)})
	return nil
}

// Ping checks the credential store.
func (s *AuthService) Ping(ctx context.Context) error {
	return s.withTimeout(ctx, s.principals.Ping)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokens
}

func (s *AuthService) create(ctx context.Context, identity, password string, role domain.Role) (*domain.Principal, error) {
	identity = NormalizeIdentity(identity)
	if err := validateIdentity(identity); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if err := s.checkRole(role); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	principal := &domain.Principal{Identity: identity, Role: role, PasswordHash: hash}
	if err := s.withTimeout(ctx, func(ctx context.Context) error {
		return s.principals.Create(ctx, principal)
	}); err != nil {
		return nil, err
	}
	return principal, nil
}

func (s *AuthService) issue(ctx context.Context, principal *domain.Principal) (auth.IssuedToken, error) {
	issued, err := s.tokens.Issue(principal.Identity, principal.Role, s.now(), s.tokens.TTL())
	if err != nil {
		return auth.IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}
	s.metrics.RecordTokenIssued(ctx, string(principal.Role))
	return issued, nil
}

func (s *AuthService) checkRole(role domain.Role) error {
	if !role.Valid() || !s.tokens.Roles().Contains(role) {
		return fmt.Errorf("%w: %q", auth.ErrUnknownRole, string(role))
	}
	return nil
}

func (s *AuthService) lookup(ctx context.Context, identity string) (*domain.Principal, error) {
	var principal *domain.Principal
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		principal, err = s.principals.GetByIdentity(ctx, identity)
		return err
	})
	return principal, err
}

// withTimeout bounds a store call by the configured store timeout.
func (s *AuthService) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now().UTC()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit event not recorded", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func actor(ctx context.Context) string {
	if claims, ok := auth.ClaimsFrom(ctx); ok {
		return claims.Subject
	}
	return "system"
}

// NormalizeIdentity trims surrounding space and lowercases, so identities compare
// case-insensitively.
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func validateIdentity(identity string) error {
	if identity == "" || len(identity) > MaxIdentityLength {
		return fmt.Errorf("%w: must be 1 to %d characters", ErrInvalidIdentity, MaxIdentityLength)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return fmt.Errorf("%w: must be %d to %d bytes", ErrInvalidPassword, MinPasswordLength, MaxPasswordLength)
	}
	return nil
}
