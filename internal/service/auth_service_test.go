package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/config"
	"github.com/spec-kit/authguard/internal/domain"
	"github.com/spec-kit/authguard/internal/events"
	"github.com/spec-kit/authguard/internal/repository"
)

var t0 = time.Unix(1_700_000_000, 0)

const testSecret = "service-test-secret-0123456789abcdef"

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) subscribe(d events.Dispatcher) {
	for _, et := range events.AllEventTypes {
		d.Subscribe(et, func(_ context.Context, e events.Event) error {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.events = append(l.events, e)
			return nil
		})
	}
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func (l *eventLog) last() events.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

type fixture struct {
	svc    *AuthService
	repo   repository.PrincipalRepository
	tokens *auth.TokenManager
	log    *eventLog
}

func newFixture(t *testing.T, allowRegistration bool) fixture {
	t.Helper()
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	repo := repository.NewMemoryPrincipalRepository()
	ring := auth.NewKeyRing(auth.NewSigningKey("", []byte(testSecret)))
	tokens := auth.NewTokenManager(ring, domain.RoleSet{}, time.Hour)
	dispatcher := events.NewInMemoryDispatcher()
	log := &eventLog{}
	log.subscribe(dispatcher)

	svc, err := NewAuthService(config.AuthConfig{StoreTimeout: time.Second, AllowRegistration: allowRegistration}, AuthDependencies{
		Principals: repo,
		Hasher:     hasher,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Clock:      func() time.Time { return t0 },
	})
	require.NoError(t, err)
	return fixture{svc: svc, repo: repo, tokens: tokens, log: log}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.CreatePrincipal(ctx, "Alice@Example.com", "correct horse", domain.RoleManager)
	require.NoError(t, err)

	result, err := f.svc.Login(WithClientIP(ctx, "10.0.0.1"), "  alice@example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", result.Principal.Identity)
	assert.Equal(t, t0.Add(time.Hour), result.Token.ExpiresAt)

	claims, err := f.tokens.Verify(result.Token.Token, t0)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Subject)
	assert.Equal(t, domain.RoleManager, claims.Role)

	event := f.log.last()
	assert.Equal(t, events.EventLoginSucceeded, event.Type)
	payload, ok := event.Payload.(events.LoginPayload)
	require.True(t, ok)
	assert.Equal(t, result.Token.ID, payload.TokenID)
	assert.Equal(t, "10.0.0.1", payload.ClientIP)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.CreatePrincipal(ctx, "bob", "bob-password", domain.RoleUser)
	require.NoError(t, err)

	_, unknownErr := f.svc.Login(ctx, "nobody", "bob-password")
	_, wrongErr := f.svc.Login(ctx, "bob", "not-the-password")

	require.ErrorIs(t, unknownErr, auth.ErrAuthenticationFailed)
	require.ErrorIs(t, wrongErr, auth.ErrAuthenticationFailed)
	assert.ErrorIs(t, unknownErr, auth.ErrCredentialNotFound)
	assert.ErrorIs(t, wrongErr, auth.ErrCredentialMismatch)

	payload, ok := f.log.last().Payload.(events.LoginPayload)
	require.True(t, ok)
	assert.Equal(t, "credential_mismatch", payload.Reason)
	assert.Equal(t, events.EventLoginFailed, f.log.last().Type)
}

type brokenRepository struct {
	repository.PrincipalRepository
	err error
}

func (b brokenRepository) GetByIdentity(context.Context, string) (*domain.Principal, error) {
	return nil, b.err
}

func TestLoginStoreErrorIsNotAnAuthenticationFailure(t *testing.T) {
	f := newFixture(t, false)
	storeErr := errors.New("connection refused")
	f.svc.principals = brokenRepository{PrincipalRepository: f.repo, err: storeErr}

	_, err := f.svc.Login(context.Background(), "alice", "whatever-password")
	require.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, auth.ErrAuthenticationFailed)
}

type slowRepository struct {
	repository.PrincipalRepository
}

func (slowRepository) GetByIdentity(ctx context.Context, _ string) (*domain.Principal, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestLoginHonoursStoreTimeout(t *testing.T) {
	f := newFixture(t, false)
	f.svc.principals = slowRepository{PrincipalRepository: f.repo}
	f.svc.storeTimeout = 10 * time.Millisecond

	_, err := f.svc.Login(context.Background(), "alice", "whatever-password")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLoginRoleNoLongerRecognized(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.CreatePrincipal(ctx, "mona", "mona-password", domain.RoleManager)
	require.NoError(t, err)

	// Same store, but the deployment stopped recognizing managers.
	f.svc.tokens = auth.NewTokenManager(auth.NewKeyRing(auth.NewSigningKey("", []byte(testSecret))),
		domain.NewRoleSet(domain.RoleAdmin, domain.RoleUser), time.Hour)

	_, err = f.svc.Login(ctx, "mona", "mona-password")
	assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, auth.ErrUnknownRole)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	disabled := newFixture(t, false)
	_, err := disabled.svc.Register(ctx, "eve", "eve-password")
	assert.ErrorIs(t, err, ErrRegistrationDisabled)

	f := newFixture(t, true)
	result, err := f.svc.Register(ctx, "Eve", "eve-password")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, result.Principal.Role)
	assert.Equal(t, "eve", result.Principal.Identity)
	assert.NotEmpty(t, result.Token.Token)

	_, err = f.svc.Register(ctx, "EVE", "eve-password")
	assert.ErrorIs(t, err, repository.ErrPrincipalExists)

	assert.Equal(t, []events.EventType{events.EventPrincipalRegistered}, f.log.types())
	payload, ok := f.log.last().Payload.(events.PrincipalRegisteredPayload)
	require.True(t, ok)
	assert.True(t, payload.SelfService)
}

func TestCreatePrincipalValidation(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	tests := []struct {
		name     string
		identity string
		password string
		role     domain.Role
		wantErr  error
	}{
		{name: "blank identity", identity: "   ", password: "long-enough", role: domain.RoleUser, wantErr: ErrInvalidIdentity},
		{name: "short password", identity: "x", password: "short", role: domain.RoleUser, wantErr: ErrInvalidPassword},
		{name: "oversized password", identity: "x", password: string(make([]byte, MaxPasswordLength+1)), role: domain.RoleUser, wantErr: ErrInvalidPassword},
		{name: "unknown role", identity: "x", password: "long-enough", role: domain.Role("root"), wantErr: auth.ErrUnknownRole},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreatePrincipal(ctx, tt.identity, tt.password, tt.role)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreatePrincipalActorFromClaims(t *testing.T) {
	f := newFixture(t, false)
	issued, err := f.tokens.Issue("root", domain.RoleAdmin, t0, time.Hour)
	require.NoError(t, err)
	claims, err := f.tokens.Verify(issued.Token, t0)
	require.NoError(t, err)

	ctx := auth.WithClaims(context.Background(), claims)
	_, err = f.svc.CreatePrincipal(ctx, "dave", "dave-password", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "root", f.log.last().Actor)

	_, err = f.svc.CreatePrincipal(context.Background(), "erin", "erin-password", domain.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "system", f.log.last().Actor)
}

func TestEnsurePrincipalIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	created, err := f.svc.EnsurePrincipal(ctx, "admin", "admin-password", domain.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.EnsurePrincipal(ctx, "admin", "different-password", domain.RoleUser)
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.svc.Login(ctx, "admin", "admin-password")
	assert.NoError(t, err, "existing principal is left untouched")
}

func TestChangeRoleAffectsNewTokensOnly(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.CreatePrincipal(ctx, "uma", "uma-password", domain.RoleUser)
	require.NoError(t, err)

	before, err := f.svc.Login(ctx, "uma", "uma-password")
	require.NoError(t, err)

	updated, err := f.svc.ChangeRole(ctx, "UMA", domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, updated.Role)

	payload, ok := f.log.last().Payload.(events.RoleChangedPayload)
	require.True(t, ok)
	assert.Equal(t, events.RoleChangedPayload{OldRole: domain.RoleUser, NewRole: domain.RoleManager}, payload)

	old, err := f.tokens.Verify(before.Token.Token, t0)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, old.Role)

	after, err := f.svc.Login(ctx, "uma", "uma-password")
	require.NoError(t, err)
	claims, err := f.tokens.Verify(after.Token.Token, t0)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, claims.Role)

	_, err = f.svc.ChangeRole(ctx, "ghost", domain.RoleUser)
	assert.ErrorIs(t, err, repository.ErrPrincipalNotFound)
	_, err = f.svc.ChangeRole(ctx, "uma", domain.RoleUnknown)
	assert.ErrorIs(t, err, auth.ErrUnknownRole)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.CreatePrincipal(ctx, "carol", "first-password", domain.RoleUser)
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, "carol", "wrong-password", "second-password")
	assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)

	err = f.svc.ChangePassword(ctx, "carol", "first-password", "short")
	assert.ErrorIs(t, err, ErrInvalidPassword)

	require.NoError(t, f.svc.ChangePassword(ctx, "carol", "first-password", "second-password"))
	assert.Equal(t, events.EventPasswordChanged, f.log.last().Type)

	_, err = f.svc.Login(ctx, "carol", "first-password")
	assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
	_, err = f.svc.Login(ctx, "carol", "second-password")
	assert.NoError(t, err)
}

func TestPublishFailureDoesNotFailLogin(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	_, err := f.svc.CreatePrincipal(ctx, "frank", "frank-password", domain.RoleUser)
	require.NoError(t, err)

	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventLoginSucceeded, func(context.Context, events.Event) error {
		return errors.New("sink down")
	})
	f.svc.dispatcher = dispatcher

	_, err = f.svc.Login(ctx, "frank", "frank-password")
	assert.NoError(t, err)
}
