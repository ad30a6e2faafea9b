package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/authguard/internal/domain"
)

func TestGuardAuthenticate(t *testing.T) {
	tm := newTestManager(t)
	guard := NewGuard(tm)

	_, err := guard.Authenticate("", t0)
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = guard.Authenticate("garbage", t0)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	issued, err := tm.Issue("alice", domain.RoleUser, t0, time.Minute)
	require.NoError(t, err)

	claims, err := guard.Authenticate(issued.Token, t0)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	_, err = guard.Authenticate(issued.Token, t0.Add(61*time.Second))
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestGuardAuthorize(t *testing.T) {
	guard := NewGuard(newTestManager(t))
	user := &Claims{Role: domain.RoleUser}
	manager := &Claims{Role: domain.RoleManager}

	assert.ErrorIs(t, guard.Authorize(user, domain.NewRoleSet(domain.RoleAdmin)), ErrInsufficientRole)
	assert.NoError(t, guard.Authorize(user, domain.NewRoleSet(domain.RoleUser, domain.RoleAdmin)))

	reports := domain.NewRoleSet(domain.RoleAdmin, domain.RoleManager)
	assert.NoError(t, guard.Authorize(manager, reports))
	assert.ErrorIs(t, guard.Authorize(user, reports), ErrInsufficientRole)

	assert.NoError(t, guard.Authorize(user, domain.RoleSet{}), "empty set admits any authenticated caller")
	assert.ErrorIs(t, guard.Authorize(nil, reports), ErrMissingToken)
}

func TestReason(t *testing.T) {
	assert.Equal(t, "ok", Reason(nil))
	assert.Equal(t, "expired", Reason(ErrTokenExpired))
	assert.Equal(t, "insufficient_role", Reason(ErrInsufficientRole))
	assert.Equal(t, "internal", Reason(assert.AnError))

	_, err := newTestManager(t).Verify("a.b", t0)
	assert.Equal(t, "malformed", Reason(err))
}
