package auth

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/authguard/internal/domain"
)

func TestValidateSecret(t *testing.T) {
	assert.ErrorIs(t, ValidateSecret(""), ErrWeakSecret)
	assert.ErrorIs(t, ValidateSecret("dev-secret"), ErrWeakSecret)
	assert.ErrorIs(t, ValidateSecret(" Change-Me "), ErrWeakSecret)
	assert.ErrorIs(t, ValidateSecret(strings.Repeat("a", MinSecretLength-1)), ErrWeakSecret)
	assert.NoError(t, ValidateSecret(strings.Repeat("a", MinSecretLength)))
}

func TestNewSigningKeyDerivesID(t *testing.T) {
	a := NewSigningKey("", []byte(testSecret))
	b := NewSigningKey("", []byte(testSecret))
	c := NewSigningKey("", []byte(testSecret+"-other"))

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Len(t, a.ID, 16)
	assert.NotContains(t, a.ID, testSecret)

	assert.Equal(t, "primary", NewSigningKey("primary", []byte(testSecret)).ID)
}

func TestRotateKeepingPreviousKey(t *testing.T) {
	oldKey := NewSigningKey("old", []byte(testSecret))
	newKey := NewSigningKey("new", []byte(strings.Repeat("n", 40)))
	ring := NewKeyRing(oldKey)
	tm := NewTokenManager(ring, domain.RoleSet{}, time.Hour)

	before, err := tm.Issue("alice", domain.RoleUser, t0, time.Hour)
	require.NoError(t, err)

	ring.Rotate(newKey, true)
	assert.Equal(t, "new", ring.Current().ID)
	assert.ElementsMatch(t, []string{"new", "old"}, ring.KeyIDs())

	after, err := tm.Issue("alice", domain.RoleUser, t0, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "new", after.KeyID)

	_, err = tm.Verify(before.Token, t0)
	assert.NoError(t, err)
	_, err = tm.Verify(after.Token, t0)
	assert.NoError(t, err)

	ring.Rotate(NewSigningKey("newer", []byte(strings.Repeat("m", 40))), true)
	_, err = tm.Verify(before.Token, t0)
	assert.ErrorIs(t, err, ErrTokenBadSignature, "only one previous key is retained")
	_, err = tm.Verify(after.Token, t0)
	assert.NoError(t, err)
}

func TestRotateDroppingPreviousKey(t *testing.T) {
	ring := NewKeyRing(NewSigningKey("old", []byte(testSecret)))
	tm := NewTokenManager(ring, domain.RoleSet{}, time.Hour)

	issued, err := tm.Issue("alice", domain.RoleAdmin, t0, time.Hour)
	require.NoError(t, err)

	ring.Rotate(NewSigningKey("new", []byte(strings.Repeat("n", 40))), false)

	_, err = tm.Verify(issued.Token, t0)
	assert.ErrorIs(t, err, ErrTokenBadSignature)
	assert.Equal(t, []string{"new"}, ring.KeyIDs())
}

func TestRotateIsSafeUnderConcurrentVerify(t *testing.T) {
	ring := NewKeyRing(NewSigningKey("", []byte(testSecret)))
	tm := NewTokenManager(ring, domain.RoleSet{}, time.Hour)
	issued, err := tm.Issue("alice", domain.RoleManager, t0, time.Hour)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				claims, err := tm.Verify(issued.Token, t0)
				if err == nil {
					assert.Equal(t, "alice", claims.Subject)
				} else {
					assert.ErrorIs(t, err, ErrTokenBadSignature)
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		ring.Rotate(NewSigningKey("", []byte(testSecret)), true)
	}
	wg.Wait()

	_, err = tm.Verify(issued.Token, t0)
	assert.NoError(t, err, "rotating to the same secret keeps the key id")
}
