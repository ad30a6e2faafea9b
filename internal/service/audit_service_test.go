package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/domain"
	"github.com/spec-kit/authguard/internal/events"
)

func TestAuditServiceLogsEveryEventType(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, zap.New(core)).RegisterHandlers()

	ctx := context.Background()
	for _, et := range events.AllEventTypes {
		require.NoError(t, dispatcher.Publish(ctx, events.Event{Type: et, Subject: "alice", Actor: "root"}))
	}

	entries := logs.All()
	require.Len(t, entries, len(events.AllEventTypes))
	for i, entry := range entries {
		assert.Equal(t, "audit", entry.LoggerName)
		assert.Equal(t, string(events.AllEventTypes[i]), entry.Message)
		fields := entry.ContextMap()
		assert.Equal(t, "alice", fields["subject"])
		assert.Equal(t, "root", fields["actor"])
		assert.NotEmpty(t, fields["event_id"])
	}
}

func TestAuditServiceWarnsOnFailedLogin(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, zap.New(core)).RegisterHandlers()

	err := dispatcher.Publish(context.Background(), events.Event{
		Type:    events.EventLoginFailed,
		Subject: "bob",
		Payload: events.LoginPayload{Reason: "credential_mismatch"},
	})
	require.NoError(t, err)

	entries := logs.FilterMessage(string(events.EventLoginFailed)).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestAuditServiceWithoutDispatcher(t *testing.T) {
	assert.NotPanics(t, func() { NewAuditService(nil, nil).RegisterHandlers() })
}

func TestKeyServiceRotate(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher()
	log := &eventLog{}
	log.subscribe(dispatcher)

	first := auth.NewSigningKey("", []byte(testSecret))
	ring := auth.NewKeyRing(first)
	tokens := auth.NewTokenManager(ring, domain.RoleSet{}, time.Hour)
	svc := NewKeyService(ring, dispatcher, nil)

	old, err := tokens.Issue("alice", domain.RoleUser, t0, time.Hour)
	require.NoError(t, err)

	assert.False(t, svc.Rotate(context.Background(), first, true), "same key is a no-op")
	assert.Empty(t, log.types())

	next := auth.NewSigningKey("", []byte("rotated-secret-0123456789abcdef-xyz"))
	assert.True(t, svc.Rotate(context.Background(), next, true))
	assert.Equal(t, []string{next.ID, first.ID}, svc.KeyIDs())

	_, err = tokens.Verify(old.Token, t0)
	assert.NoError(t, err, "previous key still verifies")

	payload, ok := log.last().Payload.(events.KeyRotatedPayload)
	require.True(t, ok)
	assert.Equal(t, events.KeyRotatedPayload{KeyID: next.ID, PreviousKept: true}, payload)

	third := auth.NewSigningKey("", []byte("third-secret-0123456789abcdef-xyzw"))
	svc.Rotate(context.Background(), third, false)
	_, err = tokens.Verify(old.Token, t0)
	assert.ErrorIs(t, err, auth.ErrTokenBadSignature)
}

func TestKeyServiceReidentifiesNewSecretUnderSameID(t *testing.T) {
	ring := auth.NewKeyRing(auth.NewSigningKey("prod", []byte(testSecret)))
	svc := NewKeyService(ring, nil, nil)

	secret := []byte("rotated-secret-0123456789abcdef-xyz")
	require.True(t, svc.Rotate(context.Background(), auth.NewSigningKey("prod", secret), true))
	assert.Equal(t, []string{auth.Fingerprint(secret), "prod"}, svc.KeyIDs())
}
