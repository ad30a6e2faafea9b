package service

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/events"
)

// KeyService rotates the signing key ring and records the rotation.
type KeyService struct {
	ring       *auth.KeyRing
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewKeyService creates the service.
func NewKeyService(ring *auth.KeyRing, dispatcher events.Dispatcher, logger *zap.Logger) *KeyService {
	if dispatcher == nil {
		dispatcher = events.NewInMemoryDispatcher()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyService{ring: ring, dispatcher: dispatcher, logger: logger}
}

// Rotate installs next as the signing key. When keepPrevious is set, tokens signed with the
// outgoing key keep verifying until they expire. Rotating to the current key is a no-op and
// reports false. A new secret under the current id is re-identified by its fingerprint so the
// two keys stay distinguishable.
func (s *KeyService) Rotate(ctx context.Context, next auth.SigningKey, keepPrevious bool) bool {
	current := s.ring.Current()
	if current.ID == next.ID {
		if bytes.Equal(current.Secret, next.Secret) {
			return false
		}
		next = auth.NewSigningKey("", next.Secret)
	}
	s.ring.Rotate(next, keepPrevious)
	s.logger.Info("signing key rotated", zap.String("kid", next.ID), zap.Bool("previous_kept", keepPrevious))

	event := events.Event{
		Type:    events.EventSigningKeyRotated,
		Actor:   "system",
		Payload: events.KeyRotatedPayload{KeyID: next.ID, PreviousKept: keepPrevious},
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("audit event not recorded", zap.String("type", string(event.Type)), zap.Error(err))
	}
	return true
}

// KeyIDs lists the accepted key ids, current first.
func (s *KeyService) KeyIDs() []string {
	return s.ring.KeyIDs()
}
