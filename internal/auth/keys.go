package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
)

// MinSecretLength is the shortest HS256 secret accepted, matching the hash output size.
const MinSecretLength = 32

func isPlaceholder(secret string) bool {
	switch strings.ToLower(strings.TrimSpace(secret)) {
	case "secret", "dev-secret", "change-me", "changeme", "jwt-secret", "supersecret",
		"your-secret", "your-256-bit-secret", "my-secret-key":
		return true
	}
	return false
}

// ValidateSecret rejects secrets that are too short or well-known.
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("%w: not configured", ErrWeakSecret)
	}
	if isPlaceholder(secret) {
		return fmt.Errorf("%w: placeholder value", ErrWeakSecret)
	}
	if len(secret) < MinSecretLength {
		return fmt.Errorf("%w: must be at least %d bytes", ErrWeakSecret, MinSecretLength)
	}
	return nil
}

// SigningKey is an HMAC secret and the id carried in the token header.
type SigningKey struct {
	ID     string
	Secret []byte
}

// NewSigningKey pairs a secret with id, deriving the id from the secret when empty.
func NewSigningKey(id string, secret []byte) SigningKey {
	if id == "" {
		id = Fingerprint(secret)
	}
	return SigningKey{ID: id, Secret: secret}
}

// Fingerprint is a short, non-reversible identifier for a secret.
func Fingerprint(secret []byte) string {
	sum := sha256.Sum256(secret)
	return hex.EncodeToString(sum[:8])
}

type keySet struct {
	current SigningKey
	byID    map[string][]byte
}

// KeyRing holds the current signing key and the keys still accepted for verification.
// Readers never lock; Rotate replaces the whole set at once.
type KeyRing struct {
	set atomic.Pointer[keySet]
}

// NewKeyRing starts a ring with a single key.
func NewKeyRing(current SigningKey) *KeyRing {
	ring := &KeyRing{}
	ring.set.Store(newKeySet(current, nil))
	return ring
}

func newKeySet(current SigningKey, previous []SigningKey) *keySet {
	set := &keySet{current: current, byID: make(map[string][]byte, len(previous)+1)}
	for _, key := range previous {
		set.byID[key.ID] = key.Secret
	}
	set.byID[current.ID] = current.Secret
	return set
}

// Current returns the key new tokens are signed with.
func (r *KeyRing) Current() SigningKey {
	return r.set.Load().current
}

// Lookup returns the verification secret for kid.
func (r *KeyRing) Lookup(kid string) ([]byte, bool) {
	secret, ok := r.set.Load().byID[kid]
	return secret, ok
}

// Rotate makes next the signing key. With keepPrevious the prior current key stays valid for
// verification until the next rotation; without it every outstanding token stops verifying.
func (r *KeyRing) Rotate(next SigningKey, keepPrevious bool) {
	var previous []SigningKey
	if keepPrevious {
		if old := r.set.Load().current; old.ID != next.ID {
			previous = append(previous, old)
		}
	}
	r.set.Store(newKeySet(next, previous))
}

// KeyIDs lists the ids currently accepted for verification.
func (r *KeyRing) KeyIDs() []string {
	set := r.set.Load()
	ids := make([]string, 0, len(set.byID))
	ids = append(ids, set.current.ID)
	for id := range set.byID {
		if id != set.current.ID {
			ids = append(ids, id)
		}
	}
	return ids
}
