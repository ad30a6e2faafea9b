package auth

import (
	"fmt"

	"github.com/allisson/go-pwdhash"
	"golang.org/x/crypto/bcrypt"
)

// Supported password hashing algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// PasswordHasher hashes and verifies passwords. Verify never returns an error: a malformed
// hash is simply a mismatch.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hashed string) bool
}

// NewPasswordHasher builds the hasher for the configured algorithm.
func NewPasswordHasher(algorithm string, bcryptCost int) (PasswordHasher, error) {
	switch algorithm {
	case AlgorithmBcrypt, "":
		return NewBcryptHasher(bcryptCost)
	case AlgorithmArgon2id:
		return NewArgon2Hasher()
	default:
		return nil, fmt.Errorf("unknown password algorithm %q", algorithm)
	}
}

// BcryptHasher hashes with bcrypt at a fixed cost.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher validates cost against the bcrypt bounds.
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d,%d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash hashes a plaintext password with the configured cost.
func (h *BcryptHasher) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify compares in constant time.
func (h *BcryptHasher) Verify(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}

// Argon2Hasher hashes with argon2id using the moderate policy.
type Argon2Hasher struct {
	hasher *pwdhash.PasswordHasher
}

// NewArgon2Hasher builds an argon2id hasher.
func NewArgon2Hasher() (*Argon2Hasher, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, fmt.Errorf("argon2id hasher: %w", err)
	}
	return &Argon2Hasher{hasher: hasher}, nil
}

// Hash returns a PHC encoded argon2id hash.
func (h *Argon2Hasher) Hash(plain string) (string, error) {
	return h.hasher.Hash([]byte(plain))
}

// Verify compares in constant time.
func (h *Argon2Hasher) Verify(plain, hashed string) bool {
	ok, err := h.hasher.Verify([]byte(plain), hashed)
	if err != nil {
		return false
	}
	return ok
}
