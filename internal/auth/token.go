package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/authguard/internal/domain"
)

// TokenManager issues and verifies HS256 tokens signed with keys from a KeyRing.
type TokenManager struct {
	keys  *KeyRing
	roles domain.RoleSet
	ttl   time.Duration
}

// NewTokenManager builds a manager. An empty role set means every known role is recognized.
func NewTokenManager(keys *KeyRing, roles domain.RoleSet, ttl time.Duration) *TokenManager {
	if roles.Len() == 0 {
		roles = domain.NewRoleSet(domain.KnownRoles...)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{keys: keys, roles: roles, ttl: ttl}
}

// Claims describes the JWT payload.
type Claims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssuedToken is a signed token and the metadata callers report back to clients.
type IssuedToken struct {
	Token     string
	ID        string
	KeyID     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
}

// TTL returns the default token lifetime.
func (tm *TokenManager) TTL() time.Duration {
	return tm.ttl
}

// Roles returns the recognized role set.
func (tm *TokenManager) Roles() domain.RoleSet {
	return tm.roles
}

// Issue signs a token for subject valid from now for ttl. Times are truncated to whole seconds.
func (tm *TokenManager) Issue(subject string, role domain.Role, now time.Time, ttl time.Duration) (IssuedToken, error) {
	if strings.TrimSpace(subject) == "" {
		return IssuedToken{}, ErrInvalidSubject
	}
	if ttl <= 0 {
		return IssuedToken{}, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}
	if !role.Valid() || !tm.roles.Contains(role) {
		return IssuedToken{}, fmt.Errorf("%w: %q", ErrUnknownRole, string(role))
	}

	issuedAt := now.Truncate(time.Second)
	expiresAt := issuedAt.Add(ttl).Truncate(time.Second)
	id := uuid.NewString()
	key := tm.keys.Current()

	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = key.ID
	signed, err := token.SignedString(key.Secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	return IssuedToken{
		Token:     signed,
		ID:        id,
		KeyID:     key.ID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// Verify checks structure, then signature over the raw header and payload, then claims.
// The returned error always matches ErrTokenMalformed, ErrTokenBadSignature or ErrTokenExpired.
// A token is still valid at its exact expiry second.
func (tm *TokenManager) Verify(raw string, now time.Time) (*Claims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) < 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrTokenMalformed, len(parts))
	}

	var header tokenHeader
	if err := decodeSegment(parts[0], &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrTokenMalformed, err)
	}
	if header.Alg == "" {
		return nil, fmt.Errorf("%w: header has no alg", ErrTokenMalformed)
	}
	if header.Alg != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("%w: unexpected alg %q", ErrTokenBadSignature, header.Alg)
	}
	secret, ok := tm.keys.Lookup(header.Kid)
	if !ok {
		return nil, fmt.Errorf("%w: unknown key id", ErrTokenBadSignature)
	}

	// A readable header followed by extra segments means the signed text was altered.
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrTokenBadSignature, len(parts))
	}

	sig, err := base64.RawURLEncoding.Strict().DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("%w: signature encoding", ErrTokenBadSignature)
	}
	if err := jwt.SigningMethodHS256.Verify(parts[0]+"."+parts[1], sig, secret); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenBadSignature, err)
	}

	var claims Claims
	if err := decodeSegment(parts[1], &claims); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrTokenMalformed, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrTokenMalformed)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrTokenMalformed)
	}
	role, ok := domain.ParseRole(string(claims.Role))
	if !ok || !tm.roles.Contains(role) {
		return nil, fmt.Errorf("%w: unrecognized role %q", ErrTokenMalformed, string(claims.Role))
	}
	claims.Role = role

	if now.Unix() > claims.ExpiresAt.Unix() {
		return nil, fmt.Errorf("%w: at %s", ErrTokenExpired, claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return &claims, nil
}

func decodeSegment(seg string, v any) error {
	raw, err := base64.RawURLEncoding.DecodeString(seg)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
