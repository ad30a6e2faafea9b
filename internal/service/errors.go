package service

import (
	"context"
	"errors"
)

var (
	// ErrRegistrationDisabled is returned by Register when self-service sign up is off.
	ErrRegistrationDisabled = errors.New("registration disabled")
	// ErrInvalidIdentity rejects empty or oversized identities.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrInvalidPassword rejects passwords outside the accepted length range.
	ErrInvalidPassword = errors.New("invalid password")
)

// Password length bounds. bcrypt ignores input past 72 bytes, so longer passwords are refused.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
	MaxIdentityLength = 254
)

type clientIPKey struct{}

// WithClientIP annotates ctx with the caller address for audit events.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
