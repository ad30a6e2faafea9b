// Package throttle bounds the rate of login attempts per client.
package throttle

import (
	"context"
	"time"
)

// Decision is the outcome of a single attempt.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether the attempt identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Off admits everything.
type Off struct{}

// Allow always allows.
func (Off) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// RetryAfterSeconds rounds d up to whole seconds, at least one.
func RetryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}
