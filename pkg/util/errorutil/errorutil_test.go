package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("wrapped domain error is preserved", func(t *testing.T) {
		original := NewForbidden("forbidden")
		got := ToDomainError(fmt.Errorf("guard: %w", original))
		require.NotNil(t, got)
		assert.Same(t, original, got)
	})

	t.Run("no rows becomes not found", func(t *testing.T) {
		got := ToDomainError(sql.ErrNoRows)
		assert.Equal(t, CodeNotFound, got.Code)
		assert.Equal(t, http.StatusNotFound, got.HTTPStatus)
		assert.ErrorIs(t, got, sql.ErrNoRows)
	})

	t.Run("unknown error becomes internal", func(t *testing.T) {
		cause := errors.New("boom")
		got := ToDomainError(cause)
		assert.Equal(t, CodeInternal, got.Code)
		assert.Equal(t, "internal server error", got.Message)
		assert.ErrorIs(t, got, cause)
	})
}

func TestAuthenticationFailedIsGeneric(t *testing.T) {
	err := NewAuthenticationFailed().WithCause(errors.New("credential not found"))
	assert.Equal(t, http.StatusUnauthorized, err.HTTPStatus)
	assert.Equal(t, "invalid credentials", err.Message)
	assert.Nil(t, err.Details)
}

func TestNewTooManyRequests(t *testing.T) {
	got := ToDomainError(NewTooManyRequests(7))
	assert.Equal(t, http.StatusTooManyRequests, got.HTTPStatus)
	assert.Equal(t, "7", got.Details["retry_after_seconds"])
}
