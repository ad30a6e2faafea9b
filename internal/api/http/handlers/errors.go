package handlers

import (
	"errors"
	"net/http"

	"github.com/spec-kit/authguard/internal/auth"
	"github.com/spec-kit/authguard/internal/repository"
	"github.com/spec-kit/authguard/internal/service"
	apperrors "github.com/spec-kit/authguard/pkg/util/errorutil"
)

// mapServiceError converts service and store errors into client-facing errors. The original
// error is kept as the cause for logging.
func mapServiceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return apperrors.NewAuthenticationFailed().WithCause(err)
	case errors.Is(err, repository.ErrPrincipalExists):
		return apperrors.NewConflict("identity already registered", nil)
	case errors.Is(err, repository.ErrPrincipalNotFound):
		return apperrors.NewNotFound("principal", nil)
	case errors.Is(err, service.ErrRegistrationDisabled):
		return apperrors.NewForbidden("registration disabled").WithCause(err)
	case errors.Is(err, service.ErrInvalidIdentity):
		return apperrors.NewValidationError("request validation failed", map[string]any{"identity": "invalid identity"})
	case errors.Is(err, service.ErrInvalidPassword):
		return apperrors.NewValidationError("request validation failed", map[string]any{"password": "invalid password"})
	case errors.Is(err, auth.ErrUnknownRole):
		return apperrors.NewValidationError("request validation failed", map[string]any{"role": "role not recognized"})
	default:
		return apperrors.NewInternalError(err)
	}
}

func invalidPayload(err error) error {
	return apperrors.NewDomainError(apperrors.CodeValidationFailed, "invalid payload", http.StatusBadRequest, nil).WithCause(err)
}
