package dto

import (
	"time"

	validation "github.com/jellydator/validation"
)

// LoginRequest payload for login.
type LoginRequest struct {
	Identity string `json:"identity" form:"identity"`
	Password string `json:"password" form:"password"`
}

// Validate checks presence only. Length rules would leak which passwords can exist.
func (r *LoginRequest) Validate() error {
	return WrapValidationError(validation.ValidateStruct(r,
		validation.Field(&r.Identity, validation.Required.Error("identity is required"), notBlank),
		validation.Field(&r.Password, validation.Required.Error("password is required")),
	))
}

// RegisterRequest payload for self-service registration.
type RegisterRequest struct {
	Identity string `json:"identity" form:"identity"`
	Password string `json:"password" form:"password"`
}

func (r *RegisterRequest) Validate() error {
	return WrapValidationError(validation.ValidateStruct(r,
		identityRules(&r.Identity),
		passwordRules(&r.Password, "password"),
	))
}

// PasswordChangeRequest payload for authenticated password changes.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" form:"current_password"`
	NewPassword     string `json:"new_password" form:"new_password"`
}

func (r *PasswordChangeRequest) Validate() error {
	return WrapValidationError(validation.ValidateStruct(r,
		validation.Field(&r.CurrentPassword, validation.Required.Error("current_password is required")),
		passwordRules(&r.NewPassword, "new_password"),
	))
}

// AuthResponse standard response for auth endpoints.
type AuthResponse struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int64     `json:"expires_in"`
}

// PrincipalResponse is the public view of a principal. The password hash is never rendered.
type PrincipalResponse struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
