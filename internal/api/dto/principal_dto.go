package dto

import (
	validation "github.com/jellydator/validation"

	"github.com/spec-kit/authguard/internal/domain"
)

// CreatePrincipalRequest payload for admin principal creation.
type CreatePrincipalRequest struct {
	Identity string `json:"identity" form:"identity"`
	Password string `json:"password" form:"password"`
	Role     string `json:"role" form:"role"`
}

func (r *CreatePrincipalRequest) Validate() error {
	return WrapValidationError(validation.ValidateStruct(r,
		identityRules(&r.Identity),
		passwordRules(&r.Password, "password"),
		validation.Field(&r.Role, validation.Required.Error("role is required"), knownRole),
	))
}

// ParsedRole returns the validated role.
func (r *CreatePrincipalRequest) ParsedRole() domain.Role {
	role, _ := domain.ParseRole(r.Role)
	return role
}

// ChangeRoleRequest payload for admin role changes.
type ChangeRoleRequest struct {
	Role string `json:"role" form:"role"`
}

func (r *ChangeRoleRequest) Validate() error {
	return WrapValidationError(validation.ValidateStruct(r,
		validation.Field(&r.Role, validation.Required.Error("role is required"), knownRole),
	))
}

// ParsedRole returns the validated role.
func (r *ChangeRoleRequest) ParsedRole() domain.Role {
	role, _ := domain.ParseRole(r.Role)
	return role
}
