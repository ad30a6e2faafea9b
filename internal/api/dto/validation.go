package dto

import (
	"errors"
	"strings"

	validation "github.com/jellydator/validation"

	"github.com/spec-kit/authguard/internal/domain"
	apperrors "github.com/spec-kit/authguard/pkg/util/errorutil"
)

// notBlank rejects strings that are empty once trimmed.
var notBlank = validation.NewStringRuleWithError(
	func(s string) bool { return strings.TrimSpace(s) != "" },
	validation.NewError("validation_not_blank", "must not be blank"),
)

// knownRole accepts any role name ParseRole recognizes.
var knownRole = validation.NewStringRuleWithError(
	func(s string) bool {
		_, ok := domain.ParseRole(s)
		return ok
	},
	validation.NewError("validation_role", "must be one of admin, manager, user"),
)

func identityRules(field *string) *validation.FieldRules {
	return validation.Field(field,
		validation.Required.Error("identity is required"),
		notBlank,
		validation.Length(1, 254).Error("identity must be at most 254 characters"),
	)
}

func passwordRules(field *string, name string) *validation.FieldRules {
	return validation.Field(field,
		validation.Required.Error(name+" is required"),
		validation.Length(8, 72).Error(name+" must be between 8 and 72 characters"),
	)
}

// WrapValidationError converts validation failures to a 400 with one detail per field.
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fields validation.Errors
	if !errors.As(err, &fields) {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	details := make(map[string]any, len(fields))
	for name, fieldErr := range fields {
		details[name] = fieldErr.Error()
	}
	return apperrors.NewValidationError("request validation failed", details)
}
