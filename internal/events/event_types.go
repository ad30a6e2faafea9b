package events

import (
	"time"

	"github.com/spec-kit/authguard/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded       EventType = "login_succeeded"
	EventLoginFailed          EventType = "login_failed"
	EventPrincipalRegistered  EventType = "principal_registered"
	EventPrincipalRoleChanged EventType = "principal_role_changed"
	EventPasswordChanged      EventType = "password_changed"
	EventSigningKeyRotated    EventType = "signing_key_rotated"
)

// AllEventTypes lists every event the service emits.
var AllEventTypes = []EventType{
	EventLoginSucceeded,
	EventLoginFailed,
	EventPrincipalRegistered,
	EventPrincipalRoleChanged,
	EventPasswordChanged,
	EventSigningKeyRotated,
}

// Event represents an audit event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Subject   string    `json:"subject,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

// LoginPayload describes a login attempt. Reason is internal and never returned to clients.
type LoginPayload struct {
	Role     domain.Role `json:"role,omitempty"`
	TokenID  string      `json:"token_id,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	ClientIP string      `json:"client_ip,omitempty"`
}

// PrincipalRegisteredPayload payload.
type PrincipalRegisteredPayload struct {
	Role        domain.Role `json:"role"`
	SelfService bool        `json:"self_service"`
}

// RoleChangedPayload payload.
type RoleChangedPayload struct {
	OldRole domain.Role `json:"old_role"`
	NewRole domain.Role `json:"new_role"`
}

// KeyRotatedPayload payload.
type KeyRotatedPayload struct {
	KeyID        string `json:"key_id"`
	PreviousKept bool   `json:"previous_kept"`
}
