package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Role enumerates the access levels a principal can hold.
type Role string

const (
	RoleUnknown Role = ""
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleUser    Role = "user"
)

// KnownRoles lists every role the service understands, most privileged first.
var KnownRoles = []Role{RoleAdmin, RoleManager, RoleUser}

// ParseRole maps a free-form string onto the closed role set. Unrecognized input yields
// RoleUnknown and false.
func ParseRole(raw string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleManager:
		return RoleManager, true
	case RoleUser:
		return RoleUser, true
	default:
		return RoleUnknown, false
	}
}

// Valid reports whether r is one of KnownRoles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleUser:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	if r == RoleUnknown {
		return "unknown"
	}
	return string(r)
}

// RoleSet is an immutable set of roles.
type RoleSet struct {
	members map[Role]struct{}
}

// NewRoleSet builds a set from the given roles. Unknown roles are ignored.
func NewRoleSet(roles ...Role) RoleSet {
	members := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		if role.Valid() {
			members[role] = struct{}{}
		}
	}
	return RoleSet{members: members}
}

// ParseRoleSet parses a comma separated role list such as "admin,manager,user".
func ParseRoleSet(raw string) (RoleSet, error) {
	var roles []Role
	for _, part := range strings.Split(raw, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		role, ok := ParseRole(part)
		if !ok {
			return RoleSet{}, fmt.Errorf("unknown role %q", strings.TrimSpace(part))
		}
		roles = append(roles, role)
	}
	if len(roles) == 0 {
		return RoleSet{}, fmt.Errorf("role list %q is empty", raw)
	}
	return NewRoleSet(roles...), nil
}

// Contains reports whether role is a member of the set.
func (s RoleSet) Contains(role Role) bool {
	_, ok := s.members[role]
	return ok
}

// Len returns the number of roles in the set.
func (s RoleSet) Len() int {
	return len(s.members)
}

// Roles returns the members sorted by name.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s.members))
	for role := range s.members {
		out = append(out, role)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) String() string {
	names := make([]string, 0, len(s.members))
	for _, role := range s.Roles() {
		names = append(names, string(role))
	}
	return strings.Join(names, ",")
}
