package auth

import (
	"errors"
	"fmt"
	"strings"
)

type Role string

const (
	RoleHacker Role = "hacker"
	RoleAdmin  Role = "admin"
)

// DefaultRole is assigned when a user is created without an explicit role.
const DefaultRole = RoleHacker

var ErrUnknownRole = errors.New("unknown role")

// ParseRole accepts only the known roles. An empty value yields DefaultRole.
func ParseRole(value string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return DefaultRole, nil
	case RoleHacker:
		return RoleHacker, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, value)
	}
}

func (r Role) Valid() bool {
	return r == RoleHacker || r == RoleAdmin
}

func HasRole(role Role, allowed ...Role) bool {
	for _, candidate := range allowed {
		if role == candidate {
			return true
		}
	}
	return false
}

func IsAdmin(role Role) bool {
	return role == RoleAdmin
}
