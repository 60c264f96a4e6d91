package models

import (
	"fmt"
	"slices"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

var roles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !slices.Contains(roles, r) {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// IsAllowed reports whether role is one of allowed
func IsAllowed(role Role, allowed ...Role) bool {
	return slices.Contains(allowed, role)
}
