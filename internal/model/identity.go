package model

import "strings"

// Role is the authenticated user's role.
type Role string

const (
	RoleDoctor    Role = "DOCTOR"
	RoleDispenser Role = "DISPENSER"
	RolePatient   Role = "PATIENT"
)

// ParseRole normalizes backend role strings, including a "ROLE_" prefix.
func ParseRole(s string) Role {
	r := strings.ToUpper(strings.TrimSpace(s))
	r = strings.TrimPrefix(r, "ROLE_")
	switch Role(r) {
	case RoleDoctor, RoleDispenser, RolePatient:
		return Role(r)
	case "CUSTOMER":
		return RolePatient
	}
	return ""
}

// IsStaff is true for doctors and dispensers.
func (r Role) IsStaff() bool {
	return r == RoleDoctor || r == RoleDispenser
}

// Identity is who the current session acts as.
type Identity struct {
	Email string
	Role  Role
}

// Key is the identifier used for ownership comparisons.
func (i Identity) Key() string {
	return NormalizeKey(i.Email)
}

// NormalizeKey lowercases and trims an identifier.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
