package models

import "strings"

// Role is the application role resolved from the platform identity headers.
type Role string

const (
	RoleBP      Role = "BP"
	RoleLC      Role = "LC"
	RoleMA      Role = "MA"
	RoleDev     Role = "DEV"
	RoleTest    Role = "TEST"
	RoleUnknown Role = "UNKNOWN"
)

// KnownRoles lists every role a session may hold.
var KnownRoles = []Role{RoleBP, RoleLC, RoleMA, RoleDev, RoleTest}

// ParseRole maps a role name onto a Role, UNKNOWN when unrecognised.
func ParseRole(raw string) Role {
	candidate := Role(strings.ToUpper(strings.TrimSpace(raw)))
	for _, r := range KnownRoles {
		if r == candidate {
			return r
		}
	}
	return RoleUnknown
}

// Privileged roles see and edit everything and may impersonate outside production.
func (r Role) Privileged() bool {
	return r == RoleDev || r == RoleTest
}

// NormalizeEmail lower-cases and trims an address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Impersonation asks to act as another role and/or email.
type Impersonation struct {
	Role  string `json:"role"`
	Email string `json:"email" validate:"omitempty,email"`
}
