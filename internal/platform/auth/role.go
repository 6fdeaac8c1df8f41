package auth

import "fmt"

// Role is the access level stored on every user record.
type Role string

const (
	RoleSuperAdmin Role = "Super Admin"
	RoleAdmin      Role = "Admin"
	RoleStaff      Role = "Staff"
	RoleHospital   Role = "Hospital"
)

// AllRoles lists the roles in descending privilege.
var AllRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleStaff, RoleHospital}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleStaff, RoleHospital:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// ParseRole accepts the exact role label.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
