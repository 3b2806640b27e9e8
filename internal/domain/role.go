package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Role mirrors the roles table; the numeric ids are stable and stored on users.
type Role int

const (
	RoleUser  Role = 1
	RoleStaff Role = 2
	RoleAdmin Role = 3
)

var roleNames = map[Role]string{
	RoleUser:  "User",
	RoleStaff: "Staff",
	RoleAdmin: "Admin",
}

// String returns the role_name stored in the roles table.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "Role(" + strconv.Itoa(int(r)) + ")"
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// IsStaff is true for roles that work tickets (staff and admins).
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleAdmin
}

// ParseRole accepts either the numeric id or the role name.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(s)
	if id, err := strconv.Atoi(s); err == nil {
		r := Role(id)
		if r.Valid() {
			return r, nil
		}
		return 0, fmt.Errorf("unknown role id %d", id)
	}
	for r, name := range roleNames {
		if strings.EqualFold(name, s) {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}
