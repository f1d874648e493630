package entities

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"safety-inspection/pkg/types"
)

type Role string

const (
	RoleReporter   Role = "reporter"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleReporter, RoleAdmin, RoleSuperAdmin:
		return r, nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) String() string { return string(r) }

// IsAdmin reports admin or super_admin.
func (r Role) IsAdmin() bool { return r == RoleAdmin || r == RoleSuperAdmin }

// RequiresPassword is true for roles that log into the web API.
func (r Role) RequiresPassword() bool { return r.IsAdmin() }

// Departments offered during bot registration.
var Departments = []string{
	"Production",
	"Quality Assurance",
	"Maintenance",
	"Warehouse",
	"Logistics",
	"Administration",
	"Safety",
	"Engineering",
	"Other",
}

func IsKnownDepartment(name string) bool {
	for _, d := range Departments {
		if strings.EqualFold(d, strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

// CanonicalDepartment returns the listed spelling of name.
func CanonicalDepartment(name string) (string, bool) {
	for _, d := range Departments {
		if strings.EqualFold(d, strings.TrimSpace(name)) {
			return d, true
		}
	}
	return "", false
}

type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	TelegramID   *int64    `json:"telegram_id,omitempty" db:"telegram_id"`
	Username     *string   `json:"username,omitempty" db:"username"`
	FullName     string    `json:"full_name" db:"full_name"`
	StaffID      string    `json:"staff_id" db:"staff_id"`
	Department   string    `json:"department" db:"department"`
	Section      string    `json:"section" db:"section"`
	Role         Role      `json:"role" db:"role"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	PasswordHash *string   `json:"-" db:"password_hash"`

	types.BaseEntity
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}
