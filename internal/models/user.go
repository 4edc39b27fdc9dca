package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleSuperUser Role = "super-user"
)

// ParseRole rejects anything outside the closed set of roles.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.TrimSpace(s)); r {
	case RoleUser, RoleAdmin, RoleSuperUser:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// RoleSet is the set of roles held by an account. It is stored as a
// Postgres text[] column.
type RoleSet []Role

// DefaultRoles is assigned when an account is registered without roles.
func DefaultRoles() RoleSet {
	return RoleSet{RoleUser}
}

// ParseRoles builds a deduplicated RoleSet, falling back to DefaultRoles
// when no role is given.
func ParseRoles(values []string) (RoleSet, error) {
	if len(values) == 0 {
		return DefaultRoles(), nil
	}
	set := make(RoleSet, 0, len(values))
	for _, v := range values {
		r, err := ParseRole(v)
		if err != nil {
			return nil, err
		}
		if !set.Has(r) {
			set = append(set, r)
		}
	}
	return set, nil
}

func (s RoleSet) Has(role Role) bool {
	for _, r := range s {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin is the single predicate used for every administrator check.
func (s RoleSet) IsAdmin() bool {
	return s.Has(RoleAdmin)
}

// HasAny reports whether s holds at least one of roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// Value implements driver.Valuer.
func (s RoleSet) Value() (driver.Value, error) {
	return pq.StringArray(s.Strings()).Value()
}

// Scan implements sql.Scanner. Unknown role strings fail the scan so a typo
// in the database can never silently drop admin rights.
func (s *RoleSet) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("failed to scan roles: %w", err)
	}
	set := make(RoleSet, 0, len(raw))
	for _, v := range raw {
		r, err := ParseRole(v)
		if err != nil {
			return err
		}
		set = append(set, r)
	}
	*s = set
	return nil
}

type User struct {
	ID             uuid.UUID `db:"id" json:"id"`
	EmployeeNumber string    `db:"employee_number" json:"employeeNumber"`
	NationalID     string    `db:"national_id" json:"nationalId"`
	PasswordHash   string    `db:"password_hash" json:"-"` // Never expose in JSON
	FullName       string    `db:"full_name" json:"fullName"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	Roles          RoleSet   `db:"roles" json:"roles"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time `db:"updated_at" json:"updatedAt"`
}

// Normalize trims the natural identifiers and the display name.
func (u *User) Normalize() {
	u.EmployeeNumber = strings.TrimSpace(u.EmployeeNumber)
	u.NationalID = strings.TrimSpace(u.NationalID)
	u.FullName = strings.TrimSpace(u.FullName)
}

// Principal is the authenticated account issuing a request.
type Principal struct {
	ID       uuid.UUID
	Roles    RoleSet
	IsActive bool
}

func (u *User) Principal() Principal {
	return Principal{ID: u.ID, Roles: u.Roles, IsActive: u.IsActive}
}

// UserRequest is used for account registration
type UserRequest struct {
	EmployeeNumber string   `json:"employeeNumber"`
	NationalID     string   `json:"nationalId"`
	Password       string   `json:"password"`
	FullName       string   `json:"fullName"`
	Roles          []string `json:"roles"`
}

type UserStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

type UserPasswordRequest struct {
	Password string `json:"password"`
}

type LoginRequest struct {
	EmployeeNumber string `json:"employeeNumber"`
	Password       string `json:"password"`
}

// AuthResponse is returned by login, registration and status checks.
type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// RemovedUser is the result of a guarded account removal.
type RemovedUser struct {
	ID uuid.UUID `json:"id"`
}
