package model

import (
	"fmt"
	"strings"
	"time"
)

// Role is the access level carried by a directory record. Authorization
// compares roles by value; new roles must be added to the switch in
// ParseRole before the directory will accept them.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// ParseRole normalizes s and maps it onto a known role.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is exactly one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

// User is a directory record from the `users` table. The same struct is
// cached as the identity snapshot under user:{id}, so the json tags are
// part of the cache format. The bcrypt hash never leaves the repository
// layer and is not part of the record.
type User struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	Suspended bool      `json:"suspended"`
	CreatedAt time.Time `json:"created_at"`
}
