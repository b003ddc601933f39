package domain

import "time"

// Role enumerates the access levels a user can hold.
type Role string

const (
	RoleUser       Role = "User"
	RoleTechnician Role = "Technician"
	RoleAdmin      Role = "Admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role handles tickets (technicians and admins).
func (r Role) IsStaff() bool {
	return r == RoleTechnician || r == RoleAdmin
}

// User is an account that reports, handles, or administers repair tickets.
type User struct {
	ID           string
	Username     string
	Name         string
	Email        *string
	Role         Role
	Phone        string
	Department   string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastLoginAt  *time.Time
}
