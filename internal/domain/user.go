package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of a user account
type Role string

const (
	RoleUser  Role = "user"
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// IsPrivileged reports whether the role may act on resources it does not own
func (r Role) IsPrivileged() bool {
	return r == RoleStaff || r == RoleAdmin
}

// User represents a registered account
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FirstName    string    `json:"first_name" db:"first_name"`
	LastName     string    `json:"last_name" db:"last_name"`
	Role         Role      `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// RefreshToken is a long-lived token used to mint new access tokens.
// Token is the value handed to the client; only its digest is persisted.
type RefreshToken struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	Token     string    `json:"-" db:"-"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
}

// UserProfile holds the optional staff details attached to an account
type UserProfile struct {
	UserID     uuid.UUID `json:"user_id" db:"user_id"`
	Position   string    `json:"position" db:"position"`
	Department string    `json:"department" db:"department"`
	Bio        string    `json:"bio" db:"bio"`
	Phone      string    `json:"phone" db:"phone"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Actor is the identity performing an operation
type Actor struct {
	ID   uuid.UUID
	Role Role
}

// IsPrivileged reports whether the actor holds an elevated role
func (a *Actor) IsPrivileged() bool {
	return a != nil && a.Role.IsPrivileged()
}
