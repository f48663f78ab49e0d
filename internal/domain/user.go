package domain

import (
	"time"

	"github.com/google/uuid"
)

const RoleAdmin = "admin"

// User is a marketplace member who may own listings and favorites
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Actor is the identity a core operation runs on behalf of.
// The zero value is an anonymous visitor.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// Anonymous reports whether no user is attached
func (a Actor) Anonymous() bool {
	return a.UserID == uuid.Nil
}

// IsAdmin reports whether the actor may administer categories
func (a Actor) IsAdmin() bool {
	return !a.Anonymous() && a.Role == RoleAdmin
}
