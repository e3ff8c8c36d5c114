package auth

import "time"

// Role is the tag of a role assignment.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleFranchisee Role = "franchisee"
	RoleDiner      Role = "diner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleFranchisee, RoleDiner:
		return true
	}
	return false
}

// RoleAssignment is a role held by a user, optionally scoped to a franchise.
// Only franchisee assignments carry a scope.
type RoleAssignment struct {
	Role        Role   `json:"role"`
	FranchiseID *int64 `json:"objectId,omitempty"`
}

// ScopedTo reports whether the assignment is bound to the given franchise.
func (a RoleAssignment) ScopedTo(franchiseID int64) bool {
	return a.FranchiseID != nil && *a.FranchiseID == franchiseID
}

// Principal is the identity resolved for one request. It is never mutated
// after resolution.
type Principal struct {
	ID    int64            `json:"id"`
	Name  string           `json:"name"`
	Email string           `json:"email"`
	Roles []RoleAssignment `json:"roles"`
}

// HasRole reports whether the principal holds role in any scope.
func (p *Principal) HasRole(role Role) bool {
	if p == nil {
		return false
	}
	for _, a := range p.Roles {
		if a.Role == role {
			return true
		}
	}
	return false
}

// User represents a stored account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Roles        []RoleAssignment
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal projects the user onto its public identity; the password hash is dropped.
func (u *User) Principal() *Principal {
	roles := make([]RoleAssignment, len(u.Roles))
	copy(roles, u.Roles)
	return &Principal{ID: u.ID, Name: u.Name, Email: u.Email, Roles: roles}
}

// NewUser carries the fields required to insert an account.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
	Roles        []RoleAssignment
}

// UserChanges is a partial self-service update. Nil fields are left untouched.
type UserChanges struct {
	Name     *string
	Email    *string
	Password *string
}

// UserUpdate is the persisted form of UserChanges.
type UserUpdate struct {
	Name         *string
	Email        *string
	PasswordHash *string
}

// Session is an active-session record keyed by token identity.
type Session struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Franchise holds the ownership facts needed for franchise decisions.
type Franchise struct {
	ID       int64
	AdminIDs []int64
}

// Store holds the ownership facts needed for store decisions.
type Store struct {
	ID          int64
	FranchiseID int64
}
