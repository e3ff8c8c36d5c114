package auth

import (
	"context"
	"time"
)

// UserStore persists accounts and their role assignments.
type UserStore interface {
	// FindUserByEmail returns ErrNotFound when no account uses email.
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByID(ctx context.Context, id int64) (*User, error)
	// InsertUser returns ErrDuplicateEmail when the email uniqueness constraint fires.
	InsertUser(ctx context.Context, user NewUser) (*User, error)
	UpdateUser(ctx context.Context, id int64, update UserUpdate) (*User, error)
}

// SessionStore keeps the active-session records that make a token valid.
// Every operation is atomic per record.
type SessionStore interface {
	CreateSession(ctx context.Context, session Session) error
	// DeleteSession reports whether a record was removed.
	DeleteSession(ctx context.Context, id string) (bool, error)
	SessionExists(ctx context.Context, id string) (bool, error)
}

// SessionPruner removes records whose tokens have expired.
type SessionPruner interface {
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}

// OwnershipSource reads franchise and store ownership facts. Implementations
// must not cache facts across calls.
type OwnershipSource interface {
	// GetFranchise returns ErrNotFound for unknown franchises.
	GetFranchise(ctx context.Context, franchiseID int64) (*Franchise, error)
	// GetStoreParentFranchise returns the store and its parent franchise, or ErrNotFound.
	GetStoreParentFranchise(ctx context.Context, storeID int64) (*Store, *Franchise, error)
}
