package auth

import (
	"context"
	"errors"
	"slices"
)

// IsAdmin reports whether any of the principal's assignments is Admin.
func IsAdmin(p *Principal) bool {
	return p.HasRole(RoleAdmin)
}

// CanManageFranchise allows admins and the franchise's own admins.
func CanManageFranchise(p *Principal, f *Franchise) bool {
	if p == nil {
		return false
	}
	if IsAdmin(p) {
		return true
	}
	if f == nil {
		return false
	}
	return slices.Contains(f.AdminIDs, p.ID)
}

// CanManageStore inherits entirely from authority over the parent franchise.
// A parent that is not the store's actual franchise denies.
func CanManageStore(p *Principal, s *Store, parent *Franchise) bool {
	if s == nil || parent == nil || s.FranchiseID != parent.ID {
		return false
	}
	return CanManageFranchise(p, parent)
}

// CanActOnSelf allows a principal to act on its own account, and admins on any.
func CanActOnSelf(p *Principal, targetUserID int64) bool {
	if p == nil {
		return false
	}
	return p.ID == targetUserID || IsAdmin(p)
}

// Check is a single allow/deny decision over a resolved principal.
type Check func(p *Principal) bool

// AdminOnly allows admins.
func AdminOnly() Check { return IsAdmin }

// ActOnSelf allows the target user and admins.
func ActOnSelf(targetUserID int64) Check {
	return func(p *Principal) bool { return CanActOnSelf(p, targetUserID) }
}

// ManageFranchise allows authority over f.
func ManageFranchise(f *Franchise) Check {
	return func(p *Principal) bool { return CanManageFranchise(p, f) }
}

// ManageStore allows authority over s through parent.
func ManageStore(s *Store, parent *Franchise) Check {
	return func(p *Principal) bool { return CanManageStore(p, s, parent) }
}

// Authorize turns a check into an error: nil on allow, ErrUnauthenticated
// without a principal, ErrForbidden otherwise.
func Authorize(p *Principal, check Check) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if check == nil || !check(p) {
		return ErrForbidden
	}
	return nil
}

// Policy evaluates checks that need ownership facts. Facts are fetched per
// decision.
type Policy struct {
	source OwnershipSource
}

// NewPolicy constructs a Policy reading facts from source.
func NewPolicy(source OwnershipSource) *Policy {
	return &Policy{source: source}
}

// AuthorizeFranchise loads the franchise and checks authority over it. Unknown
// franchises are ErrNotFound for admins and ErrForbidden for everyone else.
func (pl *Policy) AuthorizeFranchise(ctx context.Context, p *Principal, franchiseID int64) (*Franchise, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	f, err := pl.source.GetFranchise(ctx, franchiseID)
	if err != nil {
		return nil, pl.lookupError(p, "get franchise", err)
	}
	if err := Authorize(p, ManageFranchise(f)); err != nil {
		return nil, err
	}
	return f, nil
}

// AuthorizeStore checks authority over storeID addressed through franchiseID.
// A store that does not belong to franchiseID is treated as unknown.
func (pl *Policy) AuthorizeStore(ctx context.Context, p *Principal, franchiseID, storeID int64) (*Store, error) {
	if p == nil {
		return nil, ErrUnauthenticated
	}
	store, parent, err := pl.source.GetStoreParentFranchise(ctx, storeID)
	if err != nil {
		return nil, pl.lookupError(p, "get store", err)
	}
	if parent.ID != franchiseID {
		return nil, pl.lookupError(p, "get store", ErrNotFound)
	}
	if err := Authorize(p, ManageStore(store, parent)); err != nil {
		return nil, err
	}
	return store, nil
}

func (pl *Policy) lookupError(p *Principal, op string, err error) error {
	if errors.Is(err, ErrNotFound) {
		if IsAdmin(p) {
			return ErrNotFound
		}
		return ErrForbidden
	}
	return storeUnavailable(op, err)
}
