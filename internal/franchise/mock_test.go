package franchise

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/shared"
)

type memRepo struct {
	mu         sync.Mutex
	users      map[string]Admin
	franchises map[int64]*Franchise
	nextID     int64
	err        error

	lastFilter      ListFilter
	lastAdminEmails []string
}

func newMemRepo() *memRepo {
	return &memRepo{
		users: map[string]Admin{
			"frank@jwt.com": {ID: 4, Name: "frank", Email: "frank@jwt.com"},
			"dana@jwt.com":  {ID: 5, Name: "dana", Email: "dana@jwt.com"},
		},
		franchises: map[int64]*Franchise{},
	}
}

func (m *memRepo) seed(name string, adminIDs []int64, storeIDs ...int64) *Franchise {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	f := &Franchise{ID: m.nextID, Name: name, Admins: []Admin{}, Stores: []Store{}}
	for _, id := range adminIDs {
		f.Admins = append(f.Admins, Admin{ID: id})
	}
	for _, id := range storeIDs {
		f.Stores = append(f.Stores, Store{ID: id, FranchiseID: f.ID, Name: "store"})
	}
	m.franchises[f.ID] = f
	return f
}

func (m *memRepo) List(_ context.Context, filter ListFilter) ([]Franchise, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	m.lastFilter = filter
	filter = filter.normalize()
	ids := make([]int64, 0, len(m.franchises))
	for id := range m.franchises {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := []Franchise{}
	for _, id := range ids {
		out = append(out, *m.franchises[id])
	}
	start := min(filter.Page*filter.Limit, len(out))
	end := min(start+filter.Limit, len(out))
	return out[start:end], end < len(out), nil
}

func (m *memRepo) ListByAdmin(_ context.Context, userID int64) ([]Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Franchise{}
	for _, f := range m.franchises {
		for _, a := range f.Admins {
			if a.ID == userID {
				out = append(out, *f)
			}
		}
	}
	return out, nil
}

func (m *memRepo) Create(_ context.Context, name string, adminEmails []string) (Franchise, error) {
	m.mu.Lock()
	m.lastAdminEmails = adminEmails
	for _, f := range m.franchises {
		if f.Name == name {
			m.mu.Unlock()
			return Franchise{}, ErrDuplicateName
		}
	}
	admins := []Admin{}
	for _, email := range adminEmails {
		admin, ok := m.users[email]
		if !ok {
			m.mu.Unlock()
			return Franchise{}, ErrUnknownAdmin
		}
		admins = append(admins, admin)
	}
	m.nextID++
	f := &Franchise{ID: m.nextID, Name: name, Admins: admins, Stores: []Store{}}
	m.franchises[f.ID] = f
	m.mu.Unlock()
	return *f, nil
}

func (m *memRepo) Delete(_ context.Context, franchiseID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.franchises[franchiseID]; !ok {
		return auth.ErrNotFound
	}
	delete(m.franchises, franchiseID)
	return nil
}

func (m *memRepo) CreateStore(_ context.Context, franchiseID int64, name string) (Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.franchises[franchiseID]
	if !ok {
		return Store{}, auth.ErrNotFound
	}
	m.nextID++
	store := Store{ID: m.nextID + 100, FranchiseID: franchiseID, Name: name}
	f.Stores = append(f.Stores, store)
	return store, nil
}

func (m *memRepo) DeleteStore(_ context.Context, franchiseID, storeID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.franchises[franchiseID]
	if !ok {
		return auth.ErrNotFound
	}
	for i, s := range f.Stores {
		if s.ID == storeID {
			f.Stores = slices.Delete(f.Stores, i, i+1)
			return nil
		}
	}
	return auth.ErrNotFound
}

func (m *memRepo) GetFranchise(_ context.Context, franchiseID int64) (*auth.Franchise, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	f, ok := m.franchises[franchiseID]
	if !ok {
		return nil, auth.ErrNotFound
	}
	facts := &auth.Franchise{ID: f.ID}
	for _, a := range f.Admins {
		facts.AdminIDs = append(facts.AdminIDs, a.ID)
	}
	return facts, nil
}

func (m *memRepo) GetStoreParentFranchise(ctx context.Context, storeID int64) (*auth.Store, *auth.Franchise, error) {
	m.mu.Lock()
	var parentID int64
	for _, f := range m.franchises {
		for _, s := range f.Stores {
			if s.ID == storeID {
				parentID = f.ID
			}
		}
	}
	m.mu.Unlock()
	if parentID == 0 {
		return nil, nil, auth.ErrNotFound
	}
	parent, err := m.GetFranchise(ctx, parentID)
	if err != nil {
		return nil, nil, err
	}
	return &auth.Store{ID: storeID, FranchiseID: parentID}, parent, nil
}

type memAudit struct {
	mu      sync.Mutex
	entries []shared.AuditLog
	err     error
}

func (a *memAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, log)
	return nil
}

func (a *memAudit) actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.entries))
	for _, e := range a.entries {
		out = append(out, e.Action)
	}
	return out
}

var errDown = errors.New("connection refused")

var (
	admin      = &auth.Principal{ID: 1, Name: "admin", Roles: []auth.RoleAssignment{{Role: auth.RoleAdmin}}}
	franchisee = &auth.Principal{ID: 4, Name: "frank", Roles: []auth.RoleAssignment{{Role: auth.RoleDiner}, {Role: auth.RoleFranchisee, FranchiseID: int64Ptr(1)}}}
	diner      = &auth.Principal{ID: 5, Name: "dana", Roles: []auth.RoleAssignment{{Role: auth.RoleDiner}}}
)

func int64Ptr(v int64) *int64 { return &v }
