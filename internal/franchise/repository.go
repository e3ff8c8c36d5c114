package franchise

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwt-pizza/pizza-service/internal/auth"
	"github.com/jwt-pizza/pizza-service/internal/platform/db"
)

// Repository exposes persistence operations for franchises and stores.
type Repository interface {
	auth.OwnershipSource
	List(ctx context.Context, filter ListFilter) ([]Franchise, bool, error)
	ListByAdmin(ctx context.Context, userID int64) ([]Franchise, error)
	Create(ctx context.Context, name string, adminEmails []string) (Franchise, error)
	Delete(ctx context.Context, franchiseID int64) error
	CreateStore(ctx context.Context, franchiseID int64, name string) (Store, error)
	DeleteStore(ctx context.Context, franchiseID, storeID int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Franchise, bool, error) {
	filter = filter.normalize()
	pattern := strings.ReplaceAll(filter.Name, "*", "%")
	rows, err := r.pool.Query(ctx, `
		SELECT id, name FROM franchises
		WHERE name ILIKE $1
		ORDER BY id
		LIMIT $2 OFFSET $3`,
		pattern, filter.Limit+1, filter.Page*filter.Limit,
	)
	if err != nil {
		return nil, false, err
	}
	franchises, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Franchise, error) {
		var f Franchise
		err := row.Scan(&f.ID, &f.Name)
		return f, err
	})
	if err != nil {
		return nil, false, err
	}
	more := len(franchises) > filter.Limit
	if more {
		franchises = franchises[:filter.Limit]
	}
	if filter.WithAdmins {
		if err := r.attachAdmins(ctx, franchises); err != nil {
			return nil, false, err
		}
	}
	if err := r.attachStores(ctx, franchises, false); err != nil {
		return nil, false, err
	}
	return franchises, more, nil
}

func (r *repository) ListByAdmin(ctx context.Context, userID int64) ([]Franchise, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT f.id, f.name
		FROM franchises f
		JOIN user_roles ur ON ur.franchise_id = f.id
		WHERE ur.user_id = $1 AND ur.role = $2
		ORDER BY f.id`,
		userID, string(auth.RoleFranchisee),
	)
	if err != nil {
		return nil, err
	}
	franchises, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Franchise, error) {
		var f Franchise
		err := row.Scan(&f.ID, &f.Name)
		return f, err
	})
	if err != nil {
		return nil, err
	}
	if err := r.attachAdmins(ctx, franchises); err != nil {
		return nil, err
	}
	if err := r.attachStores(ctx, franchises, true); err != nil {
		return nil, err
	}
	return franchises, nil
}

// Create inserts the franchise and grants the franchisee role to every
// admin email in one transaction.
func (r *repository) Create(ctx context.Context, name string, adminEmails []string) (Franchise, error) {
	f := Franchise{Name: name, Admins: []Admin{}, Stores: []Store{}}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, email := range adminEmails {
			var admin Admin
			err := tx.QueryRow(ctx, `SELECT id, name, email FROM users WHERE email = $1`, email).
				Scan(&admin.ID, &admin.Name, &admin.Email)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrUnknownAdmin
				}
				return err
			}
			f.Admins = append(f.Admins, admin)
		}
		if err := tx.QueryRow(ctx, `INSERT INTO franchises (name) VALUES ($1) RETURNING id`, name).Scan(&f.ID); err != nil {
			return err
		}
		for _, admin := range f.Admins {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role, franchise_id) VALUES ($1, $2, $3)`,
				admin.ID, string(auth.RoleFranchisee), f.ID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Franchise{}, ErrDuplicateName
		}
		return Franchise{}, err
	}
	return f, nil
}

// Delete removes the franchise. Stores and franchisee roles cascade.
func (r *repository) Delete(ctx context.Context, franchiseID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM franchises WHERE id = $1`, franchiseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (r *repository) CreateStore(ctx context.Context, franchiseID int64, name string) (Store, error) {
	store := Store{FranchiseID: franchiseID, Name: name}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO stores (franchise_id, name) VALUES ($1, $2) RETURNING id`, franchiseID, name,
	).Scan(&store.ID)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Store{}, auth.ErrNotFound
		}
		return Store{}, err
	}
	return store, nil
}

func (r *repository) DeleteStore(ctx context.Context, franchiseID, storeID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM stores WHERE id = $1 AND franchise_id = $2`, storeID, franchiseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrNotFound
	}
	return nil
}

// GetFranchise reads ownership facts for one franchise.
func (r *repository) GetFranchise(ctx context.Context, franchiseID int64) (*auth.Franchise, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM franchises WHERE id = $1)`, franchiseID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, auth.ErrNotFound
	}
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM user_roles WHERE franchise_id = $1 AND role = $2 ORDER BY user_id`,
		franchiseID, string(auth.RoleFranchisee),
	)
	if err != nil {
		return nil, err
	}
	adminIDs, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, err
	}
	return &auth.Franchise{ID: franchiseID, AdminIDs: adminIDs}, nil
}

// GetStoreParentFranchise reads the store and the ownership facts of its parent.
func (r *repository) GetStoreParentFranchise(ctx context.Context, storeID int64) (*auth.Store, *auth.Franchise, error) {
	var franchiseID int64
	err := r.pool.QueryRow(ctx, `SELECT franchise_id FROM stores WHERE id = $1`, storeID).Scan(&franchiseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, auth.ErrNotFound
		}
		return nil, nil, err
	}
	parent, err := r.GetFranchise(ctx, franchiseID)
	if err != nil {
		return nil, nil, err
	}
	return &auth.Store{ID: storeID, FranchiseID: franchiseID}, parent, nil
}

func (r *repository) attachStores(ctx context.Context, franchises []Franchise, withRevenue bool) error {
	if len(franchises) == 0 {
		return nil
	}
	index := make(map[int64]int, len(franchises))
	ids := make([]int64, 0, len(franchises))
	for i := range franchises {
		franchises[i].Stores = []Store{}
		index[franchises[i].ID] = i
		ids = append(ids, franchises[i].ID)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.franchise_id, s.name, COALESCE(SUM(oi.price), 0)
		FROM stores s
		LEFT JOIN diner_orders o ON o.store_id = s.id
		LEFT JOIN order_items oi ON oi.order_id = o.id
		WHERE s.franchise_id = ANY($1)
		GROUP BY s.id, s.franchise_id, s.name
		ORDER BY s.id`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.FranchiseID, &s.Name, &s.TotalRevenue); err != nil {
			return err
		}
		if !withRevenue {
			s.TotalRevenue = 0
		}
		i := index[s.FranchiseID]
		franchises[i].Stores = append(franchises[i].Stores, s)
	}
	return rows.Err()
}

func (r *repository) attachAdmins(ctx context.Context, franchises []Franchise) error {
	if len(franchises) == 0 {
		return nil
	}
	index := make(map[int64]int, len(franchises))
	ids := make([]int64, 0, len(franchises))
	for i := range franchises {
		franchises[i].Admins = []Admin{}
		index[franchises[i].ID] = i
		ids = append(ids, franchises[i].ID)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT ur.franchise_id, u.id, u.name, u.email
		FROM user_roles ur
		JOIN users u ON u.id = ur.user_id
		WHERE ur.role = $1 AND ur.franchise_id = ANY($2)
		ORDER BY u.id`, string(auth.RoleFranchisee), ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			franchiseID int64
			admin       Admin
		)
		if err := rows.Scan(&franchiseID, &admin.ID, &admin.Name, &admin.Email); err != nil {
			return err
		}
		i := index[franchiseID]
		franchises[i].Admins = append(franchises[i].Admins, admin)
	}
	return rows.Err()
}
