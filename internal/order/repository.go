package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwt-pizza/pizza-service/internal/platform/db"
)

// Repository exposes persistence operations for the menu and orders.
type Repository interface {
	Menu(ctx context.Context) ([]MenuItem, error)
	AddMenuItem(ctx context.Context, item MenuItem) (MenuItem, error)
	Orders(ctx context.Context, dinerID int64, page int) ([]Order, error)
	Create(ctx context.Context, dinerID int64, order NewOrder) (Order, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Menu(ctx context.Context) ([]MenuItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, title, image, price, description FROM menu ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (MenuItem, error) {
		var m MenuItem
		err := row.Scan(&m.ID, &m.Title, &m.Image, &m.Price, &m.Description)
		return m, err
	})
}

func (r *repository) AddMenuItem(ctx context.Context, item MenuItem) (MenuItem, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO menu (title, image, price, description) VALUES ($1, $2, $3, $4) RETURNING id`,
		item.Title, item.Image, item.Price, item.Description,
	).Scan(&item.ID)
	return item, err
}

func (r *repository) Orders(ctx context.Context, dinerID int64, page int) ([]Order, error) {
	if page < 1 {
		page = 1
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, franchise_id, store_id, created_at
		FROM diner_orders
		WHERE diner_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3`,
		dinerID, PageSize, (page-1)*PageSize,
	)
	if err != nil {
		return nil, err
	}
	orders, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Order, error) {
		var o Order
		err := row.Scan(&o.ID, &o.FranchiseID, &o.StoreID, &o.Date)
		return o, err
	})
	if err != nil {
		return nil, err
	}
	for i := range orders {
		items, err := r.items(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (r *repository) items(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, menu_id, description, price FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var item Item
		err := row.Scan(&item.ID, &item.MenuID, &item.Description, &item.Price)
		return item, err
	})
}

// Create stores the order and its items in one transaction, pricing each
// item from the menu.
func (r *repository) Create(ctx context.Context, dinerID int64, no NewOrder) (Order, error) {
	o := Order{FranchiseID: no.FranchiseID, StoreID: no.StoreID, Items: make([]Item, 0, len(no.Items))}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var known bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM stores WHERE id = $1 AND franchise_id = $2)`, no.StoreID, no.FranchiseID,
		).Scan(&known); err != nil {
			return err
		}
		if !known {
			return ErrInvalidOrder
		}
		if err := tx.QueryRow(ctx,
			`INSERT INTO diner_orders (diner_id, franchise_id, store_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
			dinerID, no.FranchiseID, no.StoreID,
		).Scan(&o.ID, &o.Date); err != nil {
			return err
		}
		for _, item := range no.Items {
			err := tx.QueryRow(ctx, `
				INSERT INTO order_items (order_id, menu_id, description, price)
				SELECT $1, m.id, COALESCE(NULLIF($3, ''), m.title), m.price FROM menu m WHERE m.id = $2
				RETURNING id, description, price`,
				o.ID, item.MenuID, item.Description,
			).Scan(&item.ID, &item.Description, &item.Price)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrInvalidOrder
				}
				return err
			}
			o.Items = append(o.Items, item)
		}
		return nil
	})
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return Order{}, ErrInvalidOrder
		}
		return Order{}, err
	}
	return o, nil
}
