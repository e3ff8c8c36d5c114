package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jwt-pizza/pizza-service/internal/platform/db"
)

// PGStore implements UserStore and SessionStore on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PostgreSQL store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const userColumns = `id, name, email, password_hash, created_at, updated_at`

// FindUserByEmail fetches a user with its roles by email.
func (s *PGStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindUserByID fetches a user with its roles by id.
func (s *PGStore) FindUserByID(ctx context.Context, id int64) (*User, error) {
	return s.findUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *PGStore) findUser(ctx context.Context, query string, arg any) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx, query, arg).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	roles, err := loadRoles(ctx, s.pool, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return &user, nil
}

// InsertUser creates the account and its role rows in one transaction. The
// unique index on users.email makes concurrent registrations race-safe.
func (s *PGStore) InsertUser(ctx context.Context, nu NewUser) (*User, error) {
	user := User{Name: nu.Name, Email: nu.Email, PasswordHash: nu.PasswordHash, Roles: nu.Roles}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) RETURNING id, created_at, updated_at`,
			nu.Name, nu.Email, nu.PasswordHash,
		).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return err
		}
		for _, role := range nu.Roles {
			if _, err := tx.Exec(ctx,
				`INSERT INTO user_roles (user_id, role, franchise_id) VALUES ($1, $2, $3)`,
				user.ID, string(role.Role), role.FranchiseID,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies the non-nil fields of update.
func (s *PGStore) UpdateUser(ctx context.Context, id int64, update UserUpdate) (*User, error) {
	var user User
	err := s.pool.QueryRow(ctx, `
		UPDATE users
		SET name = COALESCE($2, name),
		    email = COALESCE($3, email),
		    password_hash = COALESCE($4, password_hash),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, update.Name, update.Email, update.PasswordHash,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrNotFound
		case db.IsUniqueViolation(err):
			return nil, ErrDuplicateEmail
		}
		return nil, err
	}
	roles, err := loadRoles(ctx, s.pool, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles
	return &user, nil
}

// CreateSession persists an active-session record.
func (s *PGStore) CreateSession(ctx context.Context, session Session) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auth_sessions (id, user_id, created_at, expires_at) VALUES ($1, $2, $3, $4)`,
		session.ID, session.UserID, session.CreatedAt.UTC(), session.ExpiresAt.UTC(),
	)
	return err
}

// DeleteSession removes a session record and reports whether one existed.
func (s *PGStore) DeleteSession(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SessionExists reports whether an unexpired record exists for id.
func (s *PGStore) SessionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM auth_sessions WHERE id = $1 AND expires_at > NOW())`, id,
	).Scan(&exists)
	return exists, err
}

// PruneExpired deletes records that expired before now.
func (s *PGStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadRoles(ctx context.Context, q rowQuerier, userID int64) ([]RoleAssignment, error) {
	rows, err := q.Query(ctx, `SELECT role, franchise_id FROM user_roles WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	roles := []RoleAssignment{}
	for rows.Next() {
		var (
			role        string
			franchiseID *int64
		)
		if err := rows.Scan(&role, &franchiseID); err != nil {
			return nil, err
		}
		roles = append(roles, RoleAssignment{Role: Role(role), FranchiseID: franchiseID})
	}
	return roles, rows.Err()
}

var (
	_ UserStore     = (*PGStore)(nil)
	_ SessionStore  = (*PGStore)(nil)
	_ SessionPruner = (*PGStore)(nil)
)
