package identity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/claimtrack/claimtrack/internal/platform/auth"
	"github.com/claimtrack/claimtrack/internal/platform/db"
)

const userColumns = `id, email, password_hash, role, created_at, updated_at`

type userRepoPG struct {
	db *db.Handle
}

func NewUserRepo(h *db.Handle) UserRepository {
	return &userRepoPG{db: h}
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()

	err := r.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		u.Email, u.PasswordHash, string(u.Role),
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return ErrEmailTaken
		}
		return db.Classify(fmt.Errorf("insert user: %w", err))
	}
	return nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id int64) (*User, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()
	return scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := r.db.Bound(ctx)
	defer cancel()
	return scanUser(r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, db.Classify(fmt.Errorf("scan user: %w", err))
	}
	u.Role = auth.Role(role)
	return &u, nil
}
