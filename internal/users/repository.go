package users

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborline/harborline/internal/platform/db"
)

// ErrNotFound indicates the user does not exist.
var ErrNotFound = errors.New("users: not found")

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns a page of users ordered by id. Count and page run in a
// single repeatable-read transaction so the total matches the page snapshot.
func (r *Repository) ListUsers(ctx context.Context, req ListRequest) ([]User, int, error) {
	var result []User
	var total int

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
			return err
		}

		rows, err := tx.Query(ctx, `
			SELECT id, email, first_name, last_name, role, is_active, is_email_verified, last_login, created_at, updated_at
			FROM users ORDER BY id LIMIT $1 OFFSET $2`, req.Limit, req.Offset)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var user User
			if err := rows.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.Role, &user.IsActive, &user.IsEmailVerified, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt); err != nil {
				return err
			}
			result = append(result, user)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// SetActive flips the administrative status of an account.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
