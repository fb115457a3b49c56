package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const userColumns = `id, email, password_hash, provider_id, first_name, last_name, avatar, role, is_active, is_email_verified, last_login, created_at, updated_at`

// PGDirectory implements Directory using PostgreSQL.
type PGDirectory struct {
	pool *pgxpool.Pool
}

// NewPGDirectory constructs a PostgreSQL backed directory.
func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// FindByEmail fetches a user by canonical email.
func (d *PGDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, NormalizeEmail(email))
	return scanUser(row)
}

// FindByProviderID fetches a user by federated provider id.
func (d *PGDirectory) FindByProviderID(ctx context.Context, providerID string) (*User, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE provider_id = $1`, providerID)
	return scanUser(row)
}

// FindByID fetches a user by primary key.
func (d *PGDirectory) FindByID(ctx context.Context, id int64) (*User, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// Create inserts a new user record. Unique violations on email or
// provider_id surface as ErrDuplicateIdentity.
func (d *PGDirectory) Create(ctx context.Context, attrs NewUser) (*User, error) {
	row := d.pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, provider_id, first_name, last_name, avatar, role, is_active, is_email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING `+userColumns,
		NormalizeEmail(attrs.Email), attrs.PasswordHash, attrs.ProviderID,
		attrs.FirstName, attrs.LastName, attrs.Avatar,
		string(attrs.Role), attrs.IsActive, attrs.IsEmailVerified,
	)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	return user, nil
}

// LinkProvider attaches a provider id to an existing account in a single
// update. The avatar is filled only when currently empty and last_login
// never moves backwards.
func (d *PGDirectory) LinkProvider(ctx context.Context, userID int64, providerID, avatar string, at time.Time) (*User, error) {
	row := d.pool.QueryRow(ctx, `
		UPDATE users
		SET provider_id = $2,
		    avatar = CASE WHEN avatar = '' THEN $3 ELSE avatar END,
		    last_login = GREATEST(COALESCE(last_login, 'epoch'::timestamptz), $4),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		userID, providerID, avatar, at.UTC(),
	)
	user, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	return user, nil
}

// TouchLastLogin advances last_login for the user.
func (d *PGDirectory) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	tag, err := d.pool.Exec(ctx, `
		UPDATE users
		SET last_login = GREATEST(COALESCE(last_login, 'epoch'::timestamptz), $2),
		    updated_at = NOW()
		WHERE id = $1`,
		userID, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("identity: touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	var role string
	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.ProviderID,
		&user.FirstName, &user.LastName, &user.Avatar, &role,
		&user.IsActive, &user.IsEmailVerified, &user.LastLogin,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	user.Role = Role(role)
	return &user, nil
}

var _ Directory = (*PGDirectory)(nil)
