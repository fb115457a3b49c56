package identity

import (
	"context"
	"time"
)

// Directory defines persistence operations over user records. All lookups
// return ErrNotFound when no record matches; Create returns
// ErrDuplicateIdentity when email or provider id collide.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByProviderID(ctx context.Context, providerID string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, attrs NewUser) (*User, error)
	// LinkProvider attaches a provider id to an existing account, fills the
	// avatar only when the stored one is empty and advances last_login, as
	// a single atomic update.
	LinkProvider(ctx context.Context, userID int64, providerID, avatar string, at time.Time) (*User, error)
	// TouchLastLogin advances last_login; the timestamp never moves backwards.
	TouchLastLogin(ctx context.Context, userID int64, at time.Time) error
}
