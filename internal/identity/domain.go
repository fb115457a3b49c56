package identity

import "time"

// Role enumerates the account roles known to the storefront.
type Role string

const (
	RoleBuyer Role = "buyer"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleBuyer || r == RoleAdmin
}

// User is the canonical identity record. PasswordHash is set only for
// accounts with local credentials, ProviderID only for accounts linked to a
// federated provider; after account linking both are present.
type User struct {
	ID              int64
	Email           string
	PasswordHash    *string
	ProviderID      *string
	FirstName       string
	LastName        string
	Avatar          string
	Role            Role
	IsActive        bool
	IsEmailVerified bool
	LastLogin       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Principal is the authenticated identity handed to the rest of the system.
// It is derived from User at resolution time and never persisted.
type Principal struct {
	ID       int64
	Email    string
	Role     Role
	IsActive bool
}

// Principal derives the read-only principal view of the user.
func (u *User) Principal() Principal {
	return Principal{
		ID:       u.ID,
		Email:    u.Email,
		Role:     u.Role,
		IsActive: u.IsActive,
	}
}

// ProviderProfile carries the claims asserted by a federated identity
// provider after a completed handshake.
type ProviderProfile struct {
	Provider      string
	SubjectID     string
	Email         string
	FirstName     string
	LastName      string
	AvatarURL     string
	EmailVerified bool
}

// NewUser collects the attributes accepted by Directory.Create.
type NewUser struct {
	Email           string
	PasswordHash    *string
	ProviderID      *string
	FirstName       string
	LastName        string
	Avatar          string
	Role            Role
	IsActive        bool
	IsEmailVerified bool
}
