package identity

import (
	"context"
	"errors"
	"fmt"
)

// Registration carries the attributes of a local sign-up.
type Registration struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Registrar creates local password-based accounts.
type Registrar struct {
	directory Directory
	hasher    Hasher
}

// NewRegistrar constructs a Registrar.
func NewRegistrar(directory Directory, hasher Hasher) *Registrar {
	return &Registrar{directory: directory, hasher: hasher}
}

// Register hashes the password and creates a buyer account. Email
// verification happens later through the mail flow, so the account starts
// unverified but active.
func (r *Registrar) Register(ctx context.Context, reg Registration) (Principal, error) {
	hash, err := r.hasher.Hash(reg.Password)
	if err != nil {
		return Principal{}, fmt.Errorf("identity: register hash: %w", err)
	}
	user, err := r.directory.Create(ctx, NewUser{
		Email:           NormalizeEmail(reg.Email),
		PasswordHash:    &hash,
		FirstName:       reg.FirstName,
		LastName:        reg.LastName,
		Role:            RoleBuyer,
		IsActive:        true,
		IsEmailVerified: false,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return Principal{}, ErrEmailTaken
		}
		return Principal{}, fmt.Errorf("identity: register create: %w", err)
	}
	return user.Principal(), nil
}
