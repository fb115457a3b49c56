package identity

import "errors"

var (
	// ErrNotFound indicates the requested user record does not exist.
	ErrNotFound = errors.New("identity: user not found")
	// ErrInvalidCredentials covers unknown email, wrong password and
	// accounts without a local credential. The cases are deliberately
	// indistinguishable to prevent account enumeration.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")
	// ErrAccountDisabled indicates the account exists but is
	// administratively disabled.
	ErrAccountDisabled = errors.New("identity: account disabled")
	// ErrDuplicateIdentity indicates a create hit a uniqueness constraint
	// on email or provider id. The resolver treats it as recoverable.
	ErrDuplicateIdentity = errors.New("identity: duplicate identity")
	// ErrEmailTaken indicates a registration attempt for an existing email.
	ErrEmailTaken = errors.New("identity: email already registered")
)
