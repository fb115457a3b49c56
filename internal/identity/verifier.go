package identity

import (
	"context"
	"errors"
	"fmt"
)

// Verifier validates local email/password credentials against the directory.
type Verifier struct {
	directory Directory
	hasher    Hasher
}

// NewVerifier constructs a Verifier.
func NewVerifier(directory Directory, hasher Hasher) *Verifier {
	return &Verifier{directory: directory, hasher: hasher}
}

// Verify checks the supplied credentials and returns the principal on
// success. Unknown emails, wrong passwords and accounts without a local
// credential all fail with ErrInvalidCredentials; disabled accounts fail
// with ErrAccountDisabled regardless of the password. Verify never mutates
// the record; advancing last_login happens at session-bind time.
func (v *Verifier) Verify(ctx context.Context, email, password string) (Principal, error) {
	user, err := v.directory.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Principal{}, ErrInvalidCredentials
		}
		return Principal{}, fmt.Errorf("identity: verify lookup: %w", err)
	}
	if !user.IsActive {
		return Principal{}, ErrAccountDisabled
	}
	if user.PasswordHash == nil || !v.hasher.Verify(password, *user.PasswordHash) {
		return Principal{}, ErrInvalidCredentials
	}
	return user.Principal(), nil
}
