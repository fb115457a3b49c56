package identity

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// SessionBinding is the minimal session surface the principal store needs:
// a single mutable user-id slot plus id rotation on privilege change.
type SessionBinding interface {
	User() string
	SetUser(id string)
	Rotate()
}

// PrincipalStore converts a successful authentication into a session-bound
// identity and rehydrates the full principal on every request. Only the
// user id is stored in the session, so role and status changes take effect
// on the next request instead of living for the session's lifetime.
type PrincipalStore struct {
	directory Directory
	group     singleflight.Group
}

// NewPrincipalStore constructs a PrincipalStore.
func NewPrincipalStore(directory Directory) *PrincipalStore {
	return &PrincipalStore{directory: directory}
}

// Bind associates the session with the principal. The session id is
// rotated so a pre-login id cannot be replayed as an authenticated one.
func (s *PrincipalStore) Bind(sess SessionBinding, principal Principal) {
	sess.Rotate()
	sess.SetUser(strconv.FormatInt(principal.ID, 10))
}

// Resolve rehydrates the principal bound to the session, fetching the user
// from the directory on every call. An unbound session, an unparsable id or
// a deleted user all resolve to anonymous (nil) rather than an error;
// concurrent resolutions of the same id are coalesced.
func (s *PrincipalStore) Resolve(ctx context.Context, sess SessionBinding) (*Principal, error) {
	raw := sess.User()
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, nil
	}

	// The lookup runs detached from the caller's cancellation: the result
	// is shared across coalesced callers, and one cancelled request must
	// not fail the others waiting on the same id.
	lookupCtx := context.WithoutCancel(ctx)
	result, err, _ := s.group.Do(raw, func() (any, error) {
		return s.directory.FindByID(lookupCtx, id)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("identity: resolve session: %w", err)
	}
	principal := result.(*User).Principal()
	return &principal, nil
}

// Unbind clears the bound id and leaves the session anonymous.
func (s *PrincipalStore) Unbind(sess SessionBinding) {
	sess.SetUser("")
}
