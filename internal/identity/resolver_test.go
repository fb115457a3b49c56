package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfile() ProviderProfile {
	return ProviderProfile{
		Provider:      "google",
		SubjectID:     "google:998",
		Email:         "carol@example.com",
		FirstName:     "Carol",
		LastName:      "Jones",
		AvatarURL:     "https://lh3.example.com/photo.jpg",
		EmailVerified: true,
	}
}

func TestResolveReturningFederatedUser(t *testing.T) {
	directory := newMockDirectory()
	stored := directory.add(User{
		Email:      "carol@example.com",
		ProviderID: strPtr("google:998"),
		Role:       RoleBuyer,
		IsActive:   true,
	})

	resolver := NewResolver(directory)
	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resolver.now = func() time.Time { return first }

	principal, outcome, err := resolver.Resolve(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, outcome)
	assert.Equal(t, stored.ID, principal.ID)
	require.NotNil(t, directory.get(stored.ID).LastLogin)
	assert.Equal(t, first, *directory.get(stored.ID).LastLogin)

	// Idempotent on provider id, with last_login advancing monotonically.
	second := first.Add(time.Hour)
	resolver.now = func() time.Time { return second }
	again, outcome, err := resolver.Resolve(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, OutcomeMatched, outcome)
	assert.Equal(t, principal.ID, again.ID)
	assert.Equal(t, second, *directory.get(stored.ID).LastLogin)
	assert.Equal(t, 0, directory.createCalls)
}

func TestResolveLinksLocalAccount(t *testing.T) {
	directory := newMockDirectory()
	hash := "bcrypt-hash-sentinel"
	stored := directory.add(User{
		Email:        "carol@example.com",
		PasswordHash: &hash,
		Role:         RoleBuyer,
		IsActive:     true,
	})

	resolver := NewResolver(directory)
	principal, outcome, err := resolver.Resolve(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, OutcomeLinked, outcome)
	assert.Equal(t, stored.ID, principal.ID)

	linked := directory.get(stored.ID)
	require.NotNil(t, linked.ProviderID)
	assert.Equal(t, "google:998", *linked.ProviderID)
	require.NotNil(t, linked.PasswordHash)
	assert.Equal(t, hash, *linked.PasswordHash, "linking must preserve the local credential")
	assert.Equal(t, "https://lh3.example.com/photo.jpg", linked.Avatar)
	assert.NotNil(t, linked.LastLogin)
}

func TestResolveLinkKeepsCustomAvatar(t *testing.T) {
	directory := newMockDirectory()
	stored := directory.add(User{
		Email:    "carol@example.com",
		Avatar:   "https://cdn.example.com/custom.png",
		Role:     RoleBuyer,
		IsActive: true,
	})

	resolver := NewResolver(directory)
	_, _, err := resolver.Resolve(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/custom.png", directory.get(stored.ID).Avatar)
}

func TestResolveCreatesNewUser(t *testing.T) {
	directory := newMockDirectory()
	resolver := NewResolver(directory)

	principal, outcome, err := resolver.Resolve(context.Background(), testProfile())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreated, outcome)

	user := directory.get(principal.ID)
	require.NotNil(t, user)
	assert.Equal(t, "carol@example.com", user.Email)
	require.NotNil(t, user.ProviderID)
	assert.Equal(t, "google:998", *user.ProviderID)
	assert.Nil(t, user.PasswordHash)
	assert.Equal(t, RoleBuyer, user.Role)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsEmailVerified, "the provider is trusted to have verified the email")
	assert.Equal(t, "Carol", user.FirstName)
	assert.Equal(t, "https://lh3.example.com/photo.jpg", user.Avatar)
}

func TestResolveRecoversFromCreateRace(t *testing.T) {
	directory := newMockDirectory()
	resolver := NewResolver(directory)

	const concurrency = 16
	ids := make([]int64, concurrency)
	errs := make([]error, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			principal, _, err := resolver.Resolve(context.Background(), testProfile())
			ids[slot] = principal.ID
			errs[slot] = err
		}(i)
	}
	wg.Wait()

	var persisted int
	for id := int64(1); id < 100; id++ {
		if directory.get(id) != nil {
			persisted++
		}
	}
	assert.Equal(t, 1, persisted, "exactly one user must be created")
	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i], "all resolutions must converge on the same user")
	}
}

func TestResolveConflictRetryExhausted(t *testing.T) {
	// A duplicate-create conflict whose retry still finds nothing is a
	// hard failure, not an infinite retry.
	directory := newMockDirectory()
	directory.createErr = ErrDuplicateIdentity
	resolver := NewResolver(directory)

	_, _, err := resolver.Resolve(context.Background(), testProfile())
	require.Error(t, err)
	assert.Equal(t, 1, directory.createCalls)
}

func TestResolvePropagatesDirectoryFailure(t *testing.T) {
	directory := newMockDirectory()
	directory.findByProviderErr = errors.New("connection reset")
	resolver := NewResolver(directory)

	_, _, err := resolver.Resolve(context.Background(), testProfile())
	require.Error(t, err)
	assert.Equal(t, 0, directory.createCalls)
}
