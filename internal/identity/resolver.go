package identity

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ResolveOutcome reports how a provider profile was reconciled with the
// directory.
type ResolveOutcome int

const (
	// OutcomeMatched means the provider id was already on record.
	OutcomeMatched ResolveOutcome = iota
	// OutcomeLinked means the provider id was attached to an existing
	// account found by email.
	OutcomeLinked
	// OutcomeCreated means a new account was created.
	OutcomeCreated
)

// Resolver reconciles a federated provider profile with the directory.
type Resolver struct {
	directory Directory
	now       func() time.Time
}

// NewResolver constructs a Resolver.
func NewResolver(directory Directory) *Resolver {
	return &Resolver{directory: directory, now: time.Now}
}

// Resolve runs the three-tier resolution: provider-id lookup, email lookup
// with account linking, then creation. Two concurrent first-time logins
// for the same identity may both attempt the create; the loser recovers by
// re-running the lookup tiers exactly once.
func (r *Resolver) Resolve(ctx context.Context, profile ProviderProfile) (Principal, ResolveOutcome, error) {
	now := r.now().UTC()

	principal, outcome, err := r.lookup(ctx, profile, now)
	if err == nil {
		return principal, outcome, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Principal{}, OutcomeMatched, err
	}

	providerID := profile.SubjectID
	user, err := r.directory.Create(ctx, NewUser{
		Email:           NormalizeEmail(profile.Email),
		ProviderID:      &providerID,
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		Avatar:          profile.AvatarURL,
		Role:            RoleBuyer,
		IsActive:        true,
		IsEmailVerified: true,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			// Lost the race against a concurrent first login; the winner's
			// record must now be visible to the lookup tiers.
			principal, outcome, retryErr := r.lookup(ctx, profile, now)
			if retryErr != nil {
				return Principal{}, OutcomeMatched, fmt.Errorf("identity: resolve conflict retry: %w", retryErr)
			}
			return principal, outcome, nil
		}
		return Principal{}, OutcomeMatched, fmt.Errorf("identity: resolve create: %w", err)
	}
	return user.Principal(), OutcomeCreated, nil
}

// lookup runs tiers one and two. ErrNotFound means neither matched.
func (r *Resolver) lookup(ctx context.Context, profile ProviderProfile, now time.Time) (Principal, ResolveOutcome, error) {
	user, err := r.directory.FindByProviderID(ctx, profile.SubjectID)
	if err == nil {
		if err := r.directory.TouchLastLogin(ctx, user.ID, now); err != nil {
			return Principal{}, OutcomeMatched, fmt.Errorf("identity: resolve touch: %w", err)
		}
		return user.Principal(), OutcomeMatched, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Principal{}, OutcomeMatched, fmt.Errorf("identity: resolve provider lookup: %w", err)
	}

	user, err = r.directory.FindByEmail(ctx, NormalizeEmail(profile.Email))
	if err == nil {
		// Same human arriving through a new channel: link the provider id
		// onto the existing local account.
		linked, linkErr := r.directory.LinkProvider(ctx, user.ID, profile.SubjectID, profile.AvatarURL, now)
		if linkErr != nil {
			return Principal{}, OutcomeMatched, fmt.Errorf("identity: resolve link: %w", linkErr)
		}
		return linked.Principal(), OutcomeLinked, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Principal{}, OutcomeMatched, fmt.Errorf("identity: resolve email lookup: %w", err)
	}
	return Principal{}, OutcomeMatched, ErrNotFound
}
