package identity

import (
	"context"
	"sync"
	"time"
)

// mockDirectory is an in-memory Directory with the same uniqueness
// behavior as the SQL implementation. All operations are atomic under a
// single mutex, mirroring single-statement atomicity in Postgres.
type mockDirectory struct {
	mu     sync.Mutex
	users  map[int64]*User
	nextID int64

	findByEmailErr    error
	findByProviderErr error
	findByIDErr       error
	createErr         error
	createCalls       int
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{users: make(map[int64]*User), nextID: 1}
}

func (m *mockDirectory) add(user User) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == 0 {
		user.ID = m.nextID
	}
	if user.ID >= m.nextID {
		m.nextID = user.ID + 1
	}
	user.Email = NormalizeEmail(user.Email)
	stored := user
	m.users[stored.ID] = &stored
	return &stored
}

func (m *mockDirectory) get(id int64) *User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		copied := *user
		return &copied
	}
	return nil
}

func (m *mockDirectory) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	needle := NormalizeEmail(email)
	for _, user := range m.users {
		if user.Email == needle {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDirectory) FindByProviderID(ctx context.Context, providerID string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findByProviderErr != nil {
		return nil, m.findByProviderErr
	}
	for _, user := range m.users {
		if user.ProviderID != nil && *user.ProviderID == providerID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockDirectory) FindByID(ctx context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if user, ok := m.users[id]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (m *mockDirectory) Create(ctx context.Context, attrs NewUser) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return nil, m.createErr
	}
	email := NormalizeEmail(attrs.Email)
	for _, user := range m.users {
		if user.Email == email {
			return nil, ErrDuplicateIdentity
		}
		if attrs.ProviderID != nil && user.ProviderID != nil && *user.ProviderID == *attrs.ProviderID {
			return nil, ErrDuplicateIdentity
		}
	}
	now := time.Now().UTC()
	user := &User{
		ID:              m.nextID,
		Email:           email,
		PasswordHash:    attrs.PasswordHash,
		ProviderID:      attrs.ProviderID,
		FirstName:       attrs.FirstName,
		LastName:        attrs.LastName,
		Avatar:          attrs.Avatar,
		Role:            attrs.Role,
		IsActive:        attrs.IsActive,
		IsEmailVerified: attrs.IsEmailVerified,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.nextID++
	m.users[user.ID] = user
	copied := *user
	return &copied, nil
}

func (m *mockDirectory) LinkProvider(ctx context.Context, userID int64, providerID, avatar string, at time.Time) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, other := range m.users {
		if other.ID != userID && other.ProviderID != nil && *other.ProviderID == providerID {
			return nil, ErrDuplicateIdentity
		}
	}
	pid := providerID
	user.ProviderID = &pid
	if user.Avatar == "" {
		user.Avatar = avatar
	}
	touch(user, at)
	user.UpdatedAt = time.Now().UTC()
	copied := *user
	return &copied, nil
}

func (m *mockDirectory) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	touch(user, at)
	return nil
}

func touch(user *User, at time.Time) {
	at = at.UTC()
	if user.LastLogin == nil || at.After(*user.LastLogin) {
		user.LastLogin = &at
	}
}

var _ Directory = (*mockDirectory)(nil)
