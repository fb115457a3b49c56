package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	users    []User
	total    int
	lastReq  ListRequest
	inactive map[int64]bool
	err      error
}

func (s *stubRepo) ListUsers(ctx context.Context, req ListRequest) ([]User, int, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, 0, s.err
	}
	return s.users, s.total, nil
}

func (s *stubRepo) SetActive(ctx context.Context, id int64, active bool) error {
	if s.err != nil {
		return s.err
	}
	found := false
	for _, u := range s.users {
		if u.ID == id {
			found = true
		}
	}
	if !found {
		return ErrNotFound
	}
	if s.inactive == nil {
		s.inactive = make(map[int64]bool)
	}
	s.inactive[id] = !active
	return nil
}

func TestListUsersClampsPaging(t *testing.T) {
	repo := &stubRepo{users: []User{{ID: 1, Email: "a@example.com"}}, total: 1}
	svc := NewService(repo)

	_, _, err := svc.ListUsers(context.Background(), ListRequest{Limit: 0, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastReq.Limit)
	assert.Equal(t, 0, repo.lastReq.Offset)

	_, _, err = svc.ListUsers(context.Background(), ListRequest{Limit: 500, Offset: 20})
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastReq.Limit)
	assert.Equal(t, 20, repo.lastReq.Offset)

	_, _, err = svc.ListUsers(context.Background(), ListRequest{Limit: 25, Offset: 0})
	require.NoError(t, err)
	assert.Equal(t, 25, repo.lastReq.Limit)
}

func TestListUsersReturnsPage(t *testing.T) {
	repo := &stubRepo{
		users: []User{{ID: 1, Email: "a@example.com"}, {ID: 2, Email: "b@example.com"}},
		total: 42,
	}
	svc := NewService(repo)

	page, total, err := svc.ListUsers(context.Background(), ListRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.Equal(t, 42, total)
}

func TestSetActive(t *testing.T) {
	repo := &stubRepo{users: []User{{ID: 7, IsActive: true}}}
	svc := NewService(repo)

	require.NoError(t, svc.SetActive(context.Background(), 7, false))
	assert.True(t, repo.inactive[7])

	require.NoError(t, svc.SetActive(context.Background(), 7, true))
	assert.False(t, repo.inactive[7])
}

func TestSetActiveUnknownUser(t *testing.T) {
	svc := NewService(&stubRepo{})
	err := svc.SetActive(context.Background(), 99, false)
	assert.ErrorIs(t, err, ErrNotFound)
}
