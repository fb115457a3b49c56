package users

import (
	"context"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, req ListRequest) ([]User, int, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// Service handles user management business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// ListUsers returns a page of users with the total count.
func (s *Service) ListUsers(ctx context.Context, req ListRequest) ([]User, int, error) {
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.ListUsers(ctx, req)
}

// SetActive enables or disables an account. Because sessions store only the
// user id and the principal is rehydrated each request, a disable takes
// effect on the target's next request.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}
