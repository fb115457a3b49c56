package users

import "time"

// User is the admin-panel view of an account.
type User struct {
	ID              int64
	Email           string
	FirstName       string
	LastName        string
	Role            string
	IsActive        bool
	IsEmailVerified bool
	LastLogin       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ListRequest carries paging parameters.
type ListRequest struct {
	Limit  int
	Offset int
}
