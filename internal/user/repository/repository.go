package repository

import (
	"context"

	"session-auth/backend/internal/user/domain"
)

// Repository defines read access to users plus Create for seeding.
type Repository interface {
	// GetByUsername returns the user with exactly this username, or nil if not found.
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}
