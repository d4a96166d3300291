// Package seed creates the development users used for local testing.
package seed

import (
	"context"
	"fmt"
	"time"

	"session-auth/backend/internal/security"
	"session-auth/backend/internal/user/domain"
)

// DevPassword is the password of every development user.
const DevPassword = "password123"

// Store is the part of a user repository the seeder needs.
type Store interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

type devUser struct {
	id, username, email, name string
	roles                     []string
	active                    bool
}

// alice can log in; bob is disabled and exercises the inactive-account path.
var devUsers = []devUser{
	{id: "dev-user-001", username: "alice", email: "alice@example.com", name: "Alice Dev", roles: []string{"admin"}, active: true},
	{id: "dev-user-002", username: "bob", email: "bob@example.com", name: "Bob Disabled", roles: []string{"member"}, active: false},
}

// Apply creates each development user that does not exist yet and returns the usernames created.
// It is idempotent.
func Apply(ctx context.Context, store Store, hasher *security.Hasher, now time.Time) ([]string, error) {
	var created []string
	var hash string
	for _, du := range devUsers {
		existing, err := store.GetByUsername(ctx, du.username)
		if err != nil {
			return created, fmt.Errorf("seed check %s: %w", du.username, err)
		}
		if existing != nil {
			continue
		}
		if hash == "" {
			if hash, err = hasher.Hash([]byte(DevPassword)); err != nil {
				return created, fmt.Errorf("hash password: %w", err)
			}
		}
		u := &domain.User{
			ID:           du.id,
			Username:     du.username,
			Email:        du.email,
			DisplayName:  du.name,
			PasswordHash: hash,
			Roles:        du.roles,
			Active:       du.active,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := store.Create(ctx, u); err != nil {
			return created, fmt.Errorf("create %s: %w", du.username, err)
		}
		created = append(created, du.username)
	}
	return created, nil
}
