package repository

import (
	"context"
	"errors"
	"testing"

	"session-auth/backend/internal/user/domain"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	u := &domain.User{ID: "u1", Username: "alice", PasswordHash: "h", Roles: []string{"admin"}, Active: true}
	if err := repo.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(ctx, &domain.User{ID: "u2", Username: "alice", PasswordHash: "h"}); !errors.Is(err, ErrDuplicateUsername) {
		t.Fatalf("duplicate Create: want ErrDuplicateUsername, got %v", err)
	}

	got, err := repo.GetByUsername(ctx, "alice")
	if err != nil || got == nil || got.ID != "u1" {
		t.Fatalf("GetByUsername = %+v, %v", got, err)
	}
	got.Roles[0] = "mutated"
	again, _ := repo.GetByID(ctx, "u1")
	if again.Roles[0] != "admin" {
		t.Error("repository should return copies")
	}
	if missing, err := repo.GetByUsername(ctx, "Alice"); missing != nil || err != nil {
		t.Errorf("username lookup should be exact, got %+v, %v", missing, err)
	}
}
