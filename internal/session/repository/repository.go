package repository

import (
	"context"
	"errors"
	"time"

	"session-auth/backend/internal/session/domain"
)

var (
	// ErrNotFound is returned when the session does not exist or belongs to another user.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when the session's absolute expiry has passed.
	ErrExpired = errors.New("session expired")
	// ErrRevoked is returned when the session was revoked.
	ErrRevoked = errors.New("session revoked")
	// ErrTokenReused is returned by Rotate when the token id is already on the deny-list.
	ErrTokenReused = errors.New("token id already spent")
)

// Repository defines persistence for sessions and their deny-lists.
// Every implementation makes Rotate linearizable per session id.
type Repository interface {
	Create(ctx context.Context, s *domain.Session) error
	// GetByID returns the session with its deny-list, or nil if not found.
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	// Rotate checks that the session exists, is owned by userID, and is active at now, then
	// appends tokenID to its deny-list with reason rotated. The check and the append are one
	// atomic step. Returns ErrNotFound, ErrRevoked, ErrExpired or ErrTokenReused.
	Rotate(ctx context.Context, sessionID, userID, tokenID string, now time.Time) error
	// DenyTokenID appends tokenID regardless of the session state. Appending an id twice is a no-op.
	DenyTokenID(ctx context.Context, sessionID, tokenID, reason string, now time.Time) error
	// Revoke marks the session revoked. Revoking a revoked session keeps the first reason.
	Revoke(ctx context.Context, id, reason string, now time.Time) error
	// RevokeAllByUser revokes every active session of userID and returns how many it revoked.
	RevokeAllByUser(ctx context.Context, userID, reason string, now time.Time) (int, error)
	// DeleteExpired removes sessions whose absolute expiry is before cutoff.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
	Ping(ctx context.Context) error
}
