package repository

import (
	"context"
	"sync"
	"time"

	"session-auth/backend/internal/session/domain"
)

// MemoryRepository keeps sessions in process. A single mutex makes Rotate linearizable.
// Intended for development and tests; state is lost on restart.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*domain.Session)}
}

// Create stores a copy of s.
func (r *MemoryRepository) Create(ctx context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = cloneSession(s)
	return nil
}

// GetByID returns a copy of the session, or nil if not found.
func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

// Rotate checks the session state and appends tokenID under the repository lock.
func (r *MemoryRepository) Rotate(ctx context.Context, sessionID, userID, tokenID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.UserID != userID {
		return ErrNotFound
	}
	switch s.State(now) {
	case domain.StateRevoked:
		return ErrRevoked
	case domain.StateExpired:
		return ErrExpired
	}
	if !s.Denied.Add(tokenID) {
		return ErrTokenReused
	}
	return nil
}

// DenyTokenID appends tokenID whatever the session state. Returns ErrNotFound if the session does not exist.
func (r *MemoryRepository) DenyTokenID(ctx context.Context, sessionID, tokenID, reason string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	s.Denied.Add(tokenID)
	return nil
}

// Revoke marks the session revoked, keeping the first reason. Returns ErrNotFound if the session does not exist.
func (r *MemoryRepository) Revoke(ctx context.Context, id, reason string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return ErrNotFound
	}
	revoke(s, reason, now)
	return nil
}

// RevokeAllByUser revokes the user's sessions that are active at now.
func (r *MemoryRepository) RevokeAllByUser(ctx context.Context, userID, reason string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.State(now) == domain.StateActive {
			revoke(s, reason, now)
			n++
		}
	}
	return n, nil
}

// DeleteExpired drops sessions whose absolute expiry is before cutoff.
func (r *MemoryRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// Ping always succeeds.
func (r *MemoryRepository) Ping(ctx context.Context) error { return nil }

func revoke(s *domain.Session, reason string, now time.Time) {
	if s.RevokedAt != nil {
		return
	}
	t := now
	s.RevokedAt = &t
	s.RevokeReason = reason
}

func cloneSession(s *domain.Session) *domain.Session {
	c := *s
	if s.RevokedAt != nil {
		t := *s.RevokedAt
		c.RevokedAt = &t
	}
	if s.Denied == nil {
		c.Denied = domain.DenyList{}
	} else {
		c.Denied = s.Denied.Clone()
	}
	return &c
}
