package domain

import (
	"errors"
	"sort"
	"time"
)

// State is the lifecycle state of a session. Expired and Revoked are terminal.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateRevoked State = "revoked"
)

// Reasons recorded against a denied token id or a revoked session.
const (
	ReasonRotated = "rotated"
	ReasonLogout  = "logout"
	ReasonReuse   = "reuse"
)

// Session is one authenticated login. ExpiresAt is fixed at creation and never extended.
type Session struct {
	ID           string
	UserID       string
	Username     string
	CreatedAt    time.Time
	ExpiresAt    time.Time
	RevokedAt    *time.Time // nil when not revoked
	RevokeReason string
	Denied       DenyList
}

// New returns an active session for the given owner expiring ttl after now.
func New(id, userID, username string, now time.Time, ttl time.Duration) (*Session, error) {
	if id == "" || userID == "" || username == "" {
		return nil, errors.New("session id, user id and username are required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	now = now.UTC()
	return &Session{
		ID:        id,
		UserID:    userID,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Denied:    DenyList{},
	}, nil
}

// State reports the session state at now. Revocation wins over expiry.
func (s *Session) State(now time.Time) State {
	switch {
	case s.RevokedAt != nil:
		return StateRevoked
	case !now.Before(s.ExpiresAt):
		return StateExpired
	default:
		return StateActive
	}
}

// DenyList is the set of spent token ids of one session. It only grows.
type DenyList map[string]struct{}

// Contains reports whether tokenID has been spent.
func (d DenyList) Contains(tokenID string) bool {
	_, ok := d[tokenID]
	return ok
}

// Add records tokenID and reports whether it was newly added.
func (d DenyList) Add(tokenID string) bool {
	if _, ok := d[tokenID]; ok {
		return false
	}
	d[tokenID] = struct{}{}
	return true
}

func (d DenyList) Len() int { return len(d) }

// IDs returns the spent ids in sorted order.
func (d DenyList) IDs() []string {
	out := make([]string, 0, len(d))
	for id := range d {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy of d.
func (d DenyList) Clone() DenyList {
	c := make(DenyList, len(d))
	for id := range d {
		c[id] = struct{}{}
	}
	return c
}
