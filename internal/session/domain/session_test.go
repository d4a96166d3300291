package domain

import (
	"reflect"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s, err := New("s1", "u1", "alice", now, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !s.ExpiresAt.Equal(now.Add(7 * 24 * time.Hour)) {
		t.Errorf("ExpiresAt = %v", s.ExpiresAt)
	}
	if s.Denied == nil || s.Denied.Len() != 0 {
		t.Error("new session should have an empty deny-list")
	}
	if _, err := New("", "u1", "alice", now, time.Hour); err == nil {
		t.Error("missing id should fail")
	}
	if _, err := New("s1", "u1", "alice", now, 0); err == nil {
		t.Error("zero ttl should fail")
	}
}

func TestSession_State(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s, _ := New("s1", "u1", "alice", now, time.Hour)

	testCases := []struct {
		name string
		at   time.Time
		want State
	}{
		{"fresh", now, StateActive},
		{"just before expiry", now.Add(time.Hour - time.Nanosecond), StateActive},
		{"at expiry", now.Add(time.Hour), StateExpired},
		{"after expiry", now.Add(2 * time.Hour), StateExpired},
	}
	for _, tc := range testCases {
		if got := s.State(tc.at); got != tc.want {
			t.Errorf("%s: State = %s, want %s", tc.name, got, tc.want)
		}
	}

	revokedAt := now.Add(time.Minute)
	s.RevokedAt = &revokedAt
	if got := s.State(now.Add(2 * time.Hour)); got != StateRevoked {
		t.Errorf("revoked and expired: State = %s, want revoked", got)
	}
}

func TestDenyList(t *testing.T) {
	d := DenyList{}
	if !d.Add("b") || !d.Add("a") {
		t.Fatal("first Add should report true")
	}
	if d.Add("a") {
		t.Error("second Add of same id should report false")
	}
	if !d.Contains("a") || d.Contains("c") {
		t.Error("Contains mismatch")
	}
	if !reflect.DeepEqual(d.IDs(), []string{"a", "b"}) {
		t.Errorf("IDs = %v", d.IDs())
	}
	c := d.Clone()
	c.Add("z")
	if d.Contains("z") {
		t.Error("Clone should be independent")
	}
}
