package sweeper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"session-auth/backend/internal/session/domain"
	sessionrepo "session-auth/backend/internal/session/repository"
)

type countRecorder struct {
	mu sync.Mutex
	n  int64
}

func (c *countRecorder) SessionsSwept(n int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n += n
}

func (c *countRecorder) total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type failingStore struct{}

func (failingStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("connection reset")
}

func TestSweepOnce_RespectsRetention(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	repo := sessionrepo.NewMemoryRepository()
	for _, tc := range []struct {
		id      string
		created time.Time
	}{
		{"long-gone", now.Add(-72 * time.Hour)}, // expired 71h ago
		{"recent", now.Add(-90 * time.Minute)},  // expired 30m ago, inside retention
		{"active", now.Add(-10 * time.Minute)},  // still active
	} {
		s, err := domain.New(tc.id, "u1", "alice", tc.created, time.Hour)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if err := repo.Create(ctx, s); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	rec := &countRecorder{}
	sw := New(repo, 24*time.Hour, time.Minute, rec)
	sw.now = func() time.Time { return now }

	n, err := sw.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 1 || rec.total() != 1 {
		t.Fatalf("swept %d (recorded %d), want 1", n, rec.total())
	}
	for id, wantPresent := range map[string]bool{"long-gone": false, "recent": true, "active": true} {
		s, err := repo.GetByID(ctx, id)
		if err != nil && !errors.Is(err, sessionrepo.ErrNotFound) {
			t.Fatalf("GetByID(%s): %v", id, err)
		}
		if (s != nil) != wantPresent {
			t.Errorf("%s present = %v, want %v", id, s != nil, wantPresent)
		}
	}
}

func TestSweepOnce_Error(t *testing.T) {
	rec := &countRecorder{}
	if _, err := New(failingStore{}, time.Hour, time.Minute, rec).SweepOnce(context.Background()); err == nil {
		t.Fatal("SweepOnce should surface the store error")
	}
	if rec.total() != 0 {
		t.Error("failed sweep must not be recorded")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sw := New(sessionrepo.NewMemoryRepository(), time.Hour, 5*time.Millisecond, nil)
	done := make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
