// Package sweeper periodically deletes sessions whose absolute expiry passed more than the
// retention window ago.
package sweeper

import (
	"context"
	"log"
	"time"
)

// Store deletes sessions that expired before cutoff and returns how many were removed.
type Store interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// Recorder counts swept sessions. *metrics.Metrics satisfies it.
type Recorder interface {
	SessionsSwept(n int64)
}

// Sweeper runs DeleteExpired on a fixed interval.
type Sweeper struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	recorder  Recorder
	now       func() time.Time
}

// New returns a Sweeper. recorder may be nil.
func New(store Store, retention, interval time.Duration, recorder Recorder) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{store: store, retention: retention, interval: interval, recorder: recorder, now: time.Now}
}

// SweepOnce deletes sessions that expired before now - retention.
func (s *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if s.recorder != nil {
		s.recorder.SessionsSwept(n)
	}
	return n, nil
}

// Run sweeps immediately and then every interval until ctx is done. Failures are logged and
// retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		n, err := s.SweepOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			log.Printf("sweeper: delete expired sessions: %v", err)
		case n > 0:
			log.Printf("sweeper: deleted %d expired session(s)", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
