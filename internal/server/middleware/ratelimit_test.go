package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestIPRateLimiter_PerIPBuckets(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, 2)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if !l.Allow("198.51.100.1") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if l.Allow("198.51.100.1") {
		t.Fatal("third request in the same instant should be limited")
	}
	if !l.Allow("198.51.100.2") {
		t.Fatal("other IPs have their own bucket")
	}
	now = now.Add(time.Second)
	if !l.Allow("198.51.100.1") {
		t.Fatal("bucket should refill after one second")
	}
}

func TestIPRateLimiter_EvictsIdleVisitors(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(1, 1)
	l.now = func() time.Time { return now }
	l.Allow("198.51.100.1")
	now = now.Add(idleLimiterTTL + time.Second)
	l.Allow("198.51.100.2")
	if _, ok := l.visitors["198.51.100.1"]; ok {
		t.Error("idle visitor should be evicted")
	}
	if len(l.visitors) != 1 {
		t.Errorf("visitors = %d, want 1", len(l.visitors))
	}
}

func TestIPRateLimiter_Middleware(t *testing.T) {
	l := NewIPRateLimiter(0.001, 1)
	limited := 0
	h := l.Middleware(func() { limited++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "192.0.2.10:4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if limited != 1 {
		t.Errorf("onLimited called %d times, want 1", limited)
	}
}

func TestIPRateLimiter_IgnoresRotatingForwardedFor(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	limited := 0
	h := Logging(false)(l.Middleware(func() { limited++ })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("10.0.0.%d", i))
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	if limited != 49 {
		t.Errorf("limited = %d, want 49", limited)
	}
	if len(l.visitors) != 1 {
		t.Errorf("visitors = %d, want 1", len(l.visitors))
	}
}
