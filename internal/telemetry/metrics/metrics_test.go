package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_ObserveAuth(t *testing.T) {
	m := New()
	m.ObserveAuth("login", "success")
	m.ObserveAuth("login", "success")
	m.ObserveAuth("refresh", "reuse_detected")

	if got := testutil.ToFloat64(m.authTotal.WithLabelValues("login", "success")); got != 2 {
		t.Errorf("login success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.authTotal.WithLabelValues("refresh", "reuse_detected")); got != 1 {
		t.Errorf("refresh reuse = %v, want 1", got)
	}
}

func TestMetrics_SweptAndRateLimited(t *testing.T) {
	m := New()
	m.SessionsSwept(3)
	m.SessionsSwept(0)
	m.LoginRateLimited()
	if got := testutil.ToFloat64(m.sessionsSwept); got != 3 {
		t.Errorf("sessions swept = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.rateLimited); got != 1 {
		t.Errorf("rate limited = %v, want 1", got)
	}
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAuth("login", "success")
	m.SessionsSwept(1)
	m.LoginRateLimited()
	h := m.Instrument("/x", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/x", nil))
}

func TestMetrics_InstrumentAndHandler(t *testing.T) {
	m := New()
	h := m.Instrument("/auth/login", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/login", nil))

	if got := testutil.ToFloat64(m.httpRequests.WithLabelValues("POST", "/auth/login", "401")); got != 1 {
		t.Errorf("requests{401} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.httpInFlight); got != 0 {
		t.Errorf("in flight = %v, want 0", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "session_auth_http_requests_total") {
		t.Error("exposition should include session_auth_http_requests_total")
	}
}
