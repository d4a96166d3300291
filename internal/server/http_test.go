package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	healthhandler "session-auth/backend/internal/health/handler"
	identityhandler "session-auth/backend/internal/identity/handler"
	"session-auth/backend/internal/identity/service"
	"session-auth/backend/internal/security"
	"session-auth/backend/internal/server/middleware"
	sessionrepo "session-auth/backend/internal/session/repository"
	"session-auth/backend/internal/telemetry/metrics"
	userdomain "session-auth/backend/internal/user/domain"
	userrepo "session-auth/backend/internal/user/repository"
)

func newTestAPI(t *testing.T, limiter *middleware.IPRateLimiter) (*httptest.Server, *metrics.Metrics) {
	t.Helper()
	hasher := security.NewHasher(4)
	hash, err := hasher.Hash([]byte("alice-pw"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	users := userrepo.NewMemoryRepository()
	if err := users.Create(context.Background(), &userdomain.User{ID: "u-alice", Username: "alice", PasswordHash: hash, Active: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	verifier, err := service.NewCredentialVerifier(users, hasher, 2)
	if err != nil {
		t.Fatalf("NewCredentialVerifier: %v", err)
	}
	tokens, err := security.NewTestTokenProvider(nil)
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	m := metrics.New()
	sessions := sessionrepo.NewMemoryRepository()
	svc := service.NewAuthService(verifier, sessions, tokens, nil, m, service.Options{})
	checker := healthhandler.NewChecker(sessions)
	if err := checker.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}

	srv := httptest.NewServer(NewHTTPHandler(HTTPDeps{
		Auth:         identityhandler.NewAuthHandler(svc),
		Tokens:       tokens,
		Health:       checker,
		Metrics:      m,
		LoginLimiter: limiter,
	}))
	t.Cleanup(srv.Close)
	return srv, m
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHTTP_LoginIsInstrumented(t *testing.T) {
	srv, m := newTestAPI(t, nil)

	resp := post(t, srv.URL+"/auth/login", `{"username":"alice","password":"alice-pw"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	resp = post(t, srv.URL+"/auth/login", `{"username":"alice","password":"wrong"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}

	metricsResp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	raw, _ := io.ReadAll(metricsResp.Body)
	for _, want := range []string{
		`session_auth_auth_operations_total{operation="login",outcome="success"} 1`,
		`session_auth_auth_operations_total{operation="login",outcome="invalid_credentials"} 1`,
		`session_auth_http_requests_total{method="POST",route="/auth/login",status="401"} 1`,
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("/metrics missing %s", want)
		}
	}
	if got, err := testutil.GatherAndCount(m.Registry(), "session_auth_http_request_duration_seconds"); err != nil || got != 1 {
		t.Errorf("duration series = %d, %v; want 1", got, err)
	}
}

func TestHTTP_LoginRateLimited(t *testing.T) {
	srv, _ := newTestAPI(t, middleware.NewIPRateLimiter(0.01, 2))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, post(t, srv.URL+"/auth/login", `{"username":"alice","password":"wrong"}`).StatusCode)
	}
	if codes[0] != http.StatusUnauthorized || codes[1] != http.StatusUnauthorized || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	metricsResp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer metricsResp.Body.Close()
	raw, _ := io.ReadAll(metricsResp.Body)
	if !strings.Contains(string(raw), "session_auth_login_rate_limited_total 1") {
		t.Errorf("rate limit not counted:\n%s", raw)
	}
}

func TestHTTP_HealthAndRouting(t *testing.T) {
	srv, _ := newTestAPI(t, nil)
	client := &http.Client{Timeout: 5 * time.Second}

	testCases := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/auth/me", http.StatusUnauthorized},
		{http.MethodPost, "/auth/logout-all", http.StatusUnauthorized},
		{http.MethodPost, "/auth/refresh", http.StatusUnauthorized},
		{http.MethodPost, "/auth/logout", http.StatusOK},
		{http.MethodGet, "/auth/login", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tc := range testCases {
		req, _ := http.NewRequest(tc.method, srv.URL+tc.path, nil)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", tc.method, tc.path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s %s = %d, want %d", tc.method, tc.path, resp.StatusCode, tc.want)
		}
	}
}
