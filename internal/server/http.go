package server

import (
	"net/http"

	healthhandler "session-auth/backend/internal/health/handler"
	identityhandler "session-auth/backend/internal/identity/handler"
	"session-auth/backend/internal/server/middleware"
	"session-auth/backend/internal/telemetry/metrics"
)

// HTTPDeps holds the dependencies of the HTTP API.
type HTTPDeps struct {
	// Auth serves the /auth endpoints.
	Auth *identityhandler.AuthHandler
	// Tokens verifies bearer tokens for the gated endpoints.
	Tokens middleware.TokenVerifier
	// Health serves /healthz and /readyz. If nil, both answer 200.
	Health *healthhandler.Checker
	// Metrics instruments routes and serves /metrics. If nil, neither happens.
	Metrics *metrics.Metrics
	// LoginLimiter throttles POST /auth/login per client IP. If nil, login is not rate limited.
	LoginLimiter *middleware.IPRateLimiter
	// TrustProxy takes the client IP from forwarding headers instead of RemoteAddr.
	TrustProxy bool
}

// NewHTTPHandler returns the routed API wrapped in request logging and panic recovery.
//
// Routes:
//   - POST /auth/login        → identity handler (per-IP rate limited)
//   - POST /auth/refresh      → RefreshGate → identity handler
//   - POST /auth/logout       → identity handler
//   - GET  /auth/me           → RequestGate → identity handler
//   - POST /auth/logout-all   → RequestGate → identity handler
//   - GET  /healthz, /readyz  → health checker
//   - GET  /metrics           → Prometheus
func NewHTTPHandler(deps HTTPDeps) http.Handler {
	mux := http.NewServeMux()
	route := func(pattern, name string, h http.Handler) {
		if deps.Metrics != nil {
			h = deps.Metrics.Instrument(name, h)
		}
		mux.Handle(pattern, h)
	}

	requestGate := middleware.RequestGate(deps.Tokens)
	refreshGate := middleware.RefreshGate(deps.Tokens)

	var login http.Handler = http.HandlerFunc(deps.Auth.Login)
	if deps.LoginLimiter != nil {
		var onLimited func()
		if deps.Metrics != nil {
			onLimited = deps.Metrics.LoginRateLimited
		}
		login = deps.LoginLimiter.Middleware(onLimited)(login)
	}
	route("POST /auth/login", "/auth/login", login)
	route("POST /auth/refresh", "/auth/refresh", refreshGate(http.HandlerFunc(deps.Auth.Refresh)))
	route("POST /auth/logout", "/auth/logout", http.HandlerFunc(deps.Auth.Logout))
	route("GET /auth/me", "/auth/me", requestGate(http.HandlerFunc(deps.Auth.Me)))
	route("POST /auth/logout-all", "/auth/logout-all", requestGate(http.HandlerFunc(deps.Auth.LogoutAll)))

	if deps.Health != nil {
		mux.HandleFunc("GET /healthz", deps.Health.Liveness)
		mux.HandleFunc("GET /readyz", deps.Health.Readiness)
	} else {
		ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
		mux.HandleFunc("GET /healthz", ok)
		mux.HandleFunc("GET /readyz", ok)
	}
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	return middleware.Logging(deps.TrustProxy)(mux)
}
