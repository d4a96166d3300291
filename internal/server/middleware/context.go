package middleware

import (
	"context"

	"session-auth/backend/internal/security"
)

type contextKey struct{ name string }

var (
	claimsKey        = contextKey{"claims"}
	refreshClaimsKey = contextKey{"refresh_claims"}
	clientIPKey      = contextKey{"client_ip"}
)

// WithClaims returns a context carrying the verified access claims.
func WithClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFrom returns the access claims set by RequestGate or RefreshGate, or nil, false.
func ClaimsFrom(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*security.Claims)
	return c, ok && c != nil
}

// WithRefreshClaims returns a context carrying the verified refresh claims.
func WithRefreshClaims(ctx context.Context, claims *security.Claims) context.Context {
	return context.WithValue(ctx, refreshClaimsKey, claims)
}

// RefreshClaimsFrom returns the refresh claims set by RefreshGate, or nil, false.
func RefreshClaimsFrom(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(refreshClaimsKey).(*security.Claims)
	return c, ok && c != nil
}

// WithClientIP returns a context carrying the client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFrom returns the client IP stored by Logging, or "". It satisfies audit.IPExtractor.
func ClientIPFrom(ctx context.Context) string {
	v, _ := ctx.Value(clientIPKey).(string)
	return v
}
