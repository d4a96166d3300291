package security

import "time"

// Test secrets for unit tests only. Do not use in production.
const (
	testAccessSecret  = "test-access-secret-0123456789abcdef"
	testRefreshSecret = "test-refresh-secret-0123456789abcdef"
)

// NewTestTokenProvider returns a TokenProvider using the embedded test secrets, a 15m access TTL
// and a one-year refresh TTL. now may be nil for the wall clock.
// For unit tests only. Callers must not use in production.
func NewTestTokenProvider(now func() time.Time) (*TokenProvider, error) {
	access, err := NewCodec(CodecConfig{
		Class:    ClassAccess,
		Secret:   []byte(testAccessSecret),
		Issuer:   "test-issuer",
		Audience: "test-audience",
		Now:      now,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := NewCodec(CodecConfig{
		Class:    ClassRefresh,
		Secret:   []byte(testRefreshSecret),
		Issuer:   "test-issuer",
		Audience: "test-audience",
		Now:      now,
	})
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(access, refresh, 15*time.Minute, 365*24*time.Hour)
}
