package service

import (
	"errors"
	"fmt"

	"session-auth/backend/internal/security"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user inactive")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrReuseDetected      = errors.New("refresh token reuse detected")
	ErrPersistence        = errors.New("persistence failure")
)

func persistenceErr(err error) error {
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}

// Code returns a stable snake_case code for err, used in responses, audit events and metrics.
func Code(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrUserInactive):
		return "user_inactive"
	case errors.Is(err, security.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, security.ErrTokenSignatureInvalid):
		return "token_signature_invalid"
	case errors.Is(err, security.ErrTokenMalformed):
		return "token_malformed"
	case errors.Is(err, security.ErrTokenPairMismatch):
		return "token_pair_mismatch"
	case errors.Is(err, ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, ErrSessionExpired):
		return "session_expired"
	case errors.Is(err, ErrSessionRevoked):
		return "session_revoked"
	case errors.Is(err, ErrReuseDetected):
		return "reuse_detected"
	case errors.Is(err, ErrPersistence):
		return "persistence_error"
	default:
		return "internal_error"
	}
}
