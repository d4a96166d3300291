package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"session-auth/backend/internal/security"
)

const (
	bearerPrefix = "bearer "

	// RefreshTokenHeader carries the refresh token when it is not in Authorization.
	RefreshTokenHeader = "X-Refresh-Token"
	// AccessTokenCookie and RefreshTokenCookie are the cookie fallbacks for browser clients.
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

const (
	msgUnauthorized  = "missing or invalid authorization"
	msgTokensInvalid = "tokens invalid or missing"
)

// TokenVerifier is the part of security.TokenProvider the gates need.
type TokenVerifier interface {
	ValidateAccess(token string) (*security.Claims, error)
	ValidatePair(accessToken, refreshToken string) (access, refresh *security.Claims, err error)
}

// RequestGate admits requests carrying a valid, unexpired access token and stores its claims
// in the request context. It never touches the session store.
func RequestGate(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, _ := ExtractTokens(r)
			if access == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": msgUnauthorized})
				return
			}
			claims, err := tokens.ValidateAccess(access)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": msgUnauthorized})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RefreshGate admits refresh requests carrying both tokens. The access token may be expired
// but must be authentic; the refresh token must verify fully. Both claim sets are stored in
// the request context. Any failure tells the client to log out.
func RefreshGate(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, refresh := ExtractTokens(r)
			if access == "" || refresh == "" {
				WriteTriggerLogout(w, http.StatusUnauthorized, msgTokensInvalid)
				return
			}
			accessClaims, refreshClaims, err := tokens.ValidatePair(access, refresh)
			if err != nil {
				WriteTriggerLogout(w, http.StatusUnauthorized, msgTokensInvalid)
				return
			}
			ctx := WithRefreshClaims(WithClaims(r.Context(), accessClaims), refreshClaims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ExtractTokens returns the access and refresh tokens of r. Authorization is
// "Bearer <access>" or "Bearer <access> <refresh>"; the refresh token may instead come from
// X-Refresh-Token. Cookies are used for whichever token is still missing.
func ExtractTokens(r *http.Request) (access, refresh string) {
	if v := strings.TrimSpace(r.Header.Get("Authorization")); len(v) >= len(bearerPrefix) &&
		strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		fields := strings.Fields(v[len(bearerPrefix):])
		switch len(fields) {
		case 1:
			access = fields[0]
		case 2:
			access, refresh = fields[0], fields[1]
		}
	}
	if refresh == "" {
		refresh = strings.TrimSpace(r.Header.Get(RefreshTokenHeader))
	}
	if access == "" {
		access = cookieValue(r, AccessTokenCookie)
	}
	if refresh == "" {
		refresh = cookieValue(r, RefreshTokenCookie)
	}
	return access, refresh
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

// WriteTriggerLogout writes {"error": msg, "triggerLogout": true}. msg may be empty.
func WriteTriggerLogout(w http.ResponseWriter, status int, msg string) {
	body := map[string]any{"triggerLogout": true}
	if msg != "" {
		body["error"] = msg
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: write response: %v", err)
	}
}
