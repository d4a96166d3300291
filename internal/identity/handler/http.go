package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"session-auth/backend/internal/identity/service"
	"session-auth/backend/internal/security"
	"session-auth/backend/internal/server/middleware"
	userdomain "session-auth/backend/internal/user/domain"
)

const maxBodyBytes = 1 << 16

// Refresh and logout failures share one client-facing message so a caller cannot tell an
// expired session from a detected reuse.
const msgSessionEnded = "tokens invalid or missing"

// AuthService is the part of service.AuthService the HTTP handlers call.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, access, refresh *security.Claims) (*security.TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
	LogoutAll(ctx context.Context, claims *security.Claims) (int, error)
}

// AuthHandler serves the /auth endpoints.
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler returns an AuthHandler backed by auth.
func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
	SessionID    string             `json:"sessionId"`
	User         userdomain.Profile `json:"user"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type meResponse struct {
	UserID    string   `json:"userId"`
	Username  string   `json:"username"`
	Roles     []string `json:"roles"`
	SessionID string   `json:"sessionId"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		status := loginStatus(err)
		if status == http.StatusInternalServerError {
			log.Printf("identity: login for %q: %v", req.Username, err)
			writeError(w, status, "internal error")
			return
		}
		writeError(w, status, service.Code(err))
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		SessionID:    res.SessionID,
		User:         res.User,
	})
}

func loginStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUserInactive):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Refresh handles POST /auth/refresh. It must sit behind middleware.RefreshGate.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	access, okAccess := middleware.ClaimsFrom(r.Context())
	refresh, okRefresh := middleware.RefreshClaimsFrom(r.Context())
	if !okAccess || !okRefresh {
		middleware.WriteTriggerLogout(w, http.StatusUnauthorized, msgSessionEnded)
		return
	}
	pair, err := h.auth.Refresh(r.Context(), access, refresh)
	if err != nil {
		if errors.Is(err, service.ErrPersistence) || service.Code(err) == "internal_error" {
			log.Printf("identity: refresh session %s: %v", refresh.SessionID, err)
		}
		middleware.WriteTriggerLogout(w, http.StatusUnauthorized, msgSessionEnded)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// Logout handles POST /auth/logout. It always answers 200 {"triggerLogout": true}.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	access, refresh := middleware.ExtractTokens(r)
	if err := h.auth.Logout(r.Context(), access, refresh); err != nil {
		log.Printf("identity: logout: %s", service.Code(err))
	}
	middleware.WriteTriggerLogout(w, http.StatusOK, "")
}

// Me handles GET /auth/me. It must sit behind middleware.RequestGate.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	roles := claims.UserInfo.Roles
	if roles == nil {
		roles = []string{}
	}
	writeJSON(w, http.StatusOK, meResponse{
		UserID:    claims.UserInfo.UserID,
		Username:  claims.UserInfo.Username,
		Roles:     roles,
		SessionID: claims.SessionID,
	})
}

// LogoutAll handles POST /auth/logout-all. It must sit behind middleware.RequestGate.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization")
		return
	}
	n, err := h.auth.LogoutAll(r.Context(), claims)
	if err != nil {
		log.Printf("identity: logout-all for user %s: %v", claims.UserInfo.UserID, err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"triggerLogout": true, "revoked": n})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	defer func() { _ = r.Body.Close() }()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("extra data after JSON object")
	}
	return nil
}
