package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"session-auth/backend/internal/audit"
	auditdomain "session-auth/backend/internal/audit/domain"
	"session-auth/backend/internal/security"
	sessiondomain "session-auth/backend/internal/session/domain"
	sessionrepo "session-auth/backend/internal/session/repository"
	userdomain "session-auth/backend/internal/user/domain"
)

// ReusePolicy selects what is revoked when a spent refresh token is presented again.
type ReusePolicy string

const (
	// ReuseRevokeToken only rejects the request; the token id is already on the deny-list.
	ReuseRevokeToken ReusePolicy = "token"
	// ReuseRevokeSession revokes the session the token belongs to.
	ReuseRevokeSession ReusePolicy = "session"
	// ReuseRevokeUser revokes every session of the token's user.
	ReuseRevokeUser ReusePolicy = "user"
)

// ParseReusePolicy accepts token, session or user.
func ParseReusePolicy(s string) (ReusePolicy, error) {
	switch p := ReusePolicy(s); p {
	case ReuseRevokeToken, ReuseRevokeSession, ReuseRevokeUser:
		return p, nil
	}
	return "", fmt.Errorf("unknown reuse policy %q", s)
}

const revokeReasonLogoutAll = "logout_all"

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Create(ctx context.Context, s *sessiondomain.Session) error
	Rotate(ctx context.Context, sessionID, userID, tokenID string, now time.Time) error
	DenyTokenID(ctx context.Context, sessionID, tokenID, reason string, now time.Time) error
	Revoke(ctx context.Context, id, reason string, now time.Time) error
	RevokeAllByUser(ctx context.Context, userID, reason string, now time.Time) (int, error)
}

// MetricsRecorder counts auth outcomes. outcome is "success" or an error Code.
type MetricsRecorder interface {
	ObserveAuth(operation, outcome string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveAuth(string, string) {}

// LoginResult is returned by Login.
type LoginResult struct {
	Tokens    *security.TokenPair
	User      userdomain.Profile
	SessionID string
}

// Options configures an AuthService. Zero values fall back to a 7 day session, the session
// reuse policy and time.Now.
type Options struct {
	SessionTTL  time.Duration
	ReusePolicy ReusePolicy
	Now         func() time.Time
}

// AuthService implements login, refresh with rotation and reuse detection, logout and logout-all.
// It holds no per-session state; the session repository is the single source of truth.
type AuthService struct {
	verifier    *CredentialVerifier
	sessions    SessionRepo
	tokens      *security.TokenProvider
	audit       audit.AuditLogger
	metrics     MetricsRecorder
	tracer      trace.Tracer
	sessionTTL  time.Duration
	reusePolicy ReusePolicy
	now         func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. auditLogger and metrics may be nil.
func NewAuthService(
	verifier *CredentialVerifier,
	sessions SessionRepo,
	tokens *security.TokenProvider,
	auditLogger audit.AuditLogger,
	metrics MetricsRecorder,
	opts Options,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}
	if opts.ReusePolicy == "" {
		opts.ReusePolicy = ReuseRevokeSession
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AuthService{
		verifier:    verifier,
		sessions:    sessions,
		tokens:      tokens,
		audit:       auditLogger,
		metrics:     metrics,
		tracer:      otel.Tracer("session-auth/identity"),
		sessionTTL:  opts.SessionTTL,
		reusePolicy: opts.ReusePolicy,
		now:         opts.Now,
	}
}

// Login verifies the credentials, creates a session and returns its first token pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (res *LoginResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer func() { s.finish(span, auditdomain.ActionLogin, err) }()

	user, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		s.audit.LogEvent(ctx, auditdomain.AuditLog{
			Action: auditdomain.ActionLogin, Outcome: auditdomain.OutcomeFailure,
			Username: username, Reason: Code(err),
		})
		return nil, err
	}

	now := s.now().UTC()
	sess, err := sessiondomain.New(uuid.New().String(), user.ID, user.Username, now, s.sessionTTL)
	if err != nil {
		return nil, err
	}
	tokenID, err := security.NewTokenID()
	if err != nil {
		return nil, err
	}
	roles := append([]string{}, user.Roles...)
	pair, err := s.tokens.IssuePair(security.UserInfo{UserID: user.ID, Username: user.Username, Roles: roles}, sess.ID, tokenID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, persistenceErr(err)
	}
	span.SetAttributes(attribute.String("session.id", sess.ID))
	s.audit.LogEvent(ctx, auditdomain.AuditLog{
		Action: auditdomain.ActionLogin, Outcome: auditdomain.OutcomeSuccess,
		UserID: user.ID, Username: user.Username, SessionID: sess.ID, TokenID: tokenID,
	})
	return &LoginResult{Tokens: pair, User: user.Profile(), SessionID: sess.ID}, nil
}

// RefreshTokens verifies a raw access/refresh pair and rotates it. The access token may be expired.
func (s *AuthService) RefreshTokens(ctx context.Context, accessToken, refreshToken string) (*security.TokenPair, error) {
	access, refresh, err := s.tokens.ValidatePair(accessToken, refreshToken)
	if err != nil {
		s.metrics.ObserveAuth(auditdomain.ActionRefresh, Code(err))
		s.audit.LogEvent(ctx, auditdomain.AuditLog{
			Action: auditdomain.ActionRefresh, Outcome: auditdomain.OutcomeFailure, Reason: Code(err),
		})
		return nil, err
	}
	return s.Refresh(ctx, access, refresh)
}

// Refresh spends the presented pair and issues a new one under the same session. Both claim sets
// must already be verified. The deny-list append is the only persisted step, so a failed append
// never yields new tokens. A token id found on the deny-list triggers the reuse policy and
// returns ErrReuseDetected.
func (s *AuthService) Refresh(ctx context.Context, access, refresh *security.Claims) (pair *security.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { s.finish(span, auditdomain.ActionRefresh, err) }()

	if err := security.MatchPair(access, refresh); err != nil {
		s.auditRefreshFailure(ctx, refresh, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("session.id", refresh.SessionID))

	now := s.now().UTC()
	userID := refresh.UserInfo.UserID
	if err := s.sessions.Rotate(ctx, refresh.SessionID, userID, refresh.TokenID(), now); err != nil {
		switch {
		case errors.Is(err, sessionrepo.ErrTokenReused):
			s.handleReuse(ctx, refresh, now)
			err = ErrReuseDetected
		case errors.Is(err, sessionrepo.ErrNotFound):
			err = ErrSessionNotFound
		case errors.Is(err, sessionrepo.ErrExpired):
			err = ErrSessionExpired
		case errors.Is(err, sessionrepo.ErrRevoked):
			err = ErrSessionRevoked
		default:
			err = persistenceErr(err)
		}
		s.auditRefreshFailure(ctx, refresh, err)
		return nil, err
	}

	tokenID, err := security.NewTokenID()
	if err != nil {
		return nil, err
	}
	pair, err = s.tokens.IssuePair(refresh.UserInfo, refresh.SessionID, tokenID)
	if err != nil {
		log.Printf("identity: refresh: session %s spent token %s but issuing failed: %v", refresh.SessionID, refresh.TokenID(), err)
		return nil, err
	}
	s.audit.LogEvent(ctx, auditdomain.AuditLog{
		Action: auditdomain.ActionRefresh, Outcome: auditdomain.OutcomeSuccess,
		UserID: userID, Username: refresh.UserInfo.Username, SessionID: refresh.SessionID, TokenID: tokenID,
	})
	return pair, nil
}

func (s *AuthService) handleReuse(ctx context.Context, refresh *security.Claims, now time.Time) {
	userID := refresh.UserInfo.UserID
	log.Printf("identity: refresh token reuse: session=%s user=%s policy=%s", refresh.SessionID, userID, s.reusePolicy)
	s.audit.LogEvent(ctx, auditdomain.AuditLog{
		Action: auditdomain.ActionReuseDetected, Outcome: auditdomain.OutcomeFailure,
		UserID: userID, Username: refresh.UserInfo.Username, SessionID: refresh.SessionID,
		TokenID: refresh.TokenID(), Reason: string(s.reusePolicy),
	})
	switch s.reusePolicy {
	case ReuseRevokeSession:
		if err := s.sessions.Revoke(ctx, refresh.SessionID, sessiondomain.ReasonReuse, now); err != nil {
			log.Printf("identity: revoke session %s after reuse: %v", refresh.SessionID, err)
		}
	case ReuseRevokeUser:
		n, err := s.sessions.RevokeAllByUser(ctx, userID, sessiondomain.ReasonReuse, now)
		if err != nil {
			log.Printf("identity: revoke sessions of user %s after reuse: %v", userID, err)
			return
		}
		log.Printf("identity: revoked %d session(s) of user %s after reuse", n, userID)
	}
}

// Logout deny-lists the refresh token's id in its session. Both tokens must be authentic;
// either may be expired. The session itself is kept so a replay is still observably denied.
// Errors are returned for logging only; clients are told to log out regardless.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer func() { s.finish(span, auditdomain.ActionLogout, err) }()

	_, refresh, err := s.tokens.ValidatePairForLogout(accessToken, refreshToken)
	if err != nil {
		s.audit.LogEvent(ctx, auditdomain.AuditLog{
			Action: auditdomain.ActionLogout, Outcome: auditdomain.OutcomeFailure, Reason: Code(err),
		})
		return err
	}
	entry := auditdomain.AuditLog{
		Action: auditdomain.ActionLogout, UserID: refresh.UserInfo.UserID, Username: refresh.UserInfo.Username,
		SessionID: refresh.SessionID, TokenID: refresh.TokenID(),
	}
	err = s.sessions.DenyTokenID(ctx, refresh.SessionID, refresh.TokenID(), sessiondomain.ReasonLogout, s.now().UTC())
	switch {
	case errors.Is(err, sessionrepo.ErrNotFound):
		err = ErrSessionNotFound
	case err != nil:
		err = persistenceErr(err)
	}
	if err != nil {
		entry.Outcome, entry.Reason = auditdomain.OutcomeFailure, Code(err)
	} else {
		entry.Outcome = auditdomain.OutcomeSuccess
	}
	s.audit.LogEvent(ctx, entry)
	return err
}

// LogoutAll revokes every active session of the user identified by claims and returns the count.
func (s *AuthService) LogoutAll(ctx context.Context, claims *security.Claims) (n int, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.LogoutAll")
	defer func() { s.finish(span, auditdomain.ActionLogoutAll, err) }()

	if claims == nil || claims.UserInfo.UserID == "" {
		return 0, security.ErrTokenMalformed
	}
	n, err = s.sessions.RevokeAllByUser(ctx, claims.UserInfo.UserID, revokeReasonLogoutAll, s.now().UTC())
	if err != nil {
		err = persistenceErr(err)
	}
	entry := auditdomain.AuditLog{
		Action: auditdomain.ActionLogoutAll, Outcome: auditdomain.OutcomeSuccess,
		UserID: claims.UserInfo.UserID, Username: claims.UserInfo.Username, SessionID: claims.SessionID,
	}
	if err != nil {
		entry.Outcome, entry.Reason = auditdomain.OutcomeFailure, Code(err)
	}
	s.audit.LogEvent(ctx, entry)
	return n, err
}

func (s *AuthService) auditRefreshFailure(ctx context.Context, refresh *security.Claims, err error) {
	entry := auditdomain.AuditLog{Action: auditdomain.ActionRefresh, Outcome: auditdomain.OutcomeFailure, Reason: Code(err)}
	if refresh != nil {
		entry.UserID, entry.Username = refresh.UserInfo.UserID, refresh.UserInfo.Username
		entry.SessionID, entry.TokenID = refresh.SessionID, refresh.TokenID()
	}
	s.audit.LogEvent(ctx, entry)
}

func (s *AuthService) finish(span trace.Span, operation string, err error) {
	s.metrics.ObserveAuth(operation, Code(err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, Code(err))
	}
	span.End()
}
