package domain

import "time"

// Actions recorded by the auth core.
const (
	ActionLogin         = "login"
	ActionRefresh       = "refresh"
	ActionReuseDetected = "reuse_detected"
	ActionLogout        = "logout"
	ActionLogoutAll     = "logout_all"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuditLog is one security event. It never carries passwords, hashes or raw tokens.
type AuditLog struct {
	ID        string
	Action    string
	Outcome   string
	UserID    string
	Username  string
	SessionID string
	TokenID   string
	Reason    string // error code on failure, e.g. invalid_credentials
	IP        string
	CreatedAt time.Time
}

// EventName returns "<action>_<outcome>", e.g. login_failure. Reuse detection is reported as is.
func (a *AuditLog) EventName() string {
	if a.Action == ActionReuseDetected || a.Outcome == "" {
		return a.Action
	}
	return a.Action + "_" + a.Outcome
}
