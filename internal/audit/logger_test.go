package audit

import (
	"context"
	"sync"
	"testing"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"session-auth/backend/internal/audit/domain"
)

// recordCapture stores every Record passed to Emit.
type recordCapture struct {
	mu   sync.Mutex
	recs []otellog.Record
}

func (r *recordCapture) Emit(ctx context.Context, rec otellog.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
}

func attrs(rec otellog.Record) map[string]string {
	out := make(map[string]string)
	rec.WalkAttributes(func(kv otellog.KeyValue) bool {
		out[kv.Key] = kv.Value.AsString()
		return true
	})
	return out
}

func TestLogger_LogEvent_Success(t *testing.T) {
	cap := &recordCapture{}
	logger := NewLoggerWithEmitter(cap, func(context.Context) string { return "192.168.1.1" })

	logger.LogEvent(context.Background(), domain.AuditLog{
		Action:    domain.ActionLogin,
		Outcome:   domain.OutcomeSuccess,
		UserID:    "user-1",
		Username:  "alice",
		SessionID: "sess-1",
	})

	if len(cap.recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(cap.recs))
	}
	rec := cap.recs[0]
	if rec.EventName() != "login_success" {
		t.Errorf("event name = %q, want login_success", rec.EventName())
	}
	if rec.Severity() != otellog.SeverityInfo {
		t.Errorf("severity = %v, want info", rec.Severity())
	}
	if rec.Timestamp().IsZero() {
		t.Error("timestamp should be set")
	}
	got := attrs(rec)
	want := map[string]string{
		"action":     "login",
		"outcome":    "success",
		"user_id":    "user-1",
		"username":   "alice",
		"session_id": "sess-1",
		"client_ip":  "192.168.1.1",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if got["audit.id"] == "" {
		t.Error("audit.id should be set")
	}
	if _, ok := got["reason"]; ok {
		t.Error("empty reason should be omitted")
	}
}

func TestLogger_LogEvent_FailureIsWarn(t *testing.T) {
	cap := &recordCapture{}
	logger := NewLoggerWithEmitter(cap, nil)
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	logger.LogEvent(context.Background(), domain.AuditLog{Action: domain.ActionRefresh, Outcome: domain.OutcomeFailure, Reason: "session_expired", CreatedAt: at})
	logger.LogEvent(context.Background(), domain.AuditLog{Action: domain.ActionReuseDetected, SessionID: "s1"})

	if len(cap.recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(cap.recs))
	}
	if cap.recs[0].Severity() != otellog.SeverityWarn || cap.recs[1].Severity() != otellog.SeverityWarn {
		t.Error("failures and reuse should be logged at warn")
	}
	if !cap.recs[0].Timestamp().Equal(at) {
		t.Errorf("timestamp = %v, want %v", cap.recs[0].Timestamp(), at)
	}
	if got := attrs(cap.recs[0]); got["client_ip"] != "unknown" || got["reason"] != "session_expired" {
		t.Errorf("attrs = %v", got)
	}
	if cap.recs[1].EventName() != "reuse_detected" {
		t.Errorf("event name = %q, want reuse_detected", cap.recs[1].EventName())
	}
}

func TestNewLogger_NilProviderIsNoop(t *testing.T) {
	logger := NewLogger(nil, nil)
	logger.LogEvent(context.Background(), domain.AuditLog{Action: domain.ActionLogout})

	var nilLogger *Logger
	nilLogger.LogEvent(context.Background(), domain.AuditLog{Action: domain.ActionLogout})
}

func TestNewLogger_SDKProvider(t *testing.T) {
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()
	logger := NewLogger(provider, nil)
	logger.LogEvent(context.Background(), domain.AuditLog{Action: domain.ActionLogout, Outcome: domain.OutcomeSuccess})
}

func TestAuditLog_EventName(t *testing.T) {
	testCases := []struct {
		entry domain.AuditLog
		want  string
	}{
		{domain.AuditLog{Action: domain.ActionLogin, Outcome: domain.OutcomeFailure}, "login_failure"},
		{domain.AuditLog{Action: domain.ActionLogoutAll, Outcome: domain.OutcomeSuccess}, "logout_all_success"},
		{domain.AuditLog{Action: domain.ActionReuseDetected, Outcome: domain.OutcomeFailure}, "reuse_detected"},
		{domain.AuditLog{Action: domain.ActionLogout}, "logout"},
	}
	for _, tc := range testCases {
		if got := tc.entry.EventName(); got != tc.want {
			t.Errorf("EventName(%+v) = %q, want %q", tc.entry, got, tc.want)
		}
	}
}
