package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	otellog "go.opentelemetry.io/otel/log"

	"session-auth/backend/internal/audit/domain"
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single security event. LogEvent is best-effort and never fails the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, entry domain.AuditLog)
}

// RecordEmitter is the part of an OTel log.Logger the audit logger needs.
type RecordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// Logger emits audit events as OTel log records.
type Logger struct {
	emitter     RecordEmitter
	ipExtractor IPExtractor
	now         func() time.Time
}

// NewLogger returns a Logger writing through provider's "session-auth.audit" logger.
// provider may be nil; then events are dropped. ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(provider otellog.LoggerProvider, ipExtractor IPExtractor) *Logger {
	if provider == nil {
		return &Logger{}
	}
	return NewLoggerWithEmitter(provider.Logger("session-auth.audit"), ipExtractor)
}

// NewLoggerWithEmitter returns a Logger writing to e.
func NewLoggerWithEmitter(e RecordEmitter, ipExtractor IPExtractor) *Logger {
	return &Logger{emitter: e, ipExtractor: ipExtractor, now: time.Now}
}

// LogEvent fills ID, IP and CreatedAt when unset and emits the event.
func (l *Logger) LogEvent(ctx context.Context, entry domain.AuditLog) {
	if l == nil || l.emitter == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.IP == "" {
		entry.IP = "unknown"
		if l.ipExtractor != nil {
			if ip := l.ipExtractor(ctx); ip != "" {
				entry.IP = ip
			}
		}
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now().UTC()
	}

	rec := otellog.Record{}
	rec.SetTimestamp(entry.CreatedAt)
	rec.SetEventName(entry.EventName())
	rec.SetBody(otellog.StringValue(entry.EventName()))
	if entry.Outcome == domain.OutcomeFailure || entry.Action == domain.ActionReuseDetected {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	rec.AddAttributes(
		otellog.String("audit.id", entry.ID),
		otellog.String("action", entry.Action),
		otellog.String("client_ip", entry.IP),
	)
	optional := []struct{ key, val string }{
		{"outcome", entry.Outcome},
		{"user_id", entry.UserID},
		{"username", entry.Username},
		{"session_id", entry.SessionID},
		{"token_id", entry.TokenID},
		{"reason", entry.Reason},
	}
	for _, kv := range optional {
		if kv.val != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.val))
		}
	}
	l.emitter.Emit(ctx, rec)
}

// Nop discards every event.
type Nop struct{}

func (Nop) LogEvent(context.Context, domain.AuditLog) {}
