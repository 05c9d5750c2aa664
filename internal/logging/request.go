package logging

import (
	"context"
	"log/slog"
	"net"
	"net/http"

	"github.com/getsentry/sentry-go"
)

// SecurityEvent names a security-relevant request outcome.
type SecurityEvent string

const (
	SecurityEventMissingAuth      SecurityEvent = "missing_auth"
	SecurityEventInvalidAuthFmt   SecurityEvent = "invalid_auth_format"
	SecurityEventInvalidJWT       SecurityEvent = "invalid_jwt"
	SecurityEventNonAdminAccess   SecurityEvent = "non_admin_access"
	SecurityEventRateLimited      SecurityEvent = "rate_limited"
	SecurityEventBadAdminPassword SecurityEvent = "bad_admin_password"
	SecurityEventDSNMismatch      SecurityEvent = "dsn_mismatch"
	SecurityEventBadEnvelope      SecurityEvent = "bad_envelope"
)

// RequestAttrs is the request context that is safe to log. The client IP is
// logged here but never attached to telemetry.
type RequestAttrs struct {
	RequestID string
	Method    string
	Path      string
	IP        string
	Subject   string
	Role      string
}

type contextKey struct{}

// WithRequestAttrs adds request attributes to context
func WithRequestAttrs(ctx context.Context, attrs *RequestAttrs) context.Context {
	return context.WithValue(ctx, contextKey{}, attrs)
}

// GetRequestAttrs retrieves request attributes from context
func GetRequestAttrs(ctx context.Context) *RequestAttrs {
	attrs, _ := ctx.Value(contextKey{}).(*RequestAttrs)
	return attrs
}

// UpdateRequestAttrs returns a context whose attributes carry the
// authenticated subject and role. The previous attributes are not modified.
func UpdateRequestAttrs(ctx context.Context, subject, role string) context.Context {
	var next RequestAttrs
	if attrs := GetRequestAttrs(ctx); attrs != nil {
		next = *attrs
	}
	next.Subject = subject
	next.Role = role
	return WithRequestAttrs(ctx, &next)
}

// RequestFields returns the context's request attributes as slog args.
func RequestFields(ctx context.Context) []any {
	attrs := GetRequestAttrs(ctx)
	if attrs == nil {
		return nil
	}

	fields := []any{
		slog.String("method", attrs.Method),
		slog.String("path", attrs.Path),
		slog.String("ip", attrs.IP),
	}
	if attrs.RequestID != "" {
		fields = append(fields, slog.String("request_id", attrs.RequestID))
	}
	if attrs.Subject != "" {
		fields = append(fields, slog.String("subject", attrs.Subject))
	}
	if attrs.Role != "" {
		fields = append(fields, slog.String("role", attrs.Role))
	}
	return fields
}

// ExtractClientIP returns the client address. X-Real-IP is only present
// when the real IP middleware set it from a trusted proxy or from the
// connection; forwarding headers are never read here.
func ExtractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// LogSecurityEvent logs a WARN-level security event and leaves a breadcrumb
// on the request's Sentry hub, so a later error report shows what preceded
// it. The breadcrumb carries no client address.
func LogSecurityEvent(ctx context.Context, event SecurityEvent, msg string) {
	fields := RequestFields(ctx)
	fields = append(fields, slog.String("security_event", string(event)))
	slog.WarnContext(ctx, msg, fields...)

	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		data := map[string]interface{}{"security_event": string(event)}
		if attrs := GetRequestAttrs(ctx); attrs != nil {
			data["path"] = attrs.Path
		}
		hub.AddBreadcrumb(&sentry.Breadcrumb{
			Type:     "default",
			Category: "security",
			Message:  msg,
			Level:    sentry.LevelWarning,
			Data:     data,
		}, nil)
	}
}

// LogErrorWithStatus logs an ERROR-level message with context, status, and error
func LogErrorWithStatus(ctx context.Context, status int, msg string, err error) {
	fields := RequestFields(ctx)
	fields = append(fields, slog.Int("status", status))
	if err != nil {
		fields = append(fields, slog.Any("error", err))
	}
	slog.ErrorContext(ctx, msg, fields...)
}
