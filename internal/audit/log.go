package audit

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"esquadra.org/internal/auth"
	"esquadra.org/internal/ids"
	"esquadra.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// requestIDFromContext extracts the audit request id from context if present.
func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit entry enriched with request, force and identity
// context. Every security-relevant action in the auth core goes through here.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	attrs := []zap.Field{
		zap.String("type", "audit"),
		zap.String("event", event),
		zap.String("event_id", ids.New()),
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		attrs = append(attrs, zap.String("request_id", rid))
	}
	if force, ok := auth.ForceFromContext(ctx); ok {
		attrs = append(attrs, zap.String("force", force))
	}
	if identityID, ok := auth.IdentityFromContext(ctx); ok {
		attrs = append(attrs, zap.Int64("identity_id", identityID))
	}
	if len(fields) > 0 {
		attrs = append(attrs, zap.Any("fields", fields))
	}
	obs.Logger().Info("audit", attrs...)
	return nil
}
