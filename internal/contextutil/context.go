// internal/contextutil/context.go
package contextutil

import (
	"context"

	"vexserver/internal/auth"
	"vexserver/internal/observability/logging"
)

// Key is a type-safe key for context values
type Key string

const (
	// LoggerKey is the key for the logger
	LoggerKey Key = "context:logger"

	// TraceIDKey is the key for the trace ID
	TraceIDKey Key = "context:trace_id"

	// SpanIDKey is the key for the span ID
	SpanIDKey Key = "context:span_id"

	// AuthStateKey is the key for the authentication state
	AuthStateKey Key = "context:auth_state"

	// AuthorizedKey is the key for the authorized flag
	AuthorizedKey Key = "context:authorized"
)

// WithLogger adds a logger to a context
func WithLogger(ctx context.Context, logger *logging.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetLogger retrieves a logger from a context
func GetLogger(ctx context.Context) *logging.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*logging.Logger); ok {
		return logger
	}
	return nil
}

// WithTraceID adds a trace ID to a context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID retrieves a trace ID from a context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithSpanID adds a span ID to a context
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, SpanIDKey, spanID)
}

// GetSpanID retrieves a span ID from a context
func GetSpanID(ctx context.Context) string {
	if spanID, ok := ctx.Value(SpanIDKey).(string); ok {
		return spanID
	}
	return ""
}

// WithAuthState attaches an authentication state to a context
func WithAuthState(ctx context.Context, state auth.State) context.Context {
	return context.WithValue(ctx, AuthStateKey, state)
}

// GetAuthState retrieves the authentication state from a context. A request
// that never passed through the authenticator reads as anonymous.
func GetAuthState(ctx context.Context) auth.State {
	if state, ok := ctx.Value(AuthStateKey).(auth.State); ok {
		return state
	}
	return auth.Anonymous("no authentication state")
}

// GetIdentity retrieves the authenticated identity from a context, nil when
// the request is anonymous.
func GetIdentity(ctx context.Context) *auth.Identity {
	return GetAuthState(ctx).Identity
}

// WithAuthorized marks a context as having cleared the authorizer
func WithAuthorized(ctx context.Context) context.Context {
	return context.WithValue(ctx, AuthorizedKey, true)
}

// IsAuthorized reports whether the authorizer cleared this request
func IsAuthorized(ctx context.Context) bool {
	if v, ok := ctx.Value(AuthorizedKey).(bool); ok {
		return v
	}
	return false
}

// EnrichContext adds standard observability items to a context
func EnrichContext(ctx context.Context, logger *logging.Logger) context.Context {
	traceID := GetTraceID(ctx)
	if traceID == "" {
		traceID = logging.NewTraceID()
		ctx = WithTraceID(ctx, traceID)
	}

	spanID := logging.NewSpanID()
	ctx = WithSpanID(ctx, spanID)

	if logger != nil {
		logger = logger.With(
			logging.TraceIDKey, traceID,
			logging.SpanIDKey, spanID,
		)
		ctx = WithLogger(ctx, logger)
	}

	return ctx
}
