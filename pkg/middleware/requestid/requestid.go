// Package requestid assigns every HTTP request an id that is echoed in the response and
// available to handlers and loggers.
package requestid

import (
	"context"
	"net/http"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	requestIDTraceKey = "request_id"

	// RequestIDHeader defines the HTTP header that is set in each HTTP response
	// for a given request. The value of the header is unique per request.
	RequestIDHeader = "X-Request-Id"
)

type ctxKey struct{}

// InitID returns the ID to be used to identify the request.
// If trace is enabled, returns trace ID; otherwise returns a new ULID.
func InitID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.TraceID().IsValid() {
		return spanCtx.TraceID().String()
	}
	return ulid.Make().String()
}

// FromContext returns the request id stored by the middleware.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok
}

// NewHTTPMiddleware must come after the trace middleware and before the logging middleware.
func NewHTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := InitID(ctx)

		w.Header().Set(RequestIDHeader, requestID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String(requestIDTraceKey, requestID))

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, ctxKey{}, requestID)))
	})
}
