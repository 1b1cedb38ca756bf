package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestHTTPMiddleware(t *testing.T) {
	var seen string
	handler := NewHTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		require.True(t, ok)
		seen = id
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	header := rec.Header().Get(RequestIDHeader)
	require.Equal(t, seen, header)
	_, err := ulid.Parse(header)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEqual(t, header, rec.Header().Get(RequestIDHeader))
}

func TestInitIDUsesTraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() {
		_ = tp.Shutdown(t.Context())
	})

	ctx, span := tp.Tracer("test").Start(t.Context(), "request")
	defer span.End()

	require.Equal(t, span.SpanContext().TraceID().String(), InitID(ctx))
}
