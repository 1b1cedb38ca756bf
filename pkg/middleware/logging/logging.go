// Package logging logs one line per completed HTTP request.
package logging

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/middleware/requestid"
)

const (
	httpMethodKey      = "http_method"
	httpPathKey        = "http_path"
	httpStatusKey      = "http_status"
	requestIDKey       = "request_id"
	traceIDKey         = "trace_id"
	userAgentKey       = "user_agent"
	queryDurationKey   = "query_duration_ms"
	httpReqCompleteKey = "http_req_complete"

	healthCheckPath = "/healthz"
)

// statusRecorder captures the status code written by the wrapped handler. It supports
// hijacking, which the progress websocket relies on.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// NewHTTPMiddleware logs every request except health checks. Server errors are logged at
// error level, everything else at info level.
func NewHTTPMiddleware(l logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == healthCheckPath {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		ctx := r.Context()
		fields := []zap.Field{
			zap.String(httpMethodKey, r.Method),
			zap.String(httpPathKey, r.URL.Path),
			zap.Int(httpStatusKey, rec.status),
			zap.String(queryDurationKey, strconv.FormatInt(time.Since(start).Milliseconds(), 10)),
		}
		if id, ok := requestid.FromContext(ctx); ok {
			fields = append(fields, zap.String(requestIDKey, id))
		}
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.HasTraceID() {
			fields = append(fields, zap.String(traceIDKey, spanCtx.TraceID().String()))
		}
		if ua := r.UserAgent(); ua != "" {
			fields = append(fields, zap.String(userAgentKey, ua))
		}

		if rec.status >= http.StatusInternalServerError {
			l.Error(httpReqCompleteKey, fields...)
			return
		}
		l.Info(httpReqCompleteKey, fields...)
	})
}
