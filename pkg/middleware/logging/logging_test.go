package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/middleware/requestid"
)

func TestHTTPMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLogs  int
		wantLevel zapcore.Level
	}{
		{name: "ok", path: "/blame/way/1", status: http.StatusOK, wantLogs: 1, wantLevel: zapcore.InfoLevel},
		{name: "not_found", path: "/blame/way/1", status: http.StatusNotFound, wantLogs: 1, wantLevel: zapcore.InfoLevel},
		{name: "bad_gateway", path: "/blame/way/1", status: http.StatusBadGateway, wantLogs: 1, wantLevel: zapcore.ErrorLevel},
		{name: "health_checks_are_not_logged", path: "/healthz", status: http.StatusOK, wantLogs: 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			log, logs := logger.NewObserverLogger("debug")

			handler := requestid.NewHTTPMiddleware(NewHTTPMiddleware(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
			})))

			req := httptest.NewRequest(http.MethodGet, test.path, nil)
			req.Header.Set("User-Agent", "osmblame-test")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			require.Equal(t, test.status, rec.Code)
			require.Equal(t, test.wantLogs, logs.Len())
			if test.wantLogs == 0 {
				return
			}

			entry := logs.All()[0]
			require.Equal(t, httpReqCompleteKey, entry.Message)
			require.Equal(t, test.wantLevel, entry.Level)

			fields := entry.ContextMap()
			require.Equal(t, int64(test.status), fields[httpStatusKey])
			require.Equal(t, test.path, fields[httpPathKey])
			require.Equal(t, "osmblame-test", fields[userAgentKey])
			require.Equal(t, rec.Header().Get(requestid.RequestIDHeader), fields[requestIDKey])
		})
	}
}

func TestImplicitStatus(t *testing.T) {
	log, logs := logger.NewObserverLogger("info")
	handler := NewHTTPMiddleware(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/blame/way/1", nil))

	require.Equal(t, int64(http.StatusOK), logs.All()[0].ContextMap()[httpStatusKey])
}
