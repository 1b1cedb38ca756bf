package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/K-rankenste-in/facilpad/internal/blame"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
)

var errInvalidRequest = errors.New("invalid request")

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse maps an error of the blame engine to an HTTP status and body.
func errorResponse(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, osm.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Code: "not_found", Message: err.Error()}
	case errors.Is(err, errInvalidRequest), errors.Is(err, blame.ErrUnsupportedFeatureType):
		return http.StatusBadRequest, ErrorResponse{Code: "validation_error", Message: err.Error()}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout, ErrorResponse{Code: "deadline_exceeded", Message: err.Error()}
	default:
		return http.StatusBadGateway, ErrorResponse{Code: "upstream_error", Message: err.Error()}
	}
}

func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorWithContext(ctx, "blame failed", zap.Error(err))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to write error response", zap.Error(err))
	}
}

func parseFeature(r *http.Request) (osm.FeatureType, int64, error) {
	featureType, err := osm.ParseFeatureType(chi.URLParam(r, "type"))
	if err != nil {
		return "", 0, fmt.Errorf("%w: %w", errInvalidRequest, err)
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return "", 0, fmt.Errorf("%w: feature id must be a positive integer, got %q", errInvalidRequest, chi.URLParam(r, "id"))
	}
	return featureType, id, nil
}
