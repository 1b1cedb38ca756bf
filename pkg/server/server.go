// Package server exposes the blame engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/K-rankenste-in/facilpad/internal/blame"
	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
	"github.com/K-rankenste-in/facilpad/pkg/telemetry"
)

var tracer = otel.Tracer("osmblame/pkg/server")

// Blamer computes blame results. It is implemented by [blame.Engine].
type Blamer interface {
	Blame(ctx context.Context, featureType osm.FeatureType, id int64, opts ...blame.BlameOption) (*blame.Result, error)
}

var _ Blamer = (*blame.Engine)(nil)

type Dependencies struct {
	Blamer Blamer
	Logger logger.Logger
}

type Config struct {
	// BlameTimeout bounds a single blame computation. Zero means no limit.
	BlameTimeout time.Duration

	// AllowedOrigins lists the origins that may open a progress websocket. "*" allows any origin.
	AllowedOrigins []string
}

// A Server serves blame results as JSON, and as a stream of progress messages over a websocket.
type Server struct {
	blamer   Blamer
	logger   logger.Logger
	config   *Config
	upgrader websocket.Upgrader
}

// New creates a new Server which computes results with the supplied Blamer.
func New(dependencies *Dependencies, config *Config) *Server {
	s := &Server{
		blamer: dependencies.Blamer,
		logger: dependencies.Logger,
		config: config,
	}
	if s.logger == nil {
		s.logger = logger.NewNoopLogger()
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.healthzHandler)
	r.Get("/blame/{type}/{id}", s.blameHandler)
	r.Get("/blame/{type}/{id}/ws", s.blameWebSocketHandler)
	return r
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"status":"SERVING"}`)); err != nil {
		s.logger.ErrorWithContext(r.Context(), "failed to write health response", zap.Error(err))
	}
}

func (s *Server) blameHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "blameHandler")
	defer span.End()

	featureType, id, err := parseFeature(r)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.String("feature_type", string(featureType)), attribute.Int64("feature_id", id))

	ctx, cancel := s.withBlameTimeout(ctx)
	defer cancel()

	res, err := s.blamer.Blame(ctx, featureType, id)
	if err != nil {
		telemetry.TraceError(span, err)
		s.writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.logger.ErrorWithContext(ctx, "failed to write blame response", zap.Error(err))
	}
}

func (s *Server) withBlameTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.BlameTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.BlameTimeout)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.config.AllowedOrigins, "*") || slices.Contains(s.config.AllowedOrigins, origin)
}
