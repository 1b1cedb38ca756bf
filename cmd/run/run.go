// Package run contains the command to run the osmblame HTTP server.
package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/K-rankenste-in/facilpad/cmd/util"
	"github.com/K-rankenste-in/facilpad/internal/build"
	serverconfig "github.com/K-rankenste-in/facilpad/internal/server/config"
	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/middleware/logging"
	"github.com/K-rankenste-in/facilpad/pkg/middleware/recovery"
	"github.com/K-rankenste-in/facilpad/pkg/middleware/requestid"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
	"github.com/K-rankenste-in/facilpad/pkg/server"
	"github.com/K-rankenste-in/facilpad/pkg/telemetry"
)

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the osmblame server",
		Long:  "Run the osmblame server.",
		RunE:  run,
		Args:  cobra.NoArgs,
	}

	bindRunFlags(cmd)

	return cmd
}

// ReadConfig returns the server configuration, see [util.ReadConfig].
func ReadConfig() (*serverconfig.Config, error) {
	return util.ReadConfig()
}

func run(cmd *cobra.Command, _ []string) error {
	config, err := ReadConfig()
	if err != nil {
		return err
	}

	if err := config.Verify(); err != nil {
		return err
	}

	logger := logger.MustNewLogger(config.Log.Format, config.Log.Level, config.Log.TimestampFormat)

	historyFile, _ := cmd.Flags().GetString(util.HistoryFileFlag)
	source, err := util.NewHistorySource(&config.OSM, historyFile)
	if err != nil {
		return err
	}
	if historyFile != "" {
		logger.Warn(fmt.Sprintf("serving feature histories from '%s' instead of the OSM API", historyFile))
	}

	serverCtx := &ServerContext{
		Logger:        logger,
		HistorySource: source,
	}
	return serverCtx.Run(cmd.Context(), config)
}

type ServerContext struct {
	Logger        logger.Logger
	HistorySource osm.HistorySource
}

// telemetryConfig returns the function that must be called to shut down tracing.
// The context provided to this function should be error-free, or shut down will be incomplete.
func (s *ServerContext) telemetryConfig(config *serverconfig.Config) func() error {
	if config.Trace.Enabled {
		s.Logger.Info(fmt.Sprintf("🕵 tracing enabled: sampling ratio is %v and sending traces to '%s', tls: %t", config.Trace.SampleRatio, config.Trace.OTLP.Endpoint, config.Trace.OTLP.TLS.Enabled))

		options := []telemetry.TracerOption{
			telemetry.WithOTLPEndpoint(
				config.Trace.OTLP.Endpoint,
			),
			telemetry.WithAttributes(
				semconv.ServiceNameKey.String(config.Trace.ServiceName),
				semconv.ServiceVersionKey.String(build.Version),
			),
			telemetry.WithSamplingRatio(config.Trace.SampleRatio),
		}

		if !config.Trace.OTLP.TLS.Enabled {
			options = append(options, telemetry.WithOTLPInsecure())
		}

		tp := telemetry.MustNewTracerProvider(options...)
		return func() error {
			// can take up to 5 seconds to complete
			ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
			defer cancel()
			return errors.Join(tp.ForceFlush(ctx), tp.Shutdown(ctx))
		}
	}
	otel.SetTracerProvider(noop.NewTracerProvider())
	return func() error {
		return nil
	}
}

// handler wraps the routes of srv in the middleware chain of the HTTP server. From the
// outside in: panic recovery, CORS, tracing, request ids and request logging.
func (s *ServerContext) handler(config *serverconfig.Config, srv *server.Server) http.Handler {
	handler := logging.NewHTTPMiddleware(s.Logger, srv.Handler())
	handler = requestid.NewHTTPMiddleware(handler)

	if config.Trace.Enabled {
		handler = otelhttp.NewHandler(handler, "blame-http")
	}

	handler = cors.New(cors.Options{
		AllowedOrigins:   config.HTTP.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowedHeaders:   config.HTTP.CORSAllowedHeaders,
		AllowedMethods:   []string{http.MethodGet, http.MethodHead},
	}).Handler(handler)

	return recovery.HTTPPanicRecoveryHandler(handler, s.Logger)
}

func (s *ServerContext) runHTTPServer(config *serverconfig.Config, handler http.Handler) (*http.Server, error) {
	httpServer := &http.Server{
		Addr:              config.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 30 * time.Second,
	}

	listener, err := net.Listen("tcp", config.HTTP.Addr)
	if err != nil {
		return nil, err
	}

	go func() {
		s.Logger.Info(fmt.Sprintf("🚀 starting HTTP server on '%s'...", httpServer.Addr))
		if err := httpServer.Serve(listener); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.Logger.Fatal("HTTP server closed with unexpected error", zap.Error(err))
			}
		}
		s.Logger.Info("HTTP server shut down.")
	}()
	return httpServer, nil
}

// Run returns an error if the server was unable to start successfully.
// If it started and terminated successfully, it returns a nil error.
func (s *ServerContext) Run(ctx context.Context, config *serverconfig.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracerProviderCloser := s.telemetryConfig(config)

	if s.HistorySource == nil {
		source, err := util.NewHistorySource(&config.OSM, "")
		if err != nil {
			return err
		}
		s.HistorySource = source
	}

	var metricsServer *http.Server
	if config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())

		metricsServer = &http.Server{Addr: config.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 30 * time.Second}

		go func() {
			s.Logger.Info(fmt.Sprintf("📈 starting prometheus metrics server on '%s'", config.Metrics.Addr))
			if err := metricsServer.ListenAndServe(); err != nil {
				if !errors.Is(err, http.ErrServerClosed) {
					s.Logger.Fatal("failed to start prometheus metrics server", zap.Error(err))
				}
			}
			s.Logger.Info("metrics server shut down.")
		}()
	}

	engine := util.NewEngine(config, s.HistorySource, s.Logger)
	svr := server.New(&server.Dependencies{
		Blamer: engine,
		Logger: s.Logger,
	}, &server.Config{
		BlameTimeout:   config.Blame.Timeout,
		AllowedOrigins: config.HTTP.CORSAllowedOrigins,
	})

	s.Logger.Info(
		"starting osmblame service...",
		zap.String("version", build.Version),
		zap.String("date", build.Date),
		zap.String("commit", build.Commit),
		zap.String("osm-api-url", config.OSM.APIURL),
		zap.Int("blame-max-concurrent-fetches", config.Blame.MaxConcurrentFetches),
		zap.Duration("blame-timeout", config.Blame.Timeout),
	)

	var httpServer *http.Server
	if config.HTTP.Enabled {
		var err error
		httpServer, err = s.runHTTPServer(config, s.handler(config, svr))
		if err != nil {
			return err
		}
	}

	// wait for cancellation signal
	<-ctx.Done()
	s.Logger.Info("attempting to shutdown gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if httpServer != nil {
		if err := httpServer.Shutdown(ctx); err != nil {
			s.Logger.Info("failed to shutdown the http server", zap.Error(err))
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			s.Logger.Info("failed to shutdown the prometheus metrics server", zap.Error(err))
		}
	}

	if err := tracerProviderCloser(); err != nil {
		s.Logger.Error("failed to shutdown tracing", zap.Error(err))
	}

	s.Logger.Info("server exited. goodbye 👋")

	return nil
}
