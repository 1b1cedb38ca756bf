// Package config contains all knobs and defaults used to configure osmblame when running as a
// standalone server or as a one-shot command.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

const (
	DefaultOSMAPIURL            = "https://api.openstreetmap.org/api/0.6"
	DefaultOSMTimeout           = 30 * time.Second
	DefaultOSMRequestsPerSecond = 10
	DefaultOSMBurst             = 20

	// The engine itself never retries, a failed fetch fails the computation. Retries of the
	// HTTP transport are opt-in.
	DefaultOSMMaxRetries = 0

	DefaultBlameMaxConcurrentFetches = 16
	DefaultBlameTimeout              = 5 * time.Minute
)

// LogConfig defines configurations for log specific settings. For production we recommend using
// the 'json' log format.
type LogConfig struct {
	// Format is the log format to use in the log output (e.g. 'text' or 'json')
	Format string

	// Level is the log level to use in the log output (e.g. 'none', 'debug', or 'info')
	Level string

	// Format of the timestamp in the log output (e.g. 'Unix'(default) or 'ISO8601')
	TimestampFormat string
}

// OSMConfig defines how feature histories are fetched from the OSM API.
type OSMConfig struct {
	APIURL    string `mapstructure:"apiURL"`
	UserAgent string
	Timeout   time.Duration

	// RequestsPerSecond limits the request rate against the API. A value <= 0 disables the limit.
	RequestsPerSecond float64
	Burst             int

	MaxRetries int
}

// BlameConfig defines settings of the blame engine.
type BlameConfig struct {
	// MaxConcurrentFetches bounds the number of histories fetched concurrently by a single
	// blame computation.
	MaxConcurrentFetches int

	// Timeout bounds the duration of a single blame computation.
	Timeout time.Duration
}

// HTTPConfig defines configurations for the HTTP API.
type HTTPConfig struct {
	Enabled bool
	Addr    string

	CORSAllowedOrigins []string
	CORSAllowedHeaders []string
}

type TraceConfig struct {
	Enabled     bool
	OTLP        OTLPTraceConfig `mapstructure:"otlp"`
	SampleRatio float64
	ServiceName string
}

type OTLPTraceConfig struct {
	Endpoint string
	TLS      OTLPTraceTLSConfig
}

type OTLPTraceTLSConfig struct {
	Enabled bool
}

// MetricConfig defines configurations for serving Prometheus metrics.
type MetricConfig struct {
	Enabled bool
	Addr    string
}

type Config struct {
	Log     LogConfig
	OSM     OSMConfig `mapstructure:"osm"`
	Blame   BlameConfig
	HTTP    HTTPConfig `mapstructure:"http"`
	Trace   TraceConfig
	Metrics MetricConfig
}

func (cfg *Config) Verify() error {
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("config 'log.format' must be one of ['text', 'json']")
	}

	if cfg.Log.Level != "none" &&
		cfg.Log.Level != "debug" &&
		cfg.Log.Level != "info" &&
		cfg.Log.Level != "warn" &&
		cfg.Log.Level != "error" &&
		cfg.Log.Level != "panic" &&
		cfg.Log.Level != "fatal" {
		return fmt.Errorf(
			"config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']",
		)
	}

	if cfg.Log.TimestampFormat != "Unix" && cfg.Log.TimestampFormat != "ISO8601" {
		return fmt.Errorf("config 'log.TimestampFormat' must be one of ['Unix', 'ISO8601']")
	}

	u, err := url.Parse(cfg.OSM.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config 'osm.apiURL' must be an absolute http(s) URL, got %q", cfg.OSM.APIURL)
	}

	if cfg.OSM.Timeout <= 0 {
		return errors.New("config 'osm.timeout' must be a positive duration")
	}

	if cfg.OSM.RequestsPerSecond > 0 && cfg.OSM.Burst < 1 {
		return errors.New("config 'osm.burst' must be at least 1 when 'osm.requestsPerSecond' is set")
	}

	if cfg.OSM.MaxRetries < 0 {
		return errors.New("config 'osm.maxRetries' must be a non-negative integer")
	}

	if cfg.Blame.Timeout <= 0 {
		return errors.New("config 'blame.timeout' must be a positive duration")
	}

	if cfg.Trace.Enabled && (cfg.Trace.SampleRatio < 0 || cfg.Trace.SampleRatio > 1) {
		return fmt.Errorf("config 'trace.sampleRatio' must be between 0 and 1, got %v", cfg.Trace.SampleRatio)
	}

	if cfg.HTTP.Enabled && cfg.Metrics.Enabled && cfg.HTTP.Addr == cfg.Metrics.Addr {
		return fmt.Errorf("config 'http.addr' and 'metrics.addr' must differ, both are %q", cfg.HTTP.Addr)
	}

	return nil
}

// DefaultConfig is the osmblame default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Format:          "text",
			Level:           "info",
			TimestampFormat: "Unix",
		},
		OSM: OSMConfig{
			APIURL:            DefaultOSMAPIURL,
			UserAgent:         "osmblame",
			Timeout:           DefaultOSMTimeout,
			RequestsPerSecond: DefaultOSMRequestsPerSecond,
			Burst:             DefaultOSMBurst,
			MaxRetries:        DefaultOSMMaxRetries,
		},
		Blame: BlameConfig{
			MaxConcurrentFetches: DefaultBlameMaxConcurrentFetches,
			Timeout:              DefaultBlameTimeout,
		},
		HTTP: HTTPConfig{
			Enabled:            true,
			Addr:               "0.0.0.0:8080",
			CORSAllowedOrigins: []string{"*"},
			CORSAllowedHeaders: []string{"*"},
		},
		Trace: TraceConfig{
			Enabled: false,
			OTLP: OTLPTraceConfig{
				Endpoint: "0.0.0.0:4317",
				TLS: OTLPTraceTLSConfig{
					Enabled: false,
				},
			},
			SampleRatio: 0.2,
			ServiceName: "osmblame",
		},
		Metrics: MetricConfig{
			Enabled: true,
			Addr:    "0.0.0.0:2112",
		},
	}
}

// MustDefaultConfig returns the default config with metrics turned off.
func MustDefaultConfig() *Config {
	config := DefaultConfig()

	config.Metrics.Enabled = false

	return config
}

// MustDefaultConfigWithRandomPorts returns the default config but with a random port for the
// http address and with metrics turned off.
// This function may panic if somehow a random port cannot be chosen.
func MustDefaultConfigWithRandomPorts() *Config {
	config := MustDefaultConfig()

	httpPort, httpPortReleaser := TCPRandomPort()
	defer httpPortReleaser()

	config.HTTP.Addr = fmt.Sprintf("0.0.0.0:%d", httpPort)

	return config
}

// TCPRandomPort tries to find a random TCP Port. If it can't find one, it panics. Else, it returns the port and a function that releases the port.
// It is the responsibility of the caller to call the release function right before trying to listen on the given port.
func TCPRandomPort() (int, func()) {
	l, err := net.Listen("tcp", "")
	if err != nil {
		panic(err)
	}
	return l.Addr().(*net.TCPAddr).Port, func() {
		l.Close()
	}
}
