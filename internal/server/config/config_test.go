package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVerifyConfig(t *testing.T) {
	t.Run("default_config_is_valid", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Verify())
		require.NoError(t, MustDefaultConfig().Verify())
	})

	t.Run("invalid_log_format", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.Format = "xml"

		err := cfg.Verify()
		require.EqualError(t, err, "config 'log.format' must be one of ['text', 'json']")
	})

	t.Run("invalid_log_level", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.Level = "verbose"

		err := cfg.Verify()
		require.EqualError(t, err, "config 'log.level' must be one of ['none', 'debug', 'info', 'warn', 'error', 'panic', 'fatal']")
	})

	t.Run("invalid_log_timestamp_format", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Log.TimestampFormat = "RFC822"

		err := cfg.Verify()
		require.EqualError(t, err, "config 'log.TimestampFormat' must be one of ['Unix', 'ISO8601']")
	})

	t.Run("relative_api_url", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OSM.APIURL = "api/0.6"

		err := cfg.Verify()
		require.EqualError(t, err, `config 'osm.apiURL' must be an absolute http(s) URL, got "api/0.6"`)
	})

	t.Run("non_positive_timeouts", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OSM.Timeout = 0
		require.EqualError(t, cfg.Verify(), "config 'osm.timeout' must be a positive duration")

		cfg = DefaultConfig()
		cfg.Blame.Timeout = -time.Second
		require.EqualError(t, cfg.Verify(), "config 'blame.timeout' must be a positive duration")
	})

	t.Run("rate_limit_without_burst", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OSM.Burst = 0

		err := cfg.Verify()
		require.EqualError(t, err, "config 'osm.burst' must be at least 1 when 'osm.requestsPerSecond' is set")

		cfg.OSM.RequestsPerSecond = 0
		require.NoError(t, cfg.Verify())
	})

	t.Run("negative_retries", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.OSM.MaxRetries = -1

		require.EqualError(t, cfg.Verify(), "config 'osm.maxRetries' must be a non-negative integer")
	})

	t.Run("sample_ratio_out_of_range", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Trace.Enabled = true
		cfg.Trace.SampleRatio = 1.5

		require.EqualError(t, cfg.Verify(), "config 'trace.sampleRatio' must be between 0 and 1, got 1.5")
	})

	t.Run("http_and_metrics_on_the_same_address", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Metrics.Addr = cfg.HTTP.Addr

		require.EqualError(t, cfg.Verify(), `config 'http.addr' and 'metrics.addr' must differ, both are "0.0.0.0:8080"`)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, 0, cfg.OSM.MaxRetries)
	require.Equal(t, DefaultOSMAPIURL, cfg.OSM.APIURL)
	require.True(t, cfg.HTTP.Enabled)
	require.True(t, cfg.Metrics.Enabled)
	require.False(t, MustDefaultConfig().Metrics.Enabled)
}

func TestMustDefaultConfigWithRandomPorts(t *testing.T) {
	cfg := MustDefaultConfigWithRandomPorts()

	require.NotEqual(t, DefaultConfig().HTTP.Addr, cfg.HTTP.Addr)
	require.NoError(t, cfg.Verify())
}
