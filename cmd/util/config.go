package util

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/K-rankenste-in/facilpad/internal/blame"
	serverconfig "github.com/K-rankenste-in/facilpad/internal/server/config"
	"github.com/K-rankenste-in/facilpad/pkg/logger"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
	"github.com/K-rankenste-in/facilpad/pkg/storage/memory"
	"github.com/K-rankenste-in/facilpad/pkg/storage/osmapi"
)

// HistoryFileFlag names the flag that replaces the OSM API with a fixture file.
const HistoryFileFlag = "history-file"

// commonFlags maps the flags shared by all commands that compute blame to their config keys.
var commonFlags = map[string]string{
	"log-format":                   "log.format",
	"log-level":                    "log.level",
	"log-timestamp-format":         "log.timestampFormat",
	"osm-api-url":                  "osm.apiURL",
	"osm-user-agent":               "osm.userAgent",
	"osm-timeout":                  "osm.timeout",
	"osm-requests-per-second":      "osm.requestsPerSecond",
	"osm-burst":                    "osm.burst",
	"osm-max-retries":              "osm.maxRetries",
	"blame-max-concurrent-fetches": "blame.maxConcurrentFetches",
	"blame-timeout":                "blame.timeout",
}

// AddCommonFlags defines the log, OSM and blame flags on the command. They are bound to their
// config keys by [BindCommonFlags].
func AddCommonFlags(command *cobra.Command) {
	defaultConfig := serverconfig.DefaultConfig()
	flags := command.Flags()

	flags.String("log-format", defaultConfig.Log.Format, "the log format to output logs in")
	flags.String("log-level", defaultConfig.Log.Level, "the log level to use")
	flags.String("log-timestamp-format", defaultConfig.Log.TimestampFormat, "the timestamp format to use for log messages")

	flags.String("osm-api-url", defaultConfig.OSM.APIURL, "the base URL of the OSM API to fetch feature histories from")
	flags.String("osm-user-agent", defaultConfig.OSM.UserAgent, "the User-Agent sent to the OSM API")
	flags.Duration("osm-timeout", defaultConfig.OSM.Timeout, "the timeout of a single OSM API request")
	flags.Float64("osm-requests-per-second", defaultConfig.OSM.RequestsPerSecond, "the maximum rate of OSM API requests. A value <= 0 disables the limit")
	flags.Int("osm-burst", defaultConfig.OSM.Burst, "the number of OSM API requests that may exceed the rate limit at once")
	flags.Int("osm-max-retries", defaultConfig.OSM.MaxRetries, "how often a failed OSM API request is retried")

	flags.Int("blame-max-concurrent-fetches", defaultConfig.Blame.MaxConcurrentFetches, "the maximum number of feature histories fetched concurrently by a single blame computation")
	flags.Duration("blame-timeout", defaultConfig.Blame.Timeout, "the maximum duration of a single blame computation")

	flags.String(HistoryFileFlag, "", "read feature histories from this YAML or JSON file instead of the OSM API")
}

// BindCommonFlags binds the flags defined by [AddCommonFlags]. Call it from the PreRun of the command.
func BindCommonFlags(command *cobra.Command) {
	BindFlags(command.Flags(), commonFlags)
}

// ReadConfig returns the default configuration merged with the config file, environment
// variables and flags (in increasing order of precedence).
func ReadConfig() (*serverconfig.Config, error) {
	config := serverconfig.DefaultConfig()

	viper.SetTypeByDefaultValue(true)
	err := viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to load server config: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal server config: %w", err)
	}

	return config, nil
}

// NewHistorySource returns the source histories are read from: the fixture file if one is
// given, the OSM API otherwise.
func NewHistorySource(config *serverconfig.OSMConfig, historyFile string) (osm.HistorySource, error) {
	if historyFile != "" {
		source := memory.New()
		if err := source.LoadFile(historyFile); err != nil {
			return nil, err
		}
		return source, nil
	}

	return osmapi.New(
		osmapi.WithAPIURL(config.APIURL),
		osmapi.WithUserAgent(config.UserAgent),
		osmapi.WithTimeout(config.Timeout),
		osmapi.WithRateLimit(config.RequestsPerSecond, config.Burst),
		osmapi.WithMaxRetries(config.MaxRetries),
	), nil
}

// NewEngine builds the blame engine for the given config.
func NewEngine(config *serverconfig.Config, source osm.HistorySource, l logger.Logger) *blame.Engine {
	return blame.NewEngine(source,
		blame.WithLogger(l),
		blame.WithMaxConcurrentFetches(config.Blame.MaxConcurrentFetches),
	)
}
