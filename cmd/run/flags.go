package run

import (
	"github.com/spf13/cobra"

	"github.com/K-rankenste-in/facilpad/cmd/util"
	serverconfig "github.com/K-rankenste-in/facilpad/internal/server/config"
)

// runFlags maps the flags only known to the run command to their config keys.
var runFlags = map[string]string{
	"http-enabled":              "http.enabled",
	"http-addr":                 "http.addr",
	"http-cors-allowed-origins": "http.corsAllowedOrigins",
	"http-cors-allowed-headers": "http.corsAllowedHeaders",
	"trace-enabled":             "trace.enabled",
	"trace-otlp-endpoint":       "trace.otlp.endpoint",
	"trace-otlp-tls-enabled":    "trace.otlp.tls.enabled",
	"trace-sample-ratio":        "trace.sampleRatio",
	"trace-service-name":        "trace.serviceName",
	"metrics-enabled":           "metrics.enabled",
	"metrics-addr":              "metrics.addr",
}

// bindRunFlags defines the flags of the run command and binds them to the equivalent config
// value being managed by viper once the command runs. This bridges the config between cobra
// flags and viper flags.
func bindRunFlags(command *cobra.Command) {
	defaultConfig := serverconfig.DefaultConfig()
	util.AddCommonFlags(command)
	flags := command.Flags()

	flags.Bool("http-enabled", defaultConfig.HTTP.Enabled, "enable/disable the osmblame HTTP server")
	flags.String("http-addr", defaultConfig.HTTP.Addr, "the host:port address to serve the HTTP server on")
	flags.StringSlice("http-cors-allowed-origins", defaultConfig.HTTP.CORSAllowedOrigins, "specifies the CORS allowed origins, also used to check the origin of websocket requests")
	flags.StringSlice("http-cors-allowed-headers", defaultConfig.HTTP.CORSAllowedHeaders, "specifies the CORS allowed headers")

	flags.Bool("trace-enabled", defaultConfig.Trace.Enabled, "enable tracing")
	flags.String("trace-otlp-endpoint", defaultConfig.Trace.OTLP.Endpoint, "the endpoint of the trace collector")
	flags.Bool("trace-otlp-tls-enabled", defaultConfig.Trace.OTLP.TLS.Enabled, "use TLS connection for trace collector")
	flags.Float64("trace-sample-ratio", defaultConfig.Trace.SampleRatio, "the fraction of traces to sample. 1 means all, 0 means none.")
	flags.String("trace-service-name", defaultConfig.Trace.ServiceName, "the service name included in sampled traces.")

	flags.Bool("metrics-enabled", defaultConfig.Metrics.Enabled, "enable/disable prometheus metrics on the '/metrics' endpoint")
	flags.String("metrics-addr", defaultConfig.Metrics.Addr, "the host:port address to serve the prometheus metrics server on")

	command.PreRun = func(cmd *cobra.Command, _ []string) {
		util.BindCommonFlags(cmd)
		util.BindFlags(cmd.Flags(), runFlags)
	}
}
