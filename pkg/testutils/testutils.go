// Package testutils contains code that is useful in tests.
package testutils

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"

	serverconfig "github.com/K-rankenste-in/facilpad/internal/server/config"
)

// EnsureServiceHealthy polls the health endpoint of the HTTP server at httpAddr until it
// answers, and fails the test if it never reports healthy.
func EnsureServiceHealthy(t testing.TB, httpAddr string) {
	t.Helper()

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 10
	client.RetryWaitMin = 50 * time.Millisecond
	client.RetryWaitMax = time.Second

	resp, err := client.Get(fmt.Sprintf("http://%s/healthz", httpAddr))
	require.NoError(t, err, "http endpoint not healthy")

	t.Cleanup(func() {
		err := resp.Body.Close()
		require.NoError(t, err)
	})

	require.Equal(t, http.StatusOK, resp.StatusCode, "unexpected status code received from server")
}

// MustDefaultConfigWithRandomPorts returns the default server config but with random ports for
// the http and metrics addresses, both bound to localhost.
// This function may panic if somehow a random port cannot be chosen.
func MustDefaultConfigWithRandomPorts() *serverconfig.Config {
	config := serverconfig.DefaultConfig()

	httpPort, httpPortReleaser := serverconfig.TCPRandomPort()
	defer httpPortReleaser()
	metricsPort, metricsPortReleaser := serverconfig.TCPRandomPort()
	defer metricsPortReleaser()

	config.HTTP.Addr = fmt.Sprintf("localhost:%d", httpPort)
	config.Metrics.Addr = fmt.Sprintf("localhost:%d", metricsPort)

	return config
}
