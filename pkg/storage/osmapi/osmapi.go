// Package osmapi implements [osm.HistorySource] on top of the OpenStreetMap API 0.6.
package osmapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"github.com/K-rankenste-in/facilpad/internal/build"
	"github.com/K-rankenste-in/facilpad/pkg/osm"
	"github.com/K-rankenste-in/facilpad/pkg/telemetry"
)

const (
	DefaultAPIURL            = "https://api.openstreetmap.org/api/0.6"
	DefaultTimeout           = 30 * time.Second
	DefaultRequestsPerSecond = 10.0
	DefaultBurst             = 20
)

var (
	tracer = otel.Tracer("osmblame/pkg/storage/osmapi")

	requestDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: build.ProjectName,
		Name:      "osm_api_request_duration_ms",
		Help:      "The latency (in milliseconds) of OSM API history requests.",
		Buckets:   []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"feature_type", "status"})
)

// ClientOption defines a function type used for configuring a [Client].
type ClientOption func(c *Client)

// WithAPIURL sets the base URL of the API, without trailing slash (e.g. https://api.openstreetmap.org/api/0.6).
func WithAPIURL(u string) ClientOption {
	return func(c *Client) { c.apiURL = strings.TrimSuffix(u, "/") }
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout sets the timeout of a single HTTP request.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit limits the number of requests per second sent to the API.
// A non-positive limit disables rate limiting.
func WithRateLimit(requestsPerSecond float64, burst int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithMaxRetries sets how often a failed request is retried by the transport. The default is 0.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

// Client fetches feature histories from the OSM API. It is safe for concurrent use.
type Client struct {
	apiURL     string
	userAgent  string
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	httpClient *http.Client
}

var _ osm.HistorySource = (*Client)(nil)

// New creates a new [Client] given the options.
func New(opts ...ClientOption) *Client {
	c := &Client{
		apiURL:    DefaultAPIURL,
		userAgent: build.ProjectName + "/" + build.Version,
		timeout:   DefaultTimeout,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurst),
	}

	for _, opt := range opts {
		opt(c)
	}

	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = c.maxRetries
	client.HTTPClient.Timeout = c.timeout
	// Hand the last response back instead of a generic error so its status can be inspected.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.httpClient = client.StandardClient()

	return c
}

// FeatureHistory see [osm.HistorySource].FeatureHistory.
func (c *Client) FeatureHistory(ctx context.Context, featureType osm.FeatureType, id int64) (osm.History, error) {
	ctx, span := tracer.Start(ctx, "osmapi.FeatureHistory")
	defer span.End()
	span.SetAttributes(attribute.String("feature_type", string(featureType)), attribute.Int64("feature_id", id))

	h, err := c.featureHistory(ctx, featureType, id)
	if err != nil && !errors.Is(err, osm.ErrNotFound) {
		telemetry.TraceError(span, err)
	}
	return h, err
}

func (c *Client) featureHistory(ctx context.Context, featureType osm.FeatureType, id int64) (osm.History, error) {
	key := osm.Key{Type: featureType, ID: id}

	if c.limiter != nil {
		// Respect the rate limit.
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
	}

	reqURL := c.apiURL + "/" + url.PathEscape(string(featureType)) + "/" + strconv.FormatInt(id, 10) + "/history.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestDurationHistogram.WithLabelValues(string(featureType), "error").Observe(float64(time.Since(start).Milliseconds()))
		return nil, fmt.Errorf("failed to fetch history of %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	requestDurationHistogram.WithLabelValues(string(featureType), strconv.Itoa(resp.StatusCode)).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", key, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%s: %w", key, osm.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch history of %s: unexpected status %d: %s", key, resp.StatusCode, truncate(string(body), 200))
	}

	h, err := ParseHistory(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse history of %s: %w", key, err)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("%s: %w", key, osm.ErrNotFound)
	}
	return h, nil
}

// ParseHistory decodes an OSM API JSON document ({"elements": [...]}) into a [osm.History].
func ParseHistory(body []byte) (osm.History, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid JSON")
	}

	var (
		versions []*osm.Feature
		parseErr error
	)
	gjson.GetBytes(body, "elements").ForEach(func(_, el gjson.Result) bool {
		f, err := parseElement(el)
		if err != nil {
			parseErr = err
			return false
		}
		versions = append(versions, f)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return osm.NewHistory(versions...), nil
}

func parseElement(el gjson.Result) (*osm.Feature, error) {
	featureType, err := osm.ParseFeatureType(el.Get("type").String())
	if err != nil {
		return nil, err
	}

	f := &osm.Feature{
		Type:      featureType,
		ID:        el.Get("id").Int(),
		Version:   int(el.Get("version").Int()),
		Changeset: el.Get("changeset").Int(),
		User:      el.Get("user").String(),
		UID:       el.Get("uid").Int(),
		Visible:   true,
	}
	if v := el.Get("visible"); v.Exists() {
		f.Visible = v.Bool()
	}

	f.Timestamp, err = time.Parse(time.RFC3339, el.Get("timestamp").String())
	if err != nil {
		return nil, fmt.Errorf("%s: invalid timestamp: %w", f.VersionKey(), err)
	}

	if tags := el.Get("tags"); tags.IsObject() {
		f.Tags = make(map[string]string)
		tags.ForEach(func(k, v gjson.Result) bool {
			f.Tags[k.String()] = v.String()
			return true
		})
	}

	switch featureType {
	case osm.NodeType:
		f.Lat = el.Get("lat").Float()
		f.Lon = el.Get("lon").Float()
	case osm.WayType:
		for _, n := range el.Get("nodes").Array() {
			f.Nodes = append(f.Nodes, n.Int())
		}
	case osm.RelationType:
		for _, m := range el.Get("members").Array() {
			memberType, err := osm.ParseFeatureType(m.Get("type").String())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.VersionKey(), err)
			}
			f.Members = append(f.Members, osm.Member{
				Type: memberType,
				Ref:  m.Get("ref").Int(),
				Role: m.Get("role").String(),
			})
		}
	}

	return f, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
