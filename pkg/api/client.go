package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/matst80/slask-discovery/pkg/common/jsoncompat"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_search_api_requests_total",
		Help: "The total number of requests sent to the search api",
	}, []string{"status"})
	apiDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_search_api_duration_seconds",
		Help:    "Time spent waiting for the search api",
		Buckets: prometheus.DefBuckets,
	})
)

const defaultTimeout = 30 * time.Second

// Client queries the portal search endpoint over HTTP.
type Client struct {
	Endpoint   string
	HttpClient *http.Client
}

// NewClient creates a client for the search endpoint, e.g. https://api.example.org/v1/query
func NewClient(endpoint string) *Client {
	return &Client{
		Endpoint:   endpoint,
		HttpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Query sends the request and decodes the response.
func (c *Client) Query(ctx context.Context, req Request) (*Response, error) {
	values, err := req.Values()
	if err != nil {
		return nil, fmt.Errorf("error encoding request: %w", err)
	}
	u := c.Endpoint
	if strings.Contains(u, "?") {
		u += "&" + values.Encode()
	} else {
		u += "?" + values.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.HttpClient.Do(httpReq)
	apiDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		apiRequests.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("error sending request to search api: %w", err)
	}
	defer resp.Body.Close()
	apiRequests.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Url:        u,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var result Response
	if err := jsoncompat.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("error decoding response from search api: %w", err)
	}
	return &result, nil
}
