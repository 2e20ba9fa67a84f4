package buienradar

import (
	"context"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/couchcryptid/buienradar-exporter/internal/config"
	"github.com/couchcryptid/buienradar-exporter/internal/domain"
	"github.com/couchcryptid/buienradar-exporter/internal/observability"
)

// FeedURL is the Buienradar JSON feed.
const FeedURL = "https://data.buienradar.nl/2.0/feed/json"

// Client fetches the Buienradar feed. It implements pipeline.Source.
type Client struct {
	httpClient *http.Client
	feedURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a feed client that routes through the proxies captured in cfg.
func NewClient(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = proxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy)

	return &Client{
		httpClient: &http.Client{Transport: transport},
		feedURL:    FeedURL,
		metrics:    metrics,
		logger:     logger,
	}
}

// Fetch returns the feed's stations. Every traversal of the sequence performs
// one HTTP request; on any upstream failure the error is logged and counted
// and the sequence is empty. A fetch aborted by ctx is not an upstream failure.
func (c *Client) Fetch(ctx context.Context) iter.Seq[domain.StationMeasurement] {
	return func(yield func(domain.StationMeasurement) bool) {
		doc, err := c.fetchDocument(ctx)
		if err != nil && ctx.Err() != nil {
			c.logger.Debug("buienradar fetch cancelled", "error", err)
			return
		}
		if err != nil {
			c.metrics.APIErrors.Inc()
			c.logger.Error("buienradar fetch failed", "error", err)
			return
		}
		c.logger.Debug("buienradar feed fetched", "stations", doc.Len())
		for m := range doc.Stations() {
			if !yield(m) {
				return
			}
		}
	}
}

func (c *Client) fetchDocument(ctx context.Context) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("buienradar API error: status %d: %s", resp.StatusCode, body)
	}

	return DecodeDocument(resp.Body)
}

// proxyFunc picks a proxy by request scheme. Unparseable or empty values mean
// a direct connection.
func proxyFunc(httpProxy, httpsProxy string) func(*http.Request) (*url.URL, error) {
	parse := func(raw string) *url.URL {
		if raw == "" {
			return nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return nil
		}
		return u
	}
	byScheme := map[string]*url.URL{
		"http":  parse(httpProxy),
		"https": parse(httpsProxy),
	}

	return func(req *http.Request) (*url.URL, error) {
		return byScheme[req.URL.Scheme], nil
	}
}
