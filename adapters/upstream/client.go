// Package upstream is the HTTP client for the tariff schedule API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"tariff-engine/internal/errors"
	"tariff-engine/internal/fetch"
)

// Breaker identifiers, one per upstream endpoint.
const (
	breakerSearch = "upstream.search"
	breakerRange  = "upstream.range"
)

// Config configures the upstream client.
type Config struct {
	// BaseURL is the tariff schedule API root
	BaseURL string

	// Timeout bounds each logical call (including its retries)
	Timeout time.Duration

	// Rewrite, when set, transforms every final URL before dispatch.
	// Used for proxy indirection; the client treats it as opaque.
	Rewrite func(raw string) string
}

// Client fetches raw tariff records from the upstream schedule API.
type Client struct {
	fetch *fetch.Client
	cfg   Config
	log   *zap.Logger
}

// New creates an upstream client over a resilient fetcher.
func New(fetcher *fetch.Client, cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{fetch: fetcher, cfg: cfg, log: log}
}

func (c *Client) buildURL(path string, params url.Values) string {
	raw := c.cfg.BaseURL + path
	if len(params) > 0 {
		raw += "?" + params.Encode()
	}
	if c.cfg.Rewrite != nil {
		raw = c.cfg.Rewrite(raw)
	}
	return raw
}

// Search queries the keyword search endpoint for one term.
func (c *Client) Search(ctx context.Context, keyword string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.buildURL("/search", url.Values{"keyword": {keyword}})
	body, err := c.fetch.Get(ctx, u, breakerSearch)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

// Range queries the numeric range endpoint with 10-digit bounds.
func (c *Client) Range(ctx context.Context, from, to string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	u := c.buildURL("/exportList", url.Values{"from": {from}, "to": {to}, "format": {"JSON"}})
	body, err := c.fetch.Get(ctx, u, breakerRange)
	if err != nil {
		return nil, err
	}
	return decodeRecords(body)
}

// decodeRecords tolerates the upstream's three JSON shapes: a bare array,
// {"results": [...]}, or {"data": [...]}. Non-JSON bodies with a 200 status
// (HTML error pages) are a parse failure, never a silent empty success.
func decodeRecords(body []byte) ([]map[string]any, error) {
	var records []map[string]any
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	var wrapped struct {
		Results []map[string]any `json:"results"`
		Data    []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, errors.Parsing("upstream returned non-JSON payload", err)
	}
	if wrapped.Results != nil {
		return wrapped.Results, nil
	}
	if wrapped.Data != nil {
		return wrapped.Data, nil
	}
	return nil, errors.New(errors.TypeParsing, "upstream payload has no recognizable record list")
}

// ProxyRewriter builds a Rewrite func that routes calls through a proxy base
// carrying the original URL as a query parameter.
func ProxyRewriter(proxyBase string) func(string) string {
	return func(raw string) string {
		return fmt.Sprintf("%s?url=%s", proxyBase, url.QueryEscape(raw))
	}
}
