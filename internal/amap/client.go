// Package amap is a client for the Amap (高德) place search web service. Besides
// the single-query searches it runs the fixed multi-query plans used to find
// business areas and everyday POIs around a point.
package amap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bizarea/internal/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://restapi.amap.com/v3"

	// DefaultRateLimit is requests per second, below the free-tier QPS quota.
	DefaultRateLimit = 20

	defaultAroundRadius       = 2000
	defaultOffset             = 20
	defaultPage               = 1
	defaultCity               = "全国"
	defaultBusinessAreaRadius = 3000
	defaultNearbyPOIRadius    = 1000
	businessAreaOffset        = 10
	nearbyPOIOffset           = 15
)

// Client is an Amap place search client.
type Client struct {
	baseURL       string
	apiKey        string
	transport     Transport
	httpClient    *http.Client
	timeout       time.Duration
	limiter       *rate.Limiter
	defaultRadius int
	defaultOffset int
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTransport replaces the default JSONP transport.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithHTTPClient sets the HTTP client used by the default transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-call timeout of the default transport.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithDefaults overrides the radius and page size used when a query leaves them unset.
func WithDefaults(radius, pageSize int) ClientOption {
	return func(c *Client) {
		if radius > 0 {
			c.defaultRadius = radius
		}
		if pageSize > 0 {
			c.defaultOffset = pageSize
		}
	}
}

// NewClient creates a new Amap client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:       DefaultBaseURL,
		apiKey:        apiKey,
		timeout:       DefaultTimeout,
		limiter:       rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		defaultRadius: defaultAroundRadius,
		defaultOffset: defaultOffset,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewJSONPTransport(c.httpClient, c.timeout)
	}

	return c
}

// SearchAround searches places around q.Location.
func (c *Client) SearchAround(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if q.Location.IsZero() {
		return nil, &SearchError{Message: msgSearchAround, cause: ErrMissingLocation}
	}

	params := c.pageParams(q)
	params.Set("location", q.Location.String())
	params.Set("radius", strconv.Itoa(orDefault(q.Radius, c.defaultRadius)))
	if q.Keywords != "" {
		params.Set("keywords", q.Keywords)
	}
	if q.Types != "" {
		params.Set("types", q.Types)
	}

	result, err := c.search(ctx, "/place/around", params)
	if err != nil {
		log.Error().Err(err).
			Str("location", q.Location.String()).
			Str("keywords", q.Keywords).
			Str("types", q.Types).
			Msg("Amap around search failed")
		return nil, &SearchError{Message: msgSearchAround, cause: err}
	}
	return result, nil
}

// SearchText searches places by keyword within a city, nationwide when no city is given.
func (c *Client) SearchText(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if q.Keywords == "" && q.Types == "" {
		return nil, &SearchError{Message: msgSearchText, cause: ErrMissingKeywords}
	}

	params := c.pageParams(q)
	params.Set("keywords", q.Keywords)
	city := q.City
	if city == "" {
		city = defaultCity
	}
	params.Set("city", city)
	if q.Types != "" {
		params.Set("types", q.Types)
	}

	result, err := c.search(ctx, "/place/text", params)
	if err != nil {
		log.Error().Err(err).
			Str("keywords", q.Keywords).
			Str("city", city).
			Msg("Amap text search failed")
		return nil, &SearchError{Message: msgSearchText, cause: err}
	}
	return result, nil
}

// SearchBusinessAreas looks for commercial districts around center using a
// fixed set of keyword and type searches. Failed searches are skipped, so the
// result holds whatever the others found and is empty if all of them failed.
func (c *Client) SearchBusinessAreas(ctx context.Context, center Location, radius int) []Place {
	if radius <= 0 {
		radius = defaultBusinessAreaRadius
	}

	var collected []RawPlace
	for _, keyword := range businessAreaKeywords[:businessAreaKeywordLimit] {
		collected = c.collect(ctx, "business_areas", collected, SearchQuery{
			Location: center,
			Keywords: keyword,
			Radius:   radius,
			Offset:   businessAreaOffset,
		})
	}
	for _, typeCode := range businessAreaTypes {
		collected = c.collect(ctx, "business_areas", collected, SearchQuery{
			Location: center,
			Types:    typeCode,
			Radius:   radius,
			Offset:   businessAreaOffset,
		})
	}

	return FormatBusinessAreas(Deduplicate(collected))
}

// SearchNearbyPois collects dining, shopping, life-service, entertainment and
// lodging places around center. Like SearchBusinessAreas it never fails.
func (c *Client) SearchNearbyPois(ctx context.Context, center Location, radius int) []Place {
	if radius <= 0 {
		radius = defaultNearbyPOIRadius
	}

	var collected []RawPlace
	for _, typeCode := range nearbyPOITypes {
		collected = c.collect(ctx, "nearby_pois", collected, SearchQuery{
			Location: center,
			Types:    typeCode,
			Radius:   radius,
			Offset:   nearbyPOIOffset,
		})
	}

	return FormatPOIs(Deduplicate(collected))
}

// collect runs one sub-query of an aggregate search and appends its places.
func (c *Client) collect(ctx context.Context, operation string, acc []RawPlace, q SearchQuery) []RawPlace {
	result, err := c.SearchAround(ctx, q)
	if err != nil {
		metrics.AmapSubqueryFailuresTotal.WithLabelValues(operation).Inc()
		log.Warn().Err(err).
			Str("operation", operation).
			Str("keywords", q.Keywords).
			Str("types", q.Types).
			Msg("Skipping failed sub-query")
		return acc
	}
	return append(acc, result.Places...)
}

func (c *Client) pageParams(q SearchQuery) url.Values {
	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("output", "JSON")
	params.Set("offset", strconv.Itoa(orDefault(q.Offset, c.defaultOffset)))
	params.Set("page", strconv.Itoa(orDefault(q.Page, defaultPage)))
	params.Set("extensions", "all")
	return params
}

// search waits for the rate limiter, performs the call and processes the envelope.
func (c *Client) search(ctx context.Context, path string, params url.Values) (*SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	raw, err := c.transport.Fetch(ctx, c.baseURL+path+"?"+params.Encode())
	metrics.AmapRequestDuration.WithLabelValues(path).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AmapRequestsTotal.WithLabelValues(path, "transport_error").Inc()
		return nil, err
	}

	result, err := processSearchResult(raw)
	if err != nil {
		metrics.AmapRequestsTotal.WithLabelValues(path, "provider_error").Inc()
		return nil, err
	}

	metrics.AmapRequestsTotal.WithLabelValues(path, "ok").Inc()
	log.Debug().
		Str("endpoint", path).
		Int("count", result.Count).
		Int("returned", len(result.Places)).
		Dur("duration", time.Since(start)).
		Msg("Amap search completed")
	return result, nil
}

func processSearchResult(raw json.RawMessage) (*SearchResult, error) {
	var resp providerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &ProviderError{Info: defaultProviderInfo}
	}

	if resp.Status != "1" {
		info := string(resp.Info)
		if info == "" {
			info = defaultProviderInfo
		}
		return nil, &ProviderError{Info: info}
	}

	result := &SearchResult{
		Places: resp.POIs,
		Info:   string(resp.Info),
	}
	if result.Places == nil {
		result.Places = []RawPlace{}
	}
	if n, err := strconv.Atoi(string(resp.Count)); err == nil {
		result.Count = n
	}
	if resp.Suggestion != nil {
		result.Suggestion = *resp.Suggestion
	}
	return result, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
