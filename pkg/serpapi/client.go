// Package serpapi provides a client for the SerpApi web search API.
package serpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/torqueline/estimator/internal/resilience"
)

// Client defines the SerpApi search operations.
type Client interface {
	// Search performs a web search and returns organic and shopping results.
	Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error)
}

// SearchResponse is the parsed SerpApi response.
type SearchResponse struct {
	SearchMetadata  SearchMetadata   `json:"search_metadata"`
	OrganicResults  []OrganicResult  `json:"organic_results"`
	ShoppingResults []ShoppingResult `json:"shopping_results"`
	Error           string           `json:"error,omitempty"`
}

// SearchMetadata identifies the search on SerpApi's side.
type SearchMetadata struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// OrganicResult is a single web search hit.
type OrganicResult struct {
	Position      int    `json:"position"`
	Title         string `json:"title"`
	Link          string `json:"link"`
	DisplayedLink string `json:"displayed_link"`
	Snippet       string `json:"snippet"`
}

// ShoppingResult is a product listing hit with a price when Google
// could extract one.
type ShoppingResult struct {
	Position       int     `json:"position"`
	Title          string  `json:"title"`
	Link           string  `json:"link"`
	Source         string  `json:"source"`
	Price          string  `json:"price"`
	ExtractedPrice float64 `json:"extracted_price"`
	Snippet        string  `json:"snippet"`
}

// SearchOption configures a search request.
type SearchOption func(*searchOpts)

type searchOpts struct {
	siteFilter string
	num        int
}

// WithSiteFilter restricts search results to a specific domain.
func WithSiteFilter(domain string) SearchOption {
	return func(o *searchOpts) {
		o.siteFilter = domain
	}
}

// WithNum requests up to n results.
func WithNum(n int) SearchOption {
	return func(o *searchOpts) {
		o.num = n
	}
}

// Option configures the SerpApi client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithEngine sets the search engine parameter. Default: google.
func WithEngine(engine string) Option {
	return func(c *httpClient) {
		c.engine = engine
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit throttles outgoing searches to rps requests per second.
// Zero or negative disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	engine  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a new SerpApi client.
func NewClient(apiKey string, opts ...Option) Client {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("serpapi", "search")

	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://serpapi.com",
		engine:  "google",
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
		retry:   retry,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query string, opts ...SearchOption) (*SearchResponse, error) {
	so := &searchOpts{}
	for _, opt := range opts {
		opt(so)
	}

	q := query
	if so.siteFilter != "" {
		q += " site:" + so.siteFilter
	}

	params := url.Values{}
	params.Set("engine", c.engine)
	params.Set("q", q)
	params.Set("api_key", c.apiKey)
	if so.num > 0 {
		params.Set("num", strconv.Itoa(so.num))
	}
	reqURL := c.baseURL + "/search.json?" + params.Encode()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "serpapi: rate limit wait")
		}
	}

	result, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*SearchResponse, error) {
		return c.doSearch(ctx, reqURL)
	})
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: search request failed")
	}
	return result, nil
}

func (c *httpClient) doSearch(ctx context.Context, reqURL string) (*SearchResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, eris.Wrap(readErr, "serpapi: read response body")
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		hint := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, resilience.NewRateLimitError(eris.Errorf("serpapi: status 429: %s", string(body)), hint)
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(eris.Errorf("serpapi: status %d: %s", resp.StatusCode, string(body)), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "serpapi: unmarshal response")
	}

	// SerpApi reports query-level failures in the body with HTTP 200.
	// A query with no hits is empty results, not an error.
	if result.Error != "" {
		if strings.Contains(strings.ToLower(result.Error), "returned any results") {
			return &SearchResponse{SearchMetadata: result.SearchMetadata}, nil
		}
		return nil, eris.Errorf("serpapi: %s", result.Error)
	}

	return &result, nil
}

// parseRetryAfter handles both delta-seconds and HTTP-date forms.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
