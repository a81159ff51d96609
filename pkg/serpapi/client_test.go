package serpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/torqueline/estimator/internal/resilience"
)

// fastRetry keeps retry sleeps out of test runtime.
func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	}
}

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	want := SearchResponse{
		SearchMetadata: SearchMetadata{ID: "abc123", Status: "Success"},
		OrganicResults: []OrganicResult{
			{
				Position: 1,
				Title:    "Front Brake Pads - RockAuto",
				Link:     "https://www.rockauto.com/en/catalog/toyota,2014,camry,brakepads",
				Snippet:  "Premium ceramic pads $45.99 in stock",
			},
		},
		ShoppingResults: []ShoppingResult{
			{
				Position:       1,
				Title:          "Brake Pad Set",
				Link:           "https://www.autozone.com/p/12345",
				Source:         "AutoZone",
				Price:          "$52.99",
				ExtractedPrice: 52.99,
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/search.json", r.URL.Path)
		assert.Equal(t, "google", r.URL.Query().Get("engine"))
		assert.Equal(t, "2014 camry brake pads", r.URL.Query().Get("q"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(want)
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "2014 camry brake pads")

	require.NoError(t, err)
	require.Len(t, got.OrganicResults, 1)
	assert.Equal(t, want.OrganicResults[0].Link, got.OrganicResults[0].Link)
	require.Len(t, got.ShoppingResults, 1)
	assert.InDelta(t, 52.99, got.ShoppingResults[0].ExtractedPrice, 0.001)
}

func TestSearch_WithSiteFilterAndNum(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "brake pads site:rockauto.com", r.URL.Query().Get("q"))
		assert.Equal(t, "20", r.URL.Query().Get("num"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "brake pads",
		WithSiteFilter("rockauto.com"), WithNum(20))

	require.NoError(t, err)
}

func TestSearch_NoResultsBodyError_IsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"search_metadata":{"id":"x","status":"Success"},"error":"Google hasn't returned any results for this query."}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "xyzzy quux")

	require.NoError(t, err)
	assert.Empty(t, got.OrganicResults)
	assert.Empty(t, got.ShoppingResults)
}

func TestSearch_BodyError_Fails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"error":"Invalid API key. Your searches will not be counted."}`))
	}))
	defer srv.Close()

	client := NewClient("bad-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "brake pads")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid API key")
}

func TestSearch_RetryOn429(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)
		if n <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limit"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{
			OrganicResults: []OrganicResult{{Title: "Result", Link: "https://example.com"}},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	got, err := client.Search(context.Background(), "brake pads")

	require.NoError(t, err)
	assert.Len(t, got.OrganicResults, 1)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSearch_RetryHonorsRetryAfterHeader(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{})
	}))
	defer srv.Close()

	retry := fastRetry()
	retry.MaxBackoff = 2 * time.Second

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(retry))
	start := time.Now()
	_, err := client.Search(context.Background(), "brake pads")

	require.NoError(t, err)
	assert.Equal(t, int32(2), attempts.Load())
	// The 1ms backoff must have been stretched to the server's 1s hint.
	assert.GreaterOrEqual(t, time.Since(start), 1*time.Second)
}

func TestSearch_RetryExhausted(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`service unavailable`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := client.Search(context.Background(), "brake pads")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(3), attempts.Load())
}

func TestSearch_PermanentStatus_NoRetry(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"unauthorized"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := client.Search(context.Background(), "brake pads")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "brake pads")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestSearch_ContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	client := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := client.Search(ctx, "brake pads")

	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	t.Parallel()
	c := NewClient("my-key")
	hc := c.(*httpClient)
	assert.Equal(t, "my-key", hc.apiKey)
	assert.Equal(t, "https://serpapi.com", hc.baseURL)
	assert.Equal(t, "google", hc.engine)
	assert.NotNil(t, hc.limiter)
	assert.NotNil(t, hc.http)
	assert.Equal(t, 30*time.Second, hc.http.Timeout)
}

func TestWithEngine(t *testing.T) {
	t.Parallel()
	c := NewClient("my-key", WithEngine("bing"))
	hc := c.(*httpClient)
	assert.Equal(t, "bing", hc.engine)
}

func TestWithRateLimit_Disable(t *testing.T) {
	t.Parallel()
	c := NewClient("my-key", WithRateLimit(0))
	hc := c.(*httpClient)
	assert.Nil(t, hc.limiter)
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	// HTTP-date in the past yields no hint.
	assert.Equal(t, time.Duration(0), parseRetryAfter(time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)))
	// HTTP-date in the future yields a positive hint.
	assert.Greater(t, parseRetryAfter(time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)), 50*time.Second)
}
