// Package crossref fetches CSL-JSON work metadata from the CrossRef
// API. Unlike the INSPIRE client it retries transient failures itself,
// with exponential backoff and a fixed per-attempt timeout.
package crossref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the CrossRef works API base URL.
	BaseURL = "https://api.crossref.org/works"

	// AttemptTimeout bounds each individual attempt.
	AttemptTimeout = 10 * time.Second

	// MaxRetries is how many times a failed attempt is retried.
	MaxRetries = 2

	// RateLimit is a politeness cap, requests per second.
	RateLimit = 5.0
)

// retryBaseDelay is the backoff unit: 1s, then 2s. Var so tests can
// avoid real sleeps.
var retryBaseDelay = time.Second

// Common errors returned by the CrossRef client.
var (
	// ErrNotFound indicates the DOI is unknown to CrossRef.
	ErrNotFound = errors.New("DOI not found in CrossRef")

	// ErrNetwork indicates the request failed after all retries.
	ErrNetwork = errors.New("network error communicating with CrossRef")

	// ErrInvalidResponse indicates an unparseable response.
	ErrInvalidResponse = errors.New("invalid response from CrossRef")
)

// Work is the subset of a CSL-JSON item the enrichment layer uses.
type Work struct {
	DOI            string     `json:"DOI"`
	Title          string     `json:"title"`
	ContainerTitle string     `json:"container-title"`
	Volume         string     `json:"volume"`
	Page           string     `json:"page"`
	Issued         DateParts  `json:"issued"`
	Authors        []CSLName  `json:"author"`
	ReferencedBy   int        `json:"is-referenced-by-count"`
	Type           string     `json:"type"`
}

// CSLName is one CSL-JSON contributor name.
type CSLName struct {
	Family string `json:"family"`
	Given  string `json:"given"`
}

// DateParts is the CSL-JSON date encoding: [[year, month, day]].
type DateParts struct {
	DateParts [][]int `json:"date-parts"`
}

// Year returns the year component, or 0 if absent.
func (d DateParts) Year() int {
	if len(d.DateParts) == 0 || len(d.DateParts[0]) == 0 {
		return 0
	}
	return d.DateParts[0][0]
}

// Client is a retrying CrossRef API client.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithMailto sets the contact address advertised in the User-Agent,
// which moves requests into CrossRef's polite pool.
func WithMailto(email string) ClientOption {
	return func(c *Client) {
		if email != "" {
			c.userAgent = fmt.Sprintf("citegraph (mailto:%s)", email)
		}
	}
}

// NewClient creates a CrossRef client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		userAgent:  "citegraph (mailto:maintainers@citegraph.dev)",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetWork fetches the CSL-JSON transform of a work by DOI, retrying up
// to MaxRetries times with 1s/2s backoff. Caller cancellation aborts
// both in-flight attempts and backoff waits, and propagates unchanged.
func (c *Client) GetWork(ctx context.Context, doi string) (*Work, error) {
	u := fmt.Sprintf("%s/%s/transform/application/vnd.citationstyles.csl+json",
		c.baseURL, url.PathEscape(doi))

	var lastErr error
	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * retryBaseDelay // 1s, 2s
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		work, err := c.attempt(ctx, u)
		if err == nil {
			return work, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrNotFound) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("%w: %v", ErrNetwork, lastErr)
}

func (c *Client) attempt(ctx context.Context, u string) (*Work, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Distinguish caller cancellation from this attempt timing out:
		// only the former must stop the retry loop.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var work Work
	if err := json.NewDecoder(resp.Body).Decode(&work); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &work, nil
}
