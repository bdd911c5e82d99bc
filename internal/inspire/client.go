// Package inspire is a rate-limited client for the INSPIRE-HEP
// literature API. Every outbound call is admitted through a shared
// sliding-window gate; the client itself never retries (admission is
// its only resilience concern, retry policy belongs to callers).
package inspire

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/citegraph/citegraph/internal/ratelimit"
)

const (
	// BaseURL is the INSPIRE-HEP API base URL.
	BaseURL = "https://inspirehep.net/api"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// RecordFields are the fields requested for record lookups feeding
	// the citation graph.
	RecordFields = "control_number,titles,authors.full_name,author_count,earliest_date,preprint_date,citation_count,citation_count_without_self_citations,publication_info,arxiv_eprints,dois,document_type"

	// ReferenceFields requests only the embedded bibliography.
	ReferenceFields = "control_number,references"

	// CountFields is the minimal field set for count-only queries.
	CountFields = "control_number"

	// MaxSearchPageSize is the largest page INSPIRE serves per search
	// request.
	MaxSearchPageSize = 1000
)

// Client is a rate-limited HTTP client for the INSPIRE-HEP API.
type Client struct {
	httpClient *http.Client
	window     *ratelimit.Window
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

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates an INSPIRE client sharing the given admission
// window. All clients talking to the same quota must share one window.
func NewClient(window *ratelimit.Window, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		window:     window,
		baseURL:    BaseURL,
		userAgent:  "citegraph",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Window exposes the shared admission gate for observability.
func (c *Client) Window() *ratelimit.Window { return c.window }

// checkHTTPErrors returns an error if the response indicates a problem.
func checkHTTPErrors(resp *http.Response) error {
	switch {
	case resp.StatusCode == 404:
		return ErrNotFound
	case resp.StatusCode == 429:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return nil
}

// getJSON admits the call through the window, performs it, and decodes
// the response into out. Caller cancellation passes through unchanged.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	if err := c.window.Acquire(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if IsCancelled(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// GetRecord fetches one literature record with the graph field set.
func (c *Client) GetRecord(ctx context.Context, recid string) (*Record, error) {
	u := fmt.Sprintf("%s/literature/%s?fields=%s", c.baseURL, url.PathEscape(recid), RecordFields)

	var rec Record
	if err := c.getJSON(ctx, u, &rec); err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: record %s", ErrNotFound, recid)
		}
		return nil, err
	}
	if rec.Recid() == "" {
		return nil, fmt.Errorf("%w: record %s has no identifier", ErrInvalidResponse, recid)
	}
	return &rec, nil
}

// GetReferences fetches a record's full embedded bibliography. INSPIRE
// returns the entire reference list in one call, so no pagination is
// needed on this side.
func (c *Client) GetReferences(ctx context.Context, recid string) ([]RawReference, error) {
	u := fmt.Sprintf("%s/literature/%s?fields=%s", c.baseURL, url.PathEscape(recid), ReferenceFields)

	var rec Record
	if err := c.getJSON(ctx, u, &rec); err != nil {
		return nil, err
	}
	return rec.Metadata.References, nil
}

// SearchCitedBy fetches one page of records citing recid, using the
// refersto query. Page numbering is 1-based. The returned total is the
// unpaginated match count.
func (c *Client) SearchCitedBy(ctx context.Context, recid string, page, size int, sort string) (*SearchHits, error) {
	if size <= 0 {
		size = 25
	}
	if size > MaxSearchPageSize {
		size = MaxSearchPageSize
	}
	if page <= 0 {
		page = 1
	}

	params := url.Values{
		"q":      {"refersto:recid:" + recid},
		"size":   {strconv.Itoa(size)},
		"page":   {strconv.Itoa(page)},
		"fields": {RecordFields},
	}
	if sort != "" {
		params.Set("sort", sort)
	}

	var sr SearchResponse
	if err := c.getJSON(ctx, c.baseURL+"/literature?"+params.Encode(), &sr); err != nil {
		return nil, err
	}
	return &sr.Hits, nil
}

// SearchRecids fetches multiple records in one boolean-OR query. The
// caller is responsible for keeping len(recids) within query limits.
func (c *Client) SearchRecids(ctx context.Context, recids []string) ([]Record, error) {
	if len(recids) == 0 {
		return nil, nil
	}

	terms := make([]string, len(recids))
	for i, r := range recids {
		terms[i] = "recid:" + r
	}
	params := url.Values{
		"q":      {strings.Join(terms, " OR ")},
		"size":   {strconv.Itoa(len(recids))},
		"fields": {RecordFields},
	}

	var sr SearchResponse
	if err := c.getJSON(ctx, c.baseURL+"/literature?"+params.Encode(), &sr); err != nil {
		return nil, err
	}
	return sr.Hits.Hits, nil
}

// CitedByUnionTotal returns the deduplicated count of records citing
// any of the given seeds, via a single boolean-OR refersto query.
func (c *Client) CitedByUnionTotal(ctx context.Context, recids []string) (int, error) {
	if len(recids) == 0 {
		return 0, nil
	}

	terms := make([]string, len(recids))
	for i, r := range recids {
		terms[i] = "refersto:recid:" + r
	}
	params := url.Values{
		"q":      {strings.Join(terms, " OR ")},
		"size":   {"1"},
		"fields": {CountFields},
	}

	var sr SearchResponse
	if err := c.getJSON(ctx, c.baseURL+"/literature?"+params.Encode(), &sr); err != nil {
		return 0, err
	}
	return sr.Hits.Total, nil
}
