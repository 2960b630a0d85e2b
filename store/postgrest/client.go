/*
Package postgrest implements lookup.Backend over a PostgREST (Supabase) API.

PURPOSE:
  Queries hosted tables over HTTP with the anon key, the way the mobile
  scanner app talked to its hosted database.

REQUESTS:
  all:      GET {base}/rest/v1/{table}?select=*
  equals:   GET {base}/rest/v1/{table}?select=*&{field}=eq.{value}
  partial:  GET {base}/rest/v1/{table}?select=*&{field}=ilike.{pattern}
            (SQL % wildcards are sent as PostgREST *)

  Headers:  apikey: {key}, Authorization: Bearer {key}

ERRORS:
  Non-2xx responses become errors carrying the status and the backend's
  "message". Missing relations map to lookup.ErrUnknownTable. A client
  built without URL or key fails every call with lookup.ErrNotConnected.

THROTTLING:
  Token bucket (default 10 req/s, burst 5) so a scan burst cannot flood
  the backend. The HTTP timeout (default 10s) is owned here, not by the
  resolver.
*/
package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/warp/property-finder/lookup"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout           = 10 * time.Second
	DefaultRequestsPerSecond = 10.0
	DefaultBurst             = 5
)

// Client is a PostgREST-backed lookup.Backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	connected  bool
}

var _ lookup.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left as given.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit sets the sustained rate and burst. A non-positive rate
// disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// New creates a client for baseURL authenticated with apiKey. If either is
// empty the client is not connected and every call fails.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultBurst),
	}
	c.connected = c.baseURL != "" && c.apiKey != ""
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connected reports whether the client has credentials.
func (c *Client) Connected() bool {
	return c.connected
}

// SelectAll returns every row of table.
func (c *Client) SelectAll(ctx context.Context, table string) ([]lookup.Row, error) {
	return c.get(ctx, table, nil)
}

// SelectWhereEquals returns rows where field equals value.
func (c *Client) SelectWhereEquals(ctx context.Context, table, field string, value any) ([]lookup.Row, error) {
	s, ok := lookup.FormatValue(value)
	if !ok {
		return nil, goerr.New("unsupported filter value", goerr.V("table", table), goerr.V("field", field))
	}
	return c.get(ctx, table, url.Values{field: {"eq." + s}})
}

// SelectWherePartialMatch returns rows where field matches pattern, ignoring case.
func (c *Client) SelectWherePartialMatch(ctx context.Context, table, field, pattern string) ([]lookup.Row, error) {
	return c.get(ctx, table, url.Values{field: {"ilike." + starPattern(pattern)}})
}

// starPattern swaps unescaped % for PostgREST's * wildcard. Escaped
// characters pass through for Postgres to treat literally.
func starPattern(pattern string) string {
	var b strings.Builder
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			r = '*'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// TRANSPORT
// =============================================================================

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (c *Client) get(ctx context.Context, table string, filters url.Values) ([]lookup.Row, error) {
	if !c.connected {
		return nil, lookup.ErrNotConnected
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait", goerr.V("table", table))
	}

	query := url.Values{"select": {"*"}}
	for k, vs := range filters {
		query[k] = vs
	}
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, url.PathEscape(table), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build request", goerr.V("table", table))
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "request failed", goerr.V("table", table))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.statusError(resp, table)
	}

	var raw []map[string]any
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, goerr.Wrap(err, "failed to decode response", goerr.V("table", table))
	}

	rows := make([]lookup.Row, len(raw))
	for i, r := range raw {
		rows[i] = lookup.Row(r)
	}
	return rows, nil
}

func (c *Client) statusError(resp *http.Response, table string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	if isMissingRelation(resp.StatusCode, apiErr.Code) {
		return goerr.Wrap(lookup.ErrUnknownTable, apiErr.Message,
			goerr.V("table", table), goerr.V("status", resp.StatusCode), goerr.V("code", apiErr.Code))
	}
	return goerr.New(fmt.Sprintf("backend returned %d: %s", resp.StatusCode, apiErr.Message),
		goerr.V("table", table), goerr.V("status", resp.StatusCode), goerr.V("code", apiErr.Code))
}

// isMissingRelation reports the Postgres and PostgREST codes for an
// unknown table.
func isMissingRelation(status int, code string) bool {
	switch code {
	case "42P01", "PGRST205":
		return true
	}
	return status == http.StatusNotFound && code == ""
}
