// Package fetch performs HTTP retrieval with retry/backoff and content-type
// sniffing. It is the only layer in the pipeline that talks to the network
// and the only layer allowed to retry.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultUserAgent identifies the client to origins that reject anonymous
// requests. EDGAR requires a contact address in the UA string.
const DefaultUserAgent = "FinResearch/1.0 (research@finresearch.example.com)"

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxAttempts   = 3
	defaultBaseDelay     = 1 * time.Second
	defaultBackoffFactor = 2.0
	sniffWindow          = 1024
)

// Status classifies the outcome of a fetch.
type Status string

const (
	StatusSuccess      Status = "success"
	StatusHTTPError    Status = "http_error"
	StatusNetworkError Status = "network_error"
)

// Result is the outcome of a single Fetch call. Callers must branch on
// Status; Body is only populated on success.
type Result struct {
	Status      Status
	StatusCode  int
	ContentType string
	Body        []byte
	FinalURL    string
	Err         error
}

// OK reports whether the fetch produced a payload.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Client is a retrying HTTP GET client. Safe for concurrent use.
type Client struct {
	http          *http.Client
	userAgent     string
	maxAttempts   int
	baseDelay     time.Duration
	backoffFactor float64
	jitter        bool
	logger        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent overrides the identity header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTimeout bounds each individual request attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithMaxAttempts caps the number of tries for transient failures.
func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the first backoff interval.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithoutJitter makes backoff intervals deterministic.
func WithoutJitter() Option {
	return func(c *Client) { c.jitter = false }
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient substitutes the underlying transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient builds a Client with EDGAR-friendly defaults: 3 attempts,
// 1s base delay doubling per attempt, jittered.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:          &http.Client{Timeout: defaultTimeout},
		userAgent:     DefaultUserAgent,
		maxAttempts:   defaultMaxAttempts,
		baseDelay:     defaultBaseDelay,
		backoffFactor: defaultBackoffFactor,
		jitter:        true,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs an HTTP GET with retry on transient failures: transport
// errors, 5xx and 429 responses. Other 4xx responses are permanent and
// returned immediately. Fetch never panics and never returns a Go error;
// the Result's Status and Err fields carry the failure.
func (c *Client) Fetch(ctx context.Context, rawURL string) Result {
	var last Result
	delay := c.baseDelay

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if !c.sleep(ctx, delay) {
				last.Status = StatusNetworkError
				last.Err = ctx.Err()
				return last
			}
			delay = time.Duration(float64(delay) * c.backoffFactor)
		}

		res, retryable := c.attempt(ctx, rawURL)
		if res.OK() || !retryable {
			return res
		}
		c.logger.Debug().
			Str("url", rawURL).
			Int("attempt", attempt).
			Int("status_code", res.StatusCode).
			Err(res.Err).
			Msg("fetch attempt failed, will retry")
		last = res
	}
	return last
}

// attempt runs one GET and reports whether its failure is retryable.
func (c *Client) attempt(ctx context.Context, rawURL string) (Result, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{
			Status:   StatusNetworkError,
			FinalURL: rawURL,
			Err:      fmt.Errorf("build request: %w", err),
		}, false
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf,application/json;q=0.9,*/*;q=0.8")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{
			Status:   StatusNetworkError,
			FinalURL: rawURL,
			Err:      err,
		}, true
	}
	defer resp.Body.Close()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode != http.StatusOK {
		res := Result{
			Status:     StatusHTTPError,
			StatusCode: resp.StatusCode,
			FinalURL:   finalURL,
			Err:        fmt.Errorf("HTTP %d for %s", resp.StatusCode, rawURL),
		}
		return res, retryableStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{
			Status:   StatusNetworkError,
			FinalURL: finalURL,
			Err:      fmt.Errorf("read body: %w", err),
		}, true
	}

	return Result{
		Status:      StatusSuccess,
		StatusCode:  resp.StatusCode,
		ContentType: DetectContentType(resp.Header.Get("Content-Type"), body),
		Body:        body,
		FinalURL:    finalURL,
	}, false
}

// sleep waits for the backoff interval, returning false when the context
// is cancelled first.
func (c *Client) sleep(ctx context.Context, d time.Duration) bool {
	if c.jitter {
		d += time.Duration(rand.Int63n(int64(d)/4 + 1))
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func retryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

// DetectContentType normalizes the response header value and, when the
// header is missing or generic, sniffs the payload for a PDF magic number
// or HTML markers.
func DetectContentType(header string, body []byte) string {
	ct := normalizeContentType(header)
	if ct != "" && ct != "application/octet-stream" && ct != "binary/octet-stream" {
		return ct
	}
	return sniffContentType(body)
}

func normalizeContentType(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if i := strings.Index(v, ";"); i >= 0 {
		v = strings.TrimSpace(v[:i])
	}
	return v
}

func sniffContentType(body []byte) string {
	if bytes.HasPrefix(body, []byte("%PDF-")) {
		return "application/pdf"
	}
	window := body
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}
	lower := bytes.ToLower(window)
	if bytes.Contains(lower, []byte("<html")) || bytes.Contains(lower, []byte("<!doctype")) {
		return "text/html"
	}
	return "application/octet-stream"
}
