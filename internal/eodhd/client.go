// Package eodhd implements the EODHD market-data client: one logical fetch
// per record kind, with bounded retry on transient failures. The client
// performs network I/O only; it knows nothing about storage or scheduling.
package eodhd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"marketsync/internal/domain"
	"marketsync/internal/util"
)

// minPlausibleBody is the minimal body length of a non-empty CSV response.
// A 200 with a shorter body carries no data rows (a header at most) and is
// reported as ErrEmptyResult, not as a failure.
const minPlausibleBody = 50

// ErrEmptyResult signals a successful response with no records for the
// requested range, e.g. a ticker that has never paid a dividend. Callers
// distinguish it from fetch failures with errors.Is.
var ErrEmptyResult = errors.New("empty result")

// StatusError is a non-200 response from the provider. Transient codes
// (429, 5xx) are retried; everything else fails immediately.
type StatusError struct {
	Code      int
	Transient bool
	Exhausted bool // true once the retry ceiling was reached
}

func (e *StatusError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("HTTP %d (max retries)", e.Code)
	}
	return fmt.Sprintf("HTTP %d", e.Code)
}

// transportError wraps a network-level failure (timeout, connection reset).
// Always retried.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// ClientOpts configures a Client.
type ClientOpts struct {
	Token      string
	BaseURL    string        // default https://eodhd.com/api
	Exchange   string        // ticker suffix, default US
	MaxRetries int           // total attempts for transient failures, default 3
	RetryDelay time.Duration // base backoff, grows linearly per attempt, default 2s
	Timeout    time.Duration // per-request timeout, default 10s
	RateLimit  int           // max requests per minute, 0 disables throttling
}

// Client fetches bars, splits, and dividends from the EODHD API.
type Client struct {
	token      string
	baseURL    string
	exchange   string
	maxRetries int
	retryDelay time.Duration
	limiter    *util.RateLimiter
	httpc      *http.Client
	log        *slog.Logger
}

// NewClient creates a Client from opts. The token is required; its absence
// is a configuration error reported here, once, at startup.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.Token == "" {
		return nil, errors.New("eodhd: api token is required")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = "https://eodhd.com/api"
	}
	if opts.Exchange == "" {
		opts.Exchange = "US"
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay == 0 {
		opts.RetryDelay = 2 * time.Second
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	c := &Client{
		token:      opts.Token,
		baseURL:    opts.BaseURL,
		exchange:   opts.Exchange,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		httpc:      &http.Client{Timeout: opts.Timeout},
		log:        slog.Default().With("component", "eodhd"),
	}
	if opts.RateLimit > 0 {
		c.limiter = util.NewRateLimiter(opts.RateLimit)
	}
	return c, nil
}

// Fetch performs one logical fetch for the given record kind and ticker.
// A zero from/to means unbounded (full history). Transient failures are
// retried up to the retry ceiling with linearly increasing backoff;
// permanent failures and empty results return immediately.
func (c *Client) Fetch(ctx context.Context, kind domain.RecordKind, symbol string, from, to time.Time) (string, error) {
	addr, err := c.endpoint(kind, symbol, from, to)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		payload, err := c.get(ctx, addr)
		if err == nil {
			return payload, nil
		}
		if errors.Is(err, ErrEmptyResult) {
			return "", err
		}
		if !retryable(err) {
			return "", err
		}

		lastErr = err
		if attempt < c.maxRetries {
			c.log.Debug("transient fetch failure, retrying",
				"symbol", symbol, "kind", string(kind), "attempt", attempt, "err", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(attempt)):
			}
		}
	}

	var serr *StatusError
	if errors.As(lastErr, &serr) {
		serr.Exhausted = true
		return "", serr
	}
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// get performs a single request and classifies the response.
func (c *Client) get(ctx context.Context, addr string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return "", &StatusError{Code: resp.StatusCode, Transient: transientCode(resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &transportError{err: err}
	}
	if len(body) < minPlausibleBody {
		return "", ErrEmptyResult
	}
	return string(body), nil
}

// endpoint builds the provider URL for one record kind and date range.
func (c *Client) endpoint(kind domain.RecordKind, symbol string, from, to time.Time) (string, error) {
	var path string
	switch kind {
	case domain.KindBars:
		path = "eod"
	case domain.KindSplits:
		path = "splits"
	case domain.KindDividends:
		path = "div"
	default:
		return "", fmt.Errorf("unknown record kind %q", kind)
	}

	q := url.Values{}
	q.Set("period", "d")
	q.Set("api_token", c.token)
	q.Set("fmt", "csv")
	if !from.IsZero() {
		q.Set("from", from.Format("2006-01-02"))
	}
	if !to.IsZero() {
		q.Set("to", to.Format("2006-01-02"))
	}

	return fmt.Sprintf("%s/%s/%s.%s?%s", c.baseURL, path, symbol, c.exchange, q.Encode()), nil
}

// retryable reports whether the error is worth another attempt.
func retryable(err error) bool {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr.Transient
	}
	var terr *transportError
	return errors.As(err, &terr)
}

// transientCode reports whether an HTTP status is expected to resolve on
// retry. 400/401/403/404 are permanent; anything else outside this set is
// also treated as permanent.
func transientCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
