package eodhd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"marketsync/internal/domain"
)

const barsBody = `Date,Open,High,Low,Close,Adjusted_close,Volume
2024-01-02,185.0,186.5,184.0,185.5,185.5,50000000
2024-01-03,185.5,187.0,185.0,186.0,186.0,45000000
`

// newTestClient returns a Client pointed at the test server with zero
// backoff so retry tests run instantly.
func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(ClientOpts{
		Token:      "test-token",
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RetryDelay: time.Nanosecond,
		Timeout:    5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(ClientOpts{}); err == nil {
		t.Fatal("NewClient should fail without a token")
	}
}

func TestFetchSuccess(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(barsBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	payload, err := c.Fetch(context.Background(), domain.KindBars, "AAPL", time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if payload != barsBody {
		t.Errorf("payload mismatch:\n  got  %q\n  want %q", payload, barsBody)
	}
	if gotPath != "/eod/AAPL.US" {
		t.Errorf("path = %q, want /eod/AAPL.US", gotPath)
	}
	for _, want := range []string{"api_token=test-token", "fmt=csv", "period=d"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query %q missing %q", gotQuery, want)
		}
	}
	if strings.Contains(gotQuery, "from=") || strings.Contains(gotQuery, "to=") {
		t.Errorf("unbounded fetch should not set date range: %q", gotQuery)
	}
}

func TestFetchDateRange(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(barsBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	if _, err := c.Fetch(context.Background(), domain.KindBars, "AAPL", from, to); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !strings.Contains(gotQuery, "from=2024-01-02") {
		t.Errorf("query %q missing from=2024-01-02", gotQuery)
	}
	if !strings.Contains(gotQuery, "to=2024-02-10") {
		t.Errorf("query %q missing to=2024-02-10", gotQuery)
	}
}

func TestFetchKindPaths(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(barsBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	cases := []struct {
		kind domain.RecordKind
		want string
	}{
		{domain.KindBars, "/eod/MSFT.US"},
		{domain.KindSplits, "/splits/MSFT.US"},
		{domain.KindDividends, "/div/MSFT.US"},
	}
	for _, tc := range cases {
		if _, err := c.Fetch(context.Background(), tc.kind, "MSFT", time.Time{}, time.Time{}); err != nil {
			t.Fatalf("Fetch %s: %v", tc.kind, err)
		}
		if gotPath != tc.want {
			t.Errorf("kind %s path = %q, want %q", tc.kind, gotPath, tc.want)
		}
	}
}

func TestFetchRetriesTransientThenSucceeds(t *testing.T) {
	// ceiling-1 transient failures, then success.
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(barsBody))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	if _, err := c.Fetch(context.Background(), domain.KindBars, "AAPL", time.Time{}, time.Time{}); err != nil {
		t.Fatalf("Fetch should succeed on the final attempt: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestFetchExhaustsRetries(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Fetch(context.Background(), domain.KindBars, "AAPL", time.Time{}, time.Time{})
	if err == nil {
		t.Fatal("Fetch should fail after exhausting retries")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("error %v is not a StatusError", err)
	}
	if !serr.Transient || !serr.Exhausted {
		t.Errorf("StatusError = %+v, want transient and exhausted", serr)
	}
	if !strings.Contains(err.Error(), "max retries") {
		t.Errorf("error %q should mention max retries", err)
	}
}

func TestFetchPermanentNoRetry(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Fetch(context.Background(), domain.KindBars, "BOGUS", time.Time{}, time.Time{})
	if err == nil {
		t.Fatal("Fetch should fail on 404")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on permanent failure)", attempts)
	}

	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("error %v is not a StatusError", err)
	}
	if serr.Transient {
		t.Error("404 should be classified permanent")
	}
}

func TestFetchEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Date,Stock Splits\n")) // under 50 bytes
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Fetch(context.Background(), domain.KindSplits, "AAPL", time.Time{}, time.Time{})
	if !errors.Is(err, ErrEmptyResult) {
		t.Fatalf("error = %v, want ErrEmptyResult", err)
	}
}

func TestFetchContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(ClientOpts{
		Token:      "test-token",
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RetryDelay: time.Hour, // would hang without cancellation
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.Fetch(ctx, domain.KindBars, "AAPL", time.Time{}, time.Time{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want context.DeadlineExceeded", err)
	}
}
