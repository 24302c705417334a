package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"marketsync/internal/domain"
)

func TestBatchManyTickers(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.fetch.setFallback(barsPayload("2024-01-02", "2024-01-03"), nil)

	var tickers []string
	for i := 0; i < 100; i++ {
		tickers = append(tickers, fmt.Sprintf("SYM%03d", i))
	}
	// A couple of deterministic failures mixed in.
	fx.fetch.set(domain.KindBars, "SYM007", "", fmt.Errorf("boom"))
	fx.fetch.set(domain.KindBars, "SYM042", "", fmt.Errorf("boom"))

	b := NewBatch(fx.syncer, 20)
	sum := b.Run(context.Background(), tickers)

	if got := sum.Total(); got != 100 {
		t.Fatalf("Total = %d, want one outcome per ticker", got)
	}
	if len(sum.Outcomes) != 100 {
		t.Fatalf("Outcomes = %d, want 100", len(sum.Outcomes))
	}
	if sum.Downloaded != 98 {
		t.Errorf("Downloaded = %d, want 98", sum.Downloaded)
	}
	if len(sum.FailedSymbols) != 2 {
		t.Errorf("FailedSymbols = %v, want the two seeded failures", sum.FailedSymbols)
	}

	// Outcomes keep the input order regardless of completion order.
	for i, o := range sum.Outcomes {
		if want := fmt.Sprintf("SYM%03d", i); o.Symbol != want {
			t.Fatalf("outcome[%d] = %s, want %s", i, o.Symbol, want)
		}
	}
	for _, sym := range []string{"SYM000", "SYM055", "SYM099"} {
		if !fx.store.Exists(sym) {
			t.Errorf("dataset missing for %s", sym)
		}
	}
}

func TestBatchSequentialWhenSingleWorker(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.fetch.setFallback(barsPayload("2024-01-02"), nil)

	tickers := []string{"CCC", "AAA", "BBB"}
	b := NewBatch(fx.syncer, 1)
	sum := b.Run(context.Background(), tickers)

	if sum.Downloaded != 3 {
		t.Fatalf("Downloaded = %d, want 3", sum.Downloaded)
	}
	// With one worker the fetch order is exactly the input order.
	fx.fetch.mu.Lock()
	defer fx.fetch.mu.Unlock()
	for i, want := range tickers {
		if fx.fetch.calls[i].symbol != want {
			t.Fatalf("fetch[%d] = %s, want %s", i, fx.fetch.calls[i].symbol, want)
		}
	}
}

func TestBatchCancellation(t *testing.T) {
	fx := newFixture(t, Options{})
	fx.fetch.setFallback(barsPayload("2024-01-02"), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBatch(fx.syncer, 4)
	sum := b.Run(ctx, []string{"AAA", "BBB", "CCC", "DDD"})

	// Every ticker still gets a terminal outcome.
	if got := sum.Total(); got != 4 {
		t.Fatalf("Total = %d, want 4", got)
	}
	if len(sum.FailedSymbols) != 4 {
		t.Errorf("FailedSymbols = %v, want all four cancelled", sum.FailedSymbols)
	}
}

func TestNewBatchClampsWorkers(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{0, DefaultWorkers},
		{-5, DefaultWorkers},
		{1, 1},
		{30, 30},
		{1000, MaxWorkers},
	}
	for _, tc := range cases {
		if got := NewBatch(nil, tc.in).workers; got != tc.want {
			t.Errorf("NewBatch(workers=%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func writeTickerFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tickers.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing ticker file: %v", err)
	}
	return path
}

func TestReadTickerFile(t *testing.T) {
	path := writeTickerFile(t, "aapl\n\n# comment line\n MSFT \ngoogl\n")

	got, err := ReadTickerFile(path)
	if err != nil {
		t.Fatalf("ReadTickerFile: %v", err)
	}
	want := []string{"AAPL", "MSFT", "GOOGL"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ticker[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReadTickerFileEmpty(t *testing.T) {
	path := writeTickerFile(t, "# only comments\n\n")
	if _, err := ReadTickerFile(path); err == nil {
		t.Fatal("expected error for a ticker file with no symbols")
	}
}

func TestReadTickerFileMissing(t *testing.T) {
	if _, err := ReadTickerFile("/nonexistent/tickers.txt"); err == nil {
		t.Fatal("expected error for a missing ticker file")
	}
}
