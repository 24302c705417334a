package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"marketsync/internal/audit"
	"marketsync/internal/config"
	"marketsync/internal/domain"
	"marketsync/internal/eodhd"
	"marketsync/internal/store"
	"marketsync/internal/syncer"
)

var (
	syncTicker      string
	syncTickersFile string
	syncSplits      bool
	syncDividends   bool
	syncWorkers     int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize local datasets with EODHD",
	Long: `Synchronize the local market data library against the EODHD API.

Tickers with no local history get a full backfill; tickers with an
existing dataset get an incremental update from their last recorded
date. Every run writes an audit log and a row in the run history.

Examples:
  # Sync every ticker listed in the configured ticker file
  marketsync sync

  # Sync a single ticker, including its split and dividend history
  marketsync sync --ticker AAPL --splits --dividends

  # Sync a custom list with 50 concurrent downloads
  marketsync sync --tickers-file watchlist.txt --workers 50`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncTicker, "ticker", "", "sync a single ticker instead of the ticker file")
	syncCmd.Flags().StringVar(&syncTickersFile, "tickers-file", "", "ticker list file (default from config)")
	syncCmd.Flags().BoolVar(&syncSplits, "splits", false, "also sync split history")
	syncCmd.Flags().BoolVar(&syncDividends, "dividends", false, "also sync dividend history")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "concurrent downloads (default from config)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncTicker != "" && syncTickersFile != "" {
		return fmt.Errorf("cannot specify both --ticker and --tickers-file")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	tickers, workers, err := resolveTickers(cfg)
	if err != nil {
		return err
	}

	client, err := eodhd.NewClient(eodhd.ClientOpts{
		Token:      cfg.EODHD.APIToken,
		BaseURL:    cfg.EODHD.BaseURL,
		Exchange:   cfg.EODHD.Exchange,
		MaxRetries: cfg.Sync.MaxRetries,
		RetryDelay: cfg.Sync.RetryDelay(),
		Timeout:    cfg.Sync.Timeout(),
		RateLimit:  cfg.Sync.RateLimit,
	})
	if err != nil {
		return err
	}

	cs, err := store.NewCSVStore(cfg.Storage.BarsDir, cfg.Storage.SplitsDir, cfg.Storage.DividendsDir)
	if err != nil {
		return fmt.Errorf("preparing data directories: %w", err)
	}

	al, err := audit.New(cfg.Storage.LogDir)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer al.Close()

	opts := syncer.Options{IncludeSplits: syncSplits, IncludeDividends: syncDividends}
	batch := syncer.NewBatch(syncer.New(client, cs, cs, al, opts), workers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Syncing %d ticker(s) with %d worker(s)\n", len(tickers), workers)
	fmt.Printf("Bars: %s\n", cfg.Storage.BarsDir)
	if syncSplits {
		fmt.Printf("Splits: %s\n", cfg.Storage.SplitsDir)
	}
	if syncDividends {
		fmt.Printf("Dividends: %s\n", cfg.Storage.DividendsDir)
	}
	fmt.Printf("Audit log: %s\n\n", al.Path())

	started := time.Now()
	summary := batch.Run(ctx, tickers)
	finished := time.Now()

	printSummary(summary, finished.Sub(started))

	saveRunRecord(cfg, al, tickers, summary, started, finished)

	if failed := summary.Failed(); failed > 0 {
		return fmt.Errorf("%d ticker(s) failed; see %s", failed, al.Path())
	}
	return nil
}

// resolveTickers picks the ticker list and the effective concurrency.
// Single-ticker mode is always sequential.
func resolveTickers(cfg *config.Config) ([]string, int, error) {
	if syncTicker != "" {
		return []string{syncTicker}, 1, nil
	}

	path := syncTickersFile
	if path == "" {
		path = cfg.Sync.TickersFile
	}
	tickers, err := syncer.ReadTickerFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("reading ticker list: %w", err)
	}

	workers := syncWorkers
	if workers <= 0 {
		workers = cfg.Sync.MaxWorkers
	}
	return tickers, workers, nil
}

func printSummary(s domain.Summary, elapsed time.Duration) {
	fmt.Println("==================================================")
	fmt.Println("Sync complete")
	fmt.Printf("  Downloaded:  %d\n", s.Downloaded)
	fmt.Printf("  Updated:     %d\n", s.Updated)
	fmt.Printf("  Up to date:  %d\n", s.UpToDate)
	fmt.Printf("  No new data: %d\n", s.NoNewData)
	fmt.Printf("  Failed:      %d\n", s.Failed())
	fmt.Printf("  Elapsed:     %s\n", elapsed.Round(time.Second))

	if len(s.FailedSymbols) > 0 {
		fmt.Println("\nFailed tickers:")
		shown := s.FailedSymbols
		if len(shown) > 20 {
			shown = shown[:20]
		}
		for _, sym := range shown {
			fmt.Printf("  %s\n", sym)
		}
		if rest := len(s.FailedSymbols) - len(shown); rest > 0 {
			fmt.Printf("  ... and %d more\n", rest)
		}
	}
	fmt.Println("==================================================")
}

// saveRunRecord persists the run outside the cancellable context so an
// interrupted run still shows up in the history.
func saveRunRecord(cfg *config.Config, al *audit.Logger, tickers []string, s domain.Summary, started, finished time.Time) {
	rs, err := store.NewRunStore(cfg.Storage.RunsDBPath)
	if err != nil {
		slog.Warn("run history unavailable", "error", err)
		return
	}
	defer rs.Close()

	rec := &store.RunRecord{
		ID:            al.RunID(),
		StartedAt:     started,
		FinishedAt:    finished,
		Tickers:       len(tickers),
		Downloaded:    s.Downloaded,
		Updated:       s.Updated,
		UpToDate:      s.UpToDate,
		NoNewData:     s.NoNewData,
		Failed:        s.Failed(),
		FailedSymbols: s.FailedSymbols,
		AuditLogPath:  al.Path(),
	}
	if err := rs.SaveRun(context.Background(), rec); err != nil {
		slog.Warn("saving run record", "error", err)
	}
}
