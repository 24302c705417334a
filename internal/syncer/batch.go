package syncer

import (
	"context"
	"log/slog"
	"sync"

	"marketsync/internal/domain"
)

const (
	// DefaultWorkers is the default concurrency limit for a batch run.
	DefaultWorkers = 30
	// MaxWorkers bounds the concurrency limit.
	MaxWorkers = 200
)

// Batch fans the Syncer out across many tickers with bounded concurrency.
// Tickers are fully independent: one ticker's failure never aborts the
// batch, and no ordering is guaranteed across tickers.
type Batch struct {
	syncer  *Syncer
	workers int
	log     *slog.Logger
}

// NewBatch creates a Batch running up to workers ticker synchronizations
// concurrently. A non-positive value selects the default; the limit is
// capped at MaxWorkers.
func NewBatch(s *Syncer, workers int) *Batch {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &Batch{
		syncer:  s,
		workers: workers,
		log:     slog.Default().With("component", "batch"),
	}
}

// Run synchronizes every symbol and returns the aggregate summary. With a
// concurrency limit of 1 execution is strictly sequential in input order.
// Duplicates in the input are not deduplicated. Every symbol yields exactly
// one outcome, attributable by symbol.
func (b *Batch) Run(ctx context.Context, symbols []string) domain.Summary {
	outcomes := make([]domain.Outcome, len(symbols))

	if b.workers == 1 {
		for i, sym := range symbols {
			outcomes[i] = b.runOne(ctx, sym)
		}
	} else {
		jobs := make(chan int, len(symbols))
		for i := range symbols {
			jobs <- i
		}
		close(jobs)

		var wg sync.WaitGroup
		workers := min(b.workers, len(symbols))
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					outcomes[i] = b.runOne(ctx, symbols[i])
				}
			}()
		}
		wg.Wait()
	}

	var summary domain.Summary
	for _, o := range outcomes {
		summary.Add(o)
	}

	b.log.Info("batch complete",
		"total", summary.Total(),
		"downloaded", summary.Downloaded,
		"updated", summary.Updated,
		"up_to_date", summary.UpToDate,
		"no_new_data", summary.NoNewData,
		"failed", summary.Failed(),
	)
	return summary
}

// runOne synchronizes a single symbol, short-circuiting to a failed outcome
// once the run context is cancelled.
func (b *Batch) runOne(ctx context.Context, symbol string) domain.Outcome {
	if err := ctx.Err(); err != nil {
		return domain.Outcome{Symbol: symbol, Status: domain.StatusFailed, Detail: err.Error()}
	}
	return b.syncer.SyncTicker(ctx, symbol)
}
