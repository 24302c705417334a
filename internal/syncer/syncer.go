// Package syncer implements the synchronization engine: the per-ticker
// state machine deciding full backfill vs incremental update, and the
// bounded-concurrency batch orchestrator fanning it out over many tickers.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marketsync/internal/audit"
	"marketsync/internal/domain"
	"marketsync/internal/eodhd"
	"marketsync/internal/store"
)

// Fetcher is the remote provider surface the synchronizer drives. Retry on
// transient failures already happens inside the implementation; by the time
// an error reaches the synchronizer it is terminal for this fetch.
type Fetcher interface {
	Fetch(ctx context.Context, kind domain.RecordKind, symbol string, from, to time.Time) (string, error)
}

// Options selects the optional record kinds for a run. Bars are always
// synchronized.
type Options struct {
	IncludeSplits    bool
	IncludeDividends bool
}

// Syncer synchronizes one ticker's local datasets against the provider.
// Each ticker's dataset is exclusively owned by its synchronization task
// for the duration of the run.
type Syncer struct {
	fetcher Fetcher
	bars    store.BarStore
	events  store.EventStore
	audit   *audit.Logger
	opts    Options
	now     func() time.Time
	log     *slog.Logger
}

// New creates a Syncer.
func New(f Fetcher, bars store.BarStore, events store.EventStore, al *audit.Logger, opts Options) *Syncer {
	return &Syncer{
		fetcher: f,
		bars:    bars,
		events:  events,
		audit:   al,
		opts:    opts,
		now:     time.Now,
		log:     slog.Default().With("component", "syncer"),
	}
}

// SyncTicker synchronizes one ticker and returns its terminal outcome.
// A ticker with no local bars dataset gets a full historical backfill;
// otherwise an incremental update from the last recorded date. Failures
// are terminal: neither the syncer nor its callers retry a failed ticker.
func (s *Syncer) SyncTicker(ctx context.Context, symbol string) domain.Outcome {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	if !s.bars.Exists(symbol) {
		return s.fullBackfill(ctx, symbol)
	}
	return s.incrementalUpdate(ctx, symbol)
}

func (s *Syncer) fullBackfill(ctx context.Context, symbol string) domain.Outcome {
	s.log.Info("downloading full history", "symbol", symbol)

	payload, err := s.fetcher.Fetch(ctx, domain.KindBars, symbol, time.Time{}, time.Time{})
	if err != nil {
		s.audit.Failure(symbol, "download_bars", err.Error())
		return failed(symbol, fmt.Sprintf("fetch: %v", err))
	}

	bars, err := eodhd.ParseBars(payload)
	if err != nil {
		s.audit.Failure(symbol, "parse_bars", err.Error())
		return failed(symbol, fmt.Sprintf("parse: %v", err))
	}

	if err := s.bars.WriteBars(symbol, bars); err != nil {
		s.audit.Failure(symbol, "save_bars", err.Error())
		return failed(symbol, fmt.Sprintf("save: %v", err))
	}

	// Bars are persisted; splits and dividends are optional and never fail
	// the ticker.
	s.syncEvents(ctx, symbol, time.Time{}, time.Time{}, false)

	s.audit.Success(symbol, "download_full", fmt.Sprintf("%d rows", len(bars)))
	s.log.Info("downloaded", "symbol", symbol, "rows", len(bars))
	return domain.Outcome{Symbol: symbol, Status: domain.StatusDownloaded, NewRows: len(bars)}
}

func (s *Syncer) incrementalUpdate(ctx context.Context, symbol string) domain.Outcome {
	last, ok := s.bars.LastDate(symbol)
	if !ok {
		// Present but unreadable: requires manual review, never silently
		// re-downloaded over.
		s.audit.Failure(symbol, "update_bars", "cannot parse existing file")
		return failed(symbol, "invalid existing file")
	}

	now := s.now()
	if now.Sub(last) <= 24*time.Hour {
		s.audit.Skip(symbol, "already up to date")
		return domain.Outcome{Symbol: symbol, Status: domain.StatusUpToDate}
	}

	from := last.AddDate(0, 0, 1)
	s.log.Info("updating", "symbol", symbol, "from", from.Format("2006-01-02"))

	payload, err := s.fetcher.Fetch(ctx, domain.KindBars, symbol, from, now)
	if errors.Is(err, eodhd.ErrEmptyResult) {
		// The window held no trading days.
		s.audit.Skip(symbol, "no new data available")
		return domain.Outcome{Symbol: symbol, Status: domain.StatusNoNewData}
	}
	if err != nil {
		s.audit.Failure(symbol, "update_bars", err.Error())
		return failed(symbol, fmt.Sprintf("update: %v", err))
	}

	bars, err := eodhd.ParseBars(payload)
	if err != nil {
		s.audit.Failure(symbol, "parse_bars", err.Error())
		return failed(symbol, fmt.Sprintf("parse: %v", err))
	}
	if len(bars) == 0 {
		s.audit.Skip(symbol, "no new data available")
		return domain.Outcome{Symbol: symbol, Status: domain.StatusNoNewData}
	}

	if err := s.bars.AppendBars(symbol, bars); err != nil {
		s.audit.Failure(symbol, "save_update", err.Error())
		return failed(symbol, fmt.Sprintf("save: %v", err))
	}

	s.syncEvents(ctx, symbol, from, now, true)

	s.audit.Success(symbol, "update_bars", fmt.Sprintf("+%d rows", len(bars)))
	s.log.Info("updated", "symbol", symbol, "rows", len(bars))
	return domain.Outcome{Symbol: symbol, Status: domain.StatusUpdated, NewRows: len(bars)}
}

// syncEvents fetches splits and dividends for the window. Both kinds are
// independent of each other and of the outcome: a failure is audited but
// never fails the ticker, and an empty result is ignored outright.
func (s *Syncer) syncEvents(ctx context.Context, symbol string, from, to time.Time, appendRows bool) {
	if s.opts.IncludeSplits {
		s.syncEvent(ctx, domain.KindSplits, symbol, from, to, appendRows)
	}
	if s.opts.IncludeDividends {
		s.syncEvent(ctx, domain.KindDividends, symbol, from, to, appendRows)
	}
}

func (s *Syncer) syncEvent(ctx context.Context, kind domain.RecordKind, symbol string, from, to time.Time, appendRows bool) {
	verb := "download_"
	if appendRows {
		verb = "update_"
	}
	action := verb + string(kind)

	payload, err := s.fetcher.Fetch(ctx, kind, symbol, from, to)
	if errors.Is(err, eodhd.ErrEmptyResult) {
		return // no records ever for this ticker, not a failure
	}
	if err != nil {
		s.audit.Failure(symbol, action, err.Error())
		return
	}

	if appendRows {
		err = s.events.AppendEvents(kind, symbol, payload)
	} else {
		err = s.events.WriteEvents(kind, symbol, payload)
	}
	if err != nil {
		s.audit.Failure(symbol, "save_"+string(kind), err.Error())
		return
	}
	s.audit.Success(symbol, action, fmt.Sprintf("%d rows", eodhd.CountDataRows(payload)))
}

func failed(symbol, detail string) domain.Outcome {
	return domain.Outcome{Symbol: symbol, Status: domain.StatusFailed, Detail: detail}
}
