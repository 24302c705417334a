// Package dataset is the read side of the stored market data: it loads
// bar files back into memory and can apply split adjustment on the fly,
// leaving the files themselves untouched.
package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"marketsync/internal/domain"
	"marketsync/internal/store"
)

// Split is one split event as recorded in the provider's split files.
// Ratio is the multiplier applied to the share count, e.g. 4 for a
// 4-for-1 split.
type Split struct {
	Date  time.Time
	Ratio decimal.Decimal
}

// Loader reads bar and split datasets from the directories a run writes
// them to.
type Loader struct {
	barsDir   string
	splitsDir string
}

func NewLoader(barsDir, splitsDir string) *Loader {
	return &Loader{barsDir: barsDir, splitsDir: splitsDir}
}

// LoadBars reads the full bar history for a symbol. With adjustSplits set,
// prices before each split date are divided by the split ratio and volumes
// multiplied, so the series is continuous across splits. A symbol with no
// split file loads unadjusted.
func (l *Loader) LoadBars(symbol string, adjustSplits bool) ([]domain.Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	path := filepath.Join(l.barsDir, store.SafeFilename(symbol)+".csv")
	bars, err := readBarFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading bars for %s: %w", symbol, err)
	}
	if !adjustSplits {
		return bars, nil
	}

	splits, err := l.LoadSplits(symbol)
	if err != nil {
		return nil, fmt.Errorf("loading splits for %s: %w", symbol, err)
	}
	return ApplySplits(bars, splits), nil
}

// LoadSplits reads the split history for a symbol. A missing split file
// means no splits and is not an error.
func (l *Loader) LoadSplits(symbol string) ([]Split, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	path := filepath.Join(l.splitsDir, store.SafeFilename(symbol)+".csv")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing split file: %w", err)
	}

	var splits []Split
	for i, rec := range records {
		if i == 0 || len(rec) < 2 {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("split row %d: bad date %q", i, rec[0])
		}
		ratio, err := ParseSplitRatio(rec[1])
		if err != nil {
			return nil, fmt.Errorf("split row %d: %w", i, err)
		}
		splits = append(splits, Split{Date: date, Ratio: ratio})
	}
	sort.Slice(splits, func(i, j int) bool { return splits[i].Date.Before(splits[j].Date) })
	return splits, nil
}

// ParseSplitRatio parses the provider's split notation. Both the
// fractional form "4.000000/1.000000" and a plain number are accepted.
func ParseSplitRatio(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err := decimal.NewFromString(strings.TrimSpace(num))
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad split ratio %q: %w", s, err)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(den))
		if err != nil {
			return decimal.Zero, fmt.Errorf("bad split ratio %q: %w", s, err)
		}
		if d.IsZero() {
			return decimal.Zero, fmt.Errorf("bad split ratio %q: zero denominator", s)
		}
		return n.Div(d), nil
	}
	r, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("bad split ratio %q: %w", s, err)
	}
	return r, nil
}

// ApplySplits returns a copy of bars with every bar strictly before a
// split date divided by that split's ratio (and its volume multiplied),
// compounding across multiple splits.
func ApplySplits(bars []domain.Bar, splits []Split) []domain.Bar {
	if len(splits) == 0 {
		return bars
	}

	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	for _, sp := range splits {
		if sp.Ratio.IsZero() {
			continue
		}
		for i := range out {
			if !out[i].Date.Before(sp.Date) {
				continue
			}
			out[i].Open = divPrice(out[i].Open, sp.Ratio)
			out[i].High = divPrice(out[i].High, sp.Ratio)
			out[i].Low = divPrice(out[i].Low, sp.Ratio)
			out[i].Close = divPrice(out[i].Close, sp.Ratio)
			out[i].Volume = decimal.NewFromInt(out[i].Volume).Mul(sp.Ratio).Round(0).IntPart()
		}
	}
	return out
}

func divPrice(v float64, ratio decimal.Decimal) float64 {
	f, _ := decimal.NewFromFloat(v).Div(ratio).Round(4).Float64()
	return f
}

func readBarFile(path string) ([]domain.Bar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing bar file: %w", err)
	}

	var bars []domain.Bar
	for i, rec := range records {
		if i == 0 || len(rec) < 6 {
			continue
		}
		bar, err := parseBarRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRecord(rec []string) (domain.Bar, error) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
	if err != nil {
		return domain.Bar{}, fmt.Errorf("bad date %q", rec[0])
	}
	var prices [4]float64
	for i := 0; i < 4; i++ {
		prices[i], err = strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("bad price %q", rec[i+1])
		}
	}
	volume, err := strconv.ParseInt(strings.TrimSpace(rec[5]), 10, 64)
	if err != nil {
		return domain.Bar{}, fmt.Errorf("bad volume %q", rec[5])
	}
	return domain.Bar{
		Date:   date,
		Open:   prices[0],
		High:   prices[1],
		Low:    prices[2],
		Close:  prices[3],
		Volume: volume,
	}, nil
}
