package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"marketsync/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*CSVStore)(nil)
var _ EventStore = (*CSVStore)(nil)

// barHeader is the persisted bars schema. Downstream strategy code reads
// these files directly, so the header is a contract.
const barHeader = "Date,Open,High,Low,Close,Volume"

// reservedBasenames lists Windows device names that cannot be used as file
// basenames. Symbols colliding with one get a disambiguating suffix.
var reservedBasenames = map[string]bool{
	"CON": true, "PRN": true, "AUX": true, "NUL": true,
	"COM1": true, "COM2": true, "COM3": true, "COM4": true, "COM5": true,
	"COM6": true, "COM7": true, "COM8": true, "COM9": true,
	"LPT1": true, "LPT2": true, "LPT3": true, "LPT4": true, "LPT5": true,
	"LPT6": true, "LPT7": true, "LPT8": true, "LPT9": true,
}

// CSVStore implements BarStore and EventStore using one CSV file per
// (ticker, record kind) under three top-level directories.
type CSVStore struct {
	barsDir      string
	splitsDir    string
	dividendsDir string
}

// NewCSVStore creates a CSVStore rooted at the three record-kind
// directories, creating them if absent.
func NewCSVStore(barsDir, splitsDir, dividendsDir string) (*CSVStore, error) {
	for _, dir := range []string{barsDir, splitsDir, dividendsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return &CSVStore{
		barsDir:      barsDir,
		splitsDir:    splitsDir,
		dividendsDir: dividendsDir,
	}, nil
}

// SafeFilename maps a symbol to a filesystem-safe basename. The reserved
// device-name suffix is the only normalization the store performs.
func SafeFilename(symbol string) string {
	if reservedBasenames[strings.ToUpper(symbol)] {
		return symbol + "_ticker"
	}
	return symbol
}

func (s *CSVStore) barPath(symbol string) string {
	return filepath.Join(s.barsDir, SafeFilename(symbol)+".csv")
}

func (s *CSVStore) eventPath(kind domain.RecordKind, symbol string) (string, error) {
	switch kind {
	case domain.KindSplits:
		return filepath.Join(s.splitsDir, SafeFilename(symbol)+".csv"), nil
	case domain.KindDividends:
		return filepath.Join(s.dividendsDir, SafeFilename(symbol)+".csv"), nil
	default:
		return "", fmt.Errorf("no event path for record kind %q", kind)
	}
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// Exists reports whether a bars dataset already exists for the symbol.
func (s *CSVStore) Exists(symbol string) bool {
	_, err := os.Stat(s.barPath(symbol))
	return err == nil
}

// LastDate returns the date of the last row in the bars dataset, or
// ok=false when the file is absent, empty, or unparseable.
func (s *CSVStore) LastDate(symbol string) (time.Time, bool) {
	data, err := os.ReadFile(s.barPath(symbol))
	if err != nil {
		return time.Time{}, false
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		// Header only, or empty.
		return time.Time{}, false
	}

	last := lines[len(lines)-1]
	fields := strings.SplitN(last, ",", 2)
	date, err := time.Parse("2006-01-02", fields[0])
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

// WriteBars overwrites the bars dataset. The new content is written to a
// temporary file in the same directory and renamed into place, so a failed
// write never leaves the dataset worse than before the attempt.
func (s *CSVStore) WriteBars(symbol string, bars []domain.Bar) error {
	var b strings.Builder
	b.WriteString(barHeader + "\n")
	for _, bar := range bars {
		b.WriteString(formatBar(bar))
	}
	return atomicWrite(s.barPath(symbol), b.String())
}

// AppendBars appends rows to the existing bars dataset without rewriting
// the header.
func (s *CSVStore) AppendBars(symbol string, bars []domain.Bar) error {
	f, err := os.OpenFile(s.barPath(symbol), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening bars file for %s: %w", symbol, err)
	}

	var b strings.Builder
	for _, bar := range bars {
		b.WriteString(formatBar(bar))
	}
	if _, err := f.WriteString(b.String()); err != nil {
		f.Close()
		return fmt.Errorf("appending bars for %s: %w", symbol, err)
	}
	return f.Close()
}

func formatBar(bar domain.Bar) string {
	return fmt.Sprintf("%s,%s,%s,%s,%s,%d\n",
		bar.Date.Format("2006-01-02"),
		formatPrice(bar.Open),
		formatPrice(bar.High),
		formatPrice(bar.Low),
		formatPrice(bar.Close),
		bar.Volume,
	)
}

// formatPrice uses the shortest representation that round-trips, keeping
// provider precision without trailing zeros.
func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ---------------------------------------------------------------------------
// EventStore implementation
// ---------------------------------------------------------------------------

// WriteEvents overwrites the (kind, symbol) dataset with the raw provider
// payload, header included.
func (s *CSVStore) WriteEvents(kind domain.RecordKind, symbol string, payload string) error {
	path, err := s.eventPath(kind, symbol)
	if err != nil {
		return err
	}
	if !strings.HasSuffix(payload, "\n") {
		payload += "\n"
	}
	return atomicWrite(path, payload)
}

// AppendEvents appends the payload's data rows to the (kind, symbol)
// dataset, stripping the payload's header line. The file is created if it
// does not exist yet.
func (s *CSVStore) AppendEvents(kind domain.RecordKind, symbol string, payload string) error {
	path, err := s.eventPath(kind, symbol)
	if err != nil {
		return err
	}

	lines := strings.Split(strings.TrimSpace(payload), "\n")
	if len(lines) < 2 {
		return nil // header only, nothing to append
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s file for %s: %w", kind, symbol, err)
	}
	if _, err := f.WriteString(strings.Join(lines[1:], "\n") + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("appending %s for %s: %w", kind, symbol, err)
	}
	return f.Close()
}

// atomicWrite writes content to a temp file next to path and renames it
// into place.
func atomicWrite(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming %s: %w", tmpName, err)
	}
	return nil
}
