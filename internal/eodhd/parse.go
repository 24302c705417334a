package eodhd

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"marketsync/internal/domain"
)

// ParseBars converts a raw bars payload into Bar rows. The provider schema
// is Date,Open,High,Low,Close,Adjusted_close,Volume; the adjusted close is
// dropped so the persisted schema stays Date,Open,High,Low,Close,Volume.
// Rows with too few fields are skipped. A header-only payload yields zero
// rows and no error.
func ParseBars(payload string) ([]domain.Bar, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(payload)))
	r.FieldsPerRecord = -1

	var bars []domain.Bar
	first := true
	for {
		fields, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading bars payload: %w", err)
		}
		if first {
			first = false
			continue
		}
		if len(fields) < 7 {
			continue
		}

		bar, err := parseBarRow(fields)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

func parseBarRow(fields []string) (domain.Bar, error) {
	date, err := time.Parse("2006-01-02", fields[0])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing bar date %q: %w", fields[0], err)
	}

	var prices [4]float64
	for i, f := range fields[1:5] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return domain.Bar{}, fmt.Errorf("parsing bar %s field %q: %w", fields[0], f, err)
		}
		prices[i] = v
	}

	// Field 5 is Adjusted_close, intentionally not persisted.
	volume, err := parseVolume(fields[6])
	if err != nil {
		return domain.Bar{}, fmt.Errorf("parsing bar %s volume %q: %w", fields[0], fields[6], err)
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

// parseVolume accepts both integer and float-formatted volumes; the
// provider occasionally reports "1234.0".
func parseVolume(s string) (int64, error) {
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// CountDataRows returns the number of data lines in a raw payload,
// excluding the header. Used for splits and dividends, whose payloads are
// persisted verbatim.
func CountDataRows(payload string) int {
	lines := strings.Split(strings.TrimSpace(payload), "\n")
	n := 0
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		n++
	}
	return n
}
