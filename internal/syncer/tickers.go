package syncer

import (
	"fmt"
	"os"
	"strings"
)

// ReadTickerFile loads ticker symbols from a text file, one per line.
// Blank lines and #-comments are skipped; symbols are upper-cased.
func ReadTickerFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var symbols []string
	for _, line := range strings.Split(string(data), "\n") {
		sym := strings.ToUpper(strings.TrimSpace(line))
		if sym == "" || strings.HasPrefix(sym, "#") {
			continue
		}
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no tickers found in %s", path)
	}
	return symbols, nil
}
