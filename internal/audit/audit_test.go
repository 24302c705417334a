package audit

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestLoggerLineFormat(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Success("AAPL", "download_full", "250 rows")
	l.Failure("BOGUS", "download_bars", "HTTP 404")
	l.Skip("MSFT", "already up to date")

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	content := string(data)

	if !strings.Contains(content, "Run: "+l.RunID()) {
		t.Error("header should contain the run id")
	}

	lines := strings.Split(strings.TrimSpace(content), "\n")
	tail := lines[len(lines)-3:]
	if !strings.Contains(tail[0], "SUCCESS | AAPL") || !strings.Contains(tail[0], "download_full") || !strings.Contains(tail[0], "250 rows") {
		t.Errorf("success line = %q", tail[0])
	}
	if !strings.Contains(tail[1], "FAILURE | BOGUS") || !strings.Contains(tail[1], "HTTP 404") {
		t.Errorf("failure line = %q", tail[1])
	}
	if !strings.Contains(tail[2], "SKIP") || !strings.Contains(tail[2], "MSFT") {
		t.Errorf("skip line = %q", tail[2])
	}
}

func TestLoggerConcurrentWrites(t *testing.T) {
	dir := t.TempDir()
	l, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	const writers = 20
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			sym := fmt.Sprintf("SYM%d", w)
			for i := 0; i < perWriter; i++ {
				l.Success(sym, "update_bars", "+1 rows")
			}
		}(w)
	}
	wg.Wait()

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(l.Path())
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}

	var entries int
	for _, line := range strings.Split(string(data), "\n") {
		if strings.Contains(line, "SUCCESS") {
			// Every entry line must be whole, not torn.
			if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "+1 rows") {
				t.Errorf("torn line: %q", line)
			}
			entries++
		}
	}
	if entries != writers*perWriter {
		t.Errorf("log has %d entries, want %d", entries, writers*perWriter)
	}
}

func TestLoggerNilSafe(t *testing.T) {
	var l *Logger
	l.Success("AAPL", "x", "")
	l.Failure("AAPL", "x", "")
	l.Skip("AAPL", "")
	if l.Path() != "" || l.RunID() != "" {
		t.Error("nil logger accessors should return empty strings")
	}
	if err := l.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}
