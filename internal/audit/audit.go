// Package audit writes the append-only per-run audit trail. One log stream
// per run, created at orchestrator start, never mutated after append, never
// read back by the system; failed tickers surface here for manual review.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger is an append-only sink shared by all concurrent workers. Each
// line is fully written before the next begins; interleaving of unrelated
// tickers' lines is acceptable. Writes are best-effort: the audit trail
// never fails a synchronization.
type Logger struct {
	mu    sync.Mutex
	f     *os.File
	path  string
	runID string
	now   func() time.Time
}

// New creates the log stream for one run under logDir, stamping the header
// with a fresh run id.
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}

	l := &Logger{
		runID: uuid.NewString(),
		now:   time.Now,
	}
	l.path = filepath.Join(logDir, fmt.Sprintf("sync_%s.log", l.now().Format("20060102_150405")))

	f, err := os.Create(l.path)
	if err != nil {
		return nil, fmt.Errorf("creating audit log: %w", err)
	}
	l.f = f

	header := fmt.Sprintf("Market Data Sync Log\nRun: %s\nStarted: %s\n%s\n\n",
		l.runID, l.now().Format(time.RFC3339), divider)
	if _, err := f.WriteString(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing audit header: %w", err)
	}
	return l, nil
}

const divider = "============================================================"

// Success records a successful action on a ticker.
func (l *Logger) Success(symbol, action, detail string) {
	l.write(fmt.Sprintf("[%s] SUCCESS | %-8s | %-20s | %s\n", l.stamp(), symbol, action, detail))
}

// Failure records a failed action on a ticker.
func (l *Logger) Failure(symbol, action, reason string) {
	l.write(fmt.Sprintf("[%s] FAILURE | %-8s | %-20s | %s\n", l.stamp(), symbol, action, reason))
}

// Skip records a ticker that required no action.
func (l *Logger) Skip(symbol, reason string) {
	l.write(fmt.Sprintf("[%s] SKIP    | %-8s | %s\n", l.stamp(), symbol, reason))
}

// Path returns the log file location.
func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// RunID returns the run identifier stamped into the header.
func (l *Logger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Close closes the log stream.
func (l *Logger) Close() error {
	if l == nil || l.f == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.f.Close()
}

func (l *Logger) stamp() string {
	if l == nil {
		return ""
	}
	return l.now().Format("2006-01-02 15:04:05")
}

func (l *Logger) write(line string) {
	if l == nil || l.f == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.f.WriteString(line)
}
