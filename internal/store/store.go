// Package store defines storage interfaces for persisting synced market
// data, with a CSV-file implementation for per-ticker datasets and a
// SQLite implementation for run history.
package store

import (
	"time"

	"marketsync/internal/domain"
)

// BarStore persists per-ticker daily bar datasets. It is a stateless layer
// over disk: it owns no in-memory state across calls, and it performs no
// deduplication. Callers guarantee appended rows are strictly newer than
// the existing tail.
type BarStore interface {
	// Exists reports whether a bars dataset already exists for the symbol.
	Exists(symbol string) bool

	// LastDate returns the last (maximum) date present in the bars dataset.
	// Absence, an empty file, and an unparseable file all yield ok=false;
	// they are not distinguished at this layer.
	LastDate(symbol string) (last time.Time, ok bool)

	// WriteBars overwrites the bars dataset with the given rows, preceded
	// by the schema header. The replacement is atomic: a failed write
	// leaves any prior dataset untouched.
	WriteBars(symbol string, bars []domain.Bar) error

	// AppendBars appends rows to the existing dataset without rewriting
	// the header.
	AppendBars(symbol string, bars []domain.Bar) error
}

// EventStore persists splits and dividends payloads. The provider's native
// column schema is retained verbatim.
type EventStore interface {
	// WriteEvents overwrites the dataset for (kind, symbol) with the raw
	// payload, header included.
	WriteEvents(kind domain.RecordKind, symbol string, payload string) error

	// AppendEvents appends the payload's data rows (header stripped) to
	// the dataset for (kind, symbol).
	AppendEvents(kind domain.RecordKind, symbol string, payload string) error
}
