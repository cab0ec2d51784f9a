// Package metadata records user-facing metadata (fiat rate, fee rate, memo)
// for transactions after they have been published.
package metadata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Rate is an exchange rate captured at send time: one unit of the currency
// is worth Value units of the fiat Code.
type Rate struct {
	Code  string
	Value decimal.Decimal
}

// Record is the metadata stored for one transaction.
type Record struct {
	TxID      string
	Currency  string
	Rate      Rate
	FeeRate   float64
	Comment   string
	CreatedAt time.Time
}

// Store persists records keyed by transaction id.
type Store interface {
	Write(ctx context.Context, rec Record) error
}

// EventKind identifies a metadata event.
type EventKind int

// Event kinds.
const (
	MemoUpdated EventKind = iota + 1
)

// Event notifies observers that a transaction's metadata changed.
type Event struct {
	Kind EventKind
	TxID string
}

// Observer receives metadata events.
type Observer func(Event)

// LogWriter is the logging interface used by the recorder.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
