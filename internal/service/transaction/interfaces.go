package transaction

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/mrz1836/paysend/internal/auth"
	"github.com/mrz1836/paysend/internal/chain/account"
	"github.com/mrz1836/paysend/internal/metadata"
	"github.com/mrz1836/paysend/internal/paymentprotocol"
)

// Authorizer authenticates the user and signs UTXO transactions.
type Authorizer interface {
	Authorize(ctx context.Context, tx *wire.MsgTx, forkID uint32, prompt string, pin auth.PINPrompt) (auth.Path, error)
	RequestPIN(ctx context.Context, pin auth.PINPrompt) (string, error)
}

// Publisher broadcasts signed transactions. Retry and backoff are the
// publisher's concern; Publish reports one terminal result.
type Publisher interface {
	Publish(ctx context.Context, tx *wire.MsgTx) error
}

// MetadataRecorder stores metadata for published transactions.
type MetadataRecorder interface {
	RecordUTXO(ctx context.Context, tx *wire.MsgTx, currency string, rate *metadata.Rate, comment string, feePerKB *uint64) bool
	RecordAccount(ctx context.Context, pending *account.PendingTx, currency string, rate *metadata.Rate, comment string) bool
}

// Settler posts payments to merchants.
type Settler interface {
	Settle(ctx context.Context, st paymentprotocol.Settlement) (*paymentprotocol.ACK, error)
}

// MetricsRecorder receives send-path measurements.
type MetricsRecorder interface {
	RecordSendOutcome(model, outcome string)
	RecordAuthPath(path string)
	RecordAuthAbort()
	RecordSigningTimeout()
	ObserveSigning(d time.Duration)
	RecordMetadataWrite(written bool)
	RecordSettlement(flavor string, err error)
}

// LogWriter provides logging operations.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
