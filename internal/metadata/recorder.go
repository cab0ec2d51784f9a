package metadata

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/mrz1836/paysend/internal/chain/account"
)

// Recorder writes metadata for published transactions and notifies
// observers. Recording never fails the send: problems are logged.
type Recorder struct {
	store  Store
	logger LogWriter
	now    func() time.Time

	mu        sync.RWMutex
	nextID    int
	observers map[int]Observer
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger.
func WithLogger(l LogWriter) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) { r.now = now }
}

// NewRecorder creates a recorder writing to store. A nil store disables
// persistence while keeping the diagnostics.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:     store,
		logger:    nopLogger{},
		now:       time.Now,
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers an observer and returns a function that removes it.
func (r *Recorder) Subscribe(fn Observer) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	r.observers[id] = fn

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.observers, id)
	}
}

// RecordUTXO stores metadata for a published UTXO transaction. Both the
// exchange rate and the fee rate are required; when either is missing the
// record is skipped. It reports whether a record was written.
func (r *Recorder) RecordUTXO(ctx context.Context, tx *wire.MsgTx, currency string, rate *Rate, comment string, feePerKB *uint64) bool {
	if tx == nil {
		return false
	}
	if rate == nil || feePerKB == nil {
		r.logger.Debug("incomplete tx metadata for %s: rate=%t fee=%t", tx.TxHash(), rate != nil, feePerKB != nil)
		return false
	}

	return r.write(ctx, Record{
		TxID:     tx.TxHash().String(),
		Currency: currency,
		Rate:     *rate,
		FeeRate:  float64(*feePerKB),
		Comment:  comment,
	})
}

// RecordAccount stores metadata for an accepted account-model transfer.
// The exchange rate and the transaction hash are required.
func (r *Recorder) RecordAccount(ctx context.Context, pending *account.PendingTx, currency string, rate *Rate, comment string) bool {
	if pending == nil || pending.Hash == "" {
		r.logger.Debug("incomplete tx metadata: transaction hash not yet known")
		return false
	}
	if rate == nil {
		r.logger.Debug("incomplete tx metadata for %s: rate missing", pending.Hash)
		return false
	}

	var feeRate float64
	if pending.GasPrice != nil {
		feeRate, _ = new(big.Float).SetInt(pending.GasPrice).Float64()
	}

	return r.write(ctx, Record{
		TxID:     pending.Hash,
		Currency: currency,
		Rate:     *rate,
		FeeRate:  feeRate,
		Comment:  comment,
	})
}

func (r *Recorder) write(ctx context.Context, rec Record) bool {
	rec.CreatedAt = r.now().UTC()

	if r.store != nil {
		if err := r.store.Write(ctx, rec); err != nil {
			r.logger.Error("writing tx metadata for %s: %v", rec.TxID, err)
			return false
		}
	}
	r.logger.Debug("tx metadata written for %s", rec.TxID)

	r.notify(Event{Kind: MemoUpdated, TxID: rec.TxID})
	return true
}

func (r *Recorder) notify(ev Event) {
	r.mu.RLock()
	observers := make([]Observer, 0, len(r.observers))
	for _, fn := range r.observers {
		observers = append(observers, fn)
	}
	r.mu.RUnlock()

	for _, fn := range observers {
		fn(ev)
	}
}
