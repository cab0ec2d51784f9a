package transaction

import (
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/btcsuite/btcd/wire"

	"github.com/mrz1836/paysend/internal/auth"
	"github.com/mrz1836/paysend/internal/chain"
	"github.com/mrz1836/paysend/internal/metadata"
	"github.com/mrz1836/paysend/internal/paymentprotocol"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Payload is the currency-specific body of a pending send: *UTXOPayload or
// *AccountPayload.
type Payload interface {
	payload()
}

// UTXOPayload carries an unsigned transaction built by the wallet.
type UTXOPayload struct {
	Tx *wire.MsgTx
}

func (*UTXOPayload) payload() {}

// Intent is an account-model transfer that is built remotely at send time.
type Intent struct {
	Amount      *big.Int
	Destination string
}

// AccountPayload carries an account-model transfer intent.
type AccountPayload struct {
	Intent Intent
}

func (*AccountPayload) payload() {}

// PendingSend is one unit of work for the Service. It is created by the
// Builder and consumed by the first Send.
type PendingSend struct {
	Currency        chain.Currency
	Payload         Payload
	MerchantRequest *paymentprotocol.Request
	ExchangeRate    *metadata.Rate
	Comment         string
	FeePerKB        *uint64

	consumed atomic.Bool
}

// Validate checks that the payload matches the currency variant.
func (p *PendingSend) Validate() error {
	if p.Payload == nil {
		return payerr.ErrCreationFailed
	}

	switch p.Currency.(type) {
	case chain.UTXO:
		u, ok := p.Payload.(*UTXOPayload)
		if !ok || u.Tx == nil {
			return payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"payload": "expected unsigned transaction"})
		}
	case chain.Account:
		a, ok := p.Payload.(*AccountPayload)
		if !ok || a.Intent.Amount == nil {
			return payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"payload": "expected account intent"})
		}
	default:
		return payerr.ErrUnsupported
	}
	return nil
}

// take moves the payload out of p. It fails on every call after the first.
func (p *PendingSend) take() (Payload, error) {
	if !p.consumed.CompareAndSwap(false, true) {
		return nil, payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"pending_send": "already sent"})
	}
	pl := p.Payload
	p.Payload = nil
	return pl, nil
}

// Options are supplied by the caller for one send.
type Options struct {
	ExchangeRate    *metadata.Rate
	Comment         string
	FeePerKB        *uint64
	BiometricPrompt string
	PIN             auth.PINPrompt
}

// State is the progress of a send attempt.
type State int32

// Attempt states.
const (
	StateInitialized State = iota
	StateAwaitingAuth
	StateSigning
	StatePublishing
	StateSettled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateAwaitingAuth:
		return "awaiting_auth"
	case StateSigning:
		return "signing"
	case StatePublishing:
		return "publishing"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// OutcomeKind classifies a delivered outcome.
type OutcomeKind int

// Outcome kinds.
const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeCreationError
	OutcomePublishFailure
)

// String returns the outcome kind name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeCreationError:
		return "creation_error"
	case OutcomePublishFailure:
		return "publish_failure"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a send attempt.
type Outcome struct {
	Kind      OutcomeKind
	Message   string
	Err       error
	TxID      string
	AttemptID string
}

// Attempt tracks one in-flight send.
type Attempt struct {
	ID string

	state   atomic.Int32
	done    chan struct{}
	once    sync.Once
	mu      sync.Mutex
	outcome *Outcome
}

func newAttempt(id string) *Attempt {
	return &Attempt{ID: id, done: make(chan struct{})}
}

// State returns the current state.
func (a *Attempt) State() State {
	return State(a.state.Load())
}

// Done is closed when the attempt has finished, whether or not it produced
// an outcome.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Outcome returns the delivered outcome. The second value is false while
// the attempt is running and after a silent abort.
func (a *Attempt) Outcome() (Outcome, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome == nil {
		return Outcome{}, false
	}
	return *a.outcome, true
}

func (a *Attempt) setOutcome(o Outcome) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome != nil {
		return false
	}
	a.outcome = &o
	return true
}

func (a *Attempt) finish() {
	a.once.Do(func() { close(a.done) })
}
