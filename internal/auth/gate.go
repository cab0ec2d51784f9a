package auth

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/mrz1836/paysend/internal/executor"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// DefaultSigningTimeout bounds PIN signing once the code has been entered.
const DefaultSigningTimeout = 4 * time.Second

// Gate authorizes and signs UTXO transactions, and collects the PIN for
// account-model sends.
type Gate struct {
	settings  Settings
	signer    Signer
	wallet    executor.Executor
	detached  executor.Executor
	timeout   time.Duration
	onTimeout TimeoutHandler
	logger    LogWriter
}

// Option configures a Gate.
type Option func(*Gate)

// WithSigningTimeout sets the PIN signing deadline.
func WithSigningTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithTimeoutHandler sets the signing-timeout policy.
func WithTimeoutHandler(h TimeoutHandler) Option {
	return func(g *Gate) { g.onTimeout = h }
}

// WithLogger sets the logger.
func WithLogger(l LogWriter) Option {
	return func(g *Gate) { g.logger = l }
}

// WithDetached sets the executor used for the PIN prompt.
func WithDetached(e executor.Executor) Option {
	return func(g *Gate) { g.detached = e }
}

// NewGate creates a gate. Signing runs on wallet, or serialized on the
// calling goroutines when wallet is nil; settings and signer may be nil for
// account-only use.
func NewGate(settings Settings, signer Signer, wallet executor.Executor, opts ...Option) *Gate {
	if wallet == nil {
		wallet = &executor.Locked{}
	}
	g := &Gate{
		settings: settings,
		signer:   signer,
		wallet:   wallet,
		detached: executor.Detached{},
		timeout:  DefaultSigningTimeout,
		logger:   nopLogger{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.onTimeout == nil {
		g.onTimeout = FatalTimeoutHandler{Logger: g.logger}
	}
	return g
}

// Authorize authenticates the user and signs tx. It returns the path that
// authorized the signature. ErrAuthAborted means the user cancelled; the
// caller reports nothing.
func (g *Gate) Authorize(ctx context.Context, tx *wire.MsgTx, forkID uint32, prompt string, pin PINPrompt) (Path, error) {
	if g.signer == nil || tx == nil {
		return PathNone, payerr.ErrInvalidInput
	}

	if g.settings != nil && g.settings.BiometricsEnabled() && g.signer.CanUseBiometrics(tx) {
		var outcome BiometricOutcome
		executor.Run(g.wallet, func() {
			outcome = g.signer.SignWithBiometrics(ctx, tx, forkID, prompt)
		})
		g.logger.Debug("biometric signing outcome: %s", outcome)

		switch outcome {
		case BiometricSuccess:
			return PathBiometric, nil
		case BiometricFailure, BiometricFallback:
		default:
			return PathBiometric, payerr.ErrAuthAborted
		}
	}

	code, err := g.RequestPIN(ctx, pin)
	if err != nil {
		return PathPIN, err
	}
	return PathPIN, g.signWithPIN(ctx, tx, forkID, code)
}

// RequestPIN collects the secret code on a detached task. The human entry
// is not time-bounded.
func (g *Gate) RequestPIN(ctx context.Context, pin PINPrompt) (string, error) {
	if pin == nil {
		return "", payerr.ErrAuthAborted
	}

	type result struct {
		code string
		err  error
	}
	ch := make(chan result, 1)
	g.detached.Submit(func() {
		code, err := pin(ctx)
		ch <- result{code: code, err: err}
	})

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return "", payerr.WithCause(payerr.ErrAuthAborted, ctx.Err())
	}
	if r.err != nil {
		g.logger.Debug("pin entry abandoned: %v", r.err)
		return "", payerr.WithCause(payerr.ErrAuthAborted, r.err)
	}
	return r.code, nil
}

// signWithPIN signs on the wallet executor under the signing deadline. The
// deadline starts before submission and the submit happens off this
// goroutine, so an executor that runs inline cannot hold it past the timer.
// A completion that lands after the deadline is discarded.
func (g *Gate) signWithPIN(ctx context.Context, tx *wire.MsgTx, forkID uint32, code string) error {
	var claimed atomic.Bool
	done := make(chan error, 1)

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	go g.wallet.Submit(func() {
		err := g.signer.Sign(ctx, tx, forkID, code)
		if !claimed.CompareAndSwap(false, true) {
			g.logger.Error("discarding signing result that completed after the deadline")
			return
		}
		done <- err
	})

	select {
	case err := <-done:
		return wrapSignErr(err)
	case <-timer.C:
		if !claimed.CompareAndSwap(false, true) {
			return wrapSignErr(<-done)
		}
		return g.onTimeout.SigningTimedOut(g.timeout)
	}
}

func wrapSignErr(err error) error {
	if err == nil {
		return nil
	}
	if payerr.Is(err, payerr.ErrSigningFailed) {
		return err
	}
	return payerr.WithCause(payerr.ErrSigningFailed, err)
}
