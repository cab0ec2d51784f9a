package transaction

import (
	"math/big"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/mrz1836/paysend/internal/chain"
	"github.com/mrz1836/paysend/internal/chain/utxo"
	"github.com/mrz1836/paysend/internal/executor"
	"github.com/mrz1836/paysend/internal/paymentprotocol"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Builder turns send requests into PendingSends. Wallet calls run on the
// wallet executor so they never interleave with signing.
type Builder struct {
	wallet   utxo.Wallet
	currency chain.Currency
	exec     executor.Executor
	logger   LogWriter
	now      func() time.Time
}

// NewBuilder creates a builder bound to currency. wallet may be nil when
// the builder is only used for account-model sends.
func NewBuilder(wallet utxo.Wallet, currency chain.Currency, walletExec executor.Executor, logger LogWriter) *Builder {
	if walletExec == nil {
		walletExec = executor.Inline{}
	}
	if logger == nil {
		logger = nopLogger{}
	}
	return &Builder{wallet: wallet, currency: currency, exec: walletExec, logger: logger, now: time.Now}
}

// BuildDirect prepares a send of amount base units to destination.
func (b *Builder) BuildDirect(amount *big.Int, destination string, cur chain.Currency) (*PendingSend, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, payerr.WithCause(payerr.ErrCreationFailed, payerr.ErrInvalidAmount)
	}

	switch c := cur.(type) {
	case chain.UTXO:
		if b.wallet == nil {
			return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": c.Code, "reason": "no wallet"})
		}
		if !amount.IsUint64() {
			return nil, payerr.WithCause(payerr.ErrCreationFailed, payerr.ErrInvalidAmount)
		}

		var (
			tx  *wire.MsgTx
			err error
		)
		executor.Run(b.exec, func() {
			tx, err = b.wallet.CreateTransaction(amount.Uint64(), destination)
		})
		if err != nil {
			b.logger.Debug("wallet could not build %s transaction: %v", c.Code, err)
			return nil, payerr.WithCause(payerr.ErrCreationFailed, err)
		}
		return &PendingSend{Currency: c, Payload: &UTXOPayload{Tx: tx}}, nil

	case chain.Account:
		return &PendingSend{
			Currency: c,
			Payload: &AccountPayload{Intent: Intent{
				Amount:      new(big.Int).Set(amount),
				Destination: destination,
			}},
		}, nil

	case chain.Token:
		return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": c.Code})

	default:
		return nil, payerr.ErrUnsupported
	}
}

// BuildFromPaymentRequest prepares a send paying exactly the outputs of
// req. When the merchant requires a higher fee rate than the wallet's, the
// wallet rate is raised for the construction and restored afterwards.
func (b *Builder) BuildFromPaymentRequest(req *paymentprotocol.Request) (*PendingSend, error) {
	cur, ok := b.currency.(chain.UTXO)
	if !ok || b.wallet == nil {
		return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"reason": "payment requests need a utxo wallet"})
	}
	if req == nil {
		return nil, payerr.ErrInvalidInput
	}
	if err := req.Validate(); err != nil {
		return nil, payerr.WithCause(payerr.ErrCreationFailed, err)
	}
	if req.Expired(b.now()) {
		return nil, payerr.WithDetails(payerr.WithCause(payerr.ErrCreationFailed, payerr.ErrInvalidInput), map[string]string{
			"reason":  "payment request expired",
			"expires": req.Expires.UTC().Format(time.RFC3339),
		})
	}

	outputs, err := req.UTXOOutputs(cur.Params)
	if err != nil {
		return nil, payerr.WithCause(payerr.ErrCreationFailed, err)
	}

	var tx *wire.MsgTx
	executor.Run(b.exec, func() {
		tx, err = b.buildAtRate(req.RequiredFeePerKB(), outputs)
	})
	if err != nil {
		b.logger.Debug("wallet could not build payment request transaction: %v", err)
		return nil, payerr.WithCause(payerr.ErrCreationFailed, err)
	}

	return &PendingSend{
		Currency:        cur,
		Payload:         &UTXOPayload{Tx: tx},
		MerchantRequest: req,
	}, nil
}

// buildAtRate must run on the wallet executor.
func (b *Builder) buildAtRate(required uint64, outputs []utxo.Output) (*wire.MsgTx, error) {
	previous := b.wallet.FeePerKB()
	if required > previous {
		b.logger.Debug("raising fee rate from %d to %d sat/kB for payment request", previous, required)
		b.wallet.SetFeePerKB(required)
		defer b.wallet.SetFeePerKB(previous)
	}
	return b.wallet.CreateTransactionForOutputs(outputs)
}
