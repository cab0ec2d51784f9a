package transaction

import (
	"math/big"

	"github.com/mrz1836/paysend/internal/chain"
	"github.com/mrz1836/paysend/internal/chain/account"
	"github.com/mrz1836/paysend/internal/chain/utxo"
	"github.com/mrz1836/paysend/internal/executor"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// FeeCalculator quotes network fees for display.
type FeeCalculator struct {
	wallet   utxo.Wallet
	accounts account.Service
	exec     executor.Executor
}

// NewFeeCalculator creates a fee calculator. Either collaborator may be nil
// when its currency model is not in use.
func NewFeeCalculator(wallet utxo.Wallet, accounts account.Service, walletExec executor.Executor) *FeeCalculator {
	if walletExec == nil {
		walletExec = executor.Inline{}
	}
	return &FeeCalculator{wallet: wallet, accounts: accounts, exec: walletExec}
}

// FeeForBuilt returns the fee of a prepared send, or zero when it cannot be
// determined.
func (f *FeeCalculator) FeeForBuilt(p *PendingSend) *big.Int {
	if p == nil {
		return new(big.Int)
	}

	switch pl := p.Payload.(type) {
	case *UTXOPayload:
		if f.wallet == nil || pl.Tx == nil {
			return new(big.Int)
		}
		var (
			fee uint64
			ok  bool
		)
		executor.Run(f.exec, func() { fee, ok = f.wallet.FeeForTx(pl.Tx) })
		if !ok {
			return new(big.Int)
		}
		return new(big.Int).SetUint64(fee)
	case *AccountPayload:
		return f.accountFee()
	default:
		return new(big.Int)
	}
}

// FeeForAmount estimates the fee for sending amount of cur. Currencies the
// calculator cannot quote yield ErrUnsupported and callers must not proceed.
func (f *FeeCalculator) FeeForAmount(amount *big.Int, cur chain.Currency) (*big.Int, error) {
	switch c := cur.(type) {
	case chain.UTXO:
		if f.wallet == nil {
			return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": c.Code, "reason": "no wallet"})
		}
		if amount == nil || amount.Sign() <= 0 || !amount.IsUint64() {
			return nil, payerr.WithCause(payerr.ErrCreationFailed, payerr.ErrInvalidAmount)
		}
		var (
			fee uint64
			ok  bool
		)
		executor.Run(f.exec, func() { fee, ok = f.wallet.FeeForAmount(amount.Uint64()) })
		if !ok {
			return nil, payerr.WithDetails(payerr.ErrCreationFailed, map[string]string{"reason": "wallet cannot estimate fee"})
		}
		return new(big.Int).SetUint64(fee), nil
	case chain.Account:
		if f.accounts == nil {
			return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": c.Code, "reason": "no account service"})
		}
		return f.accountFee(), nil
	case chain.Token:
		return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": c.Code})
	default:
		return nil, payerr.ErrUnsupported
	}
}

func (f *FeeCalculator) accountFee() *big.Int {
	if f.accounts == nil {
		return new(big.Int)
	}
	return account.TransferFee(f.accounts.GasPrice())
}
