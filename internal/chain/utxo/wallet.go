// Package utxo provides the UTXO-model wallet contract used by the send
// flow, an in-memory reference wallet, and an HTTP broadcast publisher.
package utxo

import (
	"fmt"
	"math/bits"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Output is a transaction output to create: a value and its locking script.
type Output struct {
	Amount uint64
	Script []byte
}

// Wallet selects coins and constructs unsigned transactions. Implementations
// must be safe for use from the wallet executor and report their fee rate in
// satoshis per kilobyte.
type Wallet interface {
	// CreateTransaction builds an unsigned transaction paying amount to destination.
	CreateTransaction(amount uint64, destination string) (*wire.MsgTx, error)

	// CreateTransactionForOutputs builds an unsigned transaction paying outputs.
	CreateTransactionForOutputs(outputs []Output) (*wire.MsgTx, error)

	// FeeForTx returns the fee paid by tx, if the wallet knows its inputs.
	FeeForTx(tx *wire.MsgTx) (uint64, bool)

	// FeeForAmount estimates the fee to send amount at the current rate.
	FeeForAmount(amount uint64) (uint64, bool)

	// FeePerKB returns the current fee rate.
	FeePerKB() uint64

	// SetFeePerKB replaces the current fee rate.
	SetFeePerKB(rate uint64)

	// ReceiveAddress returns an address the wallet can receive refunds on.
	ReceiveAddress() string
}

// ScriptForAddress decodes address on params and returns its output script.
func ScriptForAddress(address string, params *chaincfg.Params) ([]byte, error) {
	if address == "" {
		return nil, payerr.ErrInvalidAddress
	}

	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, payerr.WithCause(payerr.ErrInvalidAddress, err)
	}
	if !addr.IsForNet(params) {
		return nil, payerr.WithDetails(payerr.ErrInvalidAddress, map[string]string{
			"address": address,
			"network": params.Name,
		})
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("building output script: %w", err)
	}
	return script, nil
}

// MaxAmount is the most satoshis one output, or a whole transaction, can
// carry.
const MaxAmount uint64 = btcutil.MaxSatoshi

// AddAmounts returns a+b, or ErrInvalidAmount when the sum overflows or
// exceeds MaxAmount.
func AddAmounts(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 || sum > MaxAmount {
		return 0, payerr.WithDetails(payerr.ErrInvalidAmount, map[string]string{
			"reason": "amount exceeds the maximum supply",
		})
	}
	return sum, nil
}

// SumOutputs returns the total value of outputs.
func SumOutputs(outputs []Output) (uint64, error) {
	var total uint64
	for _, o := range outputs {
		var err error
		if total, err = AddAmounts(total, o.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}
