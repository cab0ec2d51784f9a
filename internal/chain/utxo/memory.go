package utxo

import (
	"math/bits"
	"sort"
	"strconv"
	"sync"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Coin is a spendable output held by the wallet.
type Coin struct {
	OutPoint wire.OutPoint
	Value    uint64
	PkScript []byte
}

// MemoryWallet is a Wallet over an in-memory coin set. It never signs; the
// transactions it builds carry empty unlocking scripts.
type MemoryWallet struct {
	mu           sync.Mutex
	params       *chaincfg.Params
	coins        map[wire.OutPoint]Coin
	feePerKB     uint64
	receiveAddr  string
	changeScript []byte
}

// NewMemoryWallet creates a wallet for params. Refunds go to receiveAddress
// and change goes to changeAddress.
func NewMemoryWallet(params *chaincfg.Params, receiveAddress, changeAddress string, feePerKB uint64) (*MemoryWallet, error) {
	if _, err := ScriptForAddress(receiveAddress, params); err != nil {
		return nil, err
	}
	changeScript, err := ScriptForAddress(changeAddress, params)
	if err != nil {
		return nil, err
	}

	return &MemoryWallet{
		params:       params,
		coins:        make(map[wire.OutPoint]Coin),
		feePerKB:     feePerKB,
		receiveAddr:  receiveAddress,
		changeScript: changeScript,
	}, nil
}

// AddCoin adds a spendable coin.
func (w *MemoryWallet) AddCoin(c Coin) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.coins[c.OutPoint] = c
}

// Balance returns the total value of held coins.
func (w *MemoryWallet) Balance() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	var total uint64
	for _, c := range w.coins {
		total += c.Value
	}
	return total
}

// FeePerKB implements Wallet.
func (w *MemoryWallet) FeePerKB() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.feePerKB
}

// SetFeePerKB implements Wallet.
func (w *MemoryWallet) SetFeePerKB(rate uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.feePerKB = rate
}

// ReceiveAddress implements Wallet.
func (w *MemoryWallet) ReceiveAddress() string {
	return w.receiveAddr
}

// CreateTransaction implements Wallet.
func (w *MemoryWallet) CreateTransaction(amount uint64, destination string) (*wire.MsgTx, error) {
	script, err := ScriptForAddress(destination, w.params)
	if err != nil {
		return nil, err
	}
	return w.CreateTransactionForOutputs([]Output{{Amount: amount, Script: script}})
}

// CreateTransactionForOutputs implements Wallet.
func (w *MemoryWallet) CreateTransactionForOutputs(outputs []Output) (*wire.MsgTx, error) {
	if len(outputs) == 0 {
		return nil, payerr.ErrInvalidAmount
	}
	for _, o := range outputs {
		if o.Amount == 0 || o.Amount > MaxAmount {
			return nil, payerr.WithDetails(payerr.ErrInvalidAmount, map[string]string{
				"amount": strconv.FormatUint(o.Amount, 10),
			})
		}
		if o.Amount < DustLimit {
			return nil, payerr.WithDetails(payerr.ErrDustOutput, map[string]string{
				"amount": strconv.FormatUint(o.Amount, 10),
			})
		}
		if len(o.Script) == 0 {
			return nil, payerr.ErrInvalidAddress
		}
	}

	target, err := SumOutputs(outputs)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sel, err := w.selectCoins(target, len(outputs))
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	for _, c := range sel.coins {
		op := c.OutPoint
		tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	}
	for _, o := range outputs {
		tx.AddTxOut(wire.NewTxOut(int64(o.Amount), o.Script)) //nolint:gosec // amounts are bounded by coin values
	}
	if sel.change > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(sel.change), w.changeScript)) //nolint:gosec // bounded by coin values
	}
	return tx, nil
}

// FeeForTx implements Wallet. The fee is only known when every input spends
// a coin held by this wallet.
func (w *MemoryWallet) FeeForTx(tx *wire.MsgTx) (uint64, bool) {
	if tx == nil {
		return 0, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	var in uint64
	for _, txIn := range tx.TxIn {
		c, ok := w.coins[txIn.PreviousOutPoint]
		if !ok {
			return 0, false
		}
		in += c.Value
	}

	var out uint64
	for _, txOut := range tx.TxOut {
		out += uint64(txOut.Value) //nolint:gosec // output values are non-negative
	}
	if out > in {
		return 0, false
	}
	return in - out, true
}

// FeeForAmount implements Wallet.
func (w *MemoryWallet) FeeForAmount(amount uint64) (uint64, bool) {
	if amount == 0 || amount > MaxAmount {
		return 0, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sel, err := w.selectCoins(amount, 1)
	if err != nil {
		return 0, false
	}
	return sel.fee, true
}

type selection struct {
	coins  []Coin
	fee    uint64
	change uint64
}

// selectCoins picks coins largest first until they cover target plus the fee
// for a transaction with numOutputs outputs and a change output. Change below
// the dust limit is dropped into the fee. Caller holds w.mu.
func (w *MemoryWallet) selectCoins(target uint64, numOutputs int) (*selection, error) {
	sorted := make([]Coin, 0, len(w.coins))
	for _, c := range w.coins {
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value == sorted[j].Value {
			return sorted[i].OutPoint.String() < sorted[j].OutPoint.String()
		}
		return sorted[i].Value > sorted[j].Value
	})

	var (
		selected []Coin
		total    uint64
	)
	for _, c := range sorted {
		selected = append(selected, c)
		total += c.Value

		withChange := EstimateFeeForTx(len(selected), numOutputs+1, w.feePerKB)
		if need, ok := addFee(target, withChange); ok && total >= need {
			change := total - target - withChange
			if change >= DustLimit {
				return &selection{coins: selected, fee: withChange, change: change}, nil
			}
			return &selection{coins: selected, fee: total - target}, nil
		}

		noChange := EstimateFeeForTx(len(selected), numOutputs, w.feePerKB)
		if need, ok := addFee(target, noChange); ok && total >= need {
			return &selection{coins: selected, fee: total - target}, nil
		}
	}

	required := "overflow"
	if need, ok := addFee(target, EstimateFeeForTx(len(selected), numOutputs, w.feePerKB)); ok {
		required = strconv.FormatUint(need, 10)
	}
	return nil, payerr.WithDetails(payerr.ErrInsufficientFunds, map[string]string{
		"required":  required,
		"available": strconv.FormatUint(total, 10),
	})
}

func addFee(target, fee uint64) (uint64, bool) {
	sum, carry := bits.Add64(target, fee, 0)
	return sum, carry == 0
}
