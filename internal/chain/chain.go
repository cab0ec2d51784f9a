// Package chain defines the currencies a send can be made in and common
// network utilities shared by the chain adapters.
package chain

import (
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/chaincfg"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Model identifies the ledger model of a currency.
type Model int

// Ledger models.
const (
	ModelUTXO Model = iota + 1
	ModelAccount
	ModelToken
)

// String returns the model name.
func (m Model) String() string {
	switch m {
	case ModelUTXO:
		return "utxo"
	case ModelAccount:
		return "account"
	case ModelToken:
		return "token"
	default:
		return "unknown"
	}
}

// Currency is a closed set of currency variants. Callers dispatch on the
// concrete type with a type switch: UTXO, Account or Token.
type Currency interface {
	// Symbol returns the ticker code, e.g. "BTC".
	Symbol() string

	// Decimals returns the number of base-unit decimal places.
	Decimals() int

	// Model returns the ledger model.
	Model() Model

	currency()
}

// UTXO is a currency whose transactions spend unspent outputs.
type UTXO struct {
	Code   string
	Params *chaincfg.Params

	// ForkID is mixed into the signature hash type on forked chains; zero otherwise.
	ForkID uint32
}

// Symbol implements Currency.
func (u UTXO) Symbol() string { return u.Code }

// Decimals implements Currency.
func (UTXO) Decimals() int { return 8 }

// Model implements Currency.
func (UTXO) Model() Model { return ModelUTXO }

func (UTXO) currency() {}

// DustLimit returns the smallest output value in satoshis the network relays.
func (UTXO) DustLimit() uint64 { return 546 }

// Account is a currency on an account-model chain paying fees in gas.
type Account struct {
	Code    string
	ChainID *big.Int
}

// Symbol implements Currency.
func (a Account) Symbol() string { return a.Code }

// Decimals implements Currency.
func (Account) Decimals() int { return 18 }

// Model implements Currency.
func (Account) Model() Model { return ModelAccount }

func (Account) currency() {}

// Token is a contract token on an account-model chain. Tokens are
// recognized so they can be rejected explicitly; fee and send requests for
// them fail with ErrUnsupported.
type Token struct {
	Code      string
	Contract  string
	Precision int
}

// Symbol implements Currency.
func (t Token) Symbol() string { return t.Code }

// Decimals implements Currency.
func (t Token) Decimals() int { return t.Precision }

// Model implements Currency.
func (Token) Model() Model { return ModelToken }

func (Token) currency() {}

// Well-known currencies.
var (
	BTC = UTXO{Code: "BTC", Params: &chaincfg.MainNetParams}
	BCH = UTXO{Code: "BCH", Params: &chaincfg.MainNetParams, ForkID: 0x40}
	ETH = Account{Code: "ETH", ChainID: big.NewInt(1)}

	USDC = Token{Code: "USDC", Contract: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Precision: 6}
)

// BTCForNetwork returns the BTC currency bound to the named network.
func BTCForNetwork(network string) (UTXO, error) {
	params, err := NetworkParams(network)
	if err != nil {
		return UTXO{}, err
	}
	return UTXO{Code: "BTC", Params: params}, nil
}

// NetworkParams maps a network name onto its chain parameters.
func NetworkParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "", "mainnet", "main":
		return &chaincfg.MainNetParams, nil
	case "testnet3", "testnet", "test":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"network": network})
	}
}

// ParseCurrency resolves a ticker code into a known currency.
func ParseCurrency(code string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "BTC":
		return BTC, nil
	case "BCH":
		return BCH, nil
	case "ETH":
		return ETH, nil
	case "USDC":
		return USDC, nil
	default:
		return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": code})
	}
}

