// Package paymentprotocol implements merchant payment requests and payment
// settlement in both the BIP70 binary flavor and the JSON flavor.
package paymentprotocol

import (
	"math"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/go-playground/validator/v10"

	"github.com/mrz1836/paysend/internal/chain/utxo"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Media types.
const (
	MIMEPaymentRequestJSON   = "application/payment-request"
	MIMEPaymentJSON          = "application/payment"
	MIMEPaymentACKJSON       = "application/payment-ack"
	MIMEPaymentRequestBinary = "application/bitcoin-paymentrequest"
	MIMEPaymentBinary        = "application/bitcoin-payment"
	MIMEPaymentACKBinary     = "application/bitcoin-paymentack"
)

// Flavor selects the wire encoding of a settlement.
type Flavor int

// Flavors.
const (
	FlavorBinary Flavor = iota + 1
	FlavorJSON
)

// String returns the flavor name.
func (f Flavor) String() string {
	if f == FlavorJSON {
		return "json"
	}
	return "binary"
}

// PaymentMIME returns the content type of a payment in this flavor.
func (f Flavor) PaymentMIME() string {
	if f == FlavorJSON {
		return MIMEPaymentJSON
	}
	return MIMEPaymentBinary
}

// ACKMIME returns the content type of an acknowledgment in this flavor.
func (f Flavor) ACKMIME() string {
	if f == FlavorJSON {
		return MIMEPaymentACKJSON
	}
	return MIMEPaymentACKBinary
}

// Output is a payment destination requested by the merchant. At least one
// of Address or Script is set.
type Output struct {
	Address string `json:"address,omitempty"`
	Amount  uint64 `json:"amount" validate:"gt=0,lte=2100000000000000"`
	Script  []byte `json:"-"`
}

// Request is a merchant payment request. It is immutable once decoded.
type Request struct {
	Network         string    `validate:"omitempty,oneof=main test regtest"`
	Outputs         []Output  `validate:"required,min=1,dive"`
	RequiredFeeRate float64   `validate:"gte=0"` // satoshis per byte
	MerchantData    []byte    `validate:"-"`
	PaymentURL      string    `validate:"omitempty,url"`
	MIMEType        string    `validate:"-"`
	Memo            string    `validate:"-"`
	Time            time.Time `validate:"-"`
	Expires         time.Time `validate:"-"`
	PaymentID       string    `validate:"-"`
}

// Flavor returns FlavorJSON for JSON requests and FlavorBinary otherwise.
func (r *Request) Flavor() Flavor {
	if r.MIMEType == MIMEPaymentRequestJSON {
		return FlavorJSON
	}
	return FlavorBinary
}

// TotalAmount returns the sum of the requested output amounts. A sum past
// the maximum supply is ErrInvalidAmount.
func (r *Request) TotalAmount() (uint64, error) {
	var total uint64
	for _, o := range r.Outputs {
		var err error
		if total, err = utxo.AddAmounts(total, o.Amount); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// RequiredFeePerKB converts the required fee rate to satoshis per kilobyte.
func (r *Request) RequiredFeePerKB() uint64 {
	perKB := math.Ceil(r.RequiredFeeRate * 1000)
	switch {
	case perKB <= 0 || math.IsNaN(perKB):
		return 0
	case perKB >= math.MaxInt64:
		return math.MaxInt64
	}
	return uint64(perKB)
}

// Expired reports whether the request has an expiry that is before now.
func (r *Request) Expired(now time.Time) bool {
	return !r.Expires.IsZero() && now.After(r.Expires)
}

// Validate checks the request's structural constraints.
func (r *Request) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if payerr.As(err, &verrs) && len(verrs) > 0 {
			return payerr.WithDetails(payerr.ErrInvalidFormat, map[string]string{
				"field": verrs[0].Namespace(),
				"rule":  verrs[0].Tag(),
			})
		}
		return payerr.WithCause(payerr.ErrInvalidFormat, err)
	}

	for _, o := range r.Outputs {
		if o.Address == "" && len(o.Script) == 0 {
			return payerr.WithDetails(payerr.ErrInvalidFormat, map[string]string{
				"field": "Request.Outputs",
				"rule":  "address_or_script",
			})
		}
	}
	if _, err := r.TotalAmount(); err != nil {
		return payerr.WithDetails(payerr.WithCause(payerr.ErrInvalidFormat, err), map[string]string{
			"field": "Request.Outputs",
			"rule":  "total_amount",
		})
	}
	return nil
}

// UTXOOutputs resolves the requested outputs into wallet outputs on params.
// Explicit scripts take precedence over addresses.
func (r *Request) UTXOOutputs(params *chaincfg.Params) ([]utxo.Output, error) {
	outputs := make([]utxo.Output, 0, len(r.Outputs))
	for _, o := range r.Outputs {
		script := o.Script
		if len(script) == 0 {
			s, err := utxo.ScriptForAddress(o.Address, params)
			if err != nil {
				return nil, err
			}
			script = s
		}
		outputs = append(outputs, utxo.Output{Amount: o.Amount, Script: script})
	}
	return outputs, nil
}
