package paymentprotocol

import (
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/mrz1836/paysend/internal/chain/utxo"
)

// RefundOutput is where the merchant sends refunds.
type RefundOutput struct {
	Address string
	Script  []byte
	Amount  uint64
}

// Payment is the message posted to the merchant after broadcast.
type Payment struct {
	MerchantData []byte
	Transactions []*wire.MsgTx
	RefundTo     []RefundOutput
	Memo         string
	Currency     string
}

// ACK is the merchant's acknowledgment of a payment.
type ACK struct {
	Payment *Payment
	Memo    string
}

// NewPayment builds the payment for req paying with tx. The refund output
// returns the full requested amount to refundAddress.
func NewPayment(req *Request, tx *wire.MsgTx, refundAddress, currency string, params *chaincfg.Params) (*Payment, error) {
	script, err := utxo.ScriptForAddress(refundAddress, params)
	if err != nil {
		return nil, err
	}
	total, err := req.TotalAmount()
	if err != nil {
		return nil, err
	}

	return &Payment{
		MerchantData: req.MerchantData,
		Transactions: []*wire.MsgTx{tx},
		RefundTo: []RefundOutput{{
			Address: refundAddress,
			Script:  script,
			Amount:  total,
		}},
		Currency: currency,
	}, nil
}
