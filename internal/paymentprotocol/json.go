package paymentprotocol

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// jsonRequest is the JSON payment request wire form.
type jsonRequest struct {
	Network         string       `json:"network"`
	Currency        string       `json:"currency,omitempty"`
	RequiredFeeRate float64      `json:"requiredFeeRate"`
	Outputs         []jsonOutput `json:"outputs"`
	Time            time.Time    `json:"time"`
	Expires         time.Time    `json:"expires"`
	Memo            string       `json:"memo,omitempty"`
	PaymentURL      string       `json:"paymentUrl"`
	PaymentID       string       `json:"paymentId,omitempty"`
	MerchantData    string       `json:"merchantData,omitempty"`
}

type jsonOutput struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address,omitempty"`
	Script  string `json:"script,omitempty"`
}

// jsonPayment is the JSON payment wire form.
type jsonPayment struct {
	Currency     string       `json:"currency,omitempty"`
	MerchantData string       `json:"merchantData,omitempty"`
	Transactions []string     `json:"transactions"`
	RefundTo     []jsonOutput `json:"refundTo,omitempty"`
	Memo         string       `json:"memo,omitempty"`
}

type jsonACK struct {
	Payment *jsonPayment `json:"payment,omitempty"`
	Memo    string       `json:"memo,omitempty"`
}

func decodeRequestJSON(b []byte) (*Request, error) {
	var jr jsonRequest
	if err := json.Unmarshal(b, &jr); err != nil {
		return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
	}

	req := &Request{
		Network:         jr.Network,
		RequiredFeeRate: jr.RequiredFeeRate,
		PaymentURL:      jr.PaymentURL,
		MIMEType:        MIMEPaymentRequestJSON,
		Memo:            jr.Memo,
		Time:            jr.Time,
		Expires:         jr.Expires,
		PaymentID:       jr.PaymentID,
	}
	if jr.MerchantData != "" {
		req.MerchantData = []byte(jr.MerchantData)
	}
	for _, o := range jr.Outputs {
		out := Output{Address: o.Address, Amount: o.Amount}
		if o.Script != "" {
			script, err := hex.DecodeString(o.Script)
			if err != nil {
				return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
			}
			out.Script = script
		}
		req.Outputs = append(req.Outputs, out)
	}
	return req, nil
}

// EncodeRequestJSON serializes req in the JSON flavor.
func EncodeRequestJSON(req *Request) ([]byte, error) {
	jr := jsonRequest{
		Network:         req.Network,
		RequiredFeeRate: req.RequiredFeeRate,
		Time:            req.Time,
		Expires:         req.Expires,
		Memo:            req.Memo,
		PaymentURL:      req.PaymentURL,
		PaymentID:       req.PaymentID,
		MerchantData:    string(req.MerchantData),
	}
	for _, o := range req.Outputs {
		out := jsonOutput{Amount: o.Amount, Address: o.Address}
		if len(o.Script) > 0 {
			out.Script = hex.EncodeToString(o.Script)
		}
		jr.Outputs = append(jr.Outputs, out)
	}
	return json.Marshal(jr)
}

func toJSONPayment(p *Payment) (*jsonPayment, error) {
	jp := &jsonPayment{
		Currency:     p.Currency,
		MerchantData: string(p.MerchantData),
		Transactions: make([]string, 0, len(p.Transactions)),
		Memo:         p.Memo,
	}
	for _, tx := range p.Transactions {
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return nil, fmt.Errorf("serializing transaction: %w", err)
		}
		jp.Transactions = append(jp.Transactions, hex.EncodeToString(buf.Bytes()))
	}
	for _, r := range p.RefundTo {
		jp.RefundTo = append(jp.RefundTo, jsonOutput{
			Amount:  r.Amount,
			Address: r.Address,
			Script:  hex.EncodeToString(r.Script),
		})
	}
	return jp, nil
}

func fromJSONPayment(jp *jsonPayment) (*Payment, error) {
	p := &Payment{
		Currency: jp.Currency,
		Memo:     jp.Memo,
	}
	if jp.MerchantData != "" {
		p.MerchantData = []byte(jp.MerchantData)
	}
	for _, raw := range jp.Transactions {
		b, err := hex.DecodeString(raw)
		if err != nil {
			return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
		}
		tx := wire.NewMsgTx(wire.TxVersion)
		if err := tx.Deserialize(bytes.NewReader(b)); err != nil {
			return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
		}
		p.Transactions = append(p.Transactions, tx)
	}
	for _, r := range jp.RefundTo {
		script, err := hex.DecodeString(r.Script)
		if err != nil {
			return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
		}
		p.RefundTo = append(p.RefundTo, RefundOutput{Address: r.Address, Script: script, Amount: r.Amount})
	}
	return p, nil
}

// EncodePaymentJSON serializes a payment in the JSON flavor.
func EncodePaymentJSON(p *Payment) ([]byte, error) {
	jp, err := toJSONPayment(p)
	if err != nil {
		return nil, err
	}
	return json.Marshal(jp)
}

// DecodePaymentJSON parses a JSON-flavor payment.
func DecodePaymentJSON(b []byte) (*Payment, error) {
	var jp jsonPayment
	if err := json.Unmarshal(b, &jp); err != nil {
		return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
	}
	return fromJSONPayment(&jp)
}

// EncodeACKJSON serializes an acknowledgment in the JSON flavor.
func EncodeACKJSON(ack *ACK) ([]byte, error) {
	ja := jsonACK{Memo: ack.Memo}
	if ack.Payment != nil {
		jp, err := toJSONPayment(ack.Payment)
		if err != nil {
			return nil, err
		}
		ja.Payment = jp
	}
	return json.Marshal(ja)
}

// DecodeACKJSON parses a JSON-flavor acknowledgment.
func DecodeACKJSON(b []byte) (*ACK, error) {
	var ja jsonACK
	if err := json.Unmarshal(b, &ja); err != nil {
		return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
	}

	ack := &ACK{Memo: ja.Memo}
	if ja.Payment != nil {
		p, err := fromJSONPayment(ja.Payment)
		if err != nil {
			return nil, err
		}
		ack.Payment = p
	}
	return ack, nil
}
