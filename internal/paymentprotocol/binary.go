package paymentprotocol

import (
	"bytes"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/wire"
	"google.golang.org/protobuf/encoding/protowire"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// BIP70 field numbers.
const (
	fieldOutputAmount protowire.Number = 1
	fieldOutputScript protowire.Number = 2

	fieldDetailsNetwork      protowire.Number = 1
	fieldDetailsOutputs      protowire.Number = 2
	fieldDetailsTime         protowire.Number = 3
	fieldDetailsExpires      protowire.Number = 4
	fieldDetailsMemo         protowire.Number = 5
	fieldDetailsPaymentURL   protowire.Number = 6
	fieldDetailsMerchantData protowire.Number = 7

	fieldRequestVersion protowire.Number = 1
	fieldRequestPKIType protowire.Number = 2
	fieldRequestDetails protowire.Number = 4

	fieldPaymentMerchantData protowire.Number = 1
	fieldPaymentTransactions protowire.Number = 2
	fieldPaymentRefundTo     protowire.Number = 3
	fieldPaymentMemo         protowire.Number = 4

	fieldACKPayment protowire.Number = 1
	fieldACKMemo    protowire.Number = 2
)

// field is one decoded protobuf field. Varint values land in u64 and
// length-delimited values in raw.
type field struct {
	num protowire.Number
	typ protowire.Type
	u64 uint64
	raw []byte
}

// parseFields splits a protobuf message into its fields.
func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			f.u64 = v
			n = m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			f.raw = v
			n = m
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
		}
		b = b[n:]
		fields = append(fields, f)
	}
	return fields, nil
}

func appendOutput(b []byte, num protowire.Number, amount uint64, script []byte) []byte {
	var out []byte
	out = protowire.AppendTag(out, fieldOutputAmount, protowire.VarintType)
	out = protowire.AppendVarint(out, amount)
	out = protowire.AppendTag(out, fieldOutputScript, protowire.BytesType)
	out = protowire.AppendBytes(out, script)

	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, out)
}

func parseOutput(b []byte) (Output, error) {
	fields, err := parseFields(b)
	if err != nil {
		return Output{}, err
	}
	var o Output
	for _, f := range fields {
		switch f.num {
		case fieldOutputAmount:
			o.Amount = f.u64
		case fieldOutputScript:
			o.Script = append([]byte(nil), f.raw...)
		}
	}
	return o, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// EncodePaymentBinary serializes a payment as a BIP70 Payment message.
func EncodePaymentBinary(p *Payment) ([]byte, error) {
	var b []byte
	b = appendBytes(b, fieldPaymentMerchantData, p.MerchantData)
	for _, tx := range p.Transactions {
		var buf bytes.Buffer
		if err := tx.Serialize(&buf); err != nil {
			return nil, fmt.Errorf("serializing transaction: %w", err)
		}
		b = protowire.AppendTag(b, fieldPaymentTransactions, protowire.BytesType)
		b = protowire.AppendBytes(b, buf.Bytes())
	}
	for _, r := range p.RefundTo {
		b = appendOutput(b, fieldPaymentRefundTo, r.Amount, r.Script)
	}
	b = appendString(b, fieldPaymentMemo, p.Memo)
	return b, nil
}

// DecodePaymentBinary parses a BIP70 Payment message.
func DecodePaymentBinary(b []byte) (*Payment, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
	}

	p := &Payment{}
	for _, f := range fields {
		switch f.num {
		case fieldPaymentMerchantData:
			p.MerchantData = append([]byte(nil), f.raw...)
		case fieldPaymentTransactions:
			tx := wire.NewMsgTx(wire.TxVersion)
			if err := tx.Deserialize(bytes.NewReader(f.raw)); err != nil {
				return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
			}
			p.Transactions = append(p.Transactions, tx)
		case fieldPaymentRefundTo:
			o, err := parseOutput(f.raw)
			if err != nil {
				return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
			}
			p.RefundTo = append(p.RefundTo, RefundOutput{Script: o.Script, Amount: o.Amount})
		case fieldPaymentMemo:
			p.Memo = string(f.raw)
		}
	}
	return p, nil
}

// EncodeACKBinary serializes a BIP70 PaymentACK message.
func EncodeACKBinary(ack *ACK) ([]byte, error) {
	payment := ack.Payment
	if payment == nil {
		payment = &Payment{}
	}
	inner, err := EncodePaymentBinary(payment)
	if err != nil {
		return nil, err
	}

	var b []byte
	b = protowire.AppendTag(b, fieldACKPayment, protowire.BytesType)
	b = protowire.AppendBytes(b, inner)
	b = appendString(b, fieldACKMemo, ack.Memo)
	return b, nil
}

// DecodeACKBinary parses a BIP70 PaymentACK message. The embedded payment
// is required.
func DecodeACKBinary(b []byte) (*ACK, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
	}

	ack := &ACK{}
	for _, f := range fields {
		switch f.num {
		case fieldACKPayment:
			p, err := DecodePaymentBinary(f.raw)
			if err != nil {
				return nil, err
			}
			ack.Payment = p
		case fieldACKMemo:
			ack.Memo = string(f.raw)
		}
	}
	if ack.Payment == nil {
		return nil, payerr.WithDetails(payerr.ErrInvalidFormat, map[string]string{"missing": "payment"})
	}
	return ack, nil
}

// EncodeRequestBinary serializes req as an unsigned BIP70 PaymentRequest.
func EncodeRequestBinary(req *Request) []byte {
	var details []byte
	details = appendString(details, fieldDetailsNetwork, req.Network)
	for _, o := range req.Outputs {
		details = appendOutput(details, fieldDetailsOutputs, o.Amount, o.Script)
	}
	details = appendUint(details, fieldDetailsTime, unixSeconds(req.Time))
	if !req.Expires.IsZero() {
		details = appendUint(details, fieldDetailsExpires, unixSeconds(req.Expires))
	}
	details = appendString(details, fieldDetailsMemo, req.Memo)
	details = appendString(details, fieldDetailsPaymentURL, req.PaymentURL)
	details = appendBytes(details, fieldDetailsMerchantData, req.MerchantData)

	var b []byte
	b = appendUint(b, fieldRequestVersion, 1)
	b = appendString(b, fieldRequestPKIType, "none")
	b = protowire.AppendTag(b, fieldRequestDetails, protowire.BytesType)
	return protowire.AppendBytes(b, details)
}

// decodeRequestBinary parses a BIP70 PaymentRequest. Signatures are not
// verified.
func decodeRequestBinary(b []byte) (*Request, error) {
	fields, err := parseFields(b)
	if err != nil {
		return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
	}

	var details []byte
	found := false
	for _, f := range fields {
		if f.num == fieldRequestDetails && f.typ == protowire.BytesType {
			details, found = f.raw, true
		}
	}
	if !found {
		return nil, payerr.WithDetails(payerr.ErrInvalidFormat, map[string]string{"missing": "serialized_payment_details"})
	}

	fields, err = parseFields(details)
	if err != nil {
		return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
	}

	req := &Request{Network: "main", MIMEType: MIMEPaymentRequestBinary}
	for _, f := range fields {
		switch f.num {
		case fieldDetailsNetwork:
			req.Network = string(f.raw)
		case fieldDetailsOutputs:
			o, err := parseOutput(f.raw)
			if err != nil {
				return nil, payerr.WithCause(payerr.ErrInvalidFormat, err)
			}
			req.Outputs = append(req.Outputs, o)
		case fieldDetailsTime:
			req.Time = fromUnixSeconds(f.u64)
		case fieldDetailsExpires:
			req.Expires = fromUnixSeconds(f.u64)
		case fieldDetailsMemo:
			req.Memo = string(f.raw)
		case fieldDetailsPaymentURL:
			req.PaymentURL = string(f.raw)
		case fieldDetailsMerchantData:
			req.MerchantData = append([]byte(nil), f.raw...)
		}
	}
	return req, nil
}

func unixSeconds(t time.Time) uint64 {
	if t.IsZero() || t.Unix() < 0 {
		return 0
	}
	return uint64(t.Unix()) //nolint:gosec // checked non-negative
}

func fromUnixSeconds(s uint64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(int64(s), 0).UTC() //nolint:gosec // protocol timestamps fit in int64
}
