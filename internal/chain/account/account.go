// Package account provides the account-model send service contract and a
// JSON-RPC implementation backed by a node-managed account.
package account

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// GasLimitTransfer is the gas consumed by a plain value transfer.
const GasLimitTransfer = params.TxGas

// PendingTx is the handle returned once the service accepted a transfer.
type PendingTx struct {
	Hash     string
	From     string
	To       string
	Amount   *big.Int
	GasPrice *big.Int
}

// Service signs and submits account-model transfers.
type Service interface {
	// SendTransaction submits a transfer of amount (wei) to the destination.
	// Errors are reported as *ServiceError.
	SendTransaction(ctx context.Context, to string, amount *big.Int) (*PendingTx, error)

	// GasPrice returns the last known gas price in wei, or nil when unknown.
	GasPrice() *big.Int
}

// TransferFee returns gasPrice * GasLimitTransfer, or zero when gasPrice is nil.
func TransferFee(gasPrice *big.Int) *big.Int {
	if gasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(GasLimitTransfer))
}

// ErrorKind classifies a ServiceError.
type ErrorKind int

// Service error kinds.
const (
	KindTransport ErrorKind = iota + 1
	KindDecode
	KindRPC
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindDecode:
		return "decode"
	case KindRPC:
		return "rpc"
	default:
		return "unknown"
	}
}

// ServiceError is a failure reported by the account service.
type ServiceError struct {
	Kind    ErrorKind
	Code    int
	Message string
	Err     error
}

// Error returns the most specific description available: the remote message
// for RPC failures, otherwise the underlying cause.
func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("account service %s error", e.Kind)
}

// Unwrap exposes the kind sentinel and the underlying cause.
func (e *ServiceError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *ServiceError) sentinel() error {
	switch e.Kind {
	case KindDecode:
		return payerr.ErrServiceDecode
	case KindRPC:
		return payerr.ErrServiceRPC
	default:
		return payerr.ErrServiceTransport
	}
}
