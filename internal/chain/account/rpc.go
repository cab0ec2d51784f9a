package account

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// maxResponseBody bounds an RPC response.
const maxResponseBody int64 = 1 << 20

// request represents a JSON-RPC 2.0 request.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      uint64 `json:"id"`
}

// response represents a JSON-RPC 2.0 response.
type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError represents a JSON-RPC error.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// sendArgs are the eth_sendTransaction parameters.
type sendArgs struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Gas      hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big   `json:"gasPrice,omitempty"`
	Value    *hexutil.Big   `json:"value"`
}

// RPCService sends transfers from an account unlocked on the node.
type RPCService struct {
	url        string
	from       common.Address
	httpClient *http.Client
	idCounter  atomic.Uint64

	mu       sync.RWMutex
	gasPrice *big.Int
}

// RPCOption configures an RPCService.
type RPCOption func(*RPCService)

// WithRPCHTTPClient sets the HTTP client.
func WithRPCHTTPClient(c *http.Client) RPCOption {
	return func(s *RPCService) { s.httpClient = c }
}

// WithGasPrice seeds the cached gas price.
func WithGasPrice(price *big.Int) RPCOption {
	return func(s *RPCService) {
		if price != nil {
			s.gasPrice = new(big.Int).Set(price)
		}
	}
}

// NewRPCService creates a service sending from the given node account.
func NewRPCService(url, from string, opts ...RPCOption) (*RPCService, error) {
	if !common.IsHexAddress(from) {
		return nil, payerr.WithDetails(payerr.ErrInvalidAddress, map[string]string{"from": from})
	}

	s := &RPCService{
		url:        url,
		from:       common.HexToAddress(from),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// From returns the sending account.
func (s *RPCService) From() string {
	return s.from.Hex()
}

// GasPrice implements Service.
func (s *RPCService) GasPrice() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gasPrice == nil {
		return nil
	}
	return new(big.Int).Set(s.gasPrice)
}

// RefreshGasPrice fetches and caches the node's gas price.
func (s *RPCService) RefreshGasPrice(ctx context.Context) (*big.Int, error) {
	result, err := s.call(ctx, "eth_gasPrice")
	if err != nil {
		return nil, err
	}

	var price hexutil.Big
	if err := json.Unmarshal(result, &price); err != nil {
		return nil, &ServiceError{Kind: KindDecode, Err: fmt.Errorf("parsing gas price: %w", err)}
	}

	s.mu.Lock()
	s.gasPrice = price.ToInt()
	s.mu.Unlock()

	return new(big.Int).Set(price.ToInt()), nil
}

// SendTransaction implements Service.
func (s *RPCService) SendTransaction(ctx context.Context, to string, amount *big.Int) (*PendingTx, error) {
	if !common.IsHexAddress(to) {
		return nil, payerr.WithDetails(payerr.ErrInvalidAddress, map[string]string{"to": to})
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, payerr.ErrInvalidAmount
	}

	gasPrice := s.GasPrice()
	args := sendArgs{
		From:  s.from,
		To:    common.HexToAddress(to),
		Gas:   hexutil.Uint64(GasLimitTransfer),
		Value: (*hexutil.Big)(new(big.Int).Set(amount)),
	}
	if gasPrice != nil {
		args.GasPrice = (*hexutil.Big)(gasPrice)
	}

	result, err := s.call(ctx, "eth_sendTransaction", args)
	if err != nil {
		return nil, err
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return nil, &ServiceError{Kind: KindDecode, Err: fmt.Errorf("parsing tx hash: %w", err)}
	}
	raw, err := hexutil.Decode(hash)
	if err != nil || len(raw) != common.HashLength {
		return nil, &ServiceError{Kind: KindDecode, Message: fmt.Sprintf("invalid transaction hash %q", hash)}
	}

	return &PendingTx{
		Hash:     common.BytesToHash(raw).Hex(),
		From:     s.from.Hex(),
		To:       args.To.Hex(),
		Amount:   new(big.Int).Set(amount),
		GasPrice: gasPrice,
	}, nil
}

// call performs a JSON-RPC call, classifying failures as ServiceErrors.
func (s *RPCService) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      s.idCounter.Add(1),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, &ServiceError{Kind: KindTransport, Err: fmt.Errorf("creating HTTP request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, &ServiceError{Kind: KindTransport, Err: err}
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return nil, &ServiceError{Kind: KindTransport, Err: fmt.Errorf("reading response body: %w", err)}
	}

	var resp response
	if err := json.Unmarshal(respBody, &resp); err != nil {
		if httpResp.StatusCode != http.StatusOK {
			return nil, &ServiceError{Kind: KindTransport, Code: httpResp.StatusCode,
				Message: fmt.Sprintf("HTTP status %d", httpResp.StatusCode)}
		}
		return nil, &ServiceError{Kind: KindDecode, Err: fmt.Errorf("unmarshaling response: %w", err)}
	}

	if resp.Error != nil {
		return nil, &ServiceError{Kind: KindRPC, Code: resp.Error.Code, Message: resp.Error.Message}
	}
	if len(resp.Result) == 0 || string(resp.Result) == "null" {
		return nil, &ServiceError{Kind: KindDecode, Message: "empty RPC result"}
	}

	return resp.Result, nil
}
