package paymentprotocol

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

const (
	// DefaultTimeout bounds the payment POST.
	DefaultTimeout = 20 * time.Second

	// MaxACKBytes is the largest acknowledgment accepted.
	MaxACKBytes = 50000
)

// LogWriter is the logging interface used by the settler.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// Settler posts payments to merchants. A settlement is a single attempt and
// never affects the outcome of the send it follows.
type Settler struct {
	httpClient *http.Client
	timeout    time.Duration
	maxACK     int64
	logger     LogWriter
}

// SettlerOption configures a Settler.
type SettlerOption func(*Settler)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) SettlerOption {
	return func(s *Settler) { s.httpClient = c }
}

// WithTimeout sets the POST timeout.
func WithTimeout(d time.Duration) SettlerOption {
	return func(s *Settler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMaxACKBytes sets the acknowledgment size limit.
func WithMaxACKBytes(n int64) SettlerOption {
	return func(s *Settler) {
		if n > 0 {
			s.maxACK = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l LogWriter) SettlerOption {
	return func(s *Settler) { s.logger = l }
}

// NewSettler creates a settler.
func NewSettler(opts ...SettlerOption) *Settler {
	s := &Settler{
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		maxACK:     MaxACKBytes,
		logger:     nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settlement carries what the settler needs about a completed send.
type Settlement struct {
	Request       *Request
	Transaction   *wire.MsgTx
	RefundAddress string
	Currency      string
	Params        *chaincfg.Params
}

// Settle builds the payment for st, posts it to the merchant and parses the
// acknowledgment. A request without a payment URL yields (nil, nil).
// Responses with the wrong media type or over the size limit
// are discarded with ErrSettlementRejected or ErrDataTooLarge.
func (s *Settler) Settle(ctx context.Context, st Settlement) (*ACK, error) {
	req := st.Request
	if req == nil || st.Transaction == nil {
		return nil, payerr.ErrInvalidInput
	}
	if req.PaymentURL == "" {
		s.logger.Debug("payment request has no payment url, skipping settlement")
		return nil, nil
	}

	payment, err := NewPayment(req, st.Transaction, st.RefundAddress, st.Currency, st.Params)
	if err != nil {
		s.logger.Error("building payment: %v", err)
		return nil, err
	}

	flavor := req.Flavor()
	var body []byte
	if flavor == FlavorJSON {
		body, err = EncodePaymentJSON(payment)
	} else {
		body, err = EncodePaymentBinary(payment)
	}
	if err != nil {
		s.logger.Error("encoding payment: %v", err)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.PaymentURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("creating payment request: %v", err)
		return nil, fmt.Errorf("creating payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", flavor.PaymentMIME())
	httpReq.Header.Add("Accept", flavor.ACKMIME())

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		s.logger.Error("payment error: %v", err)
		return nil, payerr.WithCause(payerr.ErrNetworkError, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxACK+1))
	if err != nil {
		s.logger.Error("reading payment ack: %v", err)
		return nil, payerr.WithCause(payerr.ErrNetworkError, err)
	}

	return s.parseACK(flavor, resp, data)
}

func (s *Settler) parseACK(flavor Flavor, resp *http.Response, data []byte) (*ACK, error) {
	mediaType, _ := parseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != flavor.ACKMIME() {
		s.logger.Error("invalid data: ack media type %q, want %q (status %d)", mediaType, flavor.ACKMIME(), resp.StatusCode)
		return nil, payerr.WithDetails(payerr.ErrSettlementRejected, map[string]string{
			"content_type": mediaType,
			"expected":     flavor.ACKMIME(),
			"status":       fmt.Sprintf("%d", resp.StatusCode),
		})
	}

	decode := DecodeACKBinary
	if flavor == FlavorJSON {
		decode = DecodeACKJSON
	}

	if int64(len(data)) > s.maxACK {
		s.logger.Error("invalid data: ack exceeds %d bytes", s.maxACK)
		return nil, payerr.WithDetails(payerr.ErrDataTooLarge, map[string]string{
			"limit": fmt.Sprintf("%d", s.maxACK),
		})
	}

	ack, err := decode(data)
	if err != nil {
		s.logger.Error("ack failed to deserialize: %v", err)
		return nil, err
	}

	s.logger.Debug("received ack: memo=%q", ack.Memo)
	return ack, nil
}
