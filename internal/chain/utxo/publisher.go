package utxo

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/mrz1836/paysend/internal/chain"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// maxErrorBody bounds how much of a rejection body is kept.
const maxErrorBody int64 = 4 << 10

// PublishError is returned when the broadcast endpoint rejects a transaction.
type PublishError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *PublishError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("broadcast rejected (status %d): %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("broadcast rejected (status %d)", e.StatusCode)
}

// Unwrap returns ErrTxRejected so callers can match on it.
func (e *PublishError) Unwrap() error {
	return payerr.ErrTxRejected
}

// HTTPPublisher broadcasts raw transactions by POSTing their hex encoding.
type HTTPPublisher struct {
	url        string
	httpClient *http.Client
	limiter    *chain.HostLimiter
	backoff    chain.Backoff
}

// PublisherOption configures an HTTPPublisher.
type PublisherOption func(*HTTPPublisher)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) PublisherOption {
	return func(p *HTTPPublisher) { p.httpClient = c }
}

// WithHostLimiter sets the outbound request limiter. Nil disables throttling.
func WithHostLimiter(l *chain.HostLimiter) PublisherOption {
	return func(p *HTTPPublisher) { p.limiter = l }
}

// WithBackoff sets the retry policy for transient failures.
func WithBackoff(b chain.Backoff) PublisherOption {
	return func(p *HTTPPublisher) { p.backoff = b }
}

// NewHTTPPublisher creates a publisher posting to url.
func NewHTTPPublisher(url string, opts ...PublisherOption) *HTTPPublisher {
	p := &HTTPPublisher{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    chain.NewHostLimiter(5, 10),
		backoff:    chain.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish broadcasts tx. Transport failures, 429 and 5xx responses are
// retried, waiting as long as a Retry-After header asks up to the backoff
// maximum; any other non-2xx response is a *PublishError.
func (p *HTTPPublisher) Publish(ctx context.Context, tx *wire.MsgTx) error {
	if tx == nil {
		return payerr.ErrInvalidInput
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return fmt.Errorf("serializing transaction: %w", err)
	}
	rawHex := hex.EncodeToString(buf.Bytes())

	return chain.Retry(ctx, p.backoff, func(int) error {
		return p.post(ctx, rawHex)
	})
}

func (p *HTTPPublisher) post(ctx context.Context, rawHex string) error {
	if err := p.limiter.Wait(ctx, p.url); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, strings.NewReader(rawHex))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return chain.Transient(payerr.WithCause(payerr.ErrNetworkError, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	pubErr := &PublishError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return chain.TransientAfter(fmt.Errorf("%w: %w", chain.ErrRateLimited, pubErr),
			retryAfter(resp.Header.Get("Retry-After"), time.Now()))
	case resp.StatusCode >= http.StatusInternalServerError:
		return chain.TransientAfter(pubErr, retryAfter(resp.Header.Get("Retry-After"), time.Now()))
	default:
		return pubErr
	}
}

// retryAfter reads a Retry-After header given either as delay seconds or
// as an HTTP date. Unparseable or past values yield zero.
func retryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
