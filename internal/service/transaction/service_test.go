package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/jarcoal/httpmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paysend/internal/auth"
	"github.com/mrz1836/paysend/internal/chain"
	"github.com/mrz1836/paysend/internal/chain/account"
	"github.com/mrz1836/paysend/internal/executor"
	"github.com/mrz1836/paysend/internal/metadata"
	"github.com/mrz1836/paysend/internal/metrics"
	"github.com/mrz1836/paysend/internal/paymentprotocol"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

const testPIN = "2580"

type staticSettings bool

func (s staticSettings) BiometricsEnabled() bool { return bool(s) }

type mockSigner struct {
	mu         sync.Mutex
	eligible   bool
	bioOutcome auth.BiometricOutcome
	pin        string
	block      chan struct{}

	bioCalls  int
	signCalls int
}

func (m *mockSigner) CanUseBiometrics(*wire.MsgTx) bool { return m.eligible }

func (m *mockSigner) SignWithBiometrics(_ context.Context, tx *wire.MsgTx, _ uint32, _ string) auth.BiometricOutcome {
	m.mu.Lock()
	m.bioCalls++
	m.mu.Unlock()
	if m.bioOutcome == auth.BiometricSuccess {
		signInPlace(tx)
	}
	return m.bioOutcome
}

func (m *mockSigner) Sign(_ context.Context, tx *wire.MsgTx, _ uint32, pin string) error {
	m.mu.Lock()
	m.signCalls++
	block := m.block
	m.mu.Unlock()

	if block != nil {
		<-block
	}
	if pin != m.pin {
		return errors.New("incorrect pin")
	}
	signInPlace(tx)
	return nil
}

func signInPlace(tx *wire.MsgTx) {
	for _, in := range tx.TxIn {
		in.SignatureScript = []byte{0x51}
	}
}

type mockPublisher struct {
	mu    sync.Mutex
	err   error
	calls int
	txids []string
	after func()
}

func (m *mockPublisher) Publish(_ context.Context, tx *wire.MsgTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.txids = append(m.txids, tx.TxHash().String())
	if m.after != nil {
		m.after()
	}
	return m.err
}

func (m *mockPublisher) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockStore struct {
	mu      sync.Mutex
	records []metadata.Record
}

// Write fails on a done context, as a database driver would.
func (m *mockStore) Write(ctx context.Context, rec metadata.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *mockStore) all() []metadata.Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]metadata.Record(nil), m.records...)
}

type mockSettler struct {
	mu    sync.Mutex
	err   error
	calls []paymentprotocol.Settlement
}

func (m *mockSettler) Settle(_ context.Context, st paymentprotocol.Settlement) (*paymentprotocol.ACK, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, st)
	if m.err != nil {
		return nil, m.err
	}
	return &paymentprotocol.ACK{Memo: "thanks"}, nil
}

type mockLogWriter struct {
	mu     sync.Mutex
	debugs []string
	errors []string
}

func (m *mockLogWriter) Debug(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugs = append(m.debugs, fmt.Sprintf(format, args...))
}

func (m *mockLogWriter) Error(format string, args ...any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, fmt.Sprintf(format, args...))
}

func (m *mockLogWriter) debugLines() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.debugs...)
}

type harness struct {
	builder   *Builder
	signer    *mockSigner
	publisher *mockPublisher
	store     *mockStore
	recorder  *metadata.Recorder
	settler   *mockSettler
	accounts  *mockAccountService
	metrics   *metrics.Metrics
	logger    *mockLogWriter
	svc       *Service

	events  []metadata.Event
	outcome []Outcome
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	biometrics bool
	gateOpts   []auth.Option
	walletExec executor.Executor
	settler    Settler
}

func withBiometrics() harnessOption {
	return func(c *harnessConfig) { c.biometrics = true }
}

func withGateOptions(opts ...auth.Option) harnessOption {
	return func(c *harnessConfig) { c.gateOpts = append(c.gateOpts, opts...) }
}

func withWalletExecutor(e executor.Executor) harnessOption {
	return func(c *harnessConfig) { c.walletExec = e }
}

func withSettler(s Settler) harnessOption {
	return func(c *harnessConfig) { c.settler = s }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	cfg := &harnessConfig{walletExec: executor.Inline{}}
	for _, opt := range opts {
		opt(cfg)
	}

	h := &harness{
		signer:    &mockSigner{pin: testPIN, bioOutcome: auth.BiometricSuccess},
		publisher: &mockPublisher{},
		store:     &mockStore{},
		settler:   &mockSettler{},
		accounts:  &mockAccountService{gasPrice: big.NewInt(30_000_000_000)},
		metrics:   metrics.New(),
		logger:    &mockLogWriter{},
	}
	h.signer.eligible = cfg.biometrics

	wallet := newTestWallet(t, 10_000, 5_000_000, 2_000_000)
	h.builder = NewBuilder(wallet, testBTC, cfg.walletExec, h.logger)

	h.recorder = metadata.NewRecorder(h.store, metadata.WithLogger(h.logger))
	h.recorder.Subscribe(func(ev metadata.Event) { h.events = append(h.events, ev) })

	gateOpts := append([]auth.Option{
		auth.WithDetached(executor.Inline{}),
		auth.WithTimeoutHandler(auth.ErrorTimeoutHandler{}),
		auth.WithLogger(h.logger),
	}, cfg.gateOpts...)
	gate := auth.NewGate(staticSettings(cfg.biometrics), h.signer, cfg.walletExec, gateOpts...)

	var settler Settler = h.settler
	if cfg.settler != nil {
		settler = cfg.settler
	}

	h.svc = NewService(&Config{
		Wallet:         wallet,
		Gate:           gate,
		Publisher:      h.publisher,
		Accounts:       h.accounts,
		Recorder:       h.recorder,
		Settler:        settler,
		CallerExecutor: executor.Inline{},
		Detached:       executor.Inline{},
		Metrics:        h.metrics,
		Logger:         h.logger,
	})
	return h
}

func (h *harness) completion(o Outcome) {
	h.outcome = append(h.outcome, o)
}

func pinPrompt(code string, calls *int) auth.PINPrompt {
	return func(context.Context) (string, error) {
		if calls != nil {
			*calls++
		}
		return code, nil
	}
}

func usdRate() *metadata.Rate {
	return &metadata.Rate{Code: "USD", Value: decimal.NewFromInt(65_000)}
}

func uint64Ptr(v uint64) *uint64 { return &v }

func (h *harness) buildUTXO(t *testing.T) (*PendingSend, *wire.MsgTx) {
	t.Helper()
	p, err := h.builder.BuildDirect(big.NewInt(1_000_000), testAddress(t, 9), testBTC)
	require.NoError(t, err)
	return p, p.Payload.(*UTXOPayload).Tx
}

func TestSend_UTXO_PINPathSuccess(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	p, tx := h.buildUTXO(t)

	var prompts int
	a, err := h.svc.Send(context.Background(), p, Options{
		ExchangeRate: usdRate(),
		Comment:      "coffee",
		FeePerKB:     uint64Ptr(10_000),
		PIN:          pinPrompt(testPIN, &prompts),
	}, h.completion)
	require.NoError(t, err)

	require.Len(t, h.outcome, 1)
	out := h.outcome[0]
	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, tx.TxHash().String(), out.TxID)
	assert.Equal(t, a.ID, out.AttemptID)
	assert.Equal(t, StateSettled, a.State())

	assert.Equal(t, 1, prompts)
	assert.Equal(t, 0, h.signer.bioCalls)
	assert.Equal(t, 1, h.signer.signCalls)
	assert.Equal(t, []string{out.TxID}, h.publisher.txids)

	records := h.store.all()
	require.Len(t, records, 1)
	assert.Equal(t, out.TxID, records[0].TxID)
	assert.Equal(t, "USD", records[0].Rate.Code)
	assert.True(t, records[0].Rate.Value.Equal(decimal.NewFromInt(65_000)))
	assert.Equal(t, "coffee", records[0].Comment)
	assert.InDelta(t, 10_000.0, records[0].FeeRate, 0)
	assert.Equal(t, []metadata.Event{{Kind: metadata.MemoUpdated, TxID: out.TxID}}, h.events)

	snap := h.metrics.Snapshot()
	assert.InDelta(t, 1.0, snap.Successes, 0)
	assert.InDelta(t, 1.0, snap.MetadataWritten, 0)

	select {
	case <-a.Done():
	default:
		t.Fatal("attempt not finished")
	}
}

func TestSend_UTXO_StateTransitions(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	p, _ := h.buildUTXO(t)

	a, err := h.svc.Send(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
	require.NoError(t, err)

	var transitions []string
	prefix := "send " + a.ID + ": "
	for _, line := range h.logger.debugLines() {
		if strings.HasPrefix(line, prefix) && strings.Contains(line, " -> ") {
			transitions = append(transitions, strings.TrimPrefix(line, prefix))
		}
	}
	assert.Equal(t, []string{
		"initialized -> awaiting_auth",
		"awaiting_auth -> signing",
		"signing -> publishing",
		"publishing -> settled",
	}, transitions)
}

func TestSend_UTXO_BiometricPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		outcome     auth.BiometricOutcome
		wantPrompts int
		wantOutcome bool
	}{
		{"success signs without pin", auth.BiometricSuccess, 0, true},
		{"failure falls back to pin", auth.BiometricFailure, 1, true},
		{"fallback falls back to pin", auth.BiometricFallback, 1, true},
		{"cancel aborts silently", auth.BiometricCancel, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, withBiometrics())
			h.signer.bioOutcome = tt.outcome
			p, _ := h.buildUTXO(t)

			var prompts int
			a, err := h.svc.Send(context.Background(), p, Options{
				ExchangeRate: usdRate(),
				FeePerKB:     uint64Ptr(10_000),
				PIN:          pinPrompt(testPIN, &prompts),
			}, h.completion)
			require.NoError(t, err)

			assert.Equal(t, 1, h.signer.bioCalls)
			assert.Equal(t, tt.wantPrompts, prompts)

			if !tt.wantOutcome {
				assert.Empty(t, h.outcome)
				assert.Equal(t, 0, h.publisher.callCount())
				assert.Empty(t, h.store.all())
				assert.Equal(t, StateAwaitingAuth, a.State())
				_, ok := a.Outcome()
				assert.False(t, ok)
				assert.InDelta(t, 1.0, h.metrics.Snapshot().AuthAborts, 0)
				return
			}

			require.Len(t, h.outcome, 1)
			assert.Equal(t, OutcomeSuccess, h.outcome[0].Kind)
			assert.Equal(t, 1, h.publisher.callCount())
		})
	}
}

func TestSend_UTXO_PINSigningFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	p, _ := h.buildUTXO(t)

	_, err := h.svc.Send(context.Background(), p, Options{PIN: pinPrompt("0000", nil)}, h.completion)
	require.NoError(t, err)

	require.Len(t, h.outcome, 1)
	assert.Equal(t, OutcomeCreationError, h.outcome[0].Kind)
	require.ErrorIs(t, h.outcome[0].Err, payerr.ErrSigningFailed)
	assert.Contains(t, h.outcome[0].Message, "incorrect pin")
	assert.Equal(t, 0, h.publisher.callCount())
	assert.Empty(t, h.store.all())
}

func TestSend_UTXO_PINPromptAbandoned(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	p, _ := h.buildUTXO(t)

	out, err := h.svc.SendAndWait(context.Background(), p, Options{
		PIN: func(context.Context) (string, error) { return "", errors.New("user closed dialog") },
	})
	require.ErrorIs(t, err, payerr.ErrAuthAborted)
	assert.Equal(t, Outcome{}, out)
	assert.Equal(t, 0, h.signer.signCalls)
	assert.Equal(t, 0, h.publisher.callCount())
}

func TestSend_UTXO_SigningTimeout(t *testing.T) {
	t.Parallel()

	serial := executor.NewSerial()
	t.Cleanup(serial.Close)

	h := newHarness(t,
		withWalletExecutor(serial),
		withGateOptions(auth.WithSigningTimeout(20*time.Millisecond)),
	)
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	h.signer.block = block

	p, _ := h.buildUTXO(t)

	out, err := h.svc.SendAndWait(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeCreationError, out.Kind)
	require.ErrorIs(t, out.Err, payerr.ErrSigningTimeout)
	assert.Equal(t, 0, h.publisher.callCount())
	assert.InDelta(t, 1.0, h.metrics.Snapshot().SigningTimeouts, 0)
}

func TestSend_UTXO_PublishFailure(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rejected := errors.New("txn-mempool-conflict")
	h.publisher.err = rejected

	req := paymentRequest(t, 1, 100_000)
	p, err := h.builder.BuildFromPaymentRequest(req)
	require.NoError(t, err)

	_, err = h.svc.Send(context.Background(), p, Options{
		ExchangeRate: usdRate(),
		FeePerKB:     uint64Ptr(10_000),
		PIN:          pinPrompt(testPIN, nil),
	}, h.completion)
	require.NoError(t, err)

	require.Len(t, h.outcome, 1)
	assert.Equal(t, OutcomePublishFailure, h.outcome[0].Kind)
	assert.Same(t, rejected, h.outcome[0].Err)
	assert.Equal(t, "txn-mempool-conflict", h.outcome[0].Message)
	assert.Equal(t, 1, h.publisher.callCount())
	assert.Empty(t, h.store.all())
	assert.Empty(t, h.settler.calls)
	assert.InDelta(t, 1.0, h.metrics.Snapshot().PublishFailures, 0)
}

func TestSend_UTXO_MetadataRequiresRateAndFee(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		rate  *metadata.Rate
		fee   *uint64
		write bool
	}{
		{"both present", usdRate(), uint64Ptr(10_000), true},
		{"rate missing", nil, uint64Ptr(10_000), false},
		{"fee missing", usdRate(), nil, false},
		{"both missing", nil, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			p, _ := h.buildUTXO(t)

			_, err := h.svc.Send(context.Background(), p, Options{
				ExchangeRate: tt.rate,
				FeePerKB:     tt.fee,
				PIN:          pinPrompt(testPIN, nil),
			}, h.completion)
			require.NoError(t, err)

			require.Len(t, h.outcome, 1)
			assert.Equal(t, OutcomeSuccess, h.outcome[0].Kind)
			if tt.write {
				assert.Len(t, h.store.all(), 1)
				assert.Len(t, h.events, 1)
			} else {
				assert.Empty(t, h.store.all())
				assert.Empty(t, h.events)
			}
		})
	}
}

func TestSend_MetadataSurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	t.Run("utxo", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		p, _ := h.buildUTXO(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h.publisher.after = cancel

		_, err := h.svc.Send(ctx, p, Options{
			ExchangeRate: usdRate(),
			FeePerKB:     uint64Ptr(10_000),
			PIN:          pinPrompt(testPIN, nil),
		}, h.completion)
		require.NoError(t, err)

		require.Len(t, h.outcome, 1)
		assert.Equal(t, OutcomeSuccess, h.outcome[0].Kind)
		require.Len(t, h.store.all(), 1)
		assert.InDelta(t, 1.0, h.metrics.Snapshot().MetadataWritten, 0)
	})

	t.Run("account", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		h.accounts.pending = &account.PendingTx{Hash: "0xabc", Amount: big.NewInt(5), GasPrice: big.NewInt(30_000_000_000)}
		h.accounts.after = cancel

		p, err := h.builder.BuildDirect(big.NewInt(5), "0x000000000000000000000000000000000000dEaD", chain.ETH)
		require.NoError(t, err)

		_, err = h.svc.Send(ctx, p, Options{
			ExchangeRate: usdRate(),
			PIN:          pinPrompt(testPIN, nil),
		}, h.completion)
		require.NoError(t, err)

		require.Len(t, h.outcome, 1)
		assert.Equal(t, OutcomeSuccess, h.outcome[0].Kind)
		records := h.store.all()
		require.Len(t, records, 1)
		assert.Equal(t, "0xabc", records[0].TxID)
	})
}

func TestSend_UTXO_SettlementOnlyWithMerchantRequest(t *testing.T) {
	t.Parallel()

	t.Run("direct send", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		p, _ := h.buildUTXO(t)
		_, err := h.svc.Send(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
		require.NoError(t, err)
		require.Len(t, h.outcome, 1)
		assert.Empty(t, h.settler.calls)
	})

	t.Run("merchant request", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		req := paymentRequest(t, 1, 100_000, 50_000)
		p, err := h.builder.BuildFromPaymentRequest(req)
		require.NoError(t, err)

		_, err = h.svc.Send(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
		require.NoError(t, err)

		require.Len(t, h.outcome, 1)
		assert.Equal(t, OutcomeSuccess, h.outcome[0].Kind)
		require.Len(t, h.settler.calls, 1)

		st := h.settler.calls[0]
		assert.Same(t, req, st.Request)
		assert.Equal(t, h.outcome[0].TxID, st.Transaction.TxHash().String())
		assert.Equal(t, testAddress(t, 1), st.RefundAddress)
		assert.Equal(t, "BTC", st.Currency)
		assert.Equal(t, testParams, st.Params)
	})

	t.Run("settlement failure leaves success", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.settler.err = payerr.ErrSettlementRejected
		p, err := h.builder.BuildFromPaymentRequest(paymentRequest(t, 1, 100_000))
		require.NoError(t, err)

		a, err := h.svc.Send(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
		require.NoError(t, err)

		require.Len(t, h.outcome, 1)
		assert.Equal(t, OutcomeSuccess, h.outcome[0].Kind)
		out, ok := a.Outcome()
		require.True(t, ok)
		assert.Equal(t, OutcomeSuccess, out.Kind)
		assert.InDelta(t, 1.0, h.metrics.Snapshot().SettlementErrors, 0)
	})
}

func TestSend_UTXO_MerchantDiscardsBadACK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        []byte
	}{
		{"mismatched media type", "application/json", []byte(`{"memo":"ok"}`)},
		{"oversized body", paymentprotocol.MIMEPaymentACKJSON, []byte(strings.Repeat(" ", paymentprotocol.MaxACKBytes+1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			mt := httpmock.NewMockTransport()
			mt.RegisterResponder(http.MethodPost, "https://merchant.test/pay", func(*http.Request) (*http.Response, error) {
				resp := httpmock.NewBytesResponse(http.StatusOK, tt.body)
				resp.Header.Set("Content-Type", tt.contentType)
				return resp, nil
			})
			settler := paymentprotocol.NewSettler(paymentprotocol.WithHTTPClient(&http.Client{Transport: mt}))

			h := newHarness(t, withSettler(settler))
			p, err := h.builder.BuildFromPaymentRequest(paymentRequest(t, 1, 100_000))
			require.NoError(t, err)

			_, err = h.svc.Send(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
			require.NoError(t, err)

			require.Len(t, h.outcome, 1)
			assert.Equal(t, OutcomeSuccess, h.outcome[0].Kind)
			assert.Equal(t, 1, mt.GetTotalCallCount())
			assert.InDelta(t, 1.0, h.metrics.Snapshot().SettlementErrors, 0)
		})
	}
}

func TestSend_Account(t *testing.T) {
	t.Parallel()

	const hash = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"
	dest := "0x000000000000000000000000000000000000dEaD"

	tests := []struct {
		name      string
		pending   *account.PendingTx
		err       error
		wantKind  OutcomeKind
		wantMsg   string
		wantWrite bool
	}{
		{
			name:      "success",
			pending:   &account.PendingTx{Hash: hash, To: dest, Amount: big.NewInt(5), GasPrice: big.NewInt(30_000_000_000)},
			wantKind:  OutcomeSuccess,
			wantWrite: true,
		},
		{
			name:     "rpc failure",
			err:      &account.ServiceError{Kind: account.KindRPC, Code: -32000, Message: "insufficient gas"},
			wantKind: OutcomeCreationError,
			wantMsg:  "insufficient gas",
		},
		{
			name:     "transport failure",
			err:      &account.ServiceError{Kind: account.KindTransport, Err: errors.New("connection refused")},
			wantKind: OutcomeCreationError,
			wantMsg:  "connection refused",
		},
		{
			name:     "decode failure",
			err:      &account.ServiceError{Kind: account.KindDecode, Message: "empty RPC result"},
			wantKind: OutcomeCreationError,
			wantMsg:  "empty RPC result",
		},
		{
			name:     "no handle",
			wantKind: OutcomeCreationError,
			wantMsg:  "could not create transaction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			h.accounts.pending = tt.pending
			h.accounts.err = tt.err

			p, err := h.builder.BuildDirect(big.NewInt(5), dest, chain.ETH)
			require.NoError(t, err)

			var prompts int
			_, err = h.svc.Send(context.Background(), p, Options{
				ExchangeRate: usdRate(),
				PIN:          pinPrompt(testPIN, &prompts),
			}, h.completion)
			require.NoError(t, err)

			assert.Equal(t, 1, prompts)
			assert.Equal(t, 1, h.accounts.calls)
			assert.Equal(t, dest, h.accounts.to)
			assert.Equal(t, int64(5), h.accounts.amount.Int64())
			assert.Equal(t, 0, h.signer.signCalls)

			require.Len(t, h.outcome, 1)
			assert.Equal(t, tt.wantKind, h.outcome[0].Kind)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, h.outcome[0].Message)
			}
			if tt.wantWrite {
				assert.Equal(t, hash, h.outcome[0].TxID)
				records := h.store.all()
				require.Len(t, records, 1)
				assert.Equal(t, hash, records[0].TxID)
				assert.InDelta(t, 30_000_000_000.0, records[0].FeeRate, 0)
			} else {
				assert.Empty(t, h.store.all())
			}
		})
	}
}

func TestSend_Account_PINAbandoned(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	p, err := h.builder.BuildDirect(big.NewInt(5), "0x000000000000000000000000000000000000dEaD", chain.ETH)
	require.NoError(t, err)

	_, err = h.svc.Send(context.Background(), p, Options{
		PIN: func(context.Context) (string, error) { return "", errors.New("dismissed") },
	}, h.completion)
	require.NoError(t, err)

	assert.Empty(t, h.outcome)
	assert.Equal(t, 0, h.accounts.calls)
	assert.InDelta(t, 1.0, h.metrics.Snapshot().AuthAborts, 0)
}

func TestSend_MissingPayload(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	_, err := h.svc.Send(context.Background(), &PendingSend{Currency: testBTC}, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
	require.NoError(t, err)

	require.Len(t, h.outcome, 1)
	assert.Equal(t, OutcomeCreationError, h.outcome[0].Kind)
	assert.Equal(t, "could not create transaction", h.outcome[0].Message)
	assert.Equal(t, 0, h.publisher.callCount())
}

func TestSend_PendingSendIsSingleUse(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	p, _ := h.buildUTXO(t)

	_, err := h.svc.Send(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
	require.NoError(t, err)

	_, err = h.svc.Send(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
	require.ErrorIs(t, err, payerr.ErrInvalidInput)

	assert.Len(t, h.outcome, 1)
	assert.Equal(t, 1, h.publisher.callCount())
	assert.Nil(t, p.Payload)
}

func TestSend_Preconditions(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	bare := NewService(&Config{Metrics: metrics.New()})

	tests := []struct {
		name string
		svc  *Service
		p    *PendingSend
		want error
	}{
		{"nil pending send", h.svc, nil, payerr.ErrInvalidInput},
		{"token currency", h.svc, &PendingSend{Currency: chain.Token{Code: "USDC", Precision: 6}}, payerr.ErrUnsupported},
		{"no currency", h.svc, &PendingSend{}, payerr.ErrUnsupported},
		{"utxo without publisher", bare, &PendingSend{Currency: testBTC}, payerr.ErrUnsupported},
		{"account without service", bare, &PendingSend{Currency: chain.ETH}, payerr.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := tt.svc.Send(context.Background(), tt.p, Options{}, nil)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, a)
		})
	}
}

func TestSend_CompletionOnCallerExecutor(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	var viaCaller int
	h.svc.caller = executor.Func(func(fn func()) {
		viaCaller++
		fn()
	})

	p, _ := h.buildUTXO(t)
	_, err := h.svc.Send(context.Background(), p, Options{PIN: pinPrompt(testPIN, nil)}, h.completion)
	require.NoError(t, err)

	assert.Equal(t, 1, viaCaller)
	assert.Len(t, h.outcome, 1)
}

func TestSendAndWait_Detached(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.svc.detached = executor.Detached{}

	p, tx := h.buildUTXO(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := h.svc.SendAndWait(ctx, p, Options{PIN: pinPrompt(testPIN, nil)})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, out.Kind)
	assert.Equal(t, tx.TxHash().String(), out.TxID)
	assert.NotEmpty(t, out.AttemptID)
}

func TestPendingSend_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    *PendingSend
		want error
	}{
		{"utxo ok", &PendingSend{Currency: testBTC, Payload: &UTXOPayload{Tx: wire.NewMsgTx(2)}}, nil},
		{"account ok", &PendingSend{Currency: chain.ETH, Payload: &AccountPayload{Intent: Intent{Amount: big.NewInt(1)}}}, nil},
		{"missing payload", &PendingSend{Currency: testBTC}, payerr.ErrCreationFailed},
		{"utxo with intent", &PendingSend{Currency: testBTC, Payload: &AccountPayload{Intent: Intent{Amount: big.NewInt(1)}}}, payerr.ErrInvalidInput},
		{"account with tx", &PendingSend{Currency: chain.ETH, Payload: &UTXOPayload{Tx: wire.NewMsgTx(2)}}, payerr.ErrInvalidInput},
		{"token", &PendingSend{Currency: chain.Token{Code: "USDC"}, Payload: &UTXOPayload{Tx: wire.NewMsgTx(2)}}, payerr.ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.p.Validate()
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStateAndOutcomeKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "awaiting_auth", StateAwaitingAuth.String())
	assert.Equal(t, "unknown", State(42).String())
	assert.Equal(t, "publish_failure", OutcomePublishFailure.String())
	assert.Equal(t, "unknown", OutcomeKind(0).String())
}
