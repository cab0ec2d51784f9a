package transaction

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"

	"github.com/mrz1836/paysend/internal/auth"
	"github.com/mrz1836/paysend/internal/chain"
	"github.com/mrz1836/paysend/internal/chain/account"
	"github.com/mrz1836/paysend/internal/chain/utxo"
	"github.com/mrz1836/paysend/internal/executor"
	"github.com/mrz1836/paysend/internal/metrics"
	"github.com/mrz1836/paysend/internal/paymentprotocol"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Service coordinates authorizing, signing, publishing and recording sends.
type Service struct {
	wallet    utxo.Wallet
	gate      Authorizer
	publisher Publisher
	accounts  account.Service
	recorder  MetadataRecorder
	settler   Settler
	caller    executor.Executor
	detached  executor.Executor
	metrics   MetricsRecorder
	logger    LogWriter
	now       func() time.Time
}

// Config holds dependencies for the transaction service.
type Config struct {
	// Wallet supplies the refund address for merchant settlements.
	Wallet    utxo.Wallet
	Gate      Authorizer
	Publisher Publisher
	Accounts  account.Service
	Recorder  MetadataRecorder
	Settler   Settler

	// CallerExecutor delivers completions. Defaults to inline delivery.
	CallerExecutor executor.Executor
	// Detached runs the send flow and settlement. Defaults to goroutines.
	Detached executor.Executor

	Metrics MetricsRecorder
	Logger  LogWriter
}

// NewService creates a new transaction service.
func NewService(cfg *Config) *Service {
	s := &Service{
		wallet:    cfg.Wallet,
		gate:      cfg.Gate,
		publisher: cfg.Publisher,
		accounts:  cfg.Accounts,
		recorder:  cfg.Recorder,
		settler:   cfg.Settler,
		caller:    cfg.CallerExecutor,
		detached:  cfg.Detached,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       time.Now,
	}
	if s.caller == nil {
		s.caller = executor.Inline{}
	}
	if s.detached == nil {
		s.detached = executor.Detached{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Global
	}
	if s.logger == nil {
		s.logger = nopLogger{}
	}
	return s
}

// Send starts sending p and returns immediately. completion is called on
// the caller executor exactly once, unless the user cancels authentication,
// in which case the attempt ends without an outcome. Errors returned here
// are precondition failures and no attempt is started.
func (s *Service) Send(ctx context.Context, p *PendingSend, opts Options, completion func(Outcome)) (*Attempt, error) {
	if p == nil {
		return nil, payerr.ErrInvalidInput
	}
	if err := s.checkCollaborators(p.Currency); err != nil {
		return nil, err
	}

	payload, err := p.take()
	if err != nil {
		return nil, err
	}

	if opts.ExchangeRate != nil {
		p.ExchangeRate = opts.ExchangeRate
	}
	if opts.Comment != "" {
		p.Comment = opts.Comment
	}
	if opts.FeePerKB != nil {
		p.FeePerKB = opts.FeePerKB
	}

	a := newAttempt(uuid.NewString())
	s.logger.Debug("send %s: created for %s", a.ID, p.Currency.Symbol())

	s.detached.Submit(func() {
		defer a.finish()
		s.run(ctx, a, p, payload, opts, completion)
	})
	return a, nil
}

// SendAndWait sends p and blocks until the attempt finishes. A silent
// abort during authentication is reported as ErrAuthAborted.
func (s *Service) SendAndWait(ctx context.Context, p *PendingSend, opts Options) (Outcome, error) {
	a, err := s.Send(ctx, p, opts, nil)
	if err != nil {
		return Outcome{}, err
	}

	select {
	case <-a.Done():
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}

	out, ok := a.Outcome()
	if !ok {
		return Outcome{}, payerr.ErrAuthAborted
	}
	return out, nil
}

func (s *Service) checkCollaborators(cur chain.Currency) error {
	switch c := cur.(type) {
	case chain.UTXO:
		if s.gate == nil || s.publisher == nil {
			return payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": c.Code, "reason": "no signer or publisher"})
		}
	case chain.Account:
		if s.gate == nil || s.accounts == nil {
			return payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": c.Code, "reason": "no account service"})
		}
	case chain.Token:
		return payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": c.Code})
	default:
		return payerr.ErrUnsupported
	}
	return nil
}

func (s *Service) run(ctx context.Context, a *Attempt, p *PendingSend, payload Payload, opts Options, completion func(Outcome)) {
	if payload == nil {
		s.deliver(a, p.Currency, creationError(payerr.ErrCreationFailed), completion)
		return
	}

	switch pl := payload.(type) {
	case *UTXOPayload:
		cur, ok := p.Currency.(chain.UTXO)
		if !ok || pl.Tx == nil {
			s.deliver(a, p.Currency, creationError(payerr.ErrCreationFailed), completion)
			return
		}
		s.sendUTXO(ctx, a, p, cur, pl.Tx, opts, completion)
	case *AccountPayload:
		cur, ok := p.Currency.(chain.Account)
		if !ok || pl.Intent.Amount == nil {
			s.deliver(a, p.Currency, creationError(payerr.ErrCreationFailed), completion)
			return
		}
		s.sendAccount(ctx, a, p, cur, pl.Intent, opts, completion)
	default:
		s.deliver(a, p.Currency, creationError(payerr.ErrCreationFailed), completion)
	}
}

func (s *Service) sendUTXO(ctx context.Context, a *Attempt, p *PendingSend, cur chain.UTXO, tx *wire.MsgTx, opts Options, completion func(Outcome)) {
	s.transition(a, StateAwaitingAuth)

	pin := opts.PIN
	if pin != nil {
		pin = func(ctx context.Context) (string, error) {
			code, err := opts.PIN(ctx)
			if err == nil {
				s.transition(a, StateSigning)
			}
			return code, err
		}
	}

	start := s.now()
	path, err := s.gate.Authorize(ctx, tx, cur.ForkID, opts.BiometricPrompt, pin)
	if err != nil {
		if s.aborted(a, err) {
			return
		}
		s.deliver(a, cur, creationError(err), completion)
		return
	}
	if a.State() != StateSigning {
		s.transition(a, StateSigning)
	}
	s.metrics.RecordAuthPath(string(path))
	s.metrics.ObserveSigning(s.now().Sub(start))

	s.transition(a, StatePublishing)
	txid := tx.TxHash().String()

	// Publishing is not cancellable once started.
	if err := s.publisher.Publish(context.WithoutCancel(ctx), tx); err != nil {
		s.logger.Error("send %s: publish %s failed: %v", a.ID, txid, err)
		s.deliver(a, cur, Outcome{Kind: OutcomePublishFailure, Message: err.Error(), Err: err}, completion)
		return
	}
	s.logger.Debug("send %s: published %s", a.ID, txid)

	// The transaction is on the network; its memo is written even if the
	// caller has gone away.
	if s.recorder != nil {
		written := s.recorder.RecordUTXO(context.WithoutCancel(ctx), tx, cur.Code, p.ExchangeRate, p.Comment, p.FeePerKB)
		s.metrics.RecordMetadataWrite(written)
	}

	s.deliver(a, cur, Outcome{Kind: OutcomeSuccess, TxID: txid}, completion)

	if p.MerchantRequest != nil {
		req := p.MerchantRequest
		s.detached.Submit(func() {
			s.settle(context.WithoutCancel(ctx), a, cur, req, tx)
		})
	}
}

func (s *Service) sendAccount(ctx context.Context, a *Attempt, p *PendingSend, cur chain.Account, intent Intent, opts Options, completion func(Outcome)) {
	s.transition(a, StateAwaitingAuth)

	if _, err := s.gate.RequestPIN(ctx, opts.PIN); err != nil {
		if s.aborted(a, err) {
			return
		}
		s.deliver(a, cur, creationError(err), completion)
		return
	}
	s.metrics.RecordAuthPath(string(auth.PathPIN))

	// The account service signs and relays in one remote call.
	s.transition(a, StateSigning)
	pending, err := s.accounts.SendTransaction(ctx, intent.Destination, intent.Amount)
	if err != nil {
		s.logger.Error("send %s: account service: %v", a.ID, err)
		s.deliver(a, cur, creationError(err), completion)
		return
	}
	if pending == nil {
		s.deliver(a, cur, creationError(payerr.ErrCreationFailed), completion)
		return
	}

	if s.recorder != nil {
		written := s.recorder.RecordAccount(context.WithoutCancel(ctx), pending, cur.Code, p.ExchangeRate, p.Comment)
		s.metrics.RecordMetadataWrite(written)
	}

	s.deliver(a, cur, Outcome{Kind: OutcomeSuccess, TxID: pending.Hash}, completion)
}

func (s *Service) settle(ctx context.Context, a *Attempt, cur chain.UTXO, req *paymentprotocol.Request, tx *wire.MsgTx) {
	if s.settler == nil {
		s.logger.Debug("send %s: no settler configured, skipping payment", a.ID)
		return
	}

	refund := ""
	if s.wallet != nil {
		refund = s.wallet.ReceiveAddress()
	}

	ack, err := s.settler.Settle(ctx, paymentprotocol.Settlement{
		Request:       req,
		Transaction:   tx,
		RefundAddress: refund,
		Currency:      cur.Code,
		Params:        cur.Params,
	})
	s.metrics.RecordSettlement(req.Flavor().String(), err)
	if err != nil {
		s.logger.Error("send %s: settlement failed: %v", a.ID, err)
		return
	}
	if ack != nil {
		s.logger.Debug("send %s: merchant acknowledged: %s", a.ID, ack.Memo)
	}
}

// aborted reports whether err ends the attempt without an outcome.
func (s *Service) aborted(a *Attempt, err error) bool {
	if payerr.Is(err, payerr.ErrSigningTimeout) {
		s.metrics.RecordSigningTimeout()
		return false
	}
	if !payerr.Is(err, payerr.ErrAuthAborted) {
		return false
	}
	s.metrics.RecordAuthAbort()
	s.logger.Debug("send %s: authentication cancelled in state %s, no outcome", a.ID, a.State())
	return true
}

func (s *Service) transition(a *Attempt, to State) {
	from := State(a.state.Swap(int32(to)))
	s.logger.Debug("send %s: %s -> %s", a.ID, from, to)
}

func (s *Service) deliver(a *Attempt, cur chain.Currency, o Outcome, completion func(Outcome)) {
	o.AttemptID = a.ID
	if !a.setOutcome(o) {
		s.logger.Error("send %s: dropping second outcome %s", a.ID, o.Kind)
		return
	}
	s.transition(a, StateSettled)

	model := "unknown"
	if cur != nil {
		model = cur.Model().String()
	}
	s.metrics.RecordSendOutcome(model, o.Kind.String())

	if completion != nil {
		s.caller.Submit(func() { completion(o) })
	}
}

// creationError maps a failure into a CreationError outcome carrying the
// most specific message available.
func creationError(err error) Outcome {
	msg := err.Error()

	var se *account.ServiceError
	if payerr.As(err, &se) {
		msg = se.Error()
	}
	return Outcome{Kind: OutcomeCreationError, Message: msg, Err: err}
}
