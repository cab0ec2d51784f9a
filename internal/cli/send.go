package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mrz1836/paysend/internal/chain"
	"github.com/mrz1836/paysend/internal/metadata"
	"github.com/mrz1836/paysend/internal/metrics"
	"github.com/mrz1836/paysend/internal/output"
	"github.com/mrz1836/paysend/internal/service/transaction"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	sendTo       string
	sendAmount   string
	sendCurrency string
	sendComment  string
	sendRate     string
	sendYes      bool
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send funds to an address",
	Long: `Send funds from the configured node account.

The send is authorized with your PIN before the node signs and relays it.
Set the PIN first with 'paysend pin set'.
An exchange rate and comment, when given, are stored as the transaction
memo once the send succeeds.

Example:
  paysend send --to 0xAbC... --amount 0.05
  paysend send --to 0xAbC... --amount 0.05 --rate USD:2450.10 --comment "rent"`,
	RunE: runSend,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendTo, "to", "", "destination address (required)")
	sendCmd.Flags().StringVar(&sendAmount, "amount", "", "amount in whole units (required)")
	sendCmd.Flags().StringVar(&sendCurrency, "currency", "ETH", "currency to send")
	sendCmd.Flags().StringVar(&sendComment, "comment", "", "memo comment stored with the transaction")
	sendCmd.Flags().StringVar(&sendRate, "rate", "", "fiat exchange rate as CODE:VALUE, e.g. USD:2450.10")
	sendCmd.Flags().BoolVarP(&sendYes, "yes", "y", false, "skip the confirmation prompt")

	_ = sendCmd.MarkFlagRequired("to")
	_ = sendCmd.MarkFlagRequired("amount")
}

// sendResult is the send command result.
type sendResult struct {
	Status    string `json:"status"`
	TxID      string `json:"txid"`
	AttemptID string `json:"attempt_id"`
	Currency  string `json:"currency"`
	Amount    string `json:"amount"`
	Fee       string `json:"fee"`
}

// parseRate parses CODE:VALUE into an exchange rate.
func parseRate(s string) (*metadata.Rate, error) {
	if s == "" {
		return nil, nil //nolint:nilnil // no rate given
	}
	code, value, ok := strings.Cut(s, ":")
	code = strings.ToUpper(strings.TrimSpace(code))
	if !ok || code == "" {
		return nil, payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"rate": s})
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil || !d.IsPositive() {
		return nil, payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"rate": s})
	}
	return &metadata.Rate{Code: code, Value: d}, nil
}

func runSend(cmd *cobra.Command, _ []string) error {
	cur, err := resolveCurrency(cfg, sendCurrency)
	if err != nil {
		return err
	}
	acct, ok := cur.(chain.Account)
	if !ok {
		return payerr.WithSuggestion(
			payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"currency": cur.Symbol()}),
			"use 'paysend fee' to quote UTXO sends; signing needs a wallet this CLI does not hold",
		)
	}

	if !common.IsHexAddress(sendTo) {
		return payerr.WithDetails(payerr.ErrInvalidAddress, map[string]string{"to": sendTo})
	}
	amount, err := chain.ParseAmount(acct, sendAmount)
	if err != nil {
		return err
	}
	rate, err := parseRate(sendRate)
	if err != nil {
		return err
	}
	pin, err := newPINCheck(cfg.GetPINHash(), promptPINFn)
	if err != nil {
		return err
	}

	accounts, err := newAccountService(cfg, metrics.Global, true)
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, 2*time.Minute)
	defer cancel()

	if _, err := accounts.RefreshGasPrice(ctx); err != nil {
		logger.Error("gas price refresh failed, fee shown as unknown: %v", err)
	}

	pending, err := transaction.NewBuilder(nil, acct, nil, logger).BuildDirect(amount, sendTo, acct)
	if err != nil {
		return err
	}
	fee := transaction.NewFeeCalculator(nil, accounts, nil).FeeForBuilt(pending)

	if !sendYes {
		question := fmt.Sprintf("Send %s %s to %s (fee %s %s)?",
			chain.FormatAmount(acct, amount), acct.Code, sendTo, chain.FormatAmount(acct, fee), acct.Code)
		if !promptConfirmFn(question) {
			return payerr.WithSuggestion(payerr.ErrAuthAborted, "re-run with --yes to skip the confirmation")
		}
	}

	store, err := openMetadata(cfg)
	if err != nil {
		return err
	}
	if store != nil {
		defer func() { _ = store.Close() }()
	}

	stack := newSendStack(cfg, logger, accounts, store, metrics.Global)
	defer stack.Close()

	out, err := stack.service.SendAndWait(ctx, pending, transaction.Options{
		ExchangeRate:    rate,
		Comment:         sendComment,
		BiometricPrompt: cfg.Auth.BiometricPrompt,
		PIN:             pin.Prompt,
	})
	if err != nil {
		if rejected := pin.Rejected(); rejected != nil && payerr.Is(err, payerr.ErrAuthAborted) {
			return rejected
		}
		return err
	}

	if cfg.Metrics.Enabled {
		s := metrics.Global.Snapshot()
		logger.Debug("metrics: successes=%.0f creation_errors=%.0f publish_failures=%.0f auth_aborts=%.0f metadata_written=%.0f",
			s.Successes, s.CreationErrors, s.PublishFailures, s.AuthAborts, s.MetadataWritten)
	}

	switch out.Kind {
	case transaction.OutcomeSuccess:
		res := &sendResult{
			Status:    out.Kind.String(),
			TxID:      out.TxID,
			AttemptID: out.AttemptID,
			Currency:  acct.Code,
			Amount:    chain.FormatAmount(acct, amount),
			Fee:       chain.FormatAmount(acct, fee),
		}
		return formatter.Result(res, func(w io.Writer) error {
			output.Successf(w, "sent %s %s", res.Amount, res.Currency)
			return output.Fields(w,
				[2]string{"TxID", res.TxID},
				[2]string{"Fee", res.Fee + " " + res.Currency},
			)
		})
	case transaction.OutcomePublishFailure:
		return outcomeError(payerr.ErrPublishFailed, out)
	default:
		return outcomeError(payerr.ErrCreationFailed, out)
	}
}

// outcomeError converts a failed outcome into a CLI error.
func outcomeError(base *payerr.PaysendError, out transaction.Outcome) error {
	var err error = base
	if out.Err != nil {
		err = payerr.WithCause(base, out.Err)
	}
	return payerr.WithDetails(err, map[string]string{"reason": out.Message, "attempt_id": out.AttemptID})
}
