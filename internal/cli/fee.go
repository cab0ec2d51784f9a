package cli

import (
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paysend/internal/chain"
	"github.com/mrz1836/paysend/internal/chain/utxo"
	"github.com/mrz1836/paysend/internal/metrics"
	"github.com/mrz1836/paysend/internal/output"
	"github.com/mrz1836/paysend/internal/service/transaction"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	feeCurrency string
	feeAmount   string
	feeInputs   int
	feeOutputs  int
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var feeCmd = &cobra.Command{
	Use:   "fee",
	Short: "Quote the network fee for a send",
	Long: `Quote the network fee for sending an amount.

Account-model fees are the node's current gas price times the transfer gas
limit. UTXO fees are estimated from the configured fee rate and the
transaction shape.

Example:
  paysend fee --currency ETH --amount 0.25
  paysend fee --currency BTC --inputs 2 --outputs 2`,
	RunE: runFee,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(feeCmd)

	feeCmd.Flags().StringVar(&feeCurrency, "currency", "ETH", "currency: ETH, BTC, BCH")
	feeCmd.Flags().StringVar(&feeAmount, "amount", "", "amount to send in whole units")
	feeCmd.Flags().IntVar(&feeInputs, "inputs", 1, "UTXO inputs to assume")
	feeCmd.Flags().IntVar(&feeOutputs, "outputs", 2, "UTXO outputs to assume, including change")
}

// feeQuote is the fee command result.
type feeQuote struct {
	Currency  string `json:"currency"`
	Amount    string `json:"amount,omitempty"`
	Fee       string `json:"fee"`
	FeeUnits  string `json:"fee_base_units"`
	Rate      string `json:"rate"`
	RateUnits string `json:"rate_units"`
}

func runFee(cmd *cobra.Command, _ []string) error {
	cur, err := resolveCurrency(cfg, feeCurrency)
	if err != nil {
		return err
	}

	var amount *big.Int
	if feeAmount != "" {
		if amount, err = chain.ParseAmount(cur, feeAmount); err != nil {
			return err
		}
	}

	var quote *feeQuote
	switch c := cur.(type) {
	case chain.Account:
		quote, err = quoteAccountFee(cmd, c, amount)
	case chain.UTXO:
		quote = quoteUTXOFee(c)
	default:
		// Tokens are recognized but cannot be quoted.
		_, err = transaction.NewFeeCalculator(nil, nil, nil).FeeForAmount(big.NewInt(1), cur)
	}
	if err != nil {
		return err
	}
	if amount != nil {
		quote.Amount = chain.FormatAmount(cur, amount)
	}

	return formatter.Result(quote, func(w io.Writer) error {
		pairs := [][2]string{{"Currency", quote.Currency}}
		if quote.Amount != "" {
			pairs = append(pairs, [2]string{"Amount", quote.Amount})
		}
		pairs = append(pairs,
			[2]string{"Fee", quote.Fee + " " + quote.Currency},
			[2]string{"Rate", quote.Rate + " " + quote.RateUnits},
		)
		return output.Fields(w, pairs...)
	})
}

func quoteAccountFee(cmd *cobra.Command, cur chain.Account, amount *big.Int) (*feeQuote, error) {
	ctx, cancel := contextWithTimeout(cmd, 30*time.Second)
	defer cancel()

	accounts, err := newAccountService(cfg, metrics.Global, false)
	if err != nil {
		return nil, err
	}
	price, err := accounts.RefreshGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	if amount == nil {
		amount = big.NewInt(1)
	}
	fee, err := transaction.NewFeeCalculator(nil, accounts, nil).FeeForAmount(amount, cur)
	if err != nil {
		return nil, err
	}
	logger.Debug("quoted %s fee %s at gas price %s", cur.Code, fee, price)

	return &feeQuote{
		Currency:  cur.Code,
		Fee:       chain.FormatAmount(cur, fee),
		FeeUnits:  fee.String(),
		Rate:      price.String(),
		RateUnits: "wei/gas",
	}, nil
}

func quoteUTXOFee(cur chain.UTXO) *feeQuote {
	rate := cfg.Networks.BTC.FeePerKB
	fee := utxo.EstimateFeeForTx(feeInputs, feeOutputs, rate)

	return &feeQuote{
		Currency:  cur.Code,
		Fee:       chain.FormatAmount(cur, new(big.Int).SetUint64(fee)),
		FeeUnits:  strconv.FormatUint(fee, 10),
		Rate:      strconv.FormatUint(rate, 10),
		RateUnits: "sat/kB",
	}
}
