package cli

import (
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paysend/internal/output"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var memoCmd = &cobra.Command{
	Use:   "memo",
	Short: "Read transaction memos",
	Long:  `Read the metadata stored for sent transactions.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var memoShowCmd = &cobra.Command{
	Use:   "show <txid>",
	Short: "Show the memo stored for a transaction",
	Long: `Show the exchange rate, fee rate and comment stored for a transaction.

Example:
  paysend memo show 0x5e1c...`,
	Args: cobra.ExactArgs(1),
	RunE: runMemoShow,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(memoCmd)
	memoCmd.AddCommand(memoShowCmd)
}

// memoView is the memo show result.
type memoView struct {
	TxID      string    `json:"txid"`
	Currency  string    `json:"currency"`
	RateCode  string    `json:"rate_code,omitempty"`
	RateValue string    `json:"rate_value,omitempty"`
	FeeRate   float64   `json:"fee_rate,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func runMemoShow(cmd *cobra.Command, args []string) error {
	store, err := openMetadata(cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return payerr.WithSuggestion(
			payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"metadata": "disabled"}),
			"set metadata.driver to sqlite to record memos",
		)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := contextWithTimeout(cmd, 10*time.Second)
	defer cancel()

	rec, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}

	view := &memoView{
		TxID:      rec.TxID,
		Currency:  rec.Currency,
		FeeRate:   rec.FeeRate,
		Comment:   rec.Comment,
		CreatedAt: rec.CreatedAt,
	}
	if rec.Rate.Code != "" {
		view.RateCode = rec.Rate.Code
		view.RateValue = rec.Rate.Value.String()
	}

	return formatter.Result(view, func(w io.Writer) error {
		pairs := [][2]string{
			{"TxID", view.TxID},
			{"Currency", view.Currency},
		}
		if view.RateCode != "" {
			pairs = append(pairs, [2]string{"Rate", view.RateValue + " " + view.RateCode})
		}
		if view.FeeRate > 0 {
			pairs = append(pairs, [2]string{"Fee rate", formatFeeRate(view.FeeRate)})
		}
		if view.Comment != "" {
			pairs = append(pairs, [2]string{"Comment", view.Comment})
		}
		pairs = append(pairs, [2]string{"Recorded", view.CreatedAt.UTC().Format(time.RFC3339)})
		return output.Fields(w, pairs...)
	})
}

func formatFeeRate(r float64) string {
	return strconv.FormatFloat(r, 'f', -1, 64) + " sat/B"
}
