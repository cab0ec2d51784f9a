package cli

import (
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paysend/internal/chain/utxo"
	"github.com/mrz1836/paysend/internal/output"
	"github.com/mrz1836/paysend/internal/paymentprotocol"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var requestMIME string

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var requestCmd = &cobra.Command{
	Use:   "request",
	Short: "Work with merchant payment requests",
	Long:  `Decode and check merchant payment requests.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var requestInspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Decode and validate a payment request",
	Long: `Decode a payment request file and check it.

The media type defaults to the JSON flavor for .json files and the binary
flavor otherwise. The fee estimate uses the higher of the configured rate
and the merchant's required rate.

Example:
  paysend request inspect invoice.json
  paysend request inspect invoice.bin --mime application/bitcoin-paymentrequest`,
	Args: cobra.ExactArgs(1),
	RunE: runRequestInspect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(requestCmd)
	requestCmd.AddCommand(requestInspectCmd)

	requestInspectCmd.Flags().StringVar(&requestMIME, "mime", "", "media type of the request body")
}

// requestOutputView is one requested output.
type requestOutputView struct {
	Address string `json:"address,omitempty"`
	Script  string `json:"script,omitempty"`
	Amount  uint64 `json:"amount"`
}

// requestView is the inspect command result.
type requestView struct {
	Flavor          string              `json:"flavor"`
	Network         string              `json:"network,omitempty"`
	PaymentURL      string              `json:"payment_url,omitempty"`
	PaymentID       string              `json:"payment_id,omitempty"`
	Memo            string              `json:"memo,omitempty"`
	Outputs         []requestOutputView `json:"outputs"`
	Total           uint64              `json:"total"`
	RequiredFeeRate float64             `json:"required_fee_rate"`
	FeePerKB        uint64              `json:"fee_per_kb"`
	EstimatedFee    uint64              `json:"estimated_fee"`
	Expires         *time.Time          `json:"expires,omitempty"`
	Expired         bool                `json:"expired"`
	Valid           bool                `json:"valid"`
	Problem         string              `json:"problem,omitempty"`
}

func runRequestInspect(_ *cobra.Command, args []string) error {
	path := args[0]
	// #nosec G304 -- path is supplied by the user on the command line
	body, err := os.ReadFile(path)
	if err != nil {
		return payerr.WithDetails(payerr.ErrNotFound, map[string]string{"file": path})
	}

	mimeType := requestMIME
	if mimeType == "" {
		mimeType = paymentprotocol.MIMEPaymentRequestBinary
		if strings.EqualFold(filepath.Ext(path), ".json") {
			mimeType = paymentprotocol.MIMEPaymentRequestJSON
		}
	}

	req, err := paymentprotocol.DecodeRequest(mimeType, body)
	if err != nil {
		return err
	}
	logger.Debug("decoded %s payment request from %s", req.Flavor(), path)

	view := inspectRequest(req, cfg.Networks.BTC.FeePerKB, time.Now())
	if err := formatter.Result(view, func(w io.Writer) error { return renderRequest(w, view) }); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if view.Expired {
		return payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"reason": view.Problem})
	}
	return nil
}

// inspectRequest summarizes req. The fee rate follows the send rule: the
// merchant's rate applies only when it exceeds the wallet rate.
func inspectRequest(req *paymentprotocol.Request, walletFeePerKB uint64, now time.Time) *requestView {
	view := &requestView{
		Flavor:          req.Flavor().String(),
		Network:         req.Network,
		PaymentURL:      req.PaymentURL,
		PaymentID:       req.PaymentID,
		Memo:            req.Memo,
		RequiredFeeRate: req.RequiredFeeRate,
		FeePerKB:        walletFeePerKB,
		Expired:         req.Expired(now),
		Valid:           true,
	}

	for _, o := range req.Outputs {
		ov := requestOutputView{Address: o.Address, Amount: o.Amount}
		if o.Address == "" && len(o.Script) > 0 {
			ov.Script = hex.EncodeToString(o.Script)
		}
		view.Outputs = append(view.Outputs, ov)
	}
	// An overflowing total shows as zero; Validate reports it below.
	view.Total, _ = req.TotalAmount()

	if required := req.RequiredFeePerKB(); required > view.FeePerKB {
		view.FeePerKB = required
	}
	view.EstimatedFee = utxo.EstimateFeeForTx(1, len(req.Outputs)+1, view.FeePerKB)

	if !req.Expires.IsZero() {
		exp := req.Expires
		view.Expires = &exp
	}

	if err := req.Validate(); err != nil {
		view.Valid = false
		view.Problem = err.Error()
	} else if view.Expired {
		view.Valid = false
		view.Problem = "request expired"
	}
	return view
}

func renderRequest(w io.Writer, v *requestView) error {
	pairs := [][2]string{
		{"Flavor", v.Flavor},
		{"Network", v.Network},
		{"Payment URL", v.PaymentURL},
		{"Memo", v.Memo},
		{"Total", strconv.FormatUint(v.Total, 10) + " sat"},
		{"Fee rate", strconv.FormatUint(v.FeePerKB, 10) + " sat/kB"},
		{"Est. fee", strconv.FormatUint(v.EstimatedFee, 10) + " sat"},
	}
	if v.Expires != nil {
		pairs = append(pairs, [2]string{"Expires", v.Expires.UTC().Format(time.RFC3339)})
	}
	if err := output.Fields(w, pairs...); err != nil {
		return err
	}

	outln(w)
	tbl := output.NewTable("DESTINATION", "AMOUNT")
	for _, o := range v.Outputs {
		dest := o.Address
		if dest == "" {
			dest = "script " + o.Script
		}
		tbl.AddRow(dest, strconv.FormatUint(o.Amount, 10))
	}
	if err := tbl.Render(w); err != nil {
		return err
	}

	outln(w)
	if v.Valid {
		output.Successf(w, "request is valid")
	} else {
		output.Warnf(w, "request is not payable: %s", v.Problem)
	}
	return nil
}
