package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paysend/internal/auth"
	"github.com/mrz1836/paysend/internal/config"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage the send PIN",
	Long:  `Manage the PIN that authorizes sends.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var pinSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the send PIN",
	Long: `Set the PIN that authorizes sends.

The PIN is entered twice and stored as an argon2id hash under auth.pin_hash
in the configuration file. Sends are refused until a PIN is set.

Example:
  paysend pin set`,
	Args: cobra.NoArgs,
	RunE: runPINSet,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(pinCmd)
	pinCmd.AddCommand(pinSetCmd)
}

func runPINSet(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	first, err := promptPINFn(ctx)
	if err != nil {
		return payerr.WithCause(payerr.ErrAuthAborted, err)
	}
	second, err := promptPINFn(ctx)
	if err != nil {
		return payerr.WithCause(payerr.ErrAuthAborted, err)
	}
	if first != second {
		return payerr.WithSuggestion(payerr.ErrPINIncorrect, "the two entries differ; run 'paysend pin set' again")
	}

	hash, err := auth.HashPIN(first)
	if err != nil {
		return err
	}

	configPath := config.Path(cfg.Home)
	current, err := config.Load(configPath)
	switch {
	case err == nil:
	case payerr.Is(err, payerr.ErrConfigNotFound):
		current = config.Defaults()
		current.Home = cfg.Home
	default:
		return err
	}

	current.Auth.PINHash = hash
	if err := config.Save(current, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	logger.Debug("pin hash updated in %s", configPath)
	return formatter.Result(map[string]string{"status": "pin set"}, func(w io.Writer) error {
		outln(w, "PIN set")
		return nil
	})
}

// pinCheck verifies entered codes against the stored hash. The gate treats
// any prompt error as an abort, so the last rejection is kept for the
// caller to report.
type pinCheck struct {
	hash   string
	prompt func(context.Context) (string, error)

	mu       sync.Mutex
	rejected error
}

func newPINCheck(hash string, prompt func(context.Context) (string, error)) (*pinCheck, error) {
	if hash == "" {
		return nil, payerr.WithSuggestion(
			payerr.WithDetails(payerr.ErrConfigInvalid, map[string]string{"field": "auth.pin_hash", "reason": "no PIN set"}),
			"run 'paysend pin set' before sending",
		)
	}
	return &pinCheck{hash: hash, prompt: prompt}, nil
}

// Prompt reads a code and returns it only when it matches the hash.
func (p *pinCheck) Prompt(ctx context.Context) (string, error) {
	code, err := p.prompt(ctx)
	if err != nil {
		return "", err
	}
	if err := auth.VerifyPIN(p.hash, code); err != nil {
		p.mu.Lock()
		p.rejected = err
		p.mu.Unlock()
		return "", err
	}
	return code, nil
}

// Rejected returns the verification error of the last entry, if any.
func (p *pinCheck) Rejected() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rejected
}
