package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/paysend/internal/config"
	"github.com/mrz1836/paysend/internal/output"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// configCmd is the parent command for configuration operations.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and modify paysend configuration settings.`,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	Long: `Create a default configuration file at ~/.paysend/config.yaml.

An existing file is kept unless --force is given.

Example:
  paysend config init
  paysend config init --force`,
	RunE: runConfigInit,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration, including environment overrides.

Example:
  paysend config show
  paysend config show -o json`,
	RunE: runConfigShow,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configGetCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by its dotted path.

Examples:
  paysend config get networks.eth.rpc
  paysend config get auth.signing_timeout`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var configSetCmd = &cobra.Command{
	Use:   "set <path> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by its dotted path and save the file.

The updated configuration is validated before it is written.

Examples:
  paysend config set networks.eth.from_address 0x52908400098527886E0F7030069857D2E4169EE7
  paysend config set auth.signing_timeout 45s
  paysend config set metadata.driver none`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var configForce bool

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite existing configuration")
}

// configKey reads and writes one settable configuration value.
type configKey struct {
	get func(c *config.Config) string
	set func(c *config.Config, v string) error
}

func stringKey(field func(c *config.Config) *string) configKey {
	return configKey{
		get: func(c *config.Config) string { return *field(c) },
		set: func(c *config.Config, v string) error {
			*field(c) = v
			return nil
		},
	}
}

func boolKey(field func(c *config.Config) *bool) configKey {
	return configKey{
		get: func(c *config.Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *config.Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"value": v, "valid": "true or false"})
			}
			*field(c) = b
			return nil
		},
	}
}

func durationKey(field func(c *config.Config) *time.Duration) configKey {
	return configKey{
		get: func(c *config.Config) string { return field(c).String() },
		set: func(c *config.Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"value": v, "valid": "a duration such as 30s"})
			}
			*field(c) = d
			return nil
		},
	}
}

func uintKey(bits int, get func(c *config.Config) uint64, put func(c *config.Config, n uint64)) configKey {
	return configKey{
		get: func(c *config.Config) string { return strconv.FormatUint(get(c), 10) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.ParseUint(v, 10, bits)
			if err != nil {
				return payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"value": v, "valid": "a non-negative integer"})
			}
			put(c, n)
			return nil
		},
	}
}

func intKey(field func(c *config.Config) *int64) configKey {
	return configKey{
		get: func(c *config.Config) string { return strconv.FormatInt(*field(c), 10) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"value": v, "valid": "an integer"})
			}
			*field(c) = n
			return nil
		},
	}
}

// configKeys maps dotted paths onto configuration fields.
//
//nolint:gochecknoglobals // static registry
var configKeys = map[string]configKey{
	"home": stringKey(func(c *config.Config) *string { return &c.Home }),

	"auth.biometrics_enabled": boolKey(func(c *config.Config) *bool { return &c.Auth.BiometricsEnabled }),
	"auth.signing_timeout":    durationKey(func(c *config.Config) *time.Duration { return &c.Auth.SigningTimeout }),
	"auth.fatal_on_timeout":   boolKey(func(c *config.Config) *bool { return &c.Auth.FatalOnTimeout }),
	"auth.biometric_prompt":   stringKey(func(c *config.Config) *string { return &c.Auth.BiometricPrompt }),

	"networks.eth.enabled":      boolKey(func(c *config.Config) *bool { return &c.Networks.ETH.Enabled }),
	"networks.eth.rpc":          stringKey(func(c *config.Config) *string { return &c.Networks.ETH.RPC }),
	"networks.eth.from_address": stringKey(func(c *config.Config) *string { return &c.Networks.ETH.FromAddress }),
	"networks.eth.chain_id":     intKey(func(c *config.Config) *int64 { return &c.Networks.ETH.ChainID }),

	"networks.btc.enabled":       boolKey(func(c *config.Config) *bool { return &c.Networks.BTC.Enabled }),
	"networks.btc.network":       stringKey(func(c *config.Config) *string { return &c.Networks.BTC.Network }),
	"networks.btc.broadcast_url": stringKey(func(c *config.Config) *string { return &c.Networks.BTC.BroadcastURL }),
	"networks.btc.fee_per_kb": uintKey(64,
		func(c *config.Config) uint64 { return c.Networks.BTC.FeePerKB },
		func(c *config.Config, n uint64) { c.Networks.BTC.FeePerKB = n }),
	"networks.btc.fork_id": uintKey(32,
		func(c *config.Config) uint64 { return uint64(c.Networks.BTC.ForkID) },
		func(c *config.Config, n uint64) { c.Networks.BTC.ForkID = uint32(n) }), //nolint:gosec // G115: parsed with 32 bits

	"payment_protocol.timeout":       durationKey(func(c *config.Config) *time.Duration { return &c.PaymentProtocol.Timeout }),
	"payment_protocol.max_ack_bytes": intKey(func(c *config.Config) *int64 { return &c.PaymentProtocol.MaxAckBytes }),

	"metadata.driver": stringKey(func(c *config.Config) *string { return &c.Metadata.Driver }),
	"metadata.dsn":    stringKey(func(c *config.Config) *string { return &c.Metadata.DSN }),

	"metrics.enabled": boolKey(func(c *config.Config) *bool { return &c.Metrics.Enabled }),

	"output.default_format": stringKey(func(c *config.Config) *string { return &c.Output.DefaultFormat }),
	"output.verbose":        boolKey(func(c *config.Config) *bool { return &c.Output.Verbose }),

	"logging.level": stringKey(func(c *config.Config) *string { return &c.Logging.Level }),
	"logging.file":  stringKey(func(c *config.Config) *string { return &c.Logging.File }),
}

func lookupConfigKey(path string) (configKey, error) {
	key, ok := configKeys[path]
	if !ok {
		return configKey{}, payerr.WithSuggestion(
			payerr.WithDetails(payerr.ErrNotFound, map[string]string{"path": path}),
			"run 'paysend config show' to list configuration paths",
		)
	}
	return key, nil
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	configPath := config.Path(cfg.Home)

	if _, err := os.Stat(configPath); err == nil && !configForce {
		return payerr.WithSuggestion(
			payerr.ErrGeneral,
			fmt.Sprintf("configuration already exists at %s. Use --force to overwrite.", configPath),
		)
	}

	defaultCfg := config.Defaults()
	defaultCfg.Home = cfg.Home
	if err := config.Save(defaultCfg, configPath); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	w := cmd.OutOrStdout()
	out(w, "Configuration initialized at %s\n", configPath)
	outln(w)
	outln(w, "Edit this file to configure:")
	outln(w, "  - networks.eth.rpc: your node's JSON-RPC endpoint")
	outln(w, "  - networks.eth.from_address: the node account that sends")
	outln(w, "  - networks.btc.broadcast_url: transaction broadcast endpoint (optional)")
	outln(w, "  - logging.level: log level (off/error/debug)")
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	w := cmd.OutOrStdout()
	if formatter.IsJSON() {
		values := make(map[string]string, len(configKeys))
		for path, key := range configKeys {
			values[path] = key.get(cfg)
		}
		return formatter.Result(values, nil)
	}

	if cfg.Output.Verbose {
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}

	paths := make([]string, 0, len(configKeys))
	for path := range configKeys {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	tbl := output.NewTable("PATH", "VALUE")
	for _, path := range paths {
		tbl.AddRow(path, configKeys[path].get(cfg))
	}
	return tbl.Render(w)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key, err := lookupConfigKey(args[0])
	if err != nil {
		return err
	}
	outln(cmd.OutOrStdout(), key.get(cfg))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	path, value := args[0], args[1]
	key, err := lookupConfigKey(path)
	if err != nil {
		return err
	}

	// Only the file's values are saved, not environment overrides.
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

	if err := key.set(current, value); err != nil {
		return err
	}
	if err := current.Validate(); err != nil {
		return err
	}
	if err := config.Save(current, configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	logger.Debug("config %s updated in %s", path, configPath)
	return formatter.Result(map[string]string{"path": path, "value": key.get(current)}, func(w io.Writer) error {
		out(w, "Set %s = %s\n", path, key.get(current))
		return nil
	})
}
