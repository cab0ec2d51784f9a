// Package config provides configuration management for paysend.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/paysend/internal/fileutil"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version         int                   `yaml:"version"`
	Home            string                `yaml:"home"`
	Auth            AuthConfig            `yaml:"auth"`
	Networks        NetworksConfig        `yaml:"networks"`
	PaymentProtocol PaymentProtocolConfig `yaml:"payment_protocol"`
	Metadata        MetadataConfig        `yaml:"metadata"`
	Metrics         MetricsConfig         `yaml:"metrics"`
	Output          OutputConfig          `yaml:"output"`
	Logging         LoggingConfig         `yaml:"logging"`
}

// AuthConfig defines the authentication gate settings.
type AuthConfig struct {
	BiometricsEnabled bool          `yaml:"biometrics_enabled"`
	SigningTimeout    time.Duration `yaml:"signing_timeout" validate:"gt=0"`
	// FatalOnTimeout terminates the process when signing exceeds SigningTimeout.
	FatalOnTimeout  bool   `yaml:"fatal_on_timeout"`
	BiometricPrompt string `yaml:"biometric_prompt"`
	// PINHash is the argon2id hash entered codes are checked against.
	PINHash string `yaml:"pin_hash"`
}

// NetworksConfig defines per-chain network settings.
type NetworksConfig struct {
	ETH ETHNetworkConfig `yaml:"eth"`
	BTC BTCNetworkConfig `yaml:"btc"`
}

// ETHNetworkConfig defines the account-model network settings.
type ETHNetworkConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RPC         string `yaml:"rpc" validate:"omitempty,url"`
	FromAddress string `yaml:"from_address" validate:"omitempty,eth_addr"`
	ChainID     int64  `yaml:"chain_id" validate:"gte=0"`
}

// BTCNetworkConfig defines the UTXO-model network settings.
type BTCNetworkConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Network      string `yaml:"network" validate:"oneof=mainnet testnet3 regtest signet"`
	BroadcastURL string `yaml:"broadcast_url" validate:"omitempty,url"`
	FeePerKB     uint64 `yaml:"fee_per_kb"`
	ForkID       uint32 `yaml:"fork_id"`
}

// PaymentProtocolConfig defines merchant settlement settings.
type PaymentProtocolConfig struct {
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxAckBytes int64         `yaml:"max_ack_bytes" validate:"gt=0"`
}

// MetadataConfig defines the transaction metadata store.
type MetadataConfig struct {
	Driver string `yaml:"driver" validate:"oneof=sqlite none"`
	DSN    string `yaml:"dsn"`
}

// MetricsConfig defines metrics collection settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format" validate:"oneof=auto text json"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file. A missing file is
// reported as ErrConfigNotFound.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, payerr.WithDetails(payerr.WithCause(payerr.ErrConfigNotFound, err), map[string]string{"path": path})
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, payerr.WithCause(payerr.ErrConfigInvalid, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file, replacing it atomically.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, data, 0o600)
}

// Validate checks the configuration against its field constraints.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if payerr.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return payerr.WithDetails(payerr.ErrConfigInvalid, map[string]string{
				"field": first.Namespace(),
				"rule":  first.Tag(),
			})
		}
		return payerr.WithCause(payerr.ErrConfigInvalid, err)
	}
	return nil
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the paysend home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetETHRPC returns the account-model RPC URL.
func (c *Config) GetETHRPC() string {
	return c.Networks.ETH.RPC
}

// GetETHFromAddress returns the node-managed account used for sends.
func (c *Config) GetETHFromAddress() string {
	return c.Networks.ETH.FromAddress
}

// GetPINHash returns the stored PIN hash, empty when no PIN is set.
func (c *Config) GetPINHash() string {
	return c.Auth.PINHash
}

// BiometricsEnabled reports whether the biometric path may be attempted.
func (c *Config) BiometricsEnabled() bool {
	return c.Auth.BiometricsEnabled
}

// GetSigningTimeout returns the hard deadline around PIN signing.
func (c *Config) GetSigningTimeout() time.Duration {
	return c.Auth.SigningTimeout
}

// GetSettlementTimeout returns the merchant POST timeout.
func (c *Config) GetSettlementTimeout() time.Duration {
	return c.PaymentProtocol.Timeout
}

// GetMaxAckBytes returns the largest accepted merchant acknowledgment.
func (c *Config) GetMaxAckBytes() int64 {
	return c.PaymentProtocol.MaxAckBytes
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// MetadataDSN returns the metadata store DSN, defaulting to a file under home.
func (c *Config) MetadataDSN() string {
	if c.Metadata.DSN != "" {
		return c.Metadata.DSN
	}
	return fmt.Sprintf("file:%s?cache=shared", filepath.Join(c.Home, "metadata.db"))
}

// DefaultHome returns the default paysend home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".paysend"
	}
	return filepath.Join(home, ".paysend")
}
