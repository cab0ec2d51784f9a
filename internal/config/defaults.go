package config

import "time"

const (
	// DefaultETHRPCURL is the default account-model RPC endpoint (a local node
	// holding the sending account).
	DefaultETHRPCURL = "http://127.0.0.1:8545"

	// DefaultSigningTimeout bounds signing after the secret code is entered.
	DefaultSigningTimeout = 4 * time.Second

	// DefaultSettlementTimeout bounds the merchant payment POST.
	DefaultSettlementTimeout = 20 * time.Second

	// DefaultMaxAckBytes is the largest merchant acknowledgment accepted.
	DefaultMaxAckBytes = 50000

	// DefaultFeePerKB is the wallet fee rate in satoshis per kilobyte.
	DefaultFeePerKB = 10000
)

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.paysend",
		Auth: AuthConfig{
			BiometricsEnabled: false,
			SigningTimeout:    DefaultSigningTimeout,
			FatalOnTimeout:    true,
			BiometricPrompt:   "Authorize this payment",
		},
		Networks: NetworksConfig{
			ETH: ETHNetworkConfig{
				Enabled: true,
				RPC:     DefaultETHRPCURL,
				ChainID: 1,
			},
			BTC: BTCNetworkConfig{
				Enabled:  true,
				Network:  "mainnet",
				FeePerKB: DefaultFeePerKB,
			},
		},
		PaymentProtocol: PaymentProtocolConfig{
			Timeout:     DefaultSettlementTimeout,
			MaxAckBytes: DefaultMaxAckBytes,
		},
		Metadata: MetadataConfig{
			Driver: "sqlite",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.paysend/paysend.log",
		},
	}
}
