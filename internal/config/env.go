package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvHome           = "PAYSEND_HOME"
	EnvETHRPC         = "PAYSEND_ETH_RPC"
	EnvETHFrom        = "PAYSEND_ETH_FROM"
	EnvOutputFormat   = "PAYSEND_OUTPUT_FORMAT"
	EnvVerbose        = "PAYSEND_VERBOSE"
	EnvLogLevel       = "PAYSEND_LOG_LEVEL"
	EnvBiometrics     = "PAYSEND_BIOMETRICS"
	EnvSigningTimeout = "PAYSEND_SIGNING_TIMEOUT"
	EnvMetadataDSN    = "PAYSEND_METADATA_DSN"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvETHRPC); v != "" {
		cfg.Networks.ETH.RPC = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvETHFrom); v != "" {
		cfg.Networks.ETH.FromAddress = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	if v := os.Getenv(EnvBiometrics); v != "" {
		cfg.Auth.BiometricsEnabled = parseBool(v)
	}

	// Accepts Go durations ("4s") or plain seconds ("4")
	if v := os.Getenv(EnvSigningTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Auth.SigningTimeout = d
		} else if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Auth.SigningTimeout = time.Duration(secs) * time.Second
		}
	}

	if v := os.Getenv(EnvMetadataDSN); v != "" {
		cfg.Metadata.DSN = v
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}
