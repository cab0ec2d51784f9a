// Package auth gates transaction signing behind human authentication:
// a biometric check when available, otherwise a secret code (PIN).
package auth

import (
	"context"

	"github.com/btcsuite/btcd/wire"
)

// BiometricOutcome is the result of a biometric signing attempt.
type BiometricOutcome int

// Biometric outcomes.
const (
	BiometricSuccess BiometricOutcome = iota + 1
	BiometricFailure
	BiometricFallback
	BiometricCancel
)

// String returns the outcome name.
func (o BiometricOutcome) String() string {
	switch o {
	case BiometricSuccess:
		return "success"
	case BiometricFailure:
		return "failure"
	case BiometricFallback:
		return "fallback"
	case BiometricCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Path records how a send was authorized.
type Path string

// Authorization paths.
const (
	PathBiometric Path = "biometric"
	PathPIN       Path = "pin"
	PathNone      Path = "none"
)

// Settings exposes the user's authentication preferences.
type Settings interface {
	BiometricsEnabled() bool
}

// Signer holds the wallet keys and the biometric sensor. Signing mutates tx
// in place.
type Signer interface {
	// CanUseBiometrics reports whether tx may be authorized biometrically
	// (e.g. it is under the user's spending limit).
	CanUseBiometrics(tx *wire.MsgTx) bool

	// SignWithBiometrics prompts for a biometric check and signs on success.
	SignWithBiometrics(ctx context.Context, tx *wire.MsgTx, forkID uint32, prompt string) BiometricOutcome

	// Sign signs tx with keys unlocked by pin.
	Sign(ctx context.Context, tx *wire.MsgTx, forkID uint32, pin string) error
}

// PINPrompt asks the user for their secret code. It may block for as long
// as the user takes; an error means the user gave up.
type PINPrompt func(ctx context.Context) (string, error)

// LogWriter is the logging interface used by the gate.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
