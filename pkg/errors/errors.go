// Package errors provides structured error handling for paysend.
// It defines sentinel errors, exit codes, and helpers for adding
// context, details, and suggestions to errors.
//
//nolint:revive // Package name intentionally shadows stdlib for domain-specific error handling
package errors

import (
	"errors"
	"fmt"
	"sort"
)

// Exit codes used by the CLI.
const (
	ExitSuccess    = 0 // Successful execution
	ExitGeneral    = 1 // General/unknown error
	ExitInput      = 2 // Invalid input
	ExitAuth       = 3 // Authentication failed or aborted
	ExitNotFound   = 4 // Resource not found
	ExitPermission = 5 // Permission denied or insufficient funds
	ExitNetwork    = 6 // Network or broadcast failure
)

// PaysendError is the structured error type for paysend.
type PaysendError struct {
	Code       string            // Machine-readable error code
	Message    string            // Human-readable message
	Details    map[string]string // Additional context
	Suggestion string            // Actionable suggestion for user
	Cause      error             // Underlying error
	ExitCode   int               // Exit code for CLI
}

func (e *PaysendError) Error() string {
	msg := e.Message

	// Details are sorted for deterministic output
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			msg = fmt.Sprintf("%s (%s: %s)", msg, k, e.Details[k])
		}
	}

	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *PaysendError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is for PaysendError.
func (e *PaysendError) Is(target error) bool {
	var t *PaysendError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinel errors.
var (
	ErrGeneral = &PaysendError{
		Code:     "GENERAL_ERROR",
		Message:  "an error occurred",
		ExitCode: ExitGeneral,
	}

	ErrInvalidInput = &PaysendError{
		Code:     "INVALID_INPUT",
		Message:  "invalid input",
		ExitCode: ExitInput,
	}

	ErrNotFound = &PaysendError{
		Code:     "NOT_FOUND",
		Message:  "resource not found",
		ExitCode: ExitNotFound,
	}

	ErrInsufficientFunds = &PaysendError{
		Code:     "INSUFFICIENT_FUNDS",
		Message:  "insufficient funds for transaction",
		ExitCode: ExitPermission,
	}

	// Transaction construction errors.
	ErrCreationFailed = &PaysendError{
		Code:     "CREATION_FAILED",
		Message:  "could not create transaction",
		ExitCode: ExitInput,
	}

	ErrUnsupported = &PaysendError{
		Code:     "UNSUPPORTED",
		Message:  "operation not supported for this currency",
		ExitCode: ExitInput,
	}

	ErrInvalidAddress = &PaysendError{
		Code:     "INVALID_ADDRESS",
		Message:  "invalid address format",
		ExitCode: ExitInput,
	}

	ErrDustOutput = &PaysendError{
		Code:     "DUST_OUTPUT",
		Message:  "output amount is below dust limit",
		ExitCode: ExitInput,
	}

	ErrInvalidAmount = &PaysendError{
		Code:     "INVALID_AMOUNT",
		Message:  "invalid amount format",
		ExitCode: ExitInput,
	}

	// Authentication errors.
	ErrAuthAborted = &PaysendError{
		Code:     "AUTH_ABORTED",
		Message:  "authentication cancelled",
		ExitCode: ExitAuth,
	}

	ErrPINIncorrect = &PaysendError{
		Code:     "PIN_INCORRECT",
		Message:  "incorrect PIN",
		ExitCode: ExitAuth,
	}

	ErrSigningFailed = &PaysendError{
		Code:     "SIGNING_FAILED",
		Message:  "transaction signing failed",
		ExitCode: ExitAuth,
	}

	ErrSigningTimeout = &PaysendError{
		Code:     "SIGNING_TIMEOUT",
		Message:  "transaction signing did not complete before the deadline",
		ExitCode: ExitGeneral,
	}

	// Network errors.
	ErrNetworkError = &PaysendError{
		Code:     "NETWORK_ERROR",
		Message:  "network communication failed",
		ExitCode: ExitNetwork,
	}

	ErrPublishFailed = &PaysendError{
		Code:     "PUBLISH_FAILED",
		Message:  "transaction publish failed",
		ExitCode: ExitNetwork,
	}

	ErrTxRejected = &PaysendError{
		Code:     "TX_REJECTED",
		Message:  "transaction rejected by network",
		ExitCode: ExitNetwork,
	}

	// Account service errors.
	ErrServiceTransport = &PaysendError{
		Code:     "SERVICE_TRANSPORT",
		Message:  "account service transport failure",
		ExitCode: ExitNetwork,
	}

	ErrServiceDecode = &PaysendError{
		Code:     "SERVICE_DECODE",
		Message:  "account service response could not be decoded",
		ExitCode: ExitGeneral,
	}

	ErrServiceRPC = &PaysendError{
		Code:     "SERVICE_RPC",
		Message:  "account service rejected the request",
		ExitCode: ExitGeneral,
	}

	// Payment protocol errors.
	ErrSettlementRejected = &PaysendError{
		Code:     "SETTLEMENT_REJECTED",
		Message:  "merchant response rejected",
		ExitCode: ExitGeneral,
	}

	ErrDataTooLarge = &PaysendError{
		Code:     "DATA_TOO_LARGE",
		Message:  "data exceeds maximum size",
		ExitCode: ExitInput,
	}

	ErrInvalidFormat = &PaysendError{
		Code:     "INVALID_FORMAT",
		Message:  "invalid format",
		ExitCode: ExitInput,
	}

	// Config errors.
	ErrConfigNotFound = &PaysendError{
		Code:     "CONFIG_NOT_FOUND",
		Message:  "configuration file not found",
		ExitCode: ExitNotFound,
	}

	ErrConfigInvalid = &PaysendError{
		Code:     "CONFIG_INVALID",
		Message:  "configuration file is invalid",
		ExitCode: ExitInput,
	}
)

// New creates a new PaysendError with the given code and message.
func New(code, message string) *PaysendError {
	return &PaysendError{
		Code:     code,
		Message:  message,
		ExitCode: ExitGeneral,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}

	msg := fmt.Sprintf(format, args...)

	var pe *PaysendError
	if errors.As(err, &pe) {
		return &PaysendError{
			Code:       pe.Code,
			Message:    fmt.Sprintf("%s: %s", msg, pe.Message),
			Details:    pe.Details,
			Suggestion: pe.Suggestion,
			Cause:      pe.Cause,
			ExitCode:   pe.ExitCode,
		}
	}

	return &PaysendError{
		Code:     "GENERAL_ERROR",
		Message:  msg,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithCause returns a copy of a sentinel error carrying the given cause.
func WithCause(sentinel *PaysendError, cause error) error {
	return &PaysendError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		Details:    sentinel.Details,
		Suggestion: sentinel.Suggestion,
		Cause:      cause,
		ExitCode:   sentinel.ExitCode,
	}
}

// WithDetails adds details to an error.
func WithDetails(err error, details map[string]string) error {
	if err == nil {
		return nil
	}

	var pe *PaysendError
	if errors.As(err, &pe) {
		return &PaysendError{
			Code:       pe.Code,
			Message:    pe.Message,
			Details:    details,
			Suggestion: pe.Suggestion,
			Cause:      pe.Cause,
			ExitCode:   pe.ExitCode,
		}
	}

	return &PaysendError{
		Code:     "GENERAL_ERROR",
		Message:  err.Error(),
		Details:  details,
		Cause:    err,
		ExitCode: ExitGeneral,
	}
}

// WithSuggestion adds a suggestion to an error.
func WithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}

	var pe *PaysendError
	if errors.As(err, &pe) {
		return &PaysendError{
			Code:       pe.Code,
			Message:    pe.Message,
			Details:    pe.Details,
			Suggestion: suggestion,
			Cause:      pe.Cause,
			ExitCode:   pe.ExitCode,
		}
	}

	return &PaysendError{
		Code:       "GENERAL_ERROR",
		Message:    err.Error(),
		Suggestion: suggestion,
		Cause:      err,
		ExitCode:   ExitGeneral,
	}
}

// ExitCode returns the appropriate exit code for an error.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var pe *PaysendError
	if errors.As(err, &pe) {
		return pe.ExitCode
	}

	return ExitGeneral
}

// Code returns the error code for an error.
func Code(err error) string {
	var pe *PaysendError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return "GENERAL_ERROR"
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience.
func As(err error, target any) bool {
	return errors.As(err, target)
}
