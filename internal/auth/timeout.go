package auth

import (
	"os"
	"time"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// TimeoutHandler decides what happens when PIN signing exceeds its deadline.
// A handler that returns is non-fatal; its error becomes the signing result.
type TimeoutHandler interface {
	SigningTimedOut(timeout time.Duration) error
}

// FatalTimeoutHandler logs the timeout and terminates the process.
type FatalTimeoutHandler struct {
	Logger LogWriter

	// Exit terminates the process; os.Exit when nil.
	Exit func(code int)
}

// SigningTimedOut implements TimeoutHandler.
func (h FatalTimeoutHandler) SigningTimedOut(timeout time.Duration) error {
	logger := h.Logger
	if logger == nil {
		logger = nopLogger{}
	}
	logger.Error("send-tx-timeout: signing did not finish within %s", timeout)

	exit := h.Exit
	if exit == nil {
		exit = os.Exit
	}
	exit(payerr.ExitGeneral)

	return payerr.ErrSigningTimeout
}

// ErrorTimeoutHandler reports the timeout as ErrSigningTimeout.
type ErrorTimeoutHandler struct{}

// SigningTimedOut implements TimeoutHandler.
func (ErrorTimeoutHandler) SigningTimedOut(timeout time.Duration) error {
	return payerr.WithDetails(payerr.ErrSigningTimeout, map[string]string{"timeout": timeout.String()})
}
