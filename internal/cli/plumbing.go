package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/paysend/internal/auth"
	"github.com/mrz1836/paysend/internal/config"
	"github.com/mrz1836/paysend/internal/metadata"
	"github.com/mrz1836/paysend/internal/paymentprotocol"
	"github.com/mrz1836/paysend/internal/service/transaction"
)

// LogWriter is the logger commands hand to the services they assemble.
type LogWriter interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// The command logger must satisfy every service's logging interface.
var (
	_ LogWriter                 = (*config.Logger)(nil)
	_ auth.LogWriter            = LogWriter(nil)
	_ metadata.LogWriter        = LogWriter(nil)
	_ paymentprotocol.LogWriter = LogWriter(nil)
	_ transaction.LogWriter     = LogWriter(nil)
)

// contextWithTimeout bounds the command's context, or a background one when
// the command runs outside Execute, by d.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	if ctx := cmd.Context(); ctx != nil {
		return context.WithTimeout(ctx, d)
	}
	return context.WithTimeout(context.Background(), d)
}
