package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompt hooks, replaced in tests.
//
//nolint:gochecknoglobals // replaced in tests
var (
	promptPINFn     = promptPIN
	promptConfirmFn = promptConfirm
)

var errNoPIN = errors.New("no PIN entered")

// promptPIN reads the secret code from the terminal without echo. An empty
// entry abandons the prompt.
func promptPIN(context.Context) (string, error) {
	out(os.Stderr, "Enter PIN: ")
	pin, err := term.ReadPassword(int(os.Stdin.Fd())) //nolint:gosec // G115: Fd() fits in int on supported platforms
	outln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading PIN: %w", err)
	}
	if len(pin) == 0 {
		return "", errNoPIN
	}
	return string(pin), nil
}

// promptConfirm asks a yes/no question on stderr, defaulting to no.
func promptConfirm(question string) bool {
	return confirmFrom(os.Stdin, os.Stderr, question)
}

func confirmFrom(r io.Reader, w io.Writer, question string) bool {
	out(w, "%s [y/N]: ", question)

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
