// Package output renders command results and errors for the paysend CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format selects how results are rendered.
type Format string

// Supported formats. FormatAuto defers the choice to DetectFormat.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatAuto Format = "auto"
)

// ParseFormat maps a user-supplied name onto a Format. Anything it does not
// recognise means auto.
func ParseFormat(s string) Format {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText:
		return f
	default:
		return FormatAuto
	}
}

// DetectFormat settles FormatAuto for w: people at a terminal get text,
// pipes and files get JSON.
func DetectFormat(w io.Writer, requested Format) Format {
	if requested != FormatAuto {
		return requested
	}
	if isTerminal(w) {
		return FormatText
	}
	return FormatJSON
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: Fd() fits in int on supported platforms
}

// Formatter renders results to one writer in one format.
type Formatter struct {
	w      io.Writer
	format Format
}

// NewFormatter renders to w. An unresolved format falls back to text.
func NewFormatter(format Format, w io.Writer) *Formatter {
	if format != FormatJSON {
		format = FormatText
	}
	return &Formatter{w: w, format: format}
}

// Format reports the format in use.
func (f *Formatter) Format() Format { return f.format }

// IsJSON reports whether results are rendered as JSON.
func (f *Formatter) IsJSON() bool { return f.format == FormatJSON }

// Result renders v. JSON output is the indented encoding of v; text output
// is whatever text writes, or v printed with %v when text is nil.
func (f *Formatter) Result(v any, text func(w io.Writer) error) error {
	switch {
	case f.IsJSON():
		return writeJSON(f.w, v)
	case text != nil:
		return text(f.w)
	default:
		_, err := fmt.Fprintln(f.w, v)
		return err
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
