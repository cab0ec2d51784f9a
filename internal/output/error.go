package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// ErrorOutput is the JSON envelope for a failed command.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// describe flattens err into an ErrorDetail.
func describe(err error) ErrorDetail {
	var pe *payerr.PaysendError
	if !payerr.As(err, &pe) {
		return ErrorDetail{
			Code:     payerr.ErrGeneral.Code,
			Message:  err.Error(),
			ExitCode: payerr.ExitGeneral,
		}
	}

	d := ErrorDetail{
		Code:       pe.Code,
		Message:    pe.Message,
		Details:    pe.Details,
		Suggestion: pe.Suggestion,
		ExitCode:   payerr.ExitCode(err),
	}
	if pe.Cause != nil {
		d.Cause = pe.Cause.Error()
	}
	return d
}

// FormatError writes err in the given format. Nil errors write nothing.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	d := describe(err)
	if format == FormatJSON {
		return writeJSON(w, ErrorOutput{Error: d})
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Error: %s\n", d.Message)
	if d.Cause != "" {
		fmt.Fprintf(&sb, "Cause: %s\n", d.Cause)
	}

	if len(d.Details) > 0 {
		keys := make([]string, 0, len(d.Details))
		for k := range d.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			fmt.Fprintf(&sb, "  %s: %s\n", k, d.Details[k])
		}
	}

	if d.Suggestion != "" {
		fmt.Fprintf(&sb, "\nSuggestion: %s\n", d.Suggestion)
	}

	_, werr := io.WriteString(w, sb.String())
	return werr
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
