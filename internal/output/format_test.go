package output_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paysend/internal/output"
)

func TestFormatter_Result(t *testing.T) {
	t.Parallel()

	type result struct {
		TxID string `json:"txid"`
	}
	text := func(w io.Writer) error {
		_, err := io.WriteString(w, "sent abc\n")
		return err
	}

	var buf bytes.Buffer
	f := output.NewFormatter(output.FormatJSON, &buf)
	require.NoError(t, f.Result(result{TxID: "abc"}, text))
	var got result
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "abc", got.TxID)

	buf.Reset()
	f = output.NewFormatter(output.FormatText, &buf)
	require.NoError(t, f.Result(result{TxID: "abc"}, text))
	assert.Equal(t, "sent abc\n", buf.String())

	buf.Reset()
	require.NoError(t, f.Result("plain", nil))
	assert.Equal(t, "plain\n", buf.String())
}

func TestNewFormatter_AutoIsText(t *testing.T) {
	t.Parallel()

	f := output.NewFormatter(output.FormatAuto, io.Discard)
	assert.Equal(t, output.FormatText, f.Format())
	assert.False(t, f.IsJSON())

	f = output.NewFormatter(output.Format("yaml"), io.Discard)
	assert.Equal(t, output.FormatText, f.Format())
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := map[string]output.Format{
		"json":   output.FormatJSON,
		" JSON ": output.FormatJSON,
		"text":   output.FormatText,
		"auto":   output.FormatAuto,
		"":       output.FormatAuto,
		"yaml":   output.FormatAuto,
	}
	for in, want := range tests {
		assert.Equal(t, want, output.ParseFormat(in), "input %q", in)
	}
}

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, output.FormatText, output.DetectFormat(&bytes.Buffer{}, output.FormatText))
	assert.Equal(t, output.FormatJSON, output.DetectFormat(&bytes.Buffer{}, output.FormatAuto))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	assert.Equal(t, output.FormatJSON, output.DetectFormat(f, output.FormatAuto))
}

func TestTable(t *testing.T) {
	t.Parallel()

	addr := "mkHS9ne12qx9pS9VojpwU5xtRd4T7X7ZUt"
	tbl := output.NewTable("ADDRESS", "AMOUNT")
	tbl.AddRow(addr, "100000")
	tbl.AddRow("short", "5")

	n := len(addr)
	want := fmt.Sprintf("%-*s  %s\n", n, "ADDRESS", "AMOUNT") +
		strings.Repeat("-", n) + "  ------\n" +
		addr + "  100000\n" +
		fmt.Sprintf("%-*s  %s\n", n, "short", "5")
	assert.Equal(t, want, tbl.String())
}

func TestTable_RaggedAndEmpty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, output.NewTable().String())

	tbl := output.NewTable("A")
	tbl.AddRow("x", "extra")
	assert.Equal(t, "A\n-  -----\nx  extra\n", tbl.String())
}

func TestFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, output.Fields(&buf, [2]string{"TxID", "abc"}, [2]string{"Fee", "210"}))
	assert.Equal(t, "TxID:  abc\nFee:   210\n", buf.String())
}

func TestMessages(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	output.Successf(&buf, "sent %d", 1)
	output.Warnf(&buf, "slow")
	output.Infof(&buf, "hi")
	assert.Equal(t, "✅ sent 1\n⚠️  slow\nℹ️  hi\n", buf.String())
}
