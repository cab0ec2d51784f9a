package cli

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/paysend/internal/config"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

func TestSend_Success(t *testing.T) {
	home := t.TempDir()
	node := newFakeNode(t)
	writeConfig(t, home, nodeConfig(node))
	withPrompts(t, fixedPIN(testPIN), true)

	out, err := runCLI(t, home, "send", "--to", testTo, "--amount", "0.25",
		"--rate", "usd:2450.10", "--comment", "rent", "-o", "json")
	require.NoError(t, err)

	var res sendResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, testTxHash, res.TxID)
	assert.NotEmpty(t, res.AttemptID)
	assert.Equal(t, "ETH", res.Currency)
	assert.Equal(t, "0.25", res.Amount)
	assert.Equal(t, "0.00042", res.Fee)
	assert.Equal(t, []string{"eth_gasPrice", "eth_sendTransaction"}, node.calls())
	assert.Equal(t, "0x3782dace9d90000", node.lastTx["value"])

	// The memo written by the send is readable afterwards.
	out, err = runCLI(t, home, "memo", "show", testTxHash, "-o", "json")
	require.NoError(t, err)

	var memo memoView
	require.NoError(t, json.Unmarshal([]byte(out), &memo))
	assert.Equal(t, testTxHash, memo.TxID)
	assert.Equal(t, "ETH", memo.Currency)
	assert.Equal(t, "USD", memo.RateCode)
	assert.Equal(t, "2450.1", memo.RateValue)
	assert.Equal(t, "rent", memo.Comment)
	assert.InDelta(t, 20e9, memo.FeeRate, 1)
}

func TestSend_WithoutRateWritesNoMemo(t *testing.T) {
	home := t.TempDir()
	node := newFakeNode(t)
	writeConfig(t, home, nodeConfig(node))
	withPrompts(t, fixedPIN(testPIN), true)

	_, err := runCLI(t, home, "send", "--to", testTo, "--amount", "1", "--yes", "-o", "json")
	require.NoError(t, err)

	_, err = runCLI(t, home, "memo", "show", testTxHash)
	require.ErrorIs(t, err, payerr.ErrNotFound)
}

func TestSend_TextOutput(t *testing.T) {
	home := t.TempDir()
	node := newFakeNode(t)
	writeConfig(t, home, func(c *config.Config) {
		nodeConfig(node)(c)
		c.Metadata.Driver = "none"
	})
	withPrompts(t, fixedPIN(testPIN), true)

	out, err := runCLI(t, home, "send", "--to", testTo, "--amount", "0.1", "-o", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "sent 0.1 ETH")
	assert.Contains(t, out, testTxHash)
}

func TestSend_NodeRejects(t *testing.T) {
	home := t.TempDir()
	node := newFakeNode(t)
	node.sendErr = &rpcError{Code: -32000, Message: "insufficient funds for transfer"}
	writeConfig(t, home, nodeConfig(node))
	withPrompts(t, fixedPIN(testPIN), true)

	_, err := runCLI(t, home, "send", "--to", testTo, "--amount", "0.1", "-o", "json")
	require.ErrorIs(t, err, payerr.ErrCreationFailed)

	var pe *payerr.PaysendError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Details["reason"], "insufficient funds")
	assert.NotEmpty(t, pe.Details["attempt_id"])
}

func TestSend_Aborted(t *testing.T) {
	tests := []struct {
		name    string
		pin     func(context.Context) (string, error)
		confirm bool
		sends   int
	}{
		{
			name:    "confirmation declined",
			pin:     fixedPIN(testPIN),
			confirm: false,
		},
		{
			name:    "PIN entry abandoned",
			pin:     func(context.Context) (string, error) { return "", errNoPIN },
			confirm: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			home := t.TempDir()
			node := newFakeNode(t)
			writeConfig(t, home, nodeConfig(node))
			withPrompts(t, tc.pin, tc.confirm)

			_, err := runCLI(t, home, "send", "--to", testTo, "--amount", "0.1")
			require.ErrorIs(t, err, payerr.ErrAuthAborted)
			assert.Equal(t, payerr.ExitAuth, ExitCode(err))
			assert.NotContains(t, node.calls(), "eth_sendTransaction")
		})
	}
}

func TestSend_WrongPIN(t *testing.T) {
	home := t.TempDir()
	node := newFakeNode(t)
	writeConfig(t, home, nodeConfig(node))
	withPrompts(t, fixedPIN("0000"), true)

	_, err := runCLI(t, home, "send", "--to", testTo, "--amount", "0.1", "-o", "json")
	require.ErrorIs(t, err, payerr.ErrPINIncorrect)
	assert.Equal(t, payerr.ExitAuth, ExitCode(err))
	assert.NotContains(t, node.calls(), "eth_sendTransaction")
}

func TestSend_NoPINSet(t *testing.T) {
	home := t.TempDir()
	node := newFakeNode(t)
	writeConfig(t, home, func(c *config.Config) {
		nodeConfig(node)(c)
		c.Auth.PINHash = ""
	})
	prompted := false
	withPrompts(t, func(context.Context) (string, error) {
		prompted = true
		return testPIN, nil
	}, true)

	_, err := runCLI(t, home, "send", "--to", testTo, "--amount", "0.1")
	require.ErrorIs(t, err, payerr.ErrConfigInvalid)
	assert.False(t, prompted)
	assert.Empty(t, node.calls())
}

func TestSend_CorruptPINHash(t *testing.T) {
	home := t.TempDir()
	node := newFakeNode(t)
	writeConfig(t, home, func(c *config.Config) {
		nodeConfig(node)(c)
		c.Auth.PINHash = "$argon2id$v=19$m=0,t=0,p=0$$"
	})
	withPrompts(t, fixedPIN(testPIN), true)

	_, err := runCLI(t, home, "send", "--to", testTo, "--amount", "0.1")
	require.ErrorIs(t, err, payerr.ErrConfigInvalid)
	assert.NotContains(t, node.calls(), "eth_sendTransaction")
}

func TestSend_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.Config)
		args   []string
		want   error
	}{
		{
			name:   "utxo currency",
			mutate: func(c *config.Config) { c.Networks.ETH.FromAddress = testFrom },
			args:   []string{"--to", testTo, "--amount", "0.1", "--currency", "BTC"},
			want:   payerr.ErrUnsupported,
		},
		{
			name:   "no sending account",
			mutate: func(*config.Config) {},
			args:   []string{"--to", testTo, "--amount", "0.1"},
			want:   payerr.ErrConfigInvalid,
		},
		{
			name:   "bad destination",
			mutate: func(c *config.Config) { c.Networks.ETH.FromAddress = testFrom },
			args:   []string{"--to", "0x1234", "--amount", "0.1"},
			want:   payerr.ErrInvalidAddress,
		},
		{
			name:   "bad amount",
			mutate: func(c *config.Config) { c.Networks.ETH.FromAddress = testFrom },
			args:   []string{"--to", testTo, "--amount", "-1"},
			want:   payerr.ErrInvalidAmount,
		},
		{
			name:   "bad rate",
			mutate: func(c *config.Config) { c.Networks.ETH.FromAddress = testFrom },
			args:   []string{"--to", testTo, "--amount", "0.1", "--rate", "USD"},
			want:   payerr.ErrInvalidInput,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			home := t.TempDir()
			writeConfig(t, home, tc.mutate)
			withPrompts(t, fixedPIN(testPIN), true)

			_, err := runCLI(t, home, append([]string{"send"}, tc.args...)...)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSend_RequiresFlags(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "send", "--amount", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to")
}

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		code    string
		value   string
		wantErr bool
	}{
		{in: "USD:64123.50", code: "USD", value: "64123.5"},
		{in: " eur : 1.2 ", code: "EUR", value: "1.2"},
		{in: "USD", wantErr: true},
		{in: ":1", wantErr: true},
		{in: "USD:abc", wantErr: true},
		{in: "USD:0", wantErr: true},
		{in: "USD:-3", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			r, err := parseRate(tc.in)
			if tc.wantErr {
				require.ErrorIs(t, err, payerr.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.code, r.Code)
			assert.Equal(t, tc.value, r.Value.String())
		})
	}

	r, err := parseRate("")
	require.NoError(t, err)
	assert.Nil(t, r)
}
