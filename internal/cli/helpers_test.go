package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"

	"github.com/mrz1836/paysend/internal/auth"
	"github.com/mrz1836/paysend/internal/config"
)

const (
	testFrom   = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testTo     = "0x1111111111111111111111111111111111111111"
	testPIN    = "2580"
	testTxHash = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"

	// 20 gwei
	testGasPriceHex = "0x4a817c800"
)

// resetFlags returns every flag in the tree to its default so runs do not
// leak into each other.
func resetFlags() {
	walkCommands(rootCmd, func(c *cobra.Command) {
		reset := func(f *pflag.Flag) {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	})
}

// runCLI executes the command tree with args under a fresh home directory
// and returns what the command wrote.
func runCLI(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()

	t.Setenv(config.EnvLogLevel, "off")
	t.Setenv(config.EnvHome, "")
	t.Setenv(config.EnvETHRPC, "")
	t.Setenv(config.EnvETHFrom, "")
	t.Setenv(config.EnvMetadataDSN, "")
	t.Setenv(config.EnvOutputFormat, "")
	resetFlags()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(append([]string{"--home", home}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

// withPrompts replaces the prompt hooks and restores them on cleanup.
func withPrompts(t *testing.T, pin func(context.Context) (string, error), confirm bool) {
	t.Helper()
	origPIN, origConfirm := promptPINFn, promptConfirmFn
	t.Cleanup(func() {
		promptPINFn = origPIN
		promptConfirmFn = origConfirm
	})
	promptPINFn = pin
	promptConfirmFn = func(string) bool { return confirm }
}

func fixedPIN(code string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return code, nil }
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// fakeNode answers account JSON-RPC calls and records the methods it saw.
type fakeNode struct {
	*httptest.Server

	mu      sync.Mutex
	methods []string
	sendErr *rpcError
	lastTx  map[string]any
}

func newFakeNode(t *testing.T) *fakeNode {
	t.Helper()
	n := &fakeNode{}
	n.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     uint64           `json:"id"`
			Method string           `json:"method"`
			Params []map[string]any `json:"params"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}

		n.mu.Lock()
		n.methods = append(n.methods, req.Method)
		sendErr := n.sendErr
		if len(req.Params) > 0 {
			n.lastTx = req.Params[0]
		}
		n.mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch {
		case req.Method == "eth_gasPrice":
			resp["result"] = testGasPriceHex
		case req.Method == "eth_sendTransaction" && sendErr != nil:
			resp["error"] = sendErr
		case req.Method == "eth_sendTransaction":
			resp["result"] = testTxHash
		default:
			resp["error"] = rpcError{Code: -32601, Message: "method not found"}
		}
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(n.Close)
	return n
}

func (n *fakeNode) calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.methods...)
}

// writeConfig saves c under home.
func writeConfig(t *testing.T, home string, mutate func(c *config.Config)) {
	t.Helper()
	c := config.Defaults()
	c.Home = home
	c.Logging.Level = "off"
	c.Auth.PINHash = testPINHash(t)
	mutate(c)
	if err := config.Save(c, config.Path(home)); err != nil {
		t.Fatalf("saving config: %v", err)
	}
}

//nolint:gochecknoglobals // hashing once keeps the suite fast
var hashTestPIN = sync.OnceValues(func() (string, error) { return auth.HashPIN(testPIN) })

// testPINHash returns the stored hash of testPIN.
func testPINHash(t *testing.T) string {
	t.Helper()
	hash, err := hashTestPIN()
	if err != nil {
		t.Fatalf("hashing pin: %v", err)
	}
	return hash
}

// nodeConfig points the account network at node and sets the sending account.
func nodeConfig(node *fakeNode) func(c *config.Config) {
	return func(c *config.Config) {
		c.Networks.ETH.RPC = node.URL
		c.Networks.ETH.FromAddress = testFrom
	}
}
