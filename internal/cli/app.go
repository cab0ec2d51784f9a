package cli

import (
	"context"
	"math/big"
	"net/http"
	"os"
	"time"

	"github.com/btcsuite/btcd/wire"
	"github.com/ethereum/go-ethereum/common"

	"github.com/mrz1836/paysend/internal/auth"
	"github.com/mrz1836/paysend/internal/chain"
	"github.com/mrz1836/paysend/internal/chain/account"
	"github.com/mrz1836/paysend/internal/chain/utxo"
	"github.com/mrz1836/paysend/internal/config"
	"github.com/mrz1836/paysend/internal/executor"
	"github.com/mrz1836/paysend/internal/metadata"
	"github.com/mrz1836/paysend/internal/metrics"
	"github.com/mrz1836/paysend/internal/paymentprotocol"
	"github.com/mrz1836/paysend/internal/service/transaction"
	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// newHTTPClient builds the client used for every outbound call. Tests swap
// it for a mock transport.
//
//nolint:gochecknoglobals // replaced in tests
var newHTTPClient = func() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// meteredAccounts records RPC metrics around the account service.
type meteredAccounts struct {
	*account.RPCService
	metrics *metrics.Metrics
}

// SendTransaction implements account.Service.
func (m *meteredAccounts) SendTransaction(ctx context.Context, to string, amount *big.Int) (*account.PendingTx, error) {
	start := time.Now()
	p, err := m.RPCService.SendTransaction(ctx, to, amount)
	m.metrics.RecordRPCCall("eth", time.Since(start), err)
	return p, err
}

// RefreshGasPrice fetches the node gas price.
func (m *meteredAccounts) RefreshGasPrice(ctx context.Context) (*big.Int, error) {
	start := time.Now()
	price, err := m.RPCService.RefreshGasPrice(ctx)
	m.metrics.RecordRPCCall("eth", time.Since(start), err)
	return price, err
}

// meteredPublisher records RPC metrics around a publisher.
type meteredPublisher struct {
	publisher transaction.Publisher
	chain     string
	metrics   *metrics.Metrics
}

// Publish implements transaction.Publisher.
func (m meteredPublisher) Publish(ctx context.Context, tx *wire.MsgTx) error {
	start := time.Now()
	err := m.publisher.Publish(ctx, tx)
	m.metrics.RecordRPCCall(m.chain, time.Since(start), err)
	return err
}

// accountCurrency returns the account-model currency bound to the configured chain id.
func accountCurrency(c *config.Config) chain.Account {
	return chain.Account{Code: chain.ETH.Code, ChainID: big.NewInt(c.Networks.ETH.ChainID)}
}

// utxoCurrency returns the UTXO currency bound to the configured network.
func utxoCurrency(c *config.Config) (chain.UTXO, error) {
	cur, err := chain.BTCForNetwork(c.Networks.BTC.Network)
	if err != nil {
		return chain.UTXO{}, err
	}
	cur.ForkID = c.Networks.BTC.ForkID
	return cur, nil
}

// resolveCurrency maps a ticker onto the configured variant of that currency.
func resolveCurrency(c *config.Config, code string) (chain.Currency, error) {
	cur, err := chain.ParseCurrency(code)
	if err != nil {
		return nil, err
	}

	switch cur.(type) {
	case chain.Account:
		if !c.Networks.ETH.Enabled {
			return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"network": "eth", "reason": "disabled"})
		}
		return accountCurrency(c), nil
	case chain.UTXO:
		if !c.Networks.BTC.Enabled {
			return nil, payerr.WithDetails(payerr.ErrUnsupported, map[string]string{"network": "btc", "reason": "disabled"})
		}
		u, err := utxoCurrency(c)
		if err != nil {
			return nil, err
		}
		u.Code = cur.Symbol()
		return u, nil
	default:
		return cur, nil
	}
}

// newAccountService connects to the configured node. Without requireFrom a
// missing sending account falls back to the zero address, enough for quotes.
func newAccountService(c *config.Config, m *metrics.Metrics, requireFrom bool) (*meteredAccounts, error) {
	from := c.GetETHFromAddress()
	if from == "" {
		if requireFrom {
			return nil, payerr.WithSuggestion(payerr.ErrConfigInvalid,
				"set networks.eth.from_address or "+config.EnvETHFrom+" to the node account that sends")
		}
		from = common.Address{}.Hex()
	}

	svc, err := account.NewRPCService(c.GetETHRPC(), from, account.WithRPCHTTPClient(newHTTPClient()))
	if err != nil {
		return nil, err
	}
	return &meteredAccounts{RPCService: svc, metrics: m}, nil
}

// openMetadata opens the configured metadata store. It returns nil when
// metadata is disabled.
func openMetadata(c *config.Config) (*metadata.GormStore, error) {
	if c.Metadata.Driver == "none" {
		return nil, nil //nolint:nilnil // disabled store
	}
	if c.Metadata.DSN == "" {
		if err := os.MkdirAll(c.GetHome(), 0o750); err != nil {
			return nil, err
		}
	}

	db, err := metadata.OpenSQLite(c.MetadataDSN())
	if err != nil {
		return nil, err
	}
	return metadata.NewGormStore(db)
}

// sendStack is a fully wired send service and the resources it holds.
type sendStack struct {
	service  *transaction.Service
	recorder *metadata.Recorder
	wallet   *executor.Serial
}

// Close releases the wallet executor.
func (s *sendStack) Close() {
	s.wallet.Close()
}

// newSendStack wires the gate, publisher, settler and recorder from config.
func newSendStack(c *config.Config, log LogWriter, accounts account.Service, store *metadata.GormStore, m *metrics.Metrics) *sendStack {
	var onTimeout auth.TimeoutHandler = auth.ErrorTimeoutHandler{}
	if c.Auth.FatalOnTimeout {
		onTimeout = auth.FatalTimeoutHandler{Logger: log}
	}

	walletExec := executor.NewSerial()
	gate := auth.NewGate(c, nil, walletExec,
		auth.WithSigningTimeout(c.GetSigningTimeout()),
		auth.WithTimeoutHandler(onTimeout),
		auth.WithLogger(log),
	)

	// The publisher and settler only serve UTXO sends. The CLI holds no UTXO
	// signer and send refuses UTXO currencies before reaching the service, so
	// today they take effect only once a signer is wired into the gate.
	var publisher transaction.Publisher
	if url := c.Networks.BTC.BroadcastURL; c.Networks.BTC.Enabled && url != "" {
		publisher = meteredPublisher{
			publisher: utxo.NewHTTPPublisher(url, utxo.WithHTTPClient(newHTTPClient())),
			chain:     "btc",
			metrics:   m,
		}
	}

	settler := paymentprotocol.NewSettler(
		paymentprotocol.WithHTTPClient(newHTTPClient()),
		paymentprotocol.WithTimeout(c.GetSettlementTimeout()),
		paymentprotocol.WithMaxACKBytes(c.GetMaxAckBytes()),
		paymentprotocol.WithLogger(log),
	)

	stack := &sendStack{wallet: walletExec}

	var recorder transaction.MetadataRecorder
	if store != nil {
		stack.recorder = metadata.NewRecorder(store, metadata.WithLogger(log))
		stack.recorder.Subscribe(func(ev metadata.Event) {
			log.Debug("metadata updated for %s", ev.TxID)
		})
		recorder = stack.recorder
	}

	stack.service = transaction.NewService(&transaction.Config{
		Gate:      gate,
		Publisher: publisher,
		Accounts:  accounts,
		Recorder:  recorder,
		Settler:   settler,
		Metrics:   m,
		Logger:    log,
	})
	return stack
}
