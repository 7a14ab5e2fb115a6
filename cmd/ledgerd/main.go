// Command ledgerd is the CLI collaborator of spec.md §6: eight subcommands
// covering wallet management, running a relay or mining node, and querying
// chain/mempool state through a wallet connection, in the style of the
// teacher's cmd/kcn entrypoint.
package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ledgerd/ledgerd/accounts"
	"github.com/ledgerd/ledgerd/api"
	"github.com/ledgerd/ledgerd/blockchain"
	"github.com/ledgerd/ledgerd/blockchain/mempool"
	"github.com/ledgerd/ledgerd/client"
	"github.com/ledgerd/ledgerd/cmd/utils"
	"github.com/ledgerd/ledgerd/crypto"
	"github.com/ledgerd/ledgerd/log"
	"github.com/ledgerd/ledgerd/metrics"
	"github.com/ledgerd/ledgerd/node"
	"github.com/ledgerd/ledgerd/params"
	"github.com/ledgerd/ledgerd/storage"
	"github.com/ledgerd/ledgerd/work"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/urfave/cli.v1"
)

var logger = log.NewModuleLogger(log.CLI)

func nowMs() int64 { return time.Now().UnixNano() / int64(time.Millisecond) }

func main() {
	app := utils.NewApp("ledgerd - a minimal proof-of-work ledger node")
	app.Flags = []cli.Flag{
		utils.LogLevelFlag,
		utils.LogNoColorFlag,
	}
	app.Before = func(c *cli.Context) error {
		utils.SetupLogging(c)
		return nil
	}
	app.Commands = []cli.Command{
		createWalletCommand,
		startNodeCommand,
		connectWalletCommand,
		miningNodeCommand,
		checkBalanceCommand,
		sendTransactionCommand,
		viewMempoolCommand,
		showKeysCommand,
	}

	if err := app.Run(os.Args); err != nil {
		utils.Fatalf("%v", err)
	}
}

var createWalletCommand = cli.Command{
	Name:      "create-wallet",
	Usage:     "Generate a new identity and write it to an encrypted wallet file",
	ArgsUsage: "<password> <path>",
	Action:    createWallet,
}

func createWallet(c *cli.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return errors.New("usage: create-wallet <password> <path>")
	}
	password, path := args.Get(0), args.Get(1)

	identity, err := accounts.Create(path, password, nowMs())
	if err != nil {
		return errors.Wrap(err, "create-wallet")
	}
	fmt.Printf("wallet created: %s\nidentity id: %s\npublic key:\n%s\n", path, identity.ID, identity.PublicKey)
	return nil
}

var startNodeCommand = cli.Command{
	Name:      "start-node",
	Usage:     "Run a relay node: accept peers, gossip blocks and transactions",
	ArgsUsage: "<port> [peer]",
	Flags: []cli.Flag{
		utils.SnapshotDirFlag,
		utils.SnapshotBackendFlag,
		utils.HTTPAddrFlag,
		utils.MetricsAddrFlag,
	},
	Action: startNode,
}

func startNode(c *cli.Context) error {
	args := c.Args()
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: start-node <port> [peer]")
	}
	port := args.Get(0)
	peer := args.Get(1)

	chain := blockchain.New(params.InitialDifficulty)
	mp := mempool.New(chain)

	nodeID, err := crypto.RandomHex(16)
	if err != nil {
		return errors.Wrap(err, "start-node: generating node id")
	}
	manager := node.NewManager(nodeID, "0.0.0.0:"+port, params.RoleRelay, chain, mp)
	if err := manager.Listen("0.0.0.0:" + port); err != nil {
		utils.Fatalf("start-node: cannot bind port %s: %v", port, err)
	}
	logger.Info("relay node listening", "port", port, "node_id", nodeID)

	if peer != "" {
		if _, err := manager.Dial(peer); err != nil {
			logger.Warn("start-node: could not dial peer", "peer", peer, "err", err)
		}
	}

	stop := wireAmbient(c, chain, mp)
	defer stop()

	utils.WaitForInterrupt(manager)
	return nil
}

var connectWalletCommand = cli.Command{
	Name:      "connect-wallet",
	Usage:     "Connect a wallet to a node and confirm chain sync",
	ArgsUsage: "<path> <password> <node>",
	Action:    connectWallet,
}

func connectWallet(c *cli.Context) error {
	args := c.Args()
	if len(args) != 3 {
		return errors.New("usage: connect-wallet <path> <password> <node>")
	}
	path, password, addr := args.Get(0), args.Get(1), args.Get(2)

	identity, err := loadIdentity(path, password)
	if err != nil {
		return err
	}

	wc, err := client.Connect(identity, addr)
	if err != nil {
		return errors.Wrap(err, "connect-wallet")
	}
	defer wc.Close()

	bal := wc.CheckBalance()
	fmt.Printf("connected to %s\nconfirmed balance: %.8f\npending balance: %.8f\n", addr, bal.Confirmed, bal.Pending)
	return nil
}

var miningNodeCommand = cli.Command{
	Name:      "mining-node",
	Usage:     "Run a node that mines blocks, crediting rewards to its own identity",
	ArgsUsage: "<port> <path> <password> [difficulty] [peer]",
	Flags: []cli.Flag{
		utils.SnapshotDirFlag,
		utils.SnapshotBackendFlag,
		utils.HTTPAddrFlag,
		utils.MetricsAddrFlag,
	},
	Action: miningNode,
}

func miningNode(c *cli.Context) error {
	args := c.Args()
	if len(args) < 3 || len(args) > 5 {
		return errors.New("usage: mining-node <port> <path> <password> [difficulty] [peer]")
	}
	port, path, password := args.Get(0), args.Get(1), args.Get(2)
	difficulty := params.InitialDifficulty
	peer := ""
	switch len(args) {
	case 4:
		if d, err := strconv.Atoi(args.Get(3)); err == nil {
			difficulty = d
		} else {
			peer = args.Get(3)
		}
	case 5:
		d, err := strconv.Atoi(args.Get(3))
		if err != nil {
			return errors.Wrap(err, "mining-node: parsing difficulty")
		}
		difficulty = d
		peer = args.Get(4)
	}

	identity, err := loadIdentity(path, password)
	if err != nil {
		return err
	}

	chain := blockchain.New(difficulty)
	mp := mempool.New(chain)

	nodeID, err := crypto.RandomHex(16)
	if err != nil {
		return errors.Wrap(err, "mining-node: generating node id")
	}
	manager := node.NewManager(nodeID, "0.0.0.0:"+port, params.RoleMiner, chain, mp)
	if err := manager.Listen("0.0.0.0:" + port); err != nil {
		utils.Fatalf("mining-node: cannot bind port %s: %v", port, err)
	}
	logger.Info("mining node listening", "port", port, "node_id", nodeID, "difficulty", difficulty)

	if peer != "" {
		if _, err := manager.Dial(peer); err != nil {
			logger.Warn("mining-node: could not dial peer", "peer", peer, "err", err)
		}
	}

	miner := work.NewMiner(chain, mp, manager, identity.PublicKey, identity.PrivateKey)
	manager.AddBlockObserver(miner)
	miner.Start()

	stop := wireAmbient(c, chain, mp)
	defer stop()

	utils.WaitForInterrupt(managerAndMiner{manager, miner})
	return nil
}

type managerAndMiner struct {
	m *node.Manager
	w *work.Miner
}

func (mm managerAndMiner) Close() error {
	mm.w.Stop()
	return mm.m.Close()
}

var checkBalanceCommand = cli.Command{
	Name:      "check-balance",
	Usage:     "Report the wallet's confirmed and pending balance",
	ArgsUsage: "<path> <password> <node>",
	Action:    checkBalance,
}

func checkBalance(c *cli.Context) error {
	args := c.Args()
	if len(args) != 3 {
		return errors.New("usage: check-balance <path> <password> <node>")
	}
	path, password, addr := args.Get(0), args.Get(1), args.Get(2)

	identity, err := loadIdentity(path, password)
	if err != nil {
		return err
	}
	wc, err := client.Connect(identity, addr)
	if err != nil {
		return errors.Wrap(err, "check-balance")
	}
	defer wc.Close()

	bal := wc.CheckBalance()
	fmt.Printf("confirmed: %.8f\npending: %.8f\n", bal.Confirmed, bal.Pending)
	return nil
}

var sendTransactionCommand = cli.Command{
	Name:      "send-transaction",
	Usage:     "Sign and broadcast a transfer to the recipient named in a key file",
	ArgsUsage: "<path> <password> <node> <recipient-key-file> <amount>",
	Action:    sendTransaction,
}

func sendTransaction(c *cli.Context) error {
	args := c.Args()
	if len(args) != 5 {
		return errors.New("usage: send-transaction <path> <password> <node> <recipient-key-file> <amount>")
	}
	path, password, addr, keyFile, amountStr := args.Get(0), args.Get(1), args.Get(2), args.Get(3), args.Get(4)

	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return errors.Wrap(err, "send-transaction: parsing amount")
	}

	recipientKey, err := ioutil.ReadFile(keyFile)
	if err != nil {
		return errors.Wrap(err, "send-transaction: reading recipient key file")
	}

	identity, err := loadIdentity(path, password)
	if err != nil {
		return err
	}
	wc, err := client.Connect(identity, addr)
	if err != nil {
		return errors.Wrap(err, "send-transaction")
	}
	defer wc.Close()

	tx, err := wc.SubmitTransaction(strings.TrimSpace(string(recipientKey)), amount, nowMs())
	if err != nil {
		return errors.Wrap(err, "send-transaction")
	}
	fmt.Printf("submitted transaction %s\n", tx.ID)
	return nil
}

var viewMempoolCommand = cli.Command{
	Name:      "view-mempool",
	Usage:     "Print the pending transactions of a node's mempool",
	ArgsUsage: "<node>",
	Action:    viewMempool,
}

func viewMempool(c *cli.Context) error {
	args := c.Args()
	if len(args) != 1 {
		return errors.New("usage: view-mempool <node>")
	}
	addr := args.Get(0)

	nodeID, err := crypto.RandomHex(16)
	if err != nil {
		return errors.Wrap(err, "view-mempool: generating node id")
	}
	chain := blockchain.New(params.InitialDifficulty)
	mp := mempool.New(chain)
	manager := node.NewManager(nodeID, params.WalletListenSentinel, params.RoleWallet, chain, mp)
	defer manager.Close()

	peer, err := manager.Dial(addr)
	if err != nil {
		return errors.Wrap(err, "view-mempool: connecting")
	}

	txs, err := manager.QueryMempool(peer.NodeID, params.ChainSyncTimeout)
	if err != nil {
		return errors.Wrap(err, "view-mempool: querying mempool")
	}

	out, err := json.MarshalIndent(txs, "", "  ")
	if err != nil {
		return errors.Wrap(err, "view-mempool: encoding result")
	}
	fmt.Println(string(out))
	return nil
}

var showKeysCommand = cli.Command{
	Name:      "show-keys",
	Usage:     "Print the wallet's identity id and key pair",
	ArgsUsage: "<path> <password>",
	Action:    showKeys,
}

func showKeys(c *cli.Context) error {
	args := c.Args()
	if len(args) != 2 {
		return errors.New("usage: show-keys <path> <password>")
	}
	path, password := args.Get(0), args.Get(1)

	identity, err := loadIdentity(path, password)
	if err != nil {
		return err
	}
	fmt.Printf("id: %s\npublic key:\n%s\nprivate key:\n%s\n", identity.ID, identity.PublicKey, identity.PrivateKey)
	return nil
}

// loadIdentity opens and decrypts the wallet at path. Per spec.md §7, a
// corrupt or unreadable identity store is Fatal - the CLI cannot proceed
// without key material, so it is reported and the process exits non-zero.
func loadIdentity(path, password string) (*accounts.Identity, error) {
	store := accounts.Open(path)
	identity, err := store.Load(password)
	if err != nil {
		utils.Fatalf("loading wallet %s: %v", path, err)
	}
	identity.Touch(nowMs())
	if err := store.Save(identity, password); err != nil {
		logger.Warn("could not persist last-used timestamp", "path", path, "err", err)
	}
	return identity, nil
}

// wireAmbient brings up the optional HTTP query surface, metrics exporter,
// and crash-diagnostic snapshot store requested by flags, returning a
// cleanup func to run on shutdown. Any of the three is a no-op when its
// flag is left empty.
func wireAmbient(c *cli.Context, chain *blockchain.Blockchain, mp *mempool.Mempool) func() {
	var closers []func()

	if addr := c.String(utils.HTTPAddrFlag.Name); addr != "" {
		backend := &api.NodeBackend{Chain: chain, Mempool: mp}
		router := api.NewRouter(backend)
		srv := &http.Server{Addr: addr, Handler: router}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("api server stopped", "err", err)
			}
		}()
		logger.Info("api query surface listening", "addr", addr)
		closers = append(closers, func() { srv.Close() })
	}

	if addr := c.String(utils.MetricsAddrFlag.Name); addr != "" {
		metrics.Enabled = true
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/metrics/process", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
		logger.Info("metrics exporter listening", "addr", addr)
		closers = append(closers, func() { srv.Close() })
	}

	if dir := c.String(utils.SnapshotDirFlag.Name); dir != "" {
		snapStore, err := openSnapshotStore(dir, c.String(utils.SnapshotBackendFlag.Name))
		if err != nil {
			logger.Error("could not open snapshot store", "dir", dir, "err", err)
		} else {
			stopTicker := make(chan struct{})
			go snapshotLoop(chain, snapStore, stopTicker)
			closers = append(closers, func() {
				close(stopTicker)
				snapStore.Close()
			})
		}
	}

	return func() {
		for _, fn := range closers {
			fn()
		}
	}
}

func openSnapshotStore(dir, backend string) (storage.Store, error) {
	switch backend {
	case "badger":
		return storage.NewBadgerStore(dir)
	default:
		return storage.NewLevelDBStore(dir)
	}
}

// snapshotLoop periodically persists the chain tip, purely for crash
// diagnostics (SPEC_FULL.md §4.7) - it is never read back on startup.
func snapshotLoop(chain *blockchain.Blockchain, store storage.Store, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			tip := chain.Tip()
			err := storage.WriteTipSnapshot(store, storage.TipSnapshot{Height: int64(tip.Index), Hash: tip.Hash})
			if err != nil {
				logger.Warn("writing tip snapshot failed", "err", err)
			}
		}
	}
}
