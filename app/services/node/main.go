package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"

	"github.com/minichain/minichain/app/services/node/handlers"
	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/mempool"
	"github.com/minichain/minichain/foundation/blockchain/node"
	"github.com/minichain/minichain/foundation/blockchain/storage"
	"github.com/minichain/minichain/foundation/events"
	"github.com/minichain/minichain/foundation/logger"
	"github.com/minichain/minichain/foundation/nameservice"
)

// build is the git version of this program. It is set using build
// flags in the makefile.
var build = "develop"

func main() {
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			APIHost         string        `conf:"default:0.0.0.0:8080"`
		}
		Node struct {
			Listen         string   `conf:"default:0.0.0.0:9080"`
			Connect        []string `conf:"flag:connect"`
			ChainPath      string   `conf:"default:data/chain.json"`
			MempoolPath    string   `conf:"default:data/mempool.json"`
			AccountsFolder string   `conf:"default:data/accounts"`
			MinerAccount   string   `conf:"flag:miner"`
			Difficulty     uint     `conf:"default:2"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work ledger node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	log.Infow("startup", "status", "initializing node", "CPU cores", runtime.NumCPU())

	// =========================================================================
	// Events and Name Service

	evts := events.New()
	defer evts.Shutdown()

	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s)
		evts.Send(s)
	}

	if err := os.MkdirAll(cfg.Node.AccountsFolder, 0755); err != nil {
		return fmt.Errorf("creating accounts folder: %w", err)
	}

	ns, err := nameservice.New(cfg.Node.AccountsFolder)
	if err != nil {
		return fmt.Errorf("starting name service: %w", err)
	}
	for accountID, name := range ns.Copy() {
		log.Infow("startup", "status", "known account", "name", name, "account", accountID)
	}

	// =========================================================================
	// Chain and Mempool

	ch, err := loadChain(cfg.Node.ChainPath, cfg.Node.Difficulty)
	if err != nil {
		return fmt.Errorf("loading chain: %w", err)
	}
	log.Infow("startup", "status", "chain loaded", "height", ch.Height(), "difficulty", ch.Difficulty())

	mp, err := loadMempool(cfg.Node.MempoolPath)
	if err != nil {
		return fmt.Errorf("loading mempool: %w", err)
	}
	log.Infow("startup", "status", "mempool loaded", "pending", mp.Count())

	minerID, err := resolveMiner(cfg.Node.MinerAccount, cfg.Node.AccountsFolder)
	if err != nil {
		return fmt.Errorf("resolving miner account: %w", err)
	}
	if minerID != "" {
		log.Infow("startup", "status", "mining enabled", "beneficiary", minerID)
	}

	// =========================================================================
	// Start Node

	nd, err := node.New(node.Config{
		Listen:      cfg.Node.Listen,
		Connect:     cfg.Node.Connect,
		Chain:       ch,
		Mempool:     mp,
		ChainPath:   cfg.Node.ChainPath,
		MempoolPath: cfg.Node.MempoolPath,
		MinerID:     minerID,
		EvHandler:   ev,
	})
	if err != nil {
		return fmt.Errorf("starting node: %w", err)
	}
	nd.Start()
	defer nd.Shutdown()

	log.Infow("startup", "status", "node started", "listen", nd.Addr(), "connect", cfg.Node.Connect)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		Node:     nd,
		NS:       ns,
		Evts:     evts,
	})

	api := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      mux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	serverErrors := make(chan error, 1)

	go func() {
		log.Infow("startup", "status", "api router started", "host", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}

// loadChain reconstructs the chain from disk or starts a fresh one
// when no chain file exists yet.
func loadChain(path string, difficulty uint) (*chain.Chain, error) {
	blocks, diskDifficulty, err := storage.LoadChain(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return chain.New(difficulty), nil
		}
		return nil, err
	}

	return chain.FromBlocks(blocks, diskDifficulty)
}

// loadMempool reloads the pending transactions from disk or starts
// empty when no mempool file exists yet.
func loadMempool(path string) (*mempool.Mempool, error) {
	txs, err := storage.LoadMempool(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mempool.New(), nil
		}
		return nil, err
	}

	return mempool.FromTransactions(txs), nil
}

// resolveMiner turns the configured miner value into an account id. A
// name matching a key file in the accounts folder is resolved through
// its public key, anything else is taken as a literal address.
func resolveMiner(miner string, accountsFolder string) (database.AccountID, error) {
	if miner == "" {
		return "", nil
	}

	keyPath := filepath.Join(accountsFolder, miner+".ecdsa")
	if _, err := os.Stat(keyPath); err != nil {
		return database.AccountID(miner), nil
	}

	privateKey, err := crypto.LoadECDSA(keyPath)
	if err != nil {
		return "", fmt.Errorf("load key %q: %w", keyPath, err)
	}

	return database.PublicKeyToAccountID(privateKey.PublicKey), nil
}
