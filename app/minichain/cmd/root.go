// Package cmd implements the command line surface of the ledger node.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/mempool"
	"github.com/minichain/minichain/foundation/blockchain/storage"
)

var (
	chainPath      string
	mempoolPath    string
	accountsFolder string
)

var rootCmd = &cobra.Command{
	Use:           "minichain",
	Short:         "A proof of work ledger node",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&chainPath, "chain", "data/chain.json", "path to the chain file")
	rootCmd.PersistentFlags().StringVar(&mempoolPath, "mempool", "data/mempool.json", "path to the mempool file")
	rootCmd.PersistentFlags().StringVar(&accountsFolder, "accounts", "data/accounts", "path to the key files folder")
}

// loadChain reconstructs the chain from the chain file, replaying and
// revalidating every block.
func loadChain() (*chain.Chain, error) {
	blocks, difficulty, err := storage.LoadChain(chainPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no chain file at %q, run init first", chainPath)
		}
		return nil, err
	}

	return chain.FromBlocks(blocks, difficulty)
}

// loadMempool reloads the pending pool, empty when no file exists.
func loadMempool() (*mempool.Mempool, error) {
	txs, err := storage.LoadMempool(mempoolPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mempool.New(), nil
		}
		return nil, err
	}

	return mempool.FromTransactions(txs), nil
}

func saveChain(c *chain.Chain) error {
	return storage.SaveChain(chainPath, c.Blocks(), c.Difficulty())
}

func saveMempool(mp *mempool.Mempool) error {
	return storage.SaveMempool(mempoolPath, mp.Copy())
}

// resolveAccount turns a key file name or a literal address into an
// account id.
func resolveAccount(value string) (database.AccountID, error) {
	keyPath := filepath.Join(accountsFolder, value+".ecdsa")

	privateKey, err := crypto.LoadECDSA(keyPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return database.AccountID(value), nil
		}
		return "", fmt.Errorf("load key %q: %w", keyPath, err)
	}

	return database.PublicKeyToAccountID(privateKey.PublicKey), nil
}
