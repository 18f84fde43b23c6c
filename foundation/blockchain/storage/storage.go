// Package storage persists the chain and the mempool as human readable
// JSON documents on disk.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/genesis"
)

// ChainDoc is the on disk layout of the chain file. PowDifficulty is a
// pointer so older files without the field load with the default.
type ChainDoc struct {
	PowDifficulty *uint            `json:"pow_difficulty,omitempty"`
	Blocks        []database.Block `json:"blocks"`
}

// MempoolDoc is the on disk layout of the mempool file.
type MempoolDoc struct {
	Txs []database.Tx `json:"txs"`
}

// SaveChain writes the full block sequence and the difficulty to the
// specified path, creating parent directories as needed.
func SaveChain(path string, blocks []database.Block, difficulty uint) error {
	doc := ChainDoc{
		PowDifficulty: &difficulty,
		Blocks:        blocks,
	}

	return writeDoc(path, doc)
}

// LoadChain reads the block sequence and the difficulty back from
// disk. A file that predates the difficulty field yields the default.
// The caller distinguishes a missing file with errors.Is and
// fs.ErrNotExist.
func LoadChain(path string) ([]database.Block, uint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("read chain file: %w", err)
	}

	var doc ChainDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode chain file %q: %w", path, err)
	}

	difficulty := uint(genesis.DefaultDifficulty)
	if doc.PowDifficulty != nil {
		difficulty = *doc.PowDifficulty
	}

	return doc.Blocks, difficulty, nil
}

// SaveMempool writes the pending transactions to the specified path.
func SaveMempool(path string, txs []database.Tx) error {
	if txs == nil {
		txs = []database.Tx{}
	}

	return writeDoc(path, MempoolDoc{Txs: txs})
}

// LoadMempool reads the pending transactions back from disk.
func LoadMempool(path string) ([]database.Tx, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mempool file: %w", err)
	}

	var doc MempoolDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode mempool file %q: %w", path, err)
	}

	return doc.Txs, nil
}

func writeDoc(path string, doc any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %q: %w", path, err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}

	return nil
}
