// Package miner performs the proof of work search that turns a set of
// pending transactions into the next block.
package miner

import (
	"context"
	"time"

	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/genesis"
	"github.com/minichain/minichain/foundation/blockchain/merkle"
)

// EvHandler defines a function callback used to receive mining events.
type EvHandler func(v string, args ...any)

// Config holds everything Mine needs to assemble and solve a block.
type Config struct {
	BeneficiaryID database.AccountID
	Difficulty    uint
	PrevBlockHash string
	Height        uint64
	Txs           []database.Tx
	EvHandler     EvHandler
}

// Mine assembles a candidate block, prepending the coinbase
// transaction, and searches nonces ascending from zero until the
// header digest satisfies the difficulty. The search stops with the
// context error when the context is cancelled, so an accepted peer
// block can abort work in flight.
func Mine(ctx context.Context, cfg Config) (database.Block, error) {
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	var fees uint64
	for _, tx := range cfg.Txs {
		fees += tx.Fee
	}

	coinbase := database.NewCoinbaseTx(cfg.BeneficiaryID, genesis.BlockReward+fees, cfg.Height)

	txs := make([]database.Tx, 0, len(cfg.Txs)+1)
	txs = append(txs, coinbase)
	txs = append(txs, cfg.Txs...)

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID()
	}

	block := database.Block{
		Header: database.BlockHeader{
			PrevBlockHash: cfg.PrevBlockHash,
			MerkleRoot:    merkle.Root(ids),
			TimeStamp:     uint64(time.Now().UnixMilli()),
			Nonce:         0,
			Difficulty:    cfg.Difficulty,
		},
		Txs: txs,
	}

	ev("miner: mine: height %d, txs %d, difficulty %d", cfg.Height, len(txs), cfg.Difficulty)

	var attempts uint64
	for {
		if ctx.Err() != nil {
			ev("miner: mine: height %d: cancelled", cfg.Height)
			return database.Block{}, ctx.Err()
		}

		if hash := block.Hash(); database.HashSolved(cfg.Difficulty, hash) {
			ev("miner: mine: height %d: solved: nonce %d, hash %s", cfg.Height, block.Header.Nonce, hash)
			return block, nil
		}

		block.Header.Nonce++

		attempts++
		if attempts%1_000_000 == 0 {
			ev("miner: mine: height %d: attempts %d", cfg.Height, attempts)
		}
	}
}
