package miner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/genesis"
	"github.com/minichain/minichain/foundation/blockchain/miner"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_Mine(t *testing.T) {
	t.Log("Given the need to assemble and solve blocks.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen mining a block with transactions.", testID)
		{
			c := chain.New(1)

			txs := []database.Tx{
				database.NewTx("alice", "bob", 10, 3, 0),
				database.NewTx("bob", "alice", 5, 2, 0),
			}

			block, err := miner.Mine(context.Background(), miner.Config{
				BeneficiaryID: "miner",
				Difficulty:    c.Difficulty(),
				PrevBlockHash: c.TipHash(),
				Height:        1,
				Txs:           txs,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to mine the block.", success, testID)

			if !database.HashSolved(c.Difficulty(), block.Hash()) {
				t.Fatalf("\t%s\tTest %d:\tShould satisfy the difficulty: %s", failed, testID, block.Hash())
			}
			t.Logf("\t%s\tTest %d:\tShould satisfy the difficulty.", success, testID)

			coinbase := block.Txs[0]
			if !coinbase.IsCoinbase() {
				t.Fatalf("\t%s\tTest %d:\tShould place the coinbase first.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould place the coinbase first.", success, testID)

			if coinbase.Amount != genesis.BlockReward+5 {
				t.Fatalf("\t%s\tTest %d:\tShould pay the reward plus the fees: got %d", failed, testID, coinbase.Amount)
			}
			t.Logf("\t%s\tTest %d:\tShould pay the reward plus the fees.", success, testID)

			if coinbase.Nonce != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould stamp the coinbase with the block height: got %d", failed, testID, coinbase.Nonce)
			}
			t.Logf("\t%s\tTest %d:\tShould stamp the coinbase with the block height.", success, testID)

			if block.Header.MerkleRoot != block.MerkleRoot() {
				t.Fatalf("\t%s\tTest %d:\tShould commit the header to the transactions.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould commit the header to the transactions.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen the search is cancelled.", testID)
		{
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			// A difficulty this high cannot be solved, only cancelled.
			_, err := miner.Mine(ctx, miner.Config{
				BeneficiaryID: "miner",
				Difficulty:    64,
				PrevBlockHash: "aa",
				Height:        1,
			})
			if !errors.Is(err, context.Canceled) {
				t.Fatalf("\t%s\tTest %d:\tShould return the context error: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould return the context error.", success, testID)
		}
	}
}
