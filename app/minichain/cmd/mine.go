package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/miner"
)

var (
	mineMiner      string
	mineCount      int
	mineDifficulty uint
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Mine pending transactions into the next block",
	RunE: func(cmd *cobra.Command, args []string) error {
		if mineMiner == "" {
			return errors.New("a miner account is required, use --miner")
		}

		beneficiaryID, err := resolveAccount(mineMiner)
		if err != nil {
			return err
		}

		c, err := loadChain()
		if err != nil {
			return err
		}

		// An explicit difficulty replays the chain under the new value
		// and persists it with the mined blocks.
		if cmd.Flags().Changed("difficulty") {
			c, err = chain.FromBlocks(c.Blocks(), mineDifficulty)
			if err != nil {
				return fmt.Errorf("chain does not satisfy difficulty %d: %w", mineDifficulty, err)
			}
		}

		mp, err := loadMempool()
		if err != nil {
			return err
		}

		for i := 0; i < mineCount; i++ {
			txs := mp.PickValid(c)

			block, err := miner.Mine(context.Background(), miner.Config{
				BeneficiaryID: beneficiaryID,
				Difficulty:    c.Difficulty(),
				PrevBlockHash: c.TipHash(),
				Height:        c.Height() + 1,
				Txs:           txs,
			})
			if err != nil {
				return err
			}

			if err := c.Append(block); err != nil {
				return err
			}
			mp.RemoveIncluded(block.TxIDs())

			fmt.Printf("mined block %d: hash %s, nonce %d, txs %d\n", c.Height(), block.Hash(), block.Header.Nonce, len(block.Txs))
		}

		if err := saveChain(c); err != nil {
			return err
		}
		return saveMempool(mp)
	},
}

func init() {
	mineCmd.Flags().StringVar(&mineMiner, "miner", "", "key file name or address credited with the block reward")
	mineCmd.Flags().IntVar(&mineCount, "count", 1, "number of blocks to mine")
	mineCmd.Flags().UintVar(&mineDifficulty, "difficulty", 0, "override the chain's proof of work difficulty")
	rootCmd.AddCommand(mineCmd)
}
