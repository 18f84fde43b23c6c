package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/genesis"
)

var initDifficulty uint

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a fresh chain file holding only the genesis block",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(chainPath); err == nil {
			return fmt.Errorf("chain file %q already exists", chainPath)
		}

		c := chain.New(initDifficulty)
		if err := saveChain(c); err != nil {
			return err
		}

		fmt.Printf("chain created at %s\n", chainPath)
		fmt.Printf("genesis hash: %s\n", c.TipHash())
		fmt.Printf("difficulty:   %d\n", c.Difficulty())
		return nil
	},
}

func init() {
	initCmd.Flags().UintVar(&initDifficulty, "difficulty", genesis.DefaultDifficulty, "leading hex zeros required of a block hash")
	rootCmd.AddCommand(initCmd)
}
