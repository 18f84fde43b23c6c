package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/nameservice"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the chain tip, the pending pool and every account balance",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadChain()
		if err != nil {
			return err
		}

		mp, err := loadMempool()
		if err != nil {
			return err
		}

		ns, err := nameservice.New(accountsFolder)
		if err != nil {
			ns = nil
		}

		fmt.Printf("height:     %d\n", c.Height())
		fmt.Printf("tip hash:   %s\n", c.TipHash())
		fmt.Printf("difficulty: %d\n", c.Difficulty())
		fmt.Printf("txs:        %d\n", c.TxCount())
		fmt.Printf("pending:    %d\n", mp.Count())

		accounts := c.Accounts().Copy()
		if len(accounts) == 0 {
			return nil
		}

		ids := make([]string, 0, len(accounts))
		for accountID := range accounts {
			ids = append(ids, string(accountID))
		}
		sort.Strings(ids)

		fmt.Println("accounts:")
		for _, id := range ids {
			account := accounts[database.AccountID(id)]
			name := id
			if ns != nil {
				name = ns.Lookup(database.AccountID(id))
			}
			fmt.Printf("  %-12s balance %d, nonce %d\n", name, account.Balance, account.Nonce)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
