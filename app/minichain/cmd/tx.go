package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/minichain/minichain/foundation/blockchain/database"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Manage pending transactions",
}

var (
	txFrom   string
	txTo     string
	txAmount uint64
	txFee    uint64
	txNonce  uint64
	txSigner string
)

var txAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Validate a transaction into the pending pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		if txTo == "" {
			return errors.New("a destination account is required, use --to")
		}
		if txFrom == "" && txSigner == "" {
			return errors.New("a sender is required, use --from or --signer")
		}

		c, err := loadChain()
		if err != nil {
			return err
		}

		mp, err := loadMempool()
		if err != nil {
			return err
		}

		fromID := database.AccountID(txFrom)
		if txSigner != "" {
			signerID, err := resolveAccount(txSigner)
			if err != nil {
				return err
			}
			if txFrom != "" && fromID != signerID {
				return errors.New("--from does not match the signer's address")
			}
			fromID = signerID
		} else if resolved, err := resolveAccount(txFrom); err == nil {
			fromID = resolved
		}

		toID, err := resolveAccount(txTo)
		if err != nil {
			return err
		}

		nonce := txNonce
		if !cmd.Flags().Changed("nonce") {
			nonce = c.NextNonce(fromID)
			for _, pending := range mp.Copy() {
				if pending.FromID == fromID && pending.Nonce >= nonce {
					nonce = pending.Nonce + 1
				}
			}
		}

		tx := database.NewTx(fromID, toID, txAmount, txFee, nonce)

		if txSigner != "" {
			privateKey, err := crypto.LoadECDSA(filepath.Join(accountsFolder, txSigner+".ecdsa"))
			if err != nil {
				return fmt.Errorf("load signer key: %w", err)
			}
			tx, err = tx.Sign(privateKey)
			if err != nil {
				return err
			}
		}

		if err := mp.Add(tx, c); err != nil {
			return err
		}
		if err := saveMempool(mp); err != nil {
			return err
		}

		fmt.Printf("transaction %s added: nonce %d\n", tx.ID(), tx.Nonce)
		return nil
	},
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the pending pool sorted by sender and nonce",
	RunE: func(cmd *cobra.Command, args []string) error {
		mp, err := loadMempool()
		if err != nil {
			return err
		}

		txs := mp.Copy()
		if len(txs) == 0 {
			fmt.Println("no pending transactions")
			return nil
		}

		for _, tx := range txs {
			signed := " "
			if tx.IsSigned() {
				signed = "*"
			}
			fmt.Printf("%s %s  %s -> %s  amount %d, fee %d, nonce %d\n", signed, tx.ID(), tx.FromID, tx.ToID, tx.Amount, tx.Fee, tx.Nonce)
		}

		return nil
	},
}

func init() {
	txAddCmd.Flags().StringVar(&txFrom, "from", "", "sender account address")
	txAddCmd.Flags().StringVar(&txTo, "to", "", "destination key file name or address")
	txAddCmd.Flags().Uint64Var(&txAmount, "amount", 0, "amount to transfer")
	txAddCmd.Flags().Uint64Var(&txFee, "fee", 0, "fee offered to the miner")
	txAddCmd.Flags().Uint64Var(&txNonce, "nonce", 0, "transaction nonce, derived when omitted")
	txAddCmd.Flags().StringVar(&txSigner, "signer", "", "key file name used to sign the transaction")

	txCmd.AddCommand(txAddCmd)
	txCmd.AddCommand(txListCmd)
	rootCmd.AddCommand(txCmd)
}
