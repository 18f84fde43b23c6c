package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/nameservice"
)

var keygenName string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new private key file and show its address",
	RunE: func(cmd *cobra.Command, args []string) error {
		if keygenName == "" {
			return errors.New("a key name is required, use --name")
		}

		keyPath := filepath.Join(accountsFolder, keygenName+".ecdsa")
		if _, err := os.Stat(keyPath); err == nil {
			return fmt.Errorf("key file %q already exists", keyPath)
		}

		if err := os.MkdirAll(accountsFolder, 0755); err != nil {
			return err
		}

		privateKey, err := crypto.GenerateKey()
		if err != nil {
			return err
		}

		if err := crypto.SaveECDSA(keyPath, privateKey); err != nil {
			return err
		}

		fmt.Printf("key saved:  %s\n", keyPath)
		fmt.Printf("address:    %s\n", database.PublicKeyToAccountID(privateKey.PublicKey))
		return nil
	},
}

var addrName string

var addrCmd = &cobra.Command{
	Use:   "addr",
	Short: "Show the address for a named key file, or all known keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		if addrName == "" {
			ns, err := nameservice.New(accountsFolder)
			if err != nil {
				return err
			}

			accounts := ns.Copy()
			if len(accounts) == 0 {
				fmt.Println("no key files found")
				return nil
			}

			for accountID, name := range accounts {
				fmt.Printf("%-12s %s\n", name, accountID)
			}

			return nil
		}

		privateKey, err := crypto.LoadECDSA(filepath.Join(accountsFolder, addrName+".ecdsa"))
		if err != nil {
			return fmt.Errorf("load key %q: %w", addrName, err)
		}

		fmt.Println(database.PublicKeyToAccountID(privateKey.PublicKey))
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenName, "name", "", "name of the key file")
	addrCmd.Flags().StringVar(&addrName, "name", "", "name of the key file")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(addrCmd)
}
