package database_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/minichain/minichain/foundation/blockchain/database"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

func Test_TransactionIdentity(t *testing.T) {
	t.Log("Given the need to derive transaction identity from content.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen signing a transaction.", testID)
		{
			privateKey, err := crypto.GenerateKey()
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to generate a private key: %v", failed, testID, err)
			}

			fromID := database.PublicKeyToAccountID(privateKey.PublicKey)
			tx := database.NewTx(fromID, "bob", 10, 1, 0)

			signedTx, err := tx.Sign(privateKey)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to sign the transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to sign the transaction.", success, testID)

			if tx.ID() != signedTx.ID() {
				t.Fatalf("\t%s\tTest %d:\tShould keep the same id after signing.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the same id after signing.", success, testID)

			if !signedTx.VerifySignature() {
				t.Fatalf("\t%s\tTest %d:\tShould be able to verify the signature.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to verify the signature.", success, testID)

			tampered := signedTx
			tampered.Amount = 11
			if tampered.VerifySignature() {
				t.Fatalf("\t%s\tTest %d:\tShould not verify after tampering with the amount.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould not verify after tampering with the amount.", success, testID)

			if tampered.ID() == signedTx.ID() {
				t.Fatalf("\t%s\tTest %d:\tShould get a different id after tampering with the amount.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould get a different id after tampering with the amount.", success, testID)
		}
	}
}

// testBlock assembles a block with a well formed coinbase for direct
// ledger application. Header fields irrelevant to the ledger are left
// zero.
func testBlock(beneficiaryID database.AccountID, height uint64, reward uint64, txs ...database.Tx) database.Block {
	var fees uint64
	for _, tx := range txs {
		fees += tx.Fee
	}

	all := make([]database.Tx, 0, len(txs)+1)
	all = append(all, database.NewCoinbaseTx(beneficiaryID, reward+fees, height))
	all = append(all, txs...)

	return database.Block{Txs: all}
}

func Test_ApplyBlock(t *testing.T) {
	t.Log("Given the need to replay blocks into the ledger.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen applying a block with a funded transfer.", testID)
		{
			accounts := database.NewAccounts()

			// Fund the miner with one coinbase only block.
			applied, err := accounts.ApplyBlock(testBlock("miner", 1, 50), 1, 50)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the funding block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to apply the funding block.", success, testID)

			if balance := applied.Balance("miner"); balance != 50 {
				t.Fatalf("\t%s\tTest %d:\tShould credit the miner 50: got %d", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould credit the miner 50.", success, testID)

			// Miner sends 30 with a fee of 5 back to itself as reward.
			tx := database.NewTx("miner", "alice", 30, 5, 0)
			applied2, err := applied.ApplyBlock(testBlock("miner", 2, 50, tx), 2, 50)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the transfer block: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to apply the transfer block.", success, testID)

			// 50 - 30 - 5 + 50 + 5 fee back as part of the coinbase.
			if balance := applied2.Balance("miner"); balance != 70 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the miner with 70: got %d", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the miner with 70.", success, testID)

			if balance := applied2.Balance("alice"); balance != 30 {
				t.Fatalf("\t%s\tTest %d:\tShould credit alice 30: got %d", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould credit alice 30.", success, testID)

			if nonce := applied2.Nonce("miner"); nonce != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould advance the miner nonce to 1: got %d", failed, testID, nonce)
			}
			t.Logf("\t%s\tTest %d:\tShould advance the miner nonce to 1.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen applying a block that must be rejected.", testID)
		{
			accounts := database.NewAccounts()
			applied, err := accounts.ApplyBlock(testBlock("miner", 1, 50), 1, 50)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to apply the funding block: %v", failed, testID, err)
			}

			// Nonce 5 when 0 is expected.
			badNonce := database.NewTx("miner", "alice", 10, 0, 5)
			if _, err := applied.ApplyBlock(testBlock("other", 2, 50, badNonce), 2, 50); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a nonce gap.", failed, testID)
			} else {
				var nonceErr *database.NonceError
				if !errors.As(err, &nonceErr) {
					t.Fatalf("\t%s\tTest %d:\tShould reject a nonce gap with a NonceError: %v", failed, testID, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould reject a nonce gap with a NonceError.", success, testID)

			// Amount plus fee above the funded 50. The beneficiary is a
			// third party so the sender cannot spend the new reward.
			overspend := database.NewTx("miner", "alice", 49, 5, 0)
			if _, err := applied.ApplyBlock(testBlock("other", 2, 50, overspend), 2, 50); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an overspend.", failed, testID)
			} else {
				var balanceErr *database.BalanceError
				if !errors.As(err, &balanceErr) {
					t.Fatalf("\t%s\tTest %d:\tShould reject an overspend with a BalanceError: %v", failed, testID, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould reject an overspend with a BalanceError.", success, testID)

			// A rejected block must leave the receiver untouched.
			if balance := applied.Balance("alice"); balance != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould leave the ledger untouched on rejection: alice has %d", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould leave the ledger untouched on rejection.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen checking the coinbase consensus rules.", testID)
		{
			accounts := database.NewAccounts()

			// Coinbase paying more than reward plus fees.
			block := database.Block{Txs: []database.Tx{database.NewCoinbaseTx("miner", 51, 1)}}
			if _, err := accounts.ApplyBlock(block, 1, 50); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject an inflated coinbase.", failed, testID)
			} else {
				var consensusErr *database.ConsensusError
				if !errors.As(err, &consensusErr) {
					t.Fatalf("\t%s\tTest %d:\tShould reject an inflated coinbase with a ConsensusError: %v", failed, testID, err)
				}
			}
			t.Logf("\t%s\tTest %d:\tShould reject an inflated coinbase with a ConsensusError.", success, testID)

			// Coinbase nonce not matching the block height.
			block = database.Block{Txs: []database.Tx{database.NewCoinbaseTx("miner", 50, 7)}}
			if _, err := accounts.ApplyBlock(block, 1, 50); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a coinbase nonce that is not the height.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a coinbase nonce that is not the height.", success, testID)

			// Two coinbase transactions in one block.
			block = database.Block{Txs: []database.Tx{
				database.NewCoinbaseTx("miner", 100, 1),
				database.NewCoinbaseTx("miner", 50, 1),
			}}
			if _, err := accounts.ApplyBlock(block, 1, 50); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould reject a second coinbase.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould reject a second coinbase.", success, testID)
		}
	}
}
