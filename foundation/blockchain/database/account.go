package database

import (
	"crypto/ecdsa"

	"github.com/minichain/minichain/foundation/blockchain/signature"
)

// AccountID identifies a party on the ledger. For signed transactions
// this is the lowercase hex encoding of a secp256k1 public key.
type AccountID string

// SystemAccountID is the reserved sender of coinbase transactions. It
// is not a real account and can never be the sender of a user
// transaction.
const SystemAccountID AccountID = "System"

// PublicKeyToAccountID converts the public key to an account id.
func PublicKeyToAccountID(pk ecdsa.PublicKey) AccountID {
	return AccountID(signature.PublicKeyString(pk))
}

// Account represents the ledger information for an individual account.
type Account struct {
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}
