package database

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"

	"github.com/minichain/minichain/foundation/blockchain/signature"
)

// Tx is the transactional information between two parties.
type Tx struct {
	FromID    AccountID `json:"from"`
	ToID      AccountID `json:"to"`
	Amount    uint64    `json:"amount"`
	Fee       uint64    `json:"fee"`
	Nonce     uint64    `json:"nonce"`
	Signature string    `json:"signature,omitempty"`
}

// NewTx constructs an unsigned transaction.
func NewTx(fromID AccountID, toID AccountID, amount uint64, fee uint64, nonce uint64) Tx {
	return Tx{
		FromID: fromID,
		ToID:   toID,
		Amount: amount,
		Fee:    fee,
		Nonce:  nonce,
	}
}

// NewCoinbaseTx constructs the reward transaction that must open the
// block mined at the specified height.
func NewCoinbaseTx(beneficiaryID AccountID, reward uint64, height uint64) Tx {
	return Tx{
		FromID: SystemAccountID,
		ToID:   beneficiaryID,
		Amount: reward,
		Nonce:  height,
	}
}

// signPayload is the canonical form covered by the transaction id and
// the signature. The signature itself is excluded so signing does not
// change the identity.
type signPayload struct {
	FromID AccountID `json:"from"`
	ToID   AccountID `json:"to"`
	Amount uint64    `json:"amount"`
	Fee    uint64    `json:"fee"`
	Nonce  uint64    `json:"nonce"`
}

// SigningBytes returns the canonical payload bytes for signing and
// identity.
func (tx Tx) SigningBytes() []byte {
	payload := signPayload{
		FromID: tx.FromID,
		ToID:   tx.ToID,
		Amount: tx.Amount,
		Fee:    tx.Fee,
		Nonce:  tx.Nonce,
	}

	// Marshaling a flat value struct cannot fail.
	data, _ := json.Marshal(payload)
	return data
}

// ID returns the content derived identity of the transaction. It is the
// key for mempool storage, the merkle leaf and gossip deduplication.
func (tx Tx) ID() string {
	return signature.HashBytes(tx.SigningBytes())
}

// Sign returns a copy of the transaction signed with the private key.
// The from account must be the hex encoding of the matching public key
// or validation will fail later.
func (tx Tx) Sign(privateKey *ecdsa.PrivateKey) (Tx, error) {
	sig, err := signature.Sign(tx.SigningBytes(), privateKey)
	if err != nil {
		return Tx{}, err
	}

	tx.Signature = sig
	return tx, nil
}

// IsSigned reports whether the transaction carries a signature.
func (tx Tx) IsSigned() bool {
	return tx.Signature != ""
}

// IsCoinbase reports whether this is the reward transaction of a block.
func (tx Tx) IsCoinbase() bool {
	return tx.FromID == SystemAccountID
}

// VerifySignature reports whether the signature binds the canonical
// payload to the from account. A transaction whose from account is not
// a valid public key can never verify.
func (tx Tx) VerifySignature() bool {
	return signature.Verify(string(tx.FromID), tx.SigningBytes(), tx.Signature)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s:%d", tx.FromID, tx.Nonce)
}
