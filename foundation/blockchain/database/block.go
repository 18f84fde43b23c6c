package database

import (
	"github.com/minichain/minichain/foundation/blockchain/merkle"
	"github.com/minichain/minichain/foundation/blockchain/signature"
)

// BlockHeader represents the information that identifies a block. The
// chain links blocks by the digest of this header.
type BlockHeader struct {
	PrevBlockHash string `json:"prev_hash"`   // Digest of the previous block's header, zeros for genesis.
	MerkleRoot    string `json:"merkle_root"` // Ordered accumulator root over the transaction ids.
	TimeStamp     uint64 `json:"timestamp"`   // Milliseconds since epoch when the block was assembled.
	Nonce         uint64 `json:"nonce"`       // Value identified to solve the proof of work.
	Difficulty    uint   `json:"difficulty"`  // Number of leading hex zero characters required of the header digest.
}

// Block represents a group of transactions bundled together, coinbase
// first.
type Block struct {
	Header BlockHeader `json:"header"`
	Txs    []Tx        `json:"txs"`
}

// Hash returns the unique identity of the block, the digest of its
// header.
func (b Block) Hash() string {
	return signature.Hash(b.Header)
}

// MerkleRoot recomputes the accumulator root over the block's
// transaction ids in their stored order.
func (b Block) MerkleRoot() string {
	txIDs := make([]string, len(b.Txs))
	for i, tx := range b.Txs {
		txIDs[i] = tx.ID()
	}

	return merkle.Root(txIDs)
}

// TxIDs returns the ids of every transaction in block order.
func (b Block) TxIDs() []string {
	txIDs := make([]string, len(b.Txs))
	for i, tx := range b.Txs {
		txIDs[i] = tx.ID()
	}

	return txIDs
}

// HashSolved checks the hash complies with the proof of work rules. The
// hash must carry at least difficulty leading hex zero characters.
func HashSolved(difficulty uint, hash string) bool {
	if len(hash) != 64 {
		return false
	}

	if difficulty > 64 {
		difficulty = 64
	}

	for _, c := range hash[:difficulty] {
		if c != '0' {
			return false
		}
	}

	return true
}
