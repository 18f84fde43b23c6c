// Package genesis defines the fixed protocol parameters and the
// deterministic genesis block every node starts from.
package genesis

import (
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/merkle"
	"github.com/minichain/minichain/foundation/blockchain/signature"
)

const (
	// BlockReward is the fixed subsidy credited by the coinbase
	// transaction of every mined block, on top of the fees it collects.
	BlockReward uint64 = 50

	// DefaultDifficulty is the proof of work difficulty applied when a
	// persisted chain predates the difficulty field.
	DefaultDifficulty uint = 2

	// TimeStamp is the fixed genesis header timestamp in milliseconds
	// since epoch. A constant keeps independently initialized nodes on
	// a bit identical genesis block. 2024-01-01T00:00:00Z.
	TimeStamp uint64 = 1704067200000
)

// Block constructs the deterministic genesis block. It carries no
// transactions and is exempt from the proof of work rules.
func Block() database.Block {
	return database.Block{
		Header: database.BlockHeader{
			PrevBlockHash: signature.ZeroHash,
			MerkleRoot:    merkle.EmptyRoot(),
			TimeStamp:     TimeStamp,
			Nonce:         0,
			Difficulty:    0,
		},
	}
}
