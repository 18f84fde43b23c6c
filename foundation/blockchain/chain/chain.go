// Package chain implements the append-only, hash-linked block sequence
// and the authoritative validation entry points shared by the CLI, the
// miner and the network layer.
package chain

import (
	"fmt"
	"sync"

	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/genesis"
	"github.com/minichain/minichain/foundation/blockchain/signature"
)

// Chain manages the ordered block sequence and the account ledger
// accumulated at the tip. All mutation funnels through Append.
type Chain struct {
	mu         sync.RWMutex
	blocks     []database.Block
	difficulty uint
	accounts   *database.Accounts
}

// New constructs a chain containing only the genesis block.
func New(difficulty uint) *Chain {
	return &Chain{
		blocks:     []database.Block{genesis.Block()},
		difficulty: difficulty,
		accounts:   database.NewAccounts(),
	}
}

// FromBlocks reconstructs a chain from persisted blocks, revalidating
// and replaying every block from genesis. Two replays of the same
// blocks produce identical ledgers.
func FromBlocks(blocks []database.Block, difficulty uint) (*Chain, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("chain has no blocks")
	}

	gen := blocks[0]
	if gen.Header.PrevBlockHash != signature.ZeroHash {
		return nil, &LinkageError{Got: gen.Header.PrevBlockHash, Expected: signature.ZeroHash}
	}
	if len(gen.Txs) != 0 {
		return nil, &database.ConsensusError{Reason: "genesis block cannot carry transactions"}
	}
	if root := gen.MerkleRoot(); gen.Header.MerkleRoot != root {
		return nil, &MerkleError{Got: gen.Header.MerkleRoot, Expected: root}
	}

	c := Chain{
		blocks:     []database.Block{gen},
		difficulty: difficulty,
		accounts:   database.NewAccounts(),
	}

	for i, block := range blocks[1:] {
		if err := c.Append(block); err != nil {
			return nil, fmt.Errorf("block %d: %w", i+1, err)
		}
	}

	return &c, nil
}

// Height returns the index of the tip block. A chain holding only
// genesis has height zero.
func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return uint64(len(c.blocks) - 1)
}

// Difficulty returns the proof of work difficulty enforced for every
// non genesis block.
func (c *Chain) Difficulty() uint {
	return c.difficulty
}

// TipHeader returns the header of the most recently appended block.
func (c *Chain) TipHeader() database.BlockHeader {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blocks[len(c.blocks)-1].Header
}

// TipHash returns the digest of the tip header.
func (c *Chain) TipHash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.blocks[len(c.blocks)-1].Hash()
}

// Blocks returns a copy of the full block sequence starting at genesis.
func (c *Chain) Blocks() []database.Block {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blocks := make([]database.Block, len(c.blocks))
	copy(blocks, c.blocks)
	return blocks
}

// BlockByHash locates a block by its header digest.
func (c *Chain) BlockByHash(hash string) (database.Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, block := range c.blocks {
		if block.Hash() == hash {
			return block, true
		}
	}

	return database.Block{}, false
}

// Headers returns up to limit block headers starting at the specified
// height.
func (c *Chain) Headers(fromHeight uint64, limit int) []database.BlockHeader {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if fromHeight >= uint64(len(c.blocks)) {
		return nil
	}

	var headers []database.BlockHeader
	for _, block := range c.blocks[fromHeight:] {
		if limit > 0 && len(headers) == limit {
			break
		}
		headers = append(headers, block.Header)
	}

	return headers
}

// TxCount returns the number of transactions recorded across the whole
// chain, coinbase included.
func (c *Chain) TxCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var count int
	for _, block := range c.blocks {
		count += len(block.Txs)
	}

	return count
}

// Accounts returns an independent copy of the ledger accumulated at the
// tip.
func (c *Chain) Accounts() *database.Accounts {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.accounts.Clone()
}

// NextNonce returns the next expected transaction nonce for the
// account: one past the highest nonce the chain has recorded for it,
// zero when the account has never sent.
func (c *Chain) NextNonce(accountID database.AccountID) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.accounts.Nonce(accountID)
}

// ValidateTransaction is the single gate shared by mempool admission,
// miner pre-checks and inbound gossip. It performs the structural
// checks, verifies the signature when one is present and checks nonce
// and balance against the supplied ledger view. A nil view checks
// against the chain's current ledger.
func (c *Chain) ValidateTransaction(view *database.Accounts, tx database.Tx) error {
	if err := validateTxStatic(tx); err != nil {
		return err
	}

	if view == nil {
		view = c.Accounts()
	}

	return view.CanApply(tx)
}

// ValidateBlock validates the block as the next block of the chain
// without mutating anything. See Append for the rule list.
func (c *Chain) ValidateBlock(block database.Block) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, err := c.validateBlock(block)
	return err
}

// Append validates the block and pushes it onto the chain. This is the
// sole mutation path for chain growth: locally mined blocks and blocks
// accepted from peers both funnel through here. The chain is unchanged
// on any validation failure.
func (c *Chain) Append(block database.Block) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	applied, err := c.validateBlock(block)
	if err != nil {
		return err
	}

	c.blocks = append(c.blocks, block)
	c.accounts = applied
	return nil
}

// validateBlock runs the full rule set for a candidate next block:
// header linkage, merkle root recomputation, proof of work, transaction
// level checks and a complete state replay with the coinbase reward
// arithmetic. It returns the ledger that results from applying the
// block. Callers must hold the lock.
func (c *Chain) validateBlock(block database.Block) (*database.Accounts, error) {
	tip := c.blocks[len(c.blocks)-1]
	height := uint64(len(c.blocks))

	if tipHash := tip.Hash(); block.Header.PrevBlockHash != tipHash {
		return nil, &LinkageError{Got: block.Header.PrevBlockHash, Expected: tipHash}
	}

	if root := block.MerkleRoot(); block.Header.MerkleRoot != root {
		return nil, &MerkleError{Got: block.Header.MerkleRoot, Expected: root}
	}

	hash := block.Hash()
	if !database.HashSolved(c.difficulty, hash) {
		return nil, &ProofOfWorkError{Hash: hash, Difficulty: c.difficulty}
	}

	// The coinbase is exempt from the structural and signature rules,
	// ApplyBlock holds it to the consensus rules instead.
	for i, tx := range block.Txs {
		if i == 0 {
			continue
		}
		if err := validateTxStatic(tx); err != nil {
			return nil, fmt.Errorf("tx[%d]: %w", i, err)
		}
	}

	applied, err := c.accounts.ApplyBlock(block, height, genesis.BlockReward)
	if err != nil {
		return nil, err
	}

	return applied, nil
}

// validateTxStatic performs the stateless checks for a user
// transaction: field structure and, when signed, the binding of the
// signature to the from account.
func validateTxStatic(tx database.Tx) error {
	switch {
	case tx.IsCoinbase():
		return &database.StructuralError{Reason: "coinbase transaction outside a block"}
	case tx.FromID == "":
		return &database.StructuralError{Reason: "from account is empty"}
	case tx.ToID == "":
		return &database.StructuralError{Reason: "to account is empty"}
	case tx.FromID == tx.ToID:
		return &database.StructuralError{Reason: "from and to accounts must differ"}
	case tx.Amount == 0:
		return &database.StructuralError{Reason: "amount must be greater than zero"}
	}

	if tx.IsSigned() && !tx.VerifySignature() {
		return &database.SignatureError{FromID: tx.FromID}
	}

	return nil
}
