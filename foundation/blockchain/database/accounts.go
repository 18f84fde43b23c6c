package database

import (
	"fmt"
	"math"
	"sync"
)

// Accounts maintains the ledger of balances and nonces derived from
// replaying blocks in order. It is never persisted on its own, it is
// rebuilt deterministically from the chain.
type Accounts struct {
	mu   sync.RWMutex
	info map[AccountID]Account
}

// NewAccounts constructs an empty ledger.
func NewAccounts() *Accounts {
	return &Accounts{
		info: make(map[AccountID]Account),
	}
}

// Clone makes an independent copy of the ledger.
func (a *Accounts) Clone() *Accounts {
	a.mu.RLock()
	defer a.mu.RUnlock()

	clone := NewAccounts()
	for accountID, account := range a.info {
		clone.info[accountID] = account
	}
	return clone
}

// Copy returns a snapshot of every account in the ledger.
func (a *Accounts) Copy() map[AccountID]Account {
	a.mu.RLock()
	defer a.mu.RUnlock()

	accounts := make(map[AccountID]Account, len(a.info))
	for accountID, account := range a.info {
		accounts[accountID] = account
	}
	return accounts
}

// Balance returns the balance for the account, zero when the account
// has never been seen.
func (a *Accounts) Balance(accountID AccountID) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.info[accountID].Balance
}

// Nonce returns the next expected transaction nonce for the account,
// zero when the account has never sent.
func (a *Accounts) Nonce(accountID AccountID) uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.info[accountID].Nonce
}

// CanApply checks whether the transaction could be applied against the
// current ledger without mutating anything.
func (a *Accounts) CanApply(tx Tx) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.checkTx(tx)
}

// ApplyTx applies a single non coinbase transaction, moving amount to
// the receiver, burning amount plus fee from the sender and advancing
// the sender nonce. The ledger is unchanged on error.
func (a *Accounts) ApplyTx(tx Tx) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.checkTx(tx); err != nil {
		return err
	}

	from := a.info[tx.FromID]
	from.Balance -= tx.Amount + tx.Fee
	from.Nonce++
	a.info[tx.FromID] = from

	to := a.info[tx.ToID]
	to.Balance = saturatingAdd(to.Balance, tx.Amount)
	a.info[tx.ToID] = to

	return nil
}

// ApplyBlock replays every transaction of the block in order and
// returns the resulting ledger. The coinbase must be first, carry the
// block height as its nonce and pay exactly reward plus the fees of the
// other transactions. Application is atomic: one bad transaction
// rejects the whole block and the receiver ledger is untouched.
func (a *Accounts) ApplyBlock(block Block, height uint64, reward uint64) (*Accounts, error) {
	if len(block.Txs) == 0 {
		return nil, &ConsensusError{Reason: "block carries no coinbase transaction"}
	}

	coinbase := block.Txs[0]
	if !coinbase.IsCoinbase() {
		return nil, &ConsensusError{Reason: "first transaction is not the coinbase"}
	}

	var fees uint64
	for i, tx := range block.Txs[1:] {
		if tx.IsCoinbase() {
			return nil, &ConsensusError{Reason: fmt.Sprintf("extra coinbase transaction at index %d", i+1)}
		}
		fees = saturatingAdd(fees, tx.Fee)
	}

	if coinbase.Nonce != height {
		return nil, &ConsensusError{Reason: fmt.Sprintf("coinbase nonce %d does not match block height %d", coinbase.Nonce, height)}
	}

	if expected := saturatingAdd(reward, fees); coinbase.Amount != expected {
		return nil, &ConsensusError{Reason: fmt.Sprintf("coinbase amount %d, expected reward plus fees %d", coinbase.Amount, expected)}
	}

	applied := a.Clone()

	beneficiary := applied.info[coinbase.ToID]
	beneficiary.Balance = saturatingAdd(beneficiary.Balance, coinbase.Amount)
	applied.info[coinbase.ToID] = beneficiary

	for i, tx := range block.Txs[1:] {
		if err := applied.ApplyTx(tx); err != nil {
			return nil, fmt.Errorf("tx[%d]: %w", i+1, err)
		}
	}

	return applied, nil
}

// checkTx validates nonce and balance rules for a non coinbase
// transaction. Callers must hold at least a read lock.
func (a *Accounts) checkTx(tx Tx) error {
	if tx.IsCoinbase() {
		return &StructuralError{Reason: "coinbase transaction outside a block"}
	}

	from := a.info[tx.FromID]

	if tx.Nonce != from.Nonce {
		return &NonceError{FromID: tx.FromID, Expected: from.Nonce, Got: tx.Nonce}
	}

	if tx.Amount > math.MaxUint64-tx.Fee {
		return &BalanceError{FromID: tx.FromID, Balance: from.Balance, Needed: math.MaxUint64}
	}

	if needed := tx.Amount + tx.Fee; from.Balance < needed {
		return &BalanceError{FromID: tx.FromID, Balance: from.Balance, Needed: needed}
	}

	return nil
}

// saturatingAdd adds without wrapping so hostile values cannot overflow
// a balance.
func saturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
