// Package mempool maintains the set of validated transactions waiting
// to be mined, keyed by content derived transaction id.
package mempool

import (
	"sort"
	"sync"

	"github.com/minichain/minichain/foundation/blockchain/database"
)

// Chain represents the ledger queries the pool needs for admission.
type Chain interface {
	NextNonce(accountID database.AccountID) uint64
	Accounts() *database.Accounts
	ValidateTransaction(view *database.Accounts, tx database.Tx) error
}

// Mempool holds pending transactions. Admission enforces nonce
// continuity per sender and validates against a ledger view that has
// the sender's already pending transactions applied.
type Mempool struct {
	mu   sync.RWMutex
	pool map[string]database.Tx
}

// New constructs an empty mempool.
func New() *Mempool {
	return &Mempool{
		pool: make(map[string]database.Tx),
	}
}

// FromTransactions constructs a mempool preloaded with persisted
// transactions. No validation is performed, PickValid revalidates
// against the live chain at selection time.
func FromTransactions(txs []database.Tx) *Mempool {
	mp := New()
	for _, tx := range txs {
		mp.pool[tx.ID()] = tx
	}

	return mp
}

// Count returns the number of pending transactions.
func (mp *Mempool) Count() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	return len(mp.pool)
}

// Add validates the transaction against the chain plus the sender's
// pending transactions and admits it. A transaction already in the
// pool is accepted without effect, so gossip duplicates stay
// idempotent.
func (mp *Mempool) Add(tx database.Tx, chain Chain) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	id := tx.ID()
	if _, exists := mp.pool[id]; exists {
		return nil
	}

	pending := mp.pendingFor(tx.FromID)

	expected := chain.NextNonce(tx.FromID)
	if len(pending) > 0 {
		if last := pending[len(pending)-1].Nonce + 1; last > expected {
			expected = last
		}
	}
	if tx.Nonce != expected {
		return &database.NonceError{FromID: tx.FromID, Expected: expected, Got: tx.Nonce}
	}

	// Balance is checked as if the sender's pending transactions had
	// already been applied, so a sender cannot queue overspends.
	view := chain.Accounts()
	for _, pend := range pending {
		if err := view.ApplyTx(pend); err != nil {
			return err
		}
	}

	if err := chain.ValidateTransaction(view, tx); err != nil {
		return err
	}

	mp.pool[id] = tx
	return nil
}

// PickValid selects the pending transactions that validate against the
// current chain state, applying each selected transaction to a working
// view so later selections see its effects. Senders are walked in
// nonce order. The pool itself is not mutated.
func (mp *Mempool) PickValid(chain Chain) []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.Tx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}
	sortByAccountNonce(txs)

	view := chain.Accounts()

	var picked []database.Tx
	for _, tx := range txs {
		if err := chain.ValidateTransaction(view, tx); err != nil {
			continue
		}
		if err := view.ApplyTx(tx); err != nil {
			continue
		}
		picked = append(picked, tx)
	}

	return picked
}

// RemoveIncluded drops the transactions carried by a freshly appended
// block.
func (mp *Mempool) RemoveIncluded(txIDs []string) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	for _, id := range txIDs {
		delete(mp.pool, id)
	}
}

// Copy returns the pending transactions sorted by sender and nonce.
func (mp *Mempool) Copy() []database.Tx {
	mp.mu.RLock()
	defer mp.mu.RUnlock()

	txs := make([]database.Tx, 0, len(mp.pool))
	for _, tx := range mp.pool {
		txs = append(txs, tx)
	}
	sortByAccountNonce(txs)

	return txs
}

// TxIDs returns the ids of the pending transactions sorted by sender
// and nonce.
func (mp *Mempool) TxIDs() []string {
	txs := mp.Copy()

	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID()
	}

	return ids
}

// Truncate clears the pool.
func (mp *Mempool) Truncate() {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.pool = make(map[string]database.Tx)
}

// pendingFor returns the pool's transactions for the account sorted by
// nonce. Callers must hold the lock.
func (mp *Mempool) pendingFor(accountID database.AccountID) []database.Tx {
	var txs []database.Tx
	for _, tx := range mp.pool {
		if tx.FromID == accountID {
			txs = append(txs, tx)
		}
	}
	sortByAccountNonce(txs)

	return txs
}

func sortByAccountNonce(txs []database.Tx) {
	sort.Slice(txs, func(i, j int) bool {
		if txs[i].FromID != txs[j].FromID {
			return txs[i].FromID < txs[j].FromID
		}
		return txs[i].Nonce < txs[j].Nonce
	})
}
