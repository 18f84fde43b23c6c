package node

import (
	"context"

	"github.com/minichain/minichain/foundation/blockchain/miner"
)

// SignalStartMining starts a mining operation. If a signal is already
// pending no additional signal is queued.
func (n *Node) SignalStartMining() {
	if n.minerID == "" {
		return
	}

	select {
	case n.startMining <- true:
	default:
	}
}

// SignalCancelMining cancels the mining operation in flight, if any.
func (n *Node) SignalCancelMining() {
	select {
	case n.cancelMining <- true:
	default:
	}
}

// miningWorker waits for start signals and runs one mining operation
// at a time until shutdown.
func (n *Node) miningWorker() {
	for {
		select {
		case <-n.shut:
			return
		case <-n.startMining:
			n.runMiningOperation()
		}
	}
}

// runMiningOperation selects the pending transactions that validate
// against the tip, searches for a proof of work and publishes the
// resulting block. A cancel signal or shutdown aborts the search.
func (n *Node) runMiningOperation() {

	// Drop any stale cancel left over from a previous operation.
	select {
	case <-n.cancelMining:
	default:
	}

	txs := n.mempool.PickValid(n.chain)
	if len(txs) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-n.cancelMining:
			cancel()
		case <-n.shut:
			cancel()
		case <-done:
		}
	}()

	block, err := miner.Mine(ctx, miner.Config{
		BeneficiaryID: n.minerID,
		Difficulty:    n.chain.Difficulty(),
		PrevBlockHash: n.chain.TipHash(),
		Height:        n.chain.Height() + 1,
		Txs:           txs,
		EvHandler:     miner.EvHandler(n.evHandler),
	})
	if err != nil {
		n.evHandler("node: mining: aborted: %s", err)
		return
	}

	if err := n.chain.Append(block); err != nil {

		// A peer block landed first. The pool is revalidated on the
		// next operation.
		n.evHandler("node: mining: local block rejected: %s", err)
		return
	}

	hash := block.Hash()
	n.seen.MarkSeen(hash)
	n.evHandler("node: mining: block %s mined: height %d, txs %d", hash, n.chain.Height(), len(block.Txs))

	n.mempool.RemoveIncluded(block.TxIDs())
	n.persistChain()
	n.persistMempool()
	n.broadcast(TypeNewBlock, NewBlock{Block: block}, "")

	if n.mempool.Count() > 0 {
		n.SignalStartMining()
	}
}
