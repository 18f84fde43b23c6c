package node

import (
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/peer"
	"github.com/minichain/minichain/foundation/blockchain/signature"
	"github.com/minichain/minichain/foundation/blockchain/storage"
)

// processMessage dispatches one inbound frame. A returned error is a
// protocol violation and tears the connection down. Gossip that fails
// validation is logged and dropped without punishing the connection.
func (n *Node) processMessage(p *peer.Peer, msg Message) error {
	switch msg.Type {
	case TypeHandshake:
		return &ProtocolError{Reason: "handshake after handshake completed"}

	case TypePing:
		var ping Ping
		if err := msg.Decode(&ping); err != nil {
			return err
		}
		n.sendTo(p, TypePong, Pong{Nonce: ping.Nonce})
		return nil

	case TypePong:
		var pong Pong
		if err := msg.Decode(&pong); err != nil {
			return err
		}
		n.evHandler("node: recv: %s: pong: nonce %d", p.Addr, pong.Nonce)
		return nil

	case TypeNewTransaction:
		var nt NewTransaction
		if err := msg.Decode(&nt); err != nil {
			return err
		}
		n.handleNewTransaction(p, nt.Tx)
		return nil

	case TypeNewBlock:
		var nb NewBlock
		if err := msg.Decode(&nb); err != nil {
			return err
		}
		n.handleNewBlock(p, nb.Block, true)
		return nil

	case TypeGetHeaders:
		var gh GetHeaders
		if err := msg.Decode(&gh); err != nil {
			return err
		}
		n.sendTo(p, TypeHeaders, Headers{List: n.chain.Headers(gh.FromHeight, maxHeadersPerMessage)})
		return nil

	case TypeHeaders:
		var hdrs Headers
		if err := msg.Decode(&hdrs); err != nil {
			return err
		}
		n.handleHeaders(p, hdrs)
		return nil

	case TypeGetData:
		var gd GetData
		if err := msg.Decode(&gd); err != nil {
			return err
		}
		block, found := n.chain.BlockByHash(gd.Hash)
		bd := BlockData{Hash: gd.Hash, Found: found}
		if found {
			bd.Block = &block
		}
		n.sendTo(p, TypeBlockData, bd)
		return nil

	case TypeBlockData:
		var bd BlockData
		if err := msg.Decode(&bd); err != nil {
			return err
		}
		if !bd.Found || bd.Block == nil {
			n.evHandler("node: recv: %s: block %s not held by peer", p.Addr, bd.Hash)
		} else {
			n.handleNewBlock(p, *bd.Block, false)
		}
		n.advanceSync(p)
		return nil

	case TypeInventory:
		var inv Inventory
		if err := msg.Decode(&inv); err != nil {
			return err
		}
		n.evHandler("node: recv: %s: inventory: %d pending ids", p.Addr, len(inv.IDs))
		return nil

	case TypeGetMempool:
		n.sendTo(p, TypeInventory, Inventory{IDs: n.mempool.TxIDs()})
		return nil
	}

	return &ProtocolError{Reason: "unknown message type " + msg.Type}
}

// handleNewTransaction admits a gossiped transaction and forwards it
// onward. Duplicates by the seen cache or the pool stop here, so
// gossip cannot loop.
func (n *Node) handleNewTransaction(p *peer.Peer, tx database.Tx) {
	if !n.seen.MarkSeen(tx.ID()) {
		return
	}

	if err := n.mempool.Add(tx, n.chain); err != nil {
		n.evHandler("node: recv: %s: tx %s rejected: %s", p.Addr, tx, err)
		return
	}

	n.evHandler("node: recv: %s: tx %s accepted", p.Addr, tx)

	n.persistMempool()
	n.broadcast(TypeNewTransaction, NewTransaction{Tx: tx}, p.Addr)
	n.SignalStartMining()
}

// handleNewBlock appends a block received from a peer, clears the
// transactions it carries from the pool and, for direct gossip,
// forwards it onward.
func (n *Node) handleNewBlock(p *peer.Peer, block database.Block, rebroadcast bool) {
	hash := block.Hash()
	if !n.seen.MarkSeen(hash) {
		return
	}

	if err := n.chain.Append(block); err != nil {
		n.evHandler("node: recv: %s: block %s rejected: %s", p.Addr, hash, err)
		return
	}

	// Only a block that extended the chain makes a search in flight
	// stale. A rejected one must not disturb mining.
	n.SignalCancelMining()

	n.evHandler("node: recv: %s: block %s accepted: height %d", p.Addr, hash, n.chain.Height())

	n.mempool.RemoveIncluded(block.TxIDs())
	n.persistChain()
	n.persistMempool()

	if rebroadcast {
		n.broadcast(TypeNewBlock, NewBlock{Block: block}, p.Addr)
	}

	if n.mempool.Count() > 0 {
		n.SignalStartMining()
	}
}

// handleHeaders queues the advertised blocks we don't hold and begins
// fetching them. A full batch means the peer holds more headers, so
// another request is owed once this run of blocks has landed.
func (n *Node) handleHeaders(p *peer.Peer, hdrs Headers) {
	var unknown []string
	for _, header := range hdrs.List {
		hash := signature.Hash(header)
		if _, found := n.chain.BlockByHash(hash); found {
			continue
		}
		unknown = append(unknown, hash)
	}

	p.QueueSync(unknown, len(hdrs.List) == maxHeadersPerMessage)

	if len(unknown) == 0 {
		n.advanceSync(p)
		return
	}

	// Keep a bounded number of block requests in flight so a long
	// catch up cannot overflow the peer's outbound queue.
	for i := 0; i < syncWindow; i++ {
		hash, ok := p.NextSync()
		if !ok {
			break
		}
		n.sendTo(p, TypeGetData, GetData{Hash: hash})
	}
}

// advanceSync requests the next queued block from the peer or, when the
// queue drained after a full headers batch, the next run of headers.
func (n *Node) advanceSync(p *peer.Peer) {
	if hash, ok := p.NextSync(); ok {
		n.sendTo(p, TypeGetData, GetData{Hash: hash})
		return
	}

	if p.TakeSyncMore() {
		n.sendTo(p, TypeGetHeaders, GetHeaders{FromHeight: n.chain.Height() + 1})
	}
}

// =============================================================================

// SubmitTransaction validates a locally submitted transaction into the
// pool and gossips it to every peer.
func (n *Node) SubmitTransaction(tx database.Tx) error {
	if err := n.mempool.Add(tx, n.chain); err != nil {
		return err
	}

	n.seen.MarkSeen(tx.ID())
	n.persistMempool()
	n.broadcast(TypeNewTransaction, NewTransaction{Tx: tx}, "")
	n.SignalStartMining()

	return nil
}

// persistChain writes the chain to disk. A persistence failure is
// logged, never propagated into gossip handling.
func (n *Node) persistChain() {
	if n.chainPath == "" {
		return
	}
	if err := storage.SaveChain(n.chainPath, n.chain.Blocks(), n.chain.Difficulty()); err != nil {
		n.evHandler("node: persist: chain: ERROR: %s", err)
	}
}

func (n *Node) persistMempool() {
	if n.mempoolPath == "" {
		return
	}
	if err := storage.SaveMempool(n.mempoolPath, n.mempool.Copy()); err != nil {
		n.evHandler("node: persist: mempool: ERROR: %s", err)
	}
}
