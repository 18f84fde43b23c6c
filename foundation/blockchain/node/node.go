// Package node runs the peer to peer side of a ledger node: the TCP
// listener, the per connection handshake and gossip loops, and the
// mining worker that turns pending transactions into blocks.
package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/mempool"
	"github.com/minichain/minichain/foundation/blockchain/peer"
	"github.com/minichain/minichain/foundation/blockchain/storage"
)

// ProtocolVersion is the handshake version both sides must agree on.
const ProtocolVersion uint32 = 1

// peerSendBuffer bounds the outbound queue per peer. A peer that can't
// keep up has frames dropped rather than stalling the node.
const peerSendBuffer = 64

// seenCacheSize bounds the gossip dedupe cache.
const seenCacheSize = 4096

// maxHeadersPerMessage caps a single Headers response.
const maxHeadersPerMessage = 500

// pingInterval is the cadence of liveness pings per connection.
const pingInterval = 30 * time.Second

// handshakeTimeout bounds the handshake exchange. A connection that
// stays silent is dropped rather than holding a reader forever.
const handshakeTimeout = 10 * time.Second

// syncWindow bounds the block requests in flight per peer during catch
// up, so a long sync cannot overflow the outbound queue.
const syncWindow = 16

// EvHandler defines a function callback used to receive node events.
type EvHandler func(v string, args ...any)

// Config holds the dependencies a Node needs.
type Config struct {
	Listen      string
	Connect     []string
	Chain       *chain.Chain
	Mempool     *mempool.Mempool
	ChainPath   string
	MempoolPath string
	MinerID     database.AccountID
	EvHandler   EvHandler
}

// Node manages the gossip mesh and the chain and mempool behind it.
type Node struct {
	connect     []string
	chain       *chain.Chain
	mempool     *mempool.Mempool
	chainPath   string
	mempoolPath string
	minerID     database.AccountID
	evHandler   EvHandler

	listener net.Listener
	registry *peer.Registry
	seen     *peer.Cache

	wg   sync.WaitGroup
	shut chan struct{}

	connsMu sync.Mutex
	conns   map[net.Conn]struct{}
	closed  bool

	startMining  chan bool
	cancelMining chan bool
}

// New constructs a node. Start must be called before the node accepts
// or dials peers.
func New(cfg Config) (*Node, error) {
	if cfg.Chain == nil {
		return nil, errors.New("chain is required")
	}
	if cfg.Mempool == nil {
		return nil, errors.New("mempool is required")
	}

	ev := cfg.EvHandler
	if ev == nil {
		ev = func(v string, args ...any) {}
	}

	n := Node{
		connect:      cfg.Connect,
		chain:        cfg.Chain,
		mempool:      cfg.Mempool,
		chainPath:    cfg.ChainPath,
		mempoolPath:  cfg.MempoolPath,
		minerID:      cfg.MinerID,
		evHandler:    ev,
		registry:     peer.NewRegistry(),
		seen:         peer.NewCache(seenCacheSize),
		conns:        make(map[net.Conn]struct{}),
		shut:         make(chan struct{}),
		startMining:  make(chan bool, 1),
		cancelMining: make(chan bool, 1),
	}

	if cfg.Listen != "" {
		listener, err := net.Listen("tcp", cfg.Listen)
		if err != nil {
			return nil, fmt.Errorf("listen on %q: %w", cfg.Listen, err)
		}
		n.listener = listener
	}

	return &n, nil
}

// Start launches the accept loop, dials the configured peers and, when
// a miner account is configured, the mining worker.
func (n *Node) Start() {
	if n.listener != nil {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.acceptLoop()
		}()
	}

	for _, addr := range n.connect {
		addr := addr
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.dialPeer(addr)
		}()
	}

	if n.minerID != "" {
		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.miningWorker()
		}()
	}
}

// Shutdown stops accepting connections, closes every peer, waits for
// the goroutines to drain and persists the chain and mempool.
func (n *Node) Shutdown() error {
	n.evHandler("node: shutdown: started")
	defer n.evHandler("node: shutdown: completed")

	close(n.shut)

	if n.listener != nil {
		n.listener.Close()
	}

	for _, p := range n.registry.Copy("") {
		p.Close()
	}

	// Connections still in the handshake have no registry entry yet.
	// Closing the socket unblocks their reader.
	n.connsMu.Lock()
	n.closed = true
	for conn := range n.conns {
		conn.Close()
	}
	n.connsMu.Unlock()

	n.wg.Wait()

	var err error
	if n.chainPath != "" {
		if serr := storage.SaveChain(n.chainPath, n.chain.Blocks(), n.chain.Difficulty()); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	if n.mempoolPath != "" {
		if serr := storage.SaveMempool(n.mempoolPath, n.mempool.Copy()); serr != nil {
			err = errors.Join(err, serr)
		}
	}

	return err
}

// Addr returns the listener's bound address, useful when listening on
// port zero.
func (n *Node) Addr() string {
	if n.listener == nil {
		return ""
	}

	return n.listener.Addr().String()
}

// PeerCount returns the number of registered peers.
func (n *Node) PeerCount() int {
	return n.registry.Count()
}

// Chain returns the chain this node maintains.
func (n *Node) Chain() *chain.Chain {
	return n.chain
}

// Mempool returns the pending transaction pool this node maintains.
func (n *Node) Mempool() *mempool.Mempool {
	return n.mempool
}

// =============================================================================

func (n *Node) acceptLoop() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			select {
			case <-n.shut:
				return
			default:
				n.evHandler("node: accept: ERROR: %s", err)
				continue
			}
		}

		n.wg.Add(1)
		go func() {
			defer n.wg.Done()
			n.handleConn(conn)
		}()
	}
}

func (n *Node) dialPeer(addr string) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		n.evHandler("node: dial: %s: ERROR: %s", addr, err)
		return
	}

	n.handleConn(conn)
}

// trackConn records an open socket so Shutdown can close it even
// before the handshake completes. It reports false once the node is
// shutting down.
func (n *Node) trackConn(conn net.Conn) bool {
	n.connsMu.Lock()
	defer n.connsMu.Unlock()

	if n.closed {
		return false
	}
	n.conns[conn] = struct{}{}

	return true
}

func (n *Node) untrackConn(conn net.Conn) {
	n.connsMu.Lock()
	defer n.connsMu.Unlock()

	delete(n.conns, conn)
}

// handleConn runs a connection from handshake to teardown. The
// handshake is symmetric: each side sends its own handshake first and
// refuses any other message until the peer's arrives.
func (n *Node) handleConn(conn net.Conn) {
	defer conn.Close()

	if !n.trackConn(conn) {
		return
	}
	defer n.untrackConn(conn)

	addr := conn.RemoteAddr().String()
	p := peer.New(addr, peerSendBuffer)

	n.evHandler("node: conn: %s: connected", addr)

	hs, err := NewMessage(TypeHandshake, Handshake{Version: ProtocolVersion, Height: n.chain.Height()})
	if err != nil {
		n.evHandler("node: conn: %s: ERROR: %s", addr, err)
		return
	}
	p.SetStatus(peer.StatusHandshaking)

	// A silent or stalled counterpart must not hold the reader past
	// the handshake window.
	conn.SetDeadline(time.Now().Add(handshakeTimeout))

	if err := WriteMessage(conn, hs); err != nil {
		n.evHandler("node: conn: %s: ERROR: %s", addr, err)
		return
	}

	msg, err := ReadMessage(conn)
	if err != nil {
		n.evHandler("node: conn: %s: handshake: ERROR: %s", addr, err)
		return
	}
	if msg.Type != TypeHandshake {
		n.evHandler("node: conn: %s: ERROR: %s", addr, &ProtocolError{Reason: "expected handshake, got " + msg.Type})
		return
	}

	var theirs Handshake
	if err := msg.Decode(&theirs); err != nil {
		n.evHandler("node: conn: %s: ERROR: %s", addr, err)
		return
	}
	if theirs.Version != ProtocolVersion {
		n.evHandler("node: conn: %s: ERROR: %s", addr, &ProtocolError{Reason: fmt.Sprintf("version mismatch: ours %d, theirs %d", ProtocolVersion, theirs.Version)})
		return
	}

	conn.SetDeadline(time.Time{})

	p.SetHeight(theirs.Height)
	p.SetStatus(peer.StatusReady)
	n.registry.Add(p)
	defer func() {
		p.Close()
		n.registry.Remove(addr)
		n.evHandler("node: conn: %s: closed", addr)
	}()

	n.evHandler("node: conn: %s: ready: height %d", addr, theirs.Height)

	// Writer goroutine. The reader side queues frames on p.Out and
	// never blocks on the socket.
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case data := <-p.Out:
				if err := WriteFrame(conn, data); err != nil {
					n.evHandler("node: conn: %s: write: ERROR: %s", addr, err)
					p.Close()
					conn.Close()
					return
				}
			case <-p.Done:

				// Unblocks the reader so teardown can finish.
				conn.Close()
				return
			}
		}
	}()

	// Liveness pings on a fixed cadence.
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		var nonce uint64
		for {
			select {
			case <-ticker.C:
				nonce++
				n.sendTo(p, TypePing, Ping{Nonce: nonce})
			case <-p.Done:
				return
			}
		}
	}()

	// Catch up if the peer is ahead of us, and learn what it holds
	// pending.
	if theirs.Height > n.chain.Height() {
		n.sendTo(p, TypeGetHeaders, GetHeaders{FromHeight: n.chain.Height() + 1})
	}
	n.sendTo(p, TypeGetMempool, GetMempool{})

	for {
		select {
		case <-n.shut:
			return
		case <-p.Done:
			return
		default:
		}

		msg, err := ReadMessage(conn)
		if err != nil {
			var pe *ProtocolError
			if errors.As(err, &pe) {
				n.evHandler("node: conn: %s: ERROR: %s", addr, pe)
			}
			return
		}

		if err := n.processMessage(p, msg); err != nil {
			n.evHandler("node: conn: %s: ERROR: %s", addr, err)
			return
		}
	}
}

// sendTo queues one message for a single peer. The send is non
// blocking, a peer with a full queue misses the frame.
func (n *Node) sendTo(p *peer.Peer, msgType string, payload any) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		n.evHandler("node: send: %s: ERROR: %s", p.Addr, err)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		n.evHandler("node: send: %s: ERROR: %s", p.Addr, err)
		return
	}

	select {
	case p.Out <- data:
	default:
		n.evHandler("node: send: %s: queue full, dropped %s", p.Addr, msgType)
	}
}

// broadcast queues the message for every ready peer except the
// specified address. Pass an empty string to reach everyone.
func (n *Node) broadcast(msgType string, payload any, exceptAddr string) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		n.evHandler("node: broadcast: ERROR: %s", err)
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		n.evHandler("node: broadcast: ERROR: %s", err)
		return
	}

	for _, p := range n.registry.Copy(exceptAddr) {
		if !p.Ready() {
			continue
		}
		select {
		case p.Out <- data:
		default:
			n.evHandler("node: broadcast: %s: queue full, dropped %s", p.Addr, msgType)
		}
	}
}
