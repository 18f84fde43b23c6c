// Package peer tracks the set of connected peers and the gossip
// bookkeeping that keeps rebroadcast loops from forming.
package peer

import (
	"sync"
)

// Set of lifecycle states a connection moves through. Transitions only
// move forward: Connecting, Handshaking, Ready, Closed.
const (
	StatusConnecting Status = iota
	StatusHandshaking
	StatusReady
	StatusClosed
)

// Status represents where a peer connection is in its lifecycle.
type Status int

// String implements the fmt.Stringer interface.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusHandshaking:
		return "handshaking"
	case StatusReady:
		return "ready"
	case StatusClosed:
		return "closed"
	}

	return "unknown"
}

// Peer represents a single connected node. Frames queued on Out are
// drained by the connection's writer goroutine. Done is closed exactly
// once when the connection terminates.
type Peer struct {
	Addr string
	Out  chan []byte
	Done chan struct{}

	mu     sync.RWMutex
	once   sync.Once
	status Status
	height uint64

	syncQueue []string
	syncMore  bool
}

// New constructs a peer for the specified remote address with an
// outbound queue of the specified depth.
func New(addr string, buffer int) *Peer {
	return &Peer{
		Addr:   addr,
		Out:    make(chan []byte, buffer),
		Done:   make(chan struct{}),
		status: StatusConnecting,
	}
}

// SetStatus advances the peer's lifecycle state.
func (p *Peer) SetStatus(status Status) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.status = status
}

// Status returns the peer's current lifecycle state.
func (p *Peer) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.status
}

// Ready reports whether the handshake has completed and gossip may
// flow.
func (p *Peer) Ready() bool {
	return p.Status() == StatusReady
}

// SetHeight records the chain height the peer last reported.
func (p *Peer) SetHeight(height uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.height = height
}

// Height returns the chain height the peer last reported.
func (p *Peer) Height() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.height
}

// QueueSync records block hashes still to fetch from this peer and
// whether another headers batch is owed once they have landed.
func (p *Peer) QueueSync(hashes []string, more bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.syncQueue = append(p.syncQueue, hashes...)
	p.syncMore = more
}

// NextSync pops the next block hash waiting to be fetched.
func (p *Peer) NextSync() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.syncQueue) == 0 {
		return "", false
	}

	hash := p.syncQueue[0]
	p.syncQueue = p.syncQueue[1:]

	return hash, true
}

// TakeSyncMore reports whether a follow up headers request is owed and
// clears the flag so only one is issued.
func (p *Peer) TakeSyncMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	more := p.syncMore
	p.syncMore = false

	return more
}

// Close marks the peer closed and releases anyone waiting on Done.
// Safe to call from both the reader and writer side.
func (p *Peer) Close() {
	p.once.Do(func() {
		p.SetStatus(StatusClosed)
		close(p.Done)
	})
}

// =============================================================================

// Registry maintains the set of live peers keyed by remote address.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*Peer
}

// NewRegistry constructs an empty peer registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string]*Peer),
	}
}

// Add records the peer. A peer already registered for the address is
// replaced.
func (r *Registry) Add(p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.peers[p.Addr] = p
}

// Remove drops the peer for the specified address.
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.peers, addr)
}

// Copy returns the current peers, excluding the specified address.
// Pass an empty string to get everyone.
func (r *Registry) Copy(exceptAddr string) []*Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]*Peer, 0, len(r.peers))
	for addr, p := range r.peers {
		if addr == exceptAddr {
			continue
		}
		peers = append(peers, p)
	}

	return peers
}

// Count returns the number of registered peers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.peers)
}
