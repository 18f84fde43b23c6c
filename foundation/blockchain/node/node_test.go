package node_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/mempool"
	"github.com/minichain/minichain/foundation/blockchain/miner"
	"github.com/minichain/minichain/foundation/blockchain/node"
	"github.com/minichain/minichain/foundation/blockchain/signature"
)

// waitFor polls the condition until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	waitForWithin(t, 5*time.Second, what, cond)
}

func waitForWithin(t *testing.T, limit time.Duration, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("\t%s\tTimed out waiting for %s.", failed, what)
}

// minedChain returns a difficulty zero chain holding one block that
// funds the miner account.
func minedChain(t *testing.T) *chain.Chain {
	t.Helper()

	c := chain.New(0)
	block, err := miner.Mine(context.Background(), miner.Config{
		BeneficiaryID: "miner",
		Difficulty:    0,
		PrevBlockHash: c.TipHash(),
		Height:        1,
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to mine the funding block: %v", failed, err)
	}
	if err := c.Append(block); err != nil {
		t.Fatalf("\t%s\tShould be able to append the funding block: %v", failed, err)
	}

	return c
}

func Test_PeerSyncAndGossip(t *testing.T) {
	t.Log("Given the need to sync and gossip between two nodes.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a fresh node connects to a node that is ahead.", testID)
		{
			c1 := minedChain(t)
			n1, err := node.New(node.Config{
				Listen:  "127.0.0.1:0",
				Chain:   c1,
				Mempool: mempool.New(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the listening node: %v", failed, testID, err)
			}
			n1.Start()
			defer n1.Shutdown()
			t.Logf("\t%s\tTest %d:\tShould be able to start the listening node.", success, testID)

			c2 := chain.New(0)
			mp2 := mempool.New()
			n2, err := node.New(node.Config{
				Connect: []string{n1.Addr()},
				Chain:   c2,
				Mempool: mp2,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the dialing node: %v", failed, testID, err)
			}
			n2.Start()
			defer n2.Shutdown()

			waitFor(t, "the handshake to complete", func() bool {
				return n1.PeerCount() == 1 && n2.PeerCount() == 1
			})
			t.Logf("\t%s\tTest %d:\tShould complete the handshake on both sides.", success, testID)

			waitFor(t, "the fresh node to catch up", func() bool {
				return c2.Height() == c1.Height()
			})
			if c2.TipHash() != c1.TipHash() {
				t.Fatalf("\t%s\tTest %d:\tShould sync to the same tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould sync the missing block after the handshake.", success, testID)

			// Gossip a transaction from the synced node to the other.
			tx := database.NewTx("miner", "alice", 10, 1, 0)
			if err := n2.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit a transaction: %v", failed, testID, err)
			}
			t.Logf("\t%s\tTest %d:\tShould be able to submit a transaction.", success, testID)

			waitFor(t, "the transaction to reach the peer", func() bool {
				return n1.Mempool().Count() == 1
			})
			t.Logf("\t%s\tTest %d:\tShould gossip the transaction to the peer.", success, testID)

			// A gossiped duplicate must not disturb either pool.
			if err := n2.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould accept a duplicate submission without error: %v", failed, testID, err)
			}
			if n2.Mempool().Count() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the duplicate out of the pool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the duplicate out of the pool.", success, testID)
		}
	}
}

func Test_BlockGossip(t *testing.T) {
	t.Log("Given the need to propagate mined blocks between nodes.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a node mines a block its peers must follow.", testID)
		{
			c1 := minedChain(t)
			n1, err := node.New(node.Config{
				Listen:  "127.0.0.1:0",
				Chain:   c1,
				Mempool: mempool.New(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the listening node: %v", failed, testID, err)
			}
			n1.Start()
			defer n1.Shutdown()

			c2, err := chain.FromBlocks(c1.Blocks(), c1.Difficulty())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to replay the chain for the peer: %v", failed, testID, err)
			}
			mp2 := mempool.New()
			n2, err := node.New(node.Config{
				Connect: []string{n1.Addr()},
				Chain:   c2,
				Mempool: mp2,
				MinerID: "miner",
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the mining node: %v", failed, testID, err)
			}
			n2.Start()
			defer n2.Shutdown()

			waitFor(t, "the handshake to complete", func() bool {
				return n1.PeerCount() == 1 && n2.PeerCount() == 1
			})

			// Submitting a transaction on the mining node triggers a
			// mining operation.
			tx := database.NewTx("miner", "alice", 10, 1, 0)
			if err := n2.SubmitTransaction(tx); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to submit a transaction: %v", failed, testID, err)
			}

			waitFor(t, "the block to be mined", func() bool {
				return c2.Height() == 2
			})
			t.Logf("\t%s\tTest %d:\tShould mine the transaction into a block.", success, testID)

			waitFor(t, "the block to reach the peer", func() bool {
				return c1.Height() == 2
			})
			if c1.TipHash() != c2.TipHash() {
				t.Fatalf("\t%s\tTest %d:\tShould land both nodes on the same tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould gossip the block to the peer.", success, testID)

			if balance := c1.Accounts().Balance("alice"); balance != 10 {
				t.Fatalf("\t%s\tTest %d:\tShould apply the transfer on the peer: got %d", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould apply the transfer on the peer.", success, testID)

			if n2.Mempool().Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould clear the mined transaction from the pool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould clear the mined transaction from the pool.", success, testID)
		}
	}
}

func Test_ShutdownWithStalledHandshake(t *testing.T) {
	t.Log("Given the need to shut down with a connection stuck in the handshake.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a connection never sends its handshake.", testID)
		{
			c1 := minedChain(t)
			n1, err := node.New(node.Config{
				Listen:  "127.0.0.1:0",
				Chain:   c1,
				Mempool: mempool.New(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the listening node: %v", failed, testID, err)
			}
			n1.Start()

			conn, err := net.Dial("tcp", n1.Addr())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to dial the node: %v", failed, testID, err)
			}
			defer conn.Close()

			// The node speaks first, so reading its handshake proves
			// the connection is being served before we go silent.
			msg, err := node.ReadMessage(conn)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould receive the node's handshake: %v", failed, testID, err)
			}
			if msg.Type != node.TypeHandshake {
				t.Fatalf("\t%s\tTest %d:\tShould receive a handshake first, got %q.", failed, testID, msg.Type)
			}
			t.Logf("\t%s\tTest %d:\tShould receive the node's handshake.", success, testID)

			done := make(chan struct{})
			go func() {
				n1.Shutdown()
				close(done)
			}()

			select {
			case <-done:
				t.Logf("\t%s\tTest %d:\tShould shut down while the handshake is stalled.", success, testID)
			case <-time.After(3 * time.Second):
				t.Fatalf("\t%s\tTest %d:\tShould shut down while the handshake is stalled.", failed, testID)
			}
		}
	}
}

func Test_InvalidBlockGossip(t *testing.T) {
	t.Log("Given the need to keep mining after a peer gossips an invalid block.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen an invalid block arrives while a block is being mined.", testID)
		{

			// A non trivial difficulty keeps the mining operation in
			// flight long enough for the invalid block to land.
			c1 := chain.New(4)
			funding, err := miner.Mine(context.Background(), miner.Config{
				BeneficiaryID: "miner",
				Difficulty:    c1.Difficulty(),
				PrevBlockHash: c1.TipHash(),
				Height:        1,
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to mine the funding block: %v", failed, testID, err)
			}
			if err := c1.Append(funding); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to append the funding block: %v", failed, testID, err)
			}

			n1, err := node.New(node.Config{
				Listen:  "127.0.0.1:0",
				Chain:   c1,
				Mempool: mempool.New(),
				MinerID: "miner",
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the mining node: %v", failed, testID, err)
			}
			n1.Start()
			defer n1.Shutdown()

			conn, err := net.Dial("tcp", n1.Addr())
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to dial the node: %v", failed, testID, err)
			}
			defer conn.Close()

			if msg, err := node.ReadMessage(conn); err != nil || msg.Type != node.TypeHandshake {
				t.Fatalf("\t%s\tTest %d:\tShould receive the node's handshake: %v", failed, testID, err)
			}
			hs, err := node.NewMessage(node.TypeHandshake, node.Handshake{Version: node.ProtocolVersion, Height: c1.Height()})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the handshake: %v", failed, testID, err)
			}
			if err := node.WriteMessage(conn, hs); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send the handshake: %v", failed, testID, err)
			}
			waitFor(t, "the handshake to complete", func() bool {
				return n1.PeerCount() == 1
			})
			t.Logf("\t%s\tTest %d:\tShould complete the handshake.", success, testID)

			// The transaction starts a mining operation on the node.
			nt, err := node.NewMessage(node.TypeNewTransaction, node.NewTransaction{Tx: database.NewTx("miner", "alice", 10, 1, 0)})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the transaction message: %v", failed, testID, err)
			}
			if err := node.WriteMessage(conn, nt); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send the transaction: %v", failed, testID, err)
			}

			// A block that does not link to the node's tip, arriving
			// while the node is searching for its own.
			bogus := database.Block{
				Header: database.BlockHeader{
					PrevBlockHash: signature.ZeroHash,
					MerkleRoot:    signature.ZeroHash,
					TimeStamp:     uint64(time.Now().UnixMilli()),
					Difficulty:    c1.Difficulty(),
				},
			}
			nb, err := node.NewMessage(node.TypeNewBlock, node.NewBlock{Block: bogus})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to build the block message: %v", failed, testID, err)
			}
			if err := node.WriteMessage(conn, nb); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to send the invalid block: %v", failed, testID, err)
			}

			waitFor(t, "the transaction to be mined", func() bool {
				return c1.Height() == 2
			})
			t.Logf("\t%s\tTest %d:\tShould mine the transaction despite the invalid block.", success, testID)

			if balance := c1.Accounts().Balance("alice"); balance != 10 {
				t.Fatalf("\t%s\tTest %d:\tShould apply the transfer: got %d.", failed, testID, balance)
			}
			t.Logf("\t%s\tTest %d:\tShould apply the transfer.", success, testID)

			if n1.PeerCount() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the connection after dropping the invalid block.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the connection after dropping the invalid block.", success, testID)
		}
	}
}

func Test_LongChainSync(t *testing.T) {
	t.Log("Given the need to sync a chain longer than one headers response.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen a fresh node connects to a node many blocks ahead.", testID)
		{

			// More blocks than fit in a single headers response, so the
			// catch up must ask again.
			const height = 501

			c1 := chain.New(0)
			for i := 1; i <= height; i++ {
				block, err := miner.Mine(context.Background(), miner.Config{
					BeneficiaryID: "miner",
					Difficulty:    0,
					PrevBlockHash: c1.TipHash(),
					Height:        uint64(i),
				})
				if err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to mine block %d: %v", failed, testID, i, err)
				}
				if err := c1.Append(block); err != nil {
					t.Fatalf("\t%s\tTest %d:\tShould be able to append block %d: %v", failed, testID, i, err)
				}
			}

			n1, err := node.New(node.Config{
				Listen:  "127.0.0.1:0",
				Chain:   c1,
				Mempool: mempool.New(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the listening node: %v", failed, testID, err)
			}
			n1.Start()
			defer n1.Shutdown()

			c2 := chain.New(0)
			n2, err := node.New(node.Config{
				Connect: []string{n1.Addr()},
				Chain:   c2,
				Mempool: mempool.New(),
			})
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to create the dialing node: %v", failed, testID, err)
			}
			n2.Start()
			defer n2.Shutdown()

			waitForWithin(t, 30*time.Second, "the fresh node to catch up", func() bool {
				return c2.Height() == c1.Height()
			})
			if c2.TipHash() != c1.TipHash() {
				t.Fatalf("\t%s\tTest %d:\tShould sync to the same tip.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould sync every block across multiple header batches.", success, testID)
		}
	}
}
