package public_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/minichain/minichain/app/services/node/handlers"
	"github.com/minichain/minichain/foundation/blockchain/chain"
	"github.com/minichain/minichain/foundation/blockchain/mempool"
	"github.com/minichain/minichain/foundation/blockchain/miner"
	"github.com/minichain/minichain/foundation/blockchain/node"
	"github.com/minichain/minichain/foundation/events"
	"github.com/minichain/minichain/foundation/logger"
)

const (
	success = "\u2713"
	failed  = "\u2717"
)

// testServer stands up the public API over a node with one funded
// block.
func testServer(t *testing.T) (*httptest.Server, *node.Node) {
	t.Helper()

	log, err := logger.New("TEST")
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct a logger: %v", failed, err)
	}

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

	nd, err := node.New(node.Config{
		Chain:   c,
		Mempool: mempool.New(),
	})
	if err != nil {
		t.Fatalf("\t%s\tShould be able to construct the node: %v", failed, err)
	}

	mux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: make(chan os.Signal, 1),
		Log:      log,
		Node:     nd,
		Evts:     events.New(),
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server, nd
}

func Test_Status(t *testing.T) {
	t.Log("Given the need to expose the node state over HTTP.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen requesting the status.", testID)
		{
			server, _ := testServer(t)

			resp, err := http.Get(server.URL + "/v1/status")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to call the endpoint: %v", failed, testID, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get a 200: got %d", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 200.", success, testID)

			var status struct {
				Height     uint64 `json:"height"`
				TipHash    string `json:"tip_hash"`
				Difficulty uint   `json:"difficulty"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to decode the response: %v", failed, testID, err)
			}

			if status.Height != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould report height 1: got %d", failed, testID, status.Height)
			}
			t.Logf("\t%s\tTest %d:\tShould report the chain height.", success, testID)

			if len(status.TipHash) != 64 {
				t.Fatalf("\t%s\tTest %d:\tShould report the tip digest.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould report the tip digest.", success, testID)
		}
	}
}

func Test_SubmitTransaction(t *testing.T) {
	t.Log("Given the need to accept transactions over HTTP.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen posting a valid transaction.", testID)
		{
			server, nd := testServer(t)

			body := `{"from":"miner","to":"alice","amount":10,"fee":1,"nonce":0}`
			resp, err := http.Post(server.URL+"/v1/tx", "application/json", bytes.NewBufferString(body))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to call the endpoint: %v", failed, testID, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("\t%s\tTest %d:\tShould get a 200: got %d", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 200.", success, testID)

			if nd.Mempool().Count() != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould land the transaction in the pool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould land the transaction in the pool.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen posting an invalid transaction.", testID)
		{
			server, nd := testServer(t)

			// Missing destination and zero amount.
			body := `{"from":"miner","amount":0}`
			resp, err := http.Post(server.URL+"/v1/tx", "application/json", bytes.NewBufferString(body))
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to call the endpoint: %v", failed, testID, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("\t%s\tTest %d:\tShould get a 400: got %d", failed, testID, resp.StatusCode)
			}
			t.Logf("\t%s\tTest %d:\tShould get a 400.", success, testID)

			if nd.Mempool().Count() != 0 {
				t.Fatalf("\t%s\tTest %d:\tShould keep the transaction out of the pool.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould keep the transaction out of the pool.", success, testID)
		}
	}
}
