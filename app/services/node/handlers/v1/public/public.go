// Package public maintains the group of handlers for public access.
package public

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/minichain/minichain/business/sys/validate"
	"github.com/minichain/minichain/foundation/blockchain/database"
	"github.com/minichain/minichain/foundation/blockchain/node"
	"github.com/minichain/minichain/foundation/events"
	"github.com/minichain/minichain/foundation/nameservice"
	"github.com/minichain/minichain/foundation/web"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log  *zap.SugaredLogger
	Node *node.Node
	NS   *nameservice.NameService
	Evts *events.Events
}

// Status returns the current chain tip, difficulty and pool depth.
func (h Handlers) Status(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	chain := h.Node.Chain()

	status := statusInfo{
		Height:     chain.Height(),
		TipHash:    chain.TipHash(),
		Difficulty: chain.Difficulty(),
		MempoolLen: h.Node.Mempool().Count(),
		Peers:      h.Node.PeerCount(),
	}

	return web.Respond(ctx, w, status, http.StatusOK)
}

// BlocksList returns the full block sequence from genesis to tip.
func (h Handlers) BlocksList(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return web.Respond(ctx, w, h.Node.Chain().Blocks(), http.StatusOK)
}

// BlockByHash returns the block with the specified header digest.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")

	block, found := h.Node.Chain().BlockByHash(hash)
	if !found {
		return validate.NewRequestError(errors.New("block not found"), http.StatusNotFound)
	}

	return web.Respond(ctx, w, block, http.StatusOK)
}

// AccountsList returns the current ledger for every known account.
func (h Handlers) AccountsList(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accounts := h.Node.Chain().Accounts().Copy()

	infos := make([]accountInfo, 0, len(accounts))
	for accountID, account := range accounts {
		infos = append(infos, accountInfo{
			Account: accountID,
			Name:    nameOf(h.NS, accountID),
			Balance: account.Balance,
			Nonce:   account.Nonce,
		})
	}

	return web.Respond(ctx, w, infos, http.StatusOK)
}

// AccountByID returns the ledger information for a single account.
func (h Handlers) AccountByID(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	accountID := database.AccountID(web.Param(r, "account"))

	accounts := h.Node.Chain().Accounts()
	info := accountInfo{
		Account: accountID,
		Name:    nameOf(h.NS, accountID),
		Balance: accounts.Balance(accountID),
		Nonce:   accounts.Nonce(accountID),
	}

	return web.Respond(ctx, w, info, http.StatusOK)
}

// MempoolList returns the pending transactions sorted by sender and
// nonce.
func (h Handlers) MempoolList(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	txs := h.Node.Mempool().Copy()

	infos := make([]txInfo, 0, len(txs))
	for _, tx := range txs {
		infos = append(infos, txInfo{ID: tx.ID(), Tx: tx})
	}

	return web.Respond(ctx, w, infos, http.StatusOK)
}

// SubmitTransaction adds a new transaction to the mempool and gossips
// it to the peer mesh.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var st submitTx
	if err := web.Decode(r, &st); err != nil {
		return validate.NewRequestError(err, http.StatusBadRequest)
	}

	tx := st.toDatabaseTx()
	if err := h.Node.SubmitTransaction(tx); err != nil {
		return validate.NewRequestError(err, http.StatusBadRequest)
	}

	h.Evts.Send("tx accepted: " + tx.ID())

	resp := struct {
		ID string `json:"id"`
	}{
		ID: tx.ID(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

func nameOf(ns *nameservice.NameService, accountID database.AccountID) string {
	if ns == nil {
		return ""
	}
	if name := ns.Lookup(accountID); name != string(accountID) {
		return name
	}

	return ""
}
