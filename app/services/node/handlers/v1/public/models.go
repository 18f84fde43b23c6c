package public

import (
	"github.com/minichain/minichain/business/sys/validate"
	"github.com/minichain/minichain/foundation/blockchain/database"
)

// statusInfo represents the current state of the node.
type statusInfo struct {
	Height     uint64 `json:"height"`
	TipHash    string `json:"tip_hash"`
	Difficulty uint   `json:"difficulty"`
	MempoolLen int    `json:"mempool_len"`
	Peers      int    `json:"peers"`
}

// accountInfo represents the ledger information for an account with
// its friendly name when one is known.
type accountInfo struct {
	Account database.AccountID `json:"account"`
	Name    string             `json:"name,omitempty"`
	Balance uint64             `json:"balance"`
	Nonce   uint64             `json:"nonce"`
}

// txInfo augments a transaction with its content derived id.
type txInfo struct {
	ID string      `json:"id"`
	Tx database.Tx `json:"tx"`
}

// submitTx is what clients post to submit a transaction.
type submitTx struct {
	From      string `json:"from" validate:"required"`
	To        string `json:"to" validate:"required"`
	Amount    uint64 `json:"amount" validate:"required,gt=0"`
	Fee       uint64 `json:"fee"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature,omitempty"`
}

// Validate checks the data in the model is considered clean.
func (st submitTx) Validate() error {
	return validate.Check(st)
}

// toDatabaseTx converts the request model to the core transaction
// type.
func (st submitTx) toDatabaseTx() database.Tx {
	return database.Tx{
		FromID:    database.AccountID(st.From),
		ToID:      database.AccountID(st.To),
		Amount:    st.Amount,
		Fee:       st.Fee,
		Nonce:     st.Nonce,
		Signature: st.Signature,
	}
}
