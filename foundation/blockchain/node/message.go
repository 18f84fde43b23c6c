package node

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minichain/minichain/foundation/blockchain/database"
)

// MaxMessageSize bounds a single wire frame. Anything larger is a
// protocol violation and the connection is dropped.
const MaxMessageSize = 10 * 1024 * 1024

// Set of message types carried on the wire.
const (
	TypeHandshake      = "handshake"
	TypePing           = "ping"
	TypePong           = "pong"
	TypeNewTransaction = "new_transaction"
	TypeNewBlock       = "new_block"
	TypeGetHeaders     = "get_headers"
	TypeHeaders        = "headers"
	TypeGetData        = "get_data"
	TypeBlockData      = "block_data"
	TypeInventory      = "inventory"
	TypeGetMempool     = "get_mempool"
)

// Message is the envelope every frame carries: a type tag and the type
// specific payload.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Handshake is the first message each side sends after the TCP
// connection opens. No other message is accepted before it.
type Handshake struct {
	Version uint32 `json:"version"`
	Height  uint64 `json:"height"`
}

// Ping asks the peer to prove liveness by echoing the nonce.
type Ping struct {
	Nonce uint64 `json:"nonce"`
}

// Pong answers a ping with the same nonce.
type Pong struct {
	Nonce uint64 `json:"nonce"`
}

// NewTransaction gossips a pending transaction.
type NewTransaction struct {
	Tx database.Tx `json:"tx"`
}

// NewBlock gossips a freshly mined block.
type NewBlock struct {
	Block database.Block `json:"block"`
}

// GetHeaders requests block headers starting at the specified height.
type GetHeaders struct {
	FromHeight uint64 `json:"from_height"`
}

// Headers answers GetHeaders with a run of consecutive headers.
type Headers struct {
	List []database.BlockHeader `json:"list"`
}

// GetData requests the full block for a header digest.
type GetData struct {
	Hash string `json:"hash"`
}

// BlockData answers GetData. Found is false when the hash is unknown.
type BlockData struct {
	Hash  string          `json:"hash"`
	Found bool            `json:"found"`
	Block *database.Block `json:"block,omitempty"`
}

// Inventory advertises a set of transaction ids held in the mempool.
type Inventory struct {
	IDs []string `json:"ids"`
}

// GetMempool asks the peer to advertise its pending transaction ids.
type GetMempool struct{}

// NewMessage wraps the payload in an envelope of the specified type.
func NewMessage(msgType string, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", msgType, err)
	}

	return Message{Type: msgType, Payload: data}, nil
}

// Decode unpacks the envelope's payload into the specified value.
func (m Message) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return &ProtocolError{Reason: fmt.Sprintf("malformed %s payload: %s", m.Type, err)}
	}

	return nil
}

// WriteMessage frames the message as a 4 byte big endian length prefix
// followed by the JSON encoding of the envelope.
func WriteMessage(w io.Writer, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	return WriteFrame(w, data)
}

// WriteFrame writes an already encoded envelope with the length
// prefix.
func WriteFrame(w io.Writer, data []byte) error {
	if len(data) > MaxMessageSize {
		return &ProtocolError{Reason: fmt.Sprintf("outbound message of %d bytes exceeds limit", len(data))}
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(data)))

	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("write frame prefix: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}

	return nil
}

// ReadMessage reads one length prefixed frame and decodes the
// envelope. Oversized or malformed frames are protocol violations.
func ReadMessage(r io.Reader) (Message, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return Message{}, err
	}

	size := binary.BigEndian.Uint32(prefix[:])
	if size > MaxMessageSize {
		return Message{}, &ProtocolError{Reason: fmt.Sprintf("inbound message of %d bytes exceeds limit", size)}
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return Message{}, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, &ProtocolError{Reason: fmt.Sprintf("malformed message envelope: %s", err)}
	}

	return msg, nil
}
