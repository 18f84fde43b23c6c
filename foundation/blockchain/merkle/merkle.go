// Package merkle computes the transaction accumulator root stored in a
// block header. The root is order sensitive: it digests the transaction
// ids in the exact order they appear in the block, so reordering the
// same set of transactions produces a different root.
package merkle

import (
	"bytes"

	"github.com/minichain/minichain/foundation/blockchain/signature"
)

// Root combines the ordered transaction ids into a single digest. An
// empty list produces EmptyRoot.
func Root(txIDs []string) string {
	if len(txIDs) == 0 {
		return EmptyRoot()
	}

	var buf bytes.Buffer
	for _, id := range txIDs {
		buf.WriteString(id)
	}

	return signature.HashBytes(buf.Bytes())
}

// EmptyRoot returns the accumulator root for a block with no
// transactions, the digest of zero bytes.
func EmptyRoot() string {
	return signature.HashBytes(nil)
}
