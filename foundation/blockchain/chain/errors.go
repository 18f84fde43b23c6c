package chain

import "fmt"

// LinkageError indicates a block's prev hash does not match the digest
// of the current tip header.
type LinkageError struct {
	Got      string
	Expected string
}

// Error implements the error interface.
func (e *LinkageError) Error() string {
	return fmt.Sprintf("prev hash does not match tip, got %s, expected %s", e.Got, e.Expected)
}

// MerkleError indicates the merkle root stored in a block header does
// not match the root recomputed over its transactions.
type MerkleError struct {
	Got      string
	Expected string
}

// Error implements the error interface.
func (e *MerkleError) Error() string {
	return fmt.Sprintf("merkle root does not match transactions, got %s, expected %s", e.Got, e.Expected)
}

// ProofOfWorkError indicates a block header digest does not carry the
// required leading hex zero characters.
type ProofOfWorkError struct {
	Hash       string
	Difficulty uint
}

// Error implements the error interface.
func (e *ProofOfWorkError) Error() string {
	return fmt.Sprintf("hash %s does not satisfy difficulty %d", e.Hash, e.Difficulty)
}
