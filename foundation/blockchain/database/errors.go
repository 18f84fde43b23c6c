package database

import "fmt"

// StructuralError indicates a transaction is malformed before any state
// or signature concerns apply.
type StructuralError struct {
	Reason string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return fmt.Sprintf("malformed transaction, %s", e.Reason)
}

// SignatureError indicates signature verification failed or the from
// account does not match the signing public key.
type SignatureError struct {
	FromID AccountID
}

// Error implements the error interface.
func (e *SignatureError) Error() string {
	return fmt.Sprintf("invalid signature for account %s", e.FromID)
}

// NonceError indicates a transaction nonce is not the exact next value
// expected for the sender. Gaps, reuse and reordering all land here.
type NonceError struct {
	FromID   AccountID
	Expected uint64
	Got      uint64
}

// Error implements the error interface.
func (e *NonceError) Error() string {
	return fmt.Sprintf("invalid nonce for account %s, expected %d, got %d", e.FromID, e.Expected, e.Got)
}

// BalanceError indicates the sender cannot cover amount plus fee.
type BalanceError struct {
	FromID  AccountID
	Balance uint64
	Needed  uint64
}

// Error implements the error interface.
func (e *BalanceError) Error() string {
	return fmt.Sprintf("insufficient funds for account %s, balance %d, needed %d", e.FromID, e.Balance, e.Needed)
}

// ConsensusError indicates a block violates the coinbase or block level
// consensus rules.
type ConsensusError struct {
	Reason string
}

// Error implements the error interface.
func (e *ConsensusError) Error() string {
	return fmt.Sprintf("consensus violation, %s", e.Reason)
}
