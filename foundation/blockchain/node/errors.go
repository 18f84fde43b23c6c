package node

// ProtocolError represents a wire level violation: an oversized frame,
// a malformed envelope or a bad handshake. The connection carrying the
// violation is dropped.
type ProtocolError struct {
	Reason string
}

// Error implements the error interface.
func (pe *ProtocolError) Error() string {
	return "protocol violation: " + pe.Reason
}
