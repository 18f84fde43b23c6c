// Package signature provides the hashing and signing primitives for the
// ledger. Content digests are sha256 rendered as lowercase hex and
// signatures are secp256k1 over the digest of the signed payload.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of all zeros. It is the prev hash of
// the genesis block.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// Hash returns a unique string for the value.
func Hash(value any) string {
	data, err := json.Marshal(value)
	if err != nil {
		return ZeroHash
	}

	return HashBytes(data)
}

// HashBytes returns the hex encoded sha256 digest of the data.
func HashBytes(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Sign uses the specified private key to sign the payload bytes. The
// returned signature is hex encoded and carries the recovery id.
func Sign(payload []byte, privateKey *ecdsa.PrivateKey) (string, error) {
	digest := sha256.Sum256(payload)

	sig, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return "", err
	}

	return hex.EncodeToString(sig), nil
}

// Verify reports whether the signature over the payload was produced by
// the private key behind the hex encoded public key. Malformed keys or
// signatures never raise an error, they report false.
func Verify(pubKeyHex string, payload []byte, sigHex string) bool {
	pubKey, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return false
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != crypto.SignatureLength {
		return false
	}

	digest := sha256.Sum256(payload)

	// The recovery id is not part of the curve check.
	return crypto.VerifySignature(pubKey, digest[:], sig[:crypto.RecoveryIDOffset])
}

// RecoverPublicKey extracts the hex encoded public key that produced the
// signature over the payload.
func RecoverPublicKey(payload []byte, sigHex string) (string, error) {
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(payload)

	publicKey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return "", err
	}

	return PublicKeyString(*publicKey), nil
}

// PublicKeyString returns the hex encoding of the uncompressed public
// key. This is the account address format for signed transactions.
func PublicKeyString(pk ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.FromECDSAPub(&pk))
}
