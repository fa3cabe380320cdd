// Package sig provides the fixed-size identity types and canonical
// signing buffers shared by every two-party protocol in this module:
// public keys, signatures, hashes, random nonces, and request/payment
// uids, plus the hash-then-sign contracts of the move-token, reset-term,
// response, and index-mutation protocols.
package sig

import "encoding/hex"

// PublicKey is a compressed secp256k1 public key, used to identify a
// friend or an intermediate/destination hop on a route.
type PublicKey [33]byte

// String returns the hex encoding of the key, for logging.
func (p PublicKey) String() string {
	return hex.EncodeToString(p[:])
}

// Signature is a 65-byte recoverable compact ECDSA signature: one header
// byte followed by R || S, the format produced by btcec's SignCompact.
type Signature [65]byte

func (s Signature) String() string {
	return hex.EncodeToString(s[:])
}

// Hash is a SHA-512/256 digest.
type Hash [32]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is the zero hash, used as the initial
// old_token of a fresh token channel before any move-token was sent.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// RandNonce is a 16-byte nonce mixed into signed messages to prevent
// replay across unrelated signing contexts.
type RandNonce [16]byte

// Uid identifies a request, payment, invoice, or session.
type Uid [16]byte

func (u Uid) String() string {
	return hex.EncodeToString(u[:])
}
