package sig

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	goerrors "github.com/go-errors/errors"
)

// Signer produces a recoverable compact signature over a 32-byte digest.
// Identity/signing key custody lives outside this module (spec §1); callers
// supply a Signer backed by whatever key store they use, mirroring the
// MessageSigner callback zpay32 uses to keep the private key out of the
// invoice-encoding package.
type Signer interface {
	SignCompact(hash Hash) (Signature, error)
}

// Sign is a convenience that hashes the given parts with H and signs the
// digest, returning both for callers that need to stash the hash alongside
// the signature (e.g. MoveToken.InfoHash).
func Sign(signer Signer, parts ...[]byte) (Hash, Signature, error) {
	digest := H(parts...)
	s, err := signer.SignCompact(digest)
	if err != nil {
		return Hash{}, Signature{}, err
	}
	return digest, s, nil
}

// Verify checks that sig is a valid recoverable compact signature over
// digest made by the private key behind pub.
func Verify(pub PublicKey, digest Hash, s Signature) bool {
	recoveredPub, _, err := ecdsa.RecoverCompact(s[:], digest[:])
	if err != nil {
		return false
	}
	return pub == CompressPubKey(recoveredPub)
}

// CompressPubKey renders a parsed secp256k1 public key into our fixed-size
// compressed form.
func CompressPubKey(pub *btcec.PublicKey) PublicKey {
	var out PublicKey
	copy(out[:], pub.SerializeCompressed())
	return out
}

// ParsePublicKey parses a compressed secp256k1 public key out of its
// 33-byte wire form, rejecting malformed curve points.
func ParsePublicKey(raw []byte) (PublicKey, error) {
	if len(raw) != 33 {
		return PublicKey{}, goerrors.Errorf("public key must be 33 bytes, got %d", len(raw))
	}
	if _, err := btcec.ParsePubKey(raw); err != nil {
		return PublicKey{}, goerrors.Errorf("invalid public key: %v", err)
	}
	var out PublicKey
	copy(out[:], raw)
	return out, nil
}

// LocalSigner is a Signer backed by an in-memory private key. It exists for
// tests and for single-process demo wiring; production deployments should
// supply a Signer backed by an external key-custody service instead.
type LocalSigner struct {
	Priv *btcec.PrivateKey
}

// SignCompact implements Signer.
func (l *LocalSigner) SignCompact(hash Hash) (Signature, error) {
	raw := ecdsa.SignCompact(l.Priv, hash[:], true)
	var out Signature
	if len(raw) != len(out) {
		return Signature{}, goerrors.Errorf("unexpected signature length %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// PublicKey returns the compressed public key paired with this signer.
func (l *LocalSigner) PublicKey() PublicKey {
	return CompressPubKey(l.Priv.PubKey())
}
