package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/offsetnet/creditrouter/internal/sig"
)

// loadOrCreateIdentity reads a hex-encoded secp256k1 private key from path,
// generating and persisting a fresh one on first run. sig.LocalSigner is
// documented as existing "for tests and ... single-process demo wiring";
// this is that demo wiring's one caller.
func loadOrCreateIdentity(path string) (*sig.LocalSigner, error) {
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		keyBytes, err := hex.DecodeString(string(raw))
		if err != nil {
			return nil, fmt.Errorf("parsing identity key at %s: %w", path, err)
		}
		priv, _ := btcec.PrivKeyFromBytes(keyBytes)
		return &sig.LocalSigner{Priv: priv}, nil

	case os.IsNotExist(err):
		priv, err := btcec.NewPrivateKey()
		if err != nil {
			return nil, fmt.Errorf("generating identity key: %w", err)
		}
		encoded := hex.EncodeToString(priv.Serialize())
		if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
			return nil, fmt.Errorf("persisting identity key to %s: %w", path, err)
		}
		return &sig.LocalSigner{Priv: priv}, nil

	default:
		return nil, fmt.Errorf("reading identity key at %s: %w", path, err)
	}
}
