package evm

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Key is a secp256k1 signing key with its derived EVM address
type Key struct {
	priv    *secp256k1.PrivateKey
	address string
}

// ParseKey loads a hex private key (0x prefix optional)
func ParseKey(hexKey string) (*Key, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	keyBytes, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(keyBytes))
	}

	priv := secp256k1.PrivKeyFromBytes(keyBytes)
	if priv.Key.IsZero() {
		return nil, fmt.Errorf("private key is zero")
	}

	pub := priv.PubKey().SerializeUncompressed()
	digest := Keccak256(pub[1:])
	return &Key{
		priv:    priv,
		address: "0x" + hex.EncodeToString(digest[12:]),
	}, nil
}

// GenerateKey creates a fresh random key
func GenerateKey() (*Key, error) {
	priv, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	pub := priv.PubKey().SerializeUncompressed()
	digest := Keccak256(pub[1:])
	return &Key{
		priv:    priv,
		address: "0x" + hex.EncodeToString(digest[12:]),
	}, nil
}

// Address returns the lowercase 0x address
func (k *Key) Address() string {
	return k.address
}

// Hex returns the private key as unprefixed hex
func (k *Key) Hex() string {
	return hex.EncodeToString(k.priv.Serialize())
}

// SignHash produces a recoverable signature as (r, s, recid)
func (k *Key) SignHash(hash []byte) (r, s [32]byte, recid byte, err error) {
	if len(hash) != 32 {
		return r, s, 0, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	// SignCompact yields [v, r, s] with v = 27 + recovery id
	sig := secpecdsa.SignCompact(k.priv, hash, false)
	if len(sig) != 65 {
		return r, s, 0, fmt.Errorf("unexpected signature length %d", len(sig))
	}
	copy(r[:], sig[1:33])
	copy(s[:], sig[33:65])
	return r, s, sig[0] - 27, nil
}

// Keccak256 hashes data with legacy Keccak-256
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}
