package hyperliquid

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/sha3"
)

// Signer signs exchange actions with the account's secp256k1 key
type Signer struct {
	key *secp256k1.PrivateKey
}

// NewSigner parses a hex-encoded private key (with or without 0x prefix)
func NewSigner(hexKey string) (*Signer, error) {
	hexKey = strings.TrimPrefix(hexKey, "0x")
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("private key must be 32 bytes, got %d", len(raw))
	}
	return &Signer{key: secp256k1.PrivKeyFromBytes(raw)}, nil
}

// Address derives the EVM address for the signing key
func (s *Signer) Address() string {
	pub := s.key.PubKey().SerializeUncompressed()
	// Keccak of the 64-byte public key point, last 20 bytes
	h := keccak256(pub[1:])
	return "0x" + hex.EncodeToString(h[12:])
}

// signature is the wire form the exchange endpoint expects
type signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// SignAction hashes the serialized action together with the nonce and
// produces a recoverable signature.
func (s *Signer) SignAction(action interface{}, nonce int64) (signature, error) {
	actionBytes, err := json.Marshal(action)
	if err != nil {
		return signature{}, fmt.Errorf("failed to serialize action: %w", err)
	}

	payload := make([]byte, 0, len(actionBytes)+8)
	payload = append(payload, actionBytes...)
	for i := 7; i >= 0; i-- {
		payload = append(payload, byte(nonce>>(8*i)))
	}

	digest := keccak256(payload)
	sig := ecdsa.SignCompact(s.key, digest, false)

	// SignCompact returns [v, r(32), s(32)] with v in {27, 28}
	return signature{
		R: "0x" + hex.EncodeToString(sig[1:33]),
		S: "0x" + hex.EncodeToString(sig[33:65]),
		V: int(sig[0]),
	}, nil
}

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}
