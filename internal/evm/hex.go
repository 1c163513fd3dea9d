package evm

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Hex quantity helpers for JSON-RPC: quantities are 0x-prefixed with no
// leading zeros, data is 0x-prefixed even-length hex.

func encodeUint64(v uint64) string {
	return fmt.Sprintf("0x%x", v)
}

func encodeBig(v *big.Int) string {
	if v == nil || v.Sign() == 0 {
		return "0x0"
	}
	return "0x" + v.Text(16)
}

func encodeBytes(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

func decodeUint64(s string) (uint64, error) {
	v, err := decodeBig(s)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("quantity %s overflows uint64", s)
	}
	return v.Uint64(), nil
}

func decodeBig(s string) (*big.Int, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	return v, nil
}

func decodeData(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// ParseAddress validates and normalizes a 0x address to lowercase
func ParseAddress(s string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.ToLower(s), "0x")
	if len(raw) != 40 {
		return nil, fmt.Errorf("invalid address %q", s)
	}
	return hex.DecodeString(raw)
}
