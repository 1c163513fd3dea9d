package evm

import (
	"fmt"
	"math/big"
)

// Minimal ABI packing for the fixed-shape calls the executor makes:
// 4-byte selector followed by 32-byte words.

// Selector returns the first four bytes of keccak256 of the signature
func Selector(signature string) []byte {
	return Keccak256([]byte(signature))[:4]
}

// Pack concatenates a selector with 32-byte argument words
func Pack(signature string, words ...[]byte) []byte {
	out := Selector(signature)
	for _, w := range words {
		out = append(out, w...)
	}
	return out
}

// BigWord encodes an unsigned integer as a 32-byte word
func BigWord(v *big.Int) []byte {
	var word [32]byte
	if v != nil {
		v.FillBytes(word[:])
	}
	return word[:]
}

// Uint64Word encodes a uint64 as a 32-byte word
func Uint64Word(v uint64) []byte {
	return BigWord(new(big.Int).SetUint64(v))
}

// BoolWord encodes a bool as a 32-byte word
func BoolWord(v bool) []byte {
	var word [32]byte
	if v {
		word[31] = 1
	}
	return word[:]
}

// AddressWord encodes a 0x address as a left-padded 32-byte word
func AddressWord(address string) ([]byte, error) {
	raw, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	var word [32]byte
	copy(word[12:], raw)
	return word[:], nil
}

// DecodeWordBig reads a 32-byte return word as an unsigned integer
func DecodeWordBig(data []byte) (*big.Int, error) {
	if len(data) < 32 {
		return nil, fmt.Errorf("return data too short: %d bytes", len(data))
	}
	return new(big.Int).SetBytes(data[:32]), nil
}
