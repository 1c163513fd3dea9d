package evm

import "math/big"

// Minimal RLP encoder covering what transaction serialization needs:
// byte strings and lists of already-encoded items.

func rlpBytes(b []byte) []byte {
	if len(b) == 1 && b[0] < 0x80 {
		return b
	}
	return append(rlpLength(len(b), 0x80), b...)
}

// rlpList wraps the concatenation of already-encoded items
func rlpList(encodedItems ...[]byte) []byte {
	var payload []byte
	for _, item := range encodedItems {
		payload = append(payload, item...)
	}
	return append(rlpLength(len(payload), 0xc0), payload...)
}

func rlpLength(n int, offset byte) []byte {
	if n < 56 {
		return []byte{offset + byte(n)}
	}
	lenBytes := intToBytes(uint64(n))
	out := []byte{offset + 55 + byte(len(lenBytes))}
	return append(out, lenBytes...)
}

func rlpUint(v uint64) []byte {
	return rlpBytes(intToBytes(v))
}

// rlpBig encodes a big integer; zero and nil encode as the empty string
func rlpBig(v *big.Int) []byte {
	if v == nil || v.Sign() == 0 {
		return rlpBytes(nil)
	}
	return rlpBytes(v.Bytes())
}

// intToBytes is the minimal big-endian representation; zero is empty
func intToBytes(v uint64) []byte {
	if v == 0 {
		return nil
	}
	var out []byte
	for v > 0 {
		out = append([]byte{byte(v & 0xff)}, out...)
		v >>= 8
	}
	return out
}
