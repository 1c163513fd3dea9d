package evm

import (
	"fmt"
	"math/big"
)

// TxRequest is an unsigned transaction from the caller's point of view.
// Zero GasLimit means estimate; nil fee fields mean fetch from the node.
type TxRequest struct {
	To       string
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// SignedTx is a serialized transaction ready for eth_sendRawTransaction
type SignedTx struct {
	Raw  []byte
	Hash string
}

// signDynamicFeeTx builds and signs an EIP-1559 (type 2) transaction
func signDynamicFeeTx(key *Key, chainID, nonce uint64, tip, feeCap *big.Int, gasLimit uint64, to string, value *big.Int, data []byte) (*SignedTx, error) {
	toBytes, err := ParseAddress(to)
	if err != nil {
		return nil, err
	}

	fields := [][]byte{
		rlpUint(chainID),
		rlpUint(nonce),
		rlpBig(tip),
		rlpBig(feeCap),
		rlpUint(gasLimit),
		rlpBytes(toBytes),
		rlpBig(value),
		rlpBytes(data),
		rlpList(), // empty access list
	}

	sigHash := Keccak256([]byte{0x02}, rlpList(fields...))
	r, s, recid, err := key.SignHash(sigHash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	signed := append(fields,
		rlpUint(uint64(recid)),
		rlpBytes(trimLeadingZeros(r[:])),
		rlpBytes(trimLeadingZeros(s[:])),
	)
	raw := append([]byte{0x02}, rlpList(signed...)...)

	return &SignedTx{
		Raw:  raw,
		Hash: encodeBytes(Keccak256(raw)),
	}, nil
}

// signLegacyTx builds and signs a pre-1559 transaction with EIP-155
// replay protection.
func signLegacyTx(key *Key, chainID, nonce uint64, gasPrice *big.Int, gasLimit uint64, to string, value *big.Int, data []byte) (*SignedTx, error) {
	toBytes, err := ParseAddress(to)
	if err != nil {
		return nil, err
	}

	base := [][]byte{
		rlpUint(nonce),
		rlpBig(gasPrice),
		rlpUint(gasLimit),
		rlpBytes(toBytes),
		rlpBig(value),
		rlpBytes(data),
	}

	unsigned := append(append([][]byte{}, base...),
		rlpUint(chainID),
		rlpUint(0),
		rlpUint(0),
	)
	sigHash := Keccak256(rlpList(unsigned...))

	r, s, recid, err := key.SignHash(sigHash)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	v := uint64(recid) + 35 + 2*chainID
	signed := append(base,
		rlpUint(v),
		rlpBytes(trimLeadingZeros(r[:])),
		rlpBytes(trimLeadingZeros(s[:])),
	)
	raw := rlpList(signed...)

	return &SignedTx{
		Raw:  raw,
		Hash: encodeBytes(Keccak256(raw)),
	}, nil
}

func trimLeadingZeros(b []byte) []byte {
	i := 0
	for i < len(b) && b[i] == 0 {
		i++
	}
	return b[i:]
}
