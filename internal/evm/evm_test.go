package evm

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRLPVectors(t *testing.T) {
	tests := []struct {
		name string
		got  []byte
		want string
	}{
		{"empty string", rlpBytes(nil), "80"},
		{"single low byte", rlpBytes([]byte{0x0f}), "0f"},
		{"dog", rlpBytes([]byte("dog")), "83646f67"},
		{"uint 0", rlpUint(0), "80"},
		{"uint 15", rlpUint(15), "0f"},
		{"uint 1024", rlpUint(1024), "820400"},
		{"empty list", rlpList(), "c0"},
		{"cat dog list", rlpList(rlpBytes([]byte("cat")), rlpBytes([]byte("dog"))), "c88363617483646f67"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hex.EncodeToString(tt.got), tt.name)
	}
}

func TestRLPLongString(t *testing.T) {
	long := bytes.Repeat([]byte{0x61}, 56)
	enc := rlpBytes(long)
	assert.Equal(t, byte(0xb8), enc[0])
	assert.Equal(t, byte(56), enc[1])
	assert.Equal(t, long, enc[2:])
}

// Address derived from the EIP-155 example key
func TestKeyAddressDerivation(t *testing.T) {
	k, err := ParseKey("0x4646464646464646464646464646464646464646464646464646464646464646")
	require.NoError(t, err)
	assert.Equal(t, "0x9d8a62f656a8d1615c1294fd71e9cfb3e4855a4f", k.Address())
}

func TestParseKeyRejectsBadInput(t *testing.T) {
	_, err := ParseKey("zz")
	assert.Error(t, err)
	_, err = ParseKey("0x1234")
	assert.Error(t, err)
	_, err = ParseKey("0x" + strings.Repeat("00", 32))
	assert.Error(t, err)
}

func TestGenerateKeyRoundTrip(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	k2, err := ParseKey(k.Hex())
	require.NoError(t, err)
	assert.Equal(t, k.Address(), k2.Address())
}

func TestSignDynamicFeeTxShape(t *testing.T) {
	k, err := ParseKey("4646464646464646464646464646464646464646464646464646464646464646")
	require.NoError(t, err)

	signed, err := signDynamicFeeTx(k, 8453, 7,
		big.NewInt(1_000_000_000), big.NewInt(3_000_000_000),
		21000, "0x9d8a62f656a8d1615c1294fd71e9cfb3e4855a4f",
		EthToWei(0.00005), nil)
	require.NoError(t, err)

	assert.Equal(t, byte(0x02), signed.Raw[0], "typed transaction envelope")
	assert.True(t, strings.HasPrefix(signed.Hash, "0x"))
	assert.Len(t, signed.Hash, 66)

	// Deterministic signing: same inputs, same serialization
	again, err := signDynamicFeeTx(k, 8453, 7,
		big.NewInt(1_000_000_000), big.NewInt(3_000_000_000),
		21000, "0x9d8a62f656a8d1615c1294fd71e9cfb3e4855a4f",
		EthToWei(0.00005), nil)
	require.NoError(t, err)
	assert.Equal(t, signed.Hash, again.Hash)
}

func TestSignLegacyTxUsesEIP155V(t *testing.T) {
	k, err := ParseKey("4646464646464646464646464646464646464646464646464646464646464646")
	require.NoError(t, err)

	signed, err := signLegacyTx(k, 1, 9, big.NewInt(20_000_000_000), 21000,
		"0x3535353535353535353535353535353535353535", EthToWei(1), nil)
	require.NoError(t, err)
	assert.NotEqual(t, byte(0x02), signed.Raw[0])
	assert.True(t, signed.Raw[0] >= 0xc0, "legacy tx is a bare RLP list")
}

func TestABIPacking(t *testing.T) {
	assert.Equal(t, "a9059cbb", hex.EncodeToString(Selector("transfer(address,uint256)")))
	assert.Equal(t, "70a08231", hex.EncodeToString(Selector("balanceOf(address)")))

	addrWord, err := AddressWord("0x9d8a62f656a8d1615c1294fd71e9cfb3e4855a4f")
	require.NoError(t, err)
	packed := Pack("balanceOf(address)", addrWord)
	assert.Len(t, packed, 36)
	assert.Equal(t, "70a08231", hex.EncodeToString(packed[:4]))
	assert.Equal(t, "0000000000000000000000009d8a62f656a8d1615c1294fd71e9cfb3e4855a4f",
		hex.EncodeToString(packed[4:]))

	assert.Equal(t, byte(1), BoolWord(true)[31])
	assert.Equal(t, big.NewInt(300), mustDecode(t, BigWord(big.NewInt(300))))
}

func mustDecode(t *testing.T, word []byte) *big.Int {
	t.Helper()
	v, err := DecodeWordBig(word)
	require.NoError(t, err)
	return v
}

func TestBudgetTracker(t *testing.T) {
	b := NewBudgetTracker(2.00, 0.25)
	assert.InDelta(t, 1.50, b.Spendable(), 1e-9)

	base := Chains["base"]
	assert.True(t, b.CanAfford(base))

	b.Record("base", 1.40)
	assert.InDelta(t, 0.10, b.Spendable(), 1e-9)
	assert.False(t, b.CanAfford(base), "average cost 0.15 no longer fits")
	assert.True(t, b.CanAfford(Chains["monad_testnet"]), "testnets ignore the budget")

	b.Record("base", 0.50)
	assert.Zero(t, b.Spendable(), "spendable floors at zero")
	assert.InDelta(t, 1.90, b.TotalSpent, 1e-9)
	assert.InDelta(t, 1.90, b.SpentByChain["base"], 1e-9)
}

func TestBudgetTrackerSurvivesJSONRoundTrip(t *testing.T) {
	b := NewBudgetTracker(2.00, 0.25)
	b.Record("arbitrum", 0.25)

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var restored BudgetTracker
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.InDelta(t, 1.25, restored.Spendable(), 1e-9)
	assert.InDelta(t, 0.25, restored.SpentByChain["arbitrum"], 1e-9)
}

func TestHexQuantities(t *testing.T) {
	assert.Equal(t, "0x0", encodeBig(big.NewInt(0)))
	assert.Equal(t, "0x4d2", encodeBig(big.NewInt(1234)))
	assert.Equal(t, "0x15", encodeUint64(21))

	v, err := decodeUint64("0x15")
	require.NoError(t, err)
	assert.Equal(t, uint64(21), v)

	_, err = decodeBig("0xzz")
	assert.Error(t, err)
}

// rpcHandler answers a minimal set of methods and records calls
type rpcHandler struct {
	calls    []string
	balances map[string]string
}

func (h *rpcHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	json.NewDecoder(r.Body).Decode(&req)
	h.calls = append(h.calls, req.Method)

	var result interface{}
	switch req.Method {
	case "eth_chainId":
		result = "0x2105"
	case "eth_getTransactionCount":
		result = "0x7"
	case "eth_getBalance":
		result = h.balances[req.Params[0].(string)]
	case "eth_getBlockByNumber":
		result = map[string]string{"baseFeePerGas": "0x3b9aca00"} // 1 gwei
	case "eth_maxPriorityFeePerGas":
		result = "0x3b9aca00"
	case "eth_estimateGas":
		result = "0x5208"
	case "eth_sendRawTransaction":
		result = "0x" + strings.Repeat("ab", 32)
	default:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0", "id": 1,
			"error": map[string]interface{}{"code": -32601, "message": "method not found"},
		})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": 1, "result": result})
}

func testChain(url ...string) Chain {
	return Chain{
		Key: "base", ChainID: 8453, RPCs: url,
		AvgGasUSD: 0.15, EIP1559: true, Mainnet: true,
	}
}

func TestClientFailover(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer dead.Close()

	h := &rpcHandler{}
	live := httptest.NewServer(h)
	defer live.Close()

	c := NewClient(testChain(dead.URL, live.URL), zerolog.Nop())
	id, err := c.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(8453), id)
}

func TestClientReturnsNodeErrors(t *testing.T) {
	h := &rpcHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewClient(testChain(srv.URL), zerolog.Nop())
	err := c.Call(context.Background(), nil, "eth_unknownMethod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "method not found")
}

func TestSuggestFees1559(t *testing.T) {
	h := &rpcHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewClient(testChain(srv.URL), zerolog.Nop())
	fees, err := c.SuggestFees(context.Background())
	require.NoError(t, err)
	require.Nil(t, fees.GasPrice)
	assert.Equal(t, int64(1_000_000_000), fees.Tip.Int64())
	// 2 * base + tip
	assert.Equal(t, int64(3_000_000_000), fees.FeeCap.Int64())
}

func TestManagerSendTransaction(t *testing.T) {
	h := &rpcHandler{}
	srv := httptest.NewServer(h)
	defer srv.Close()

	chain := testChain(srv.URL)
	budget := NewBudgetTracker(2.00, 0.25)
	m := NewManager(budget, zerolog.Nop())
	m.RegisterChain(chain)

	key, err := GenerateKey()
	require.NoError(t, err)

	res, err := m.SendTransaction(context.Background(), "base", key, TxRequest{
		To:       key.Address(),
		Value:    EthToWei(0.00005),
		GasLimit: 21000,
	})
	require.NoError(t, err)
	assert.Len(t, res.Hash, 66)
	assert.Equal(t, uint64(7), res.Nonce)
	assert.InDelta(t, 0.15, res.CostUSD, 1e-9)
	assert.InDelta(t, 0.15, budget.TotalSpent, 1e-9)
	assert.Contains(t, h.calls, "eth_sendRawTransaction")
	assert.NotContains(t, h.calls, "eth_estimateGas", "explicit gas limit skips estimation")
}

func TestManagerRefusesWhenBudgetExhausted(t *testing.T) {
	budget := NewBudgetTracker(2.00, 0.25)
	budget.Record("base", 1.50)

	m := NewManager(budget, zerolog.Nop())
	key, err := GenerateKey()
	require.NoError(t, err)

	_, err = m.SendTransaction(context.Background(), "base", key, TxRequest{To: key.Address()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "budget exhausted")
}

func TestEthWeiConversions(t *testing.T) {
	wei := EthToWei(0.00005)
	assert.Equal(t, "50000000000000", wei.String())
	assert.InDelta(t, 0.00005, WeiToEth(wei), 1e-12)
	assert.Zero(t, WeiToEth(nil))
}
