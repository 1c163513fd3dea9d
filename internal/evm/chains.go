// Package evm talks to EVM chains over plain JSON-RPC: endpoint pools
// with circuit breakers, EIP-1559 fee estimation, transaction signing
// and a gas budget tracker shared by the farming components.
package evm

import "fmt"

// Chain describes one supported network
type Chain struct {
	Key          string   `json:"key"`
	ChainID      uint64   `json:"chain_id"`
	Name         string   `json:"name"`
	RPCs         []string `json:"rpcs"`
	AvgGasUSD    float64  `json:"avg_gas_usd"`
	EIP1559      bool     `json:"eip1559"`
	Mainnet      bool     `json:"mainnet"`
	NativeSymbol string   `json:"native_symbol"`
}

// Chains is the supported network registry, keyed by chain key.
// Gas figures are flat per-action estimates used for budget accounting.
var Chains = map[string]Chain{
	"base": {
		Key:     "base",
		ChainID: 8453,
		Name:    "Base",
		RPCs: []string{
			"https://mainnet.base.org",
			"https://base.llamarpc.com",
			"https://base-rpc.publicnode.com",
		},
		AvgGasUSD:    0.15,
		EIP1559:      true,
		Mainnet:      true,
		NativeSymbol: "ETH",
	},
	"arbitrum": {
		Key:     "arbitrum",
		ChainID: 42161,
		Name:    "Arbitrum One",
		RPCs: []string{
			"https://arb1.arbitrum.io/rpc",
			"https://arbitrum-one-rpc.publicnode.com",
		},
		AvgGasUSD:    0.25,
		EIP1559:      true,
		Mainnet:      true,
		NativeSymbol: "ETH",
	},
	"optimism": {
		Key:     "optimism",
		ChainID: 10,
		Name:    "OP Mainnet",
		RPCs: []string{
			"https://mainnet.optimism.io",
			"https://optimism-rpc.publicnode.com",
		},
		AvgGasUSD:    0.15,
		EIP1559:      true,
		Mainnet:      true,
		NativeSymbol: "ETH",
	},
	"monad_testnet": {
		Key:     "monad_testnet",
		ChainID: 10143,
		Name:    "Monad Testnet",
		RPCs: []string{
			"https://testnet-rpc.monad.xyz",
		},
		AvgGasUSD:    0,
		EIP1559:      true,
		Mainnet:      false,
		NativeSymbol: "MON",
	},
	"berachain_testnet": {
		Key:     "berachain_testnet",
		ChainID: 80084,
		Name:    "Berachain bArtio",
		RPCs: []string{
			"https://bartio.rpc.berachain.com",
		},
		AvgGasUSD:    0,
		EIP1559:      true,
		Mainnet:      false,
		NativeSymbol: "BERA",
	},
	"linea_sepolia": {
		Key:     "linea_sepolia",
		ChainID: 59141,
		Name:    "Linea Sepolia",
		RPCs: []string{
			"https://rpc.sepolia.linea.build",
		},
		AvgGasUSD:    0,
		EIP1559:      true,
		Mainnet:      false,
		NativeSymbol: "ETH",
	},
}

// ChainByKey looks up a chain by its registry key
func ChainByKey(key string) (Chain, error) {
	c, ok := Chains[key]
	if !ok {
		return Chain{}, fmt.Errorf("unknown chain %q", key)
	}
	return c, nil
}

// MainnetKeys returns the mainnet chain keys in a stable order
func MainnetKeys() []string {
	return []string{"base", "arbitrum", "optimism"}
}

// TestnetKeys returns the testnet chain keys in a stable order
func TestnetKeys() []string {
	return []string{"monad_testnet", "berachain_testnet", "linea_sepolia"}
}
