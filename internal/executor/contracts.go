package executor

// Per-chain contract addresses for the mainnet farming actions.
type contracts struct {
	SwapRouter      string            // Uniswap V3
	AerodromeRouter string            // empty where Aerodrome is not deployed
	WETH            string
	Tokens          map[string]string // swap rotation candidates
}

var contractsByChain = map[string]contracts{
	"base": {
		SwapRouter:      "0x2626664c2603336e57b271c5c0b26f421741e481",
		AerodromeRouter: "0xcf77a3ba9a5ca399b7c97c74d54e5b1beb874e43",
		WETH:            "0x4200000000000000000000000000000000000006",
		Tokens: map[string]string{
			"USDC": "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913",
			"DAI":  "0x50c5725949a6f0c72e6c4a641f24049a917db0cb",
		},
	},
	"arbitrum": {
		SwapRouter: "0xe592427a0aece92de3edee1f18e0157c05861564",
		WETH:       "0x82af49447d8a07e3bd95bd0d56f35241523fbab1",
		Tokens: map[string]string{
			"USDC": "0xaf88d065e77c8cc2239327c5edb3a432268e5831",
			"DAI":  "0xda10009cbd5d07dd0cecc66161fc93d7c9000da1",
		},
	},
	"optimism": {
		SwapRouter: "0xe592427a0aece92de3edee1f18e0157c05861564",
		WETH:       "0x4200000000000000000000000000000000000006",
		Tokens: map[string]string{
			"USDC": "0x0b2c639c533813f4aa9d7837caf62653d097ff85",
			"DAI":  "0xda10009cbd5d07dd0cecc66161fc93d7c9000da1",
		},
	},
}

const (
	uniswapPoolFee  = 3000
	swapDeadlineSec = 300
	selfTransferGas = 21000
)
