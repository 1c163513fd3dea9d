package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const receiptPoll = 3 * time.Second

// TxResult is the outcome of one broadcast transaction
type TxResult struct {
	Hash    string
	Nonce   uint64
	CostUSD float64
}

// Manager hands out chain clients and sends signed transactions under
// the budget guard.
type Manager struct {
	mu      sync.Mutex
	clients map[string]*Client
	budget  *BudgetTracker
	logger  zerolog.Logger
}

// NewManager creates a manager over the chain registry
func NewManager(budget *BudgetTracker, logger zerolog.Logger) *Manager {
	return &Manager{
		clients: make(map[string]*Client),
		budget:  budget,
		logger:  logger,
	}
}

// Budget exposes the tracker for reporting
func (m *Manager) Budget() *BudgetTracker {
	return m.budget
}

// RegisterChain installs a client for a chain definition that differs
// from the built-in registry, e.g. custom RPC endpoints from config.
func (m *Manager) RegisterChain(chain Chain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[chain.Key] = NewClient(chain, m.logger.With().Str("chain", chain.Key).Logger())
}

// Client returns a cached client for the chain key
func (m *Manager) Client(chainKey string) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[chainKey]; ok {
		return c, nil
	}
	chain, err := ChainByKey(chainKey)
	if err != nil {
		return nil, err
	}
	c := NewClient(chain, m.logger.With().Str("chain", chainKey).Logger())
	m.clients[chainKey] = c
	return c, nil
}

// SendTransaction fills in nonce, gas and fees, signs and broadcasts.
// Mainnet sends are refused once the budget is exhausted; the chain's
// flat average cost is booked against the budget on success.
func (m *Manager) SendTransaction(ctx context.Context, chainKey string, key *Key, req TxRequest) (*TxResult, error) {
	client, err := m.Client(chainKey)
	if err != nil {
		return nil, err
	}
	chain := client.Chain()

	if !m.budget.CanAfford(chain) {
		return nil, fmt.Errorf("gas budget exhausted for %s (spendable $%.2f)", chainKey, m.budget.Spendable())
	}

	nonce, err := client.Nonce(ctx, key.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		gasLimit, err = client.EstimateGas(ctx, key.Address(), req.To, req.Value, req.Data)
		if err != nil {
			return nil, fmt.Errorf("gas estimation failed: %w", err)
		}
		// headroom for state drift between estimate and inclusion
		gasLimit = gasLimit * 12 / 10
	}

	fees, err := client.SuggestFees(ctx)
	if err != nil {
		return nil, fmt.Errorf("fee quote failed: %w", err)
	}

	var signed *SignedTx
	if fees.GasPrice != nil {
		signed, err = signLegacyTx(key, chain.ChainID, nonce, fees.GasPrice, gasLimit, req.To, req.Value, req.Data)
	} else {
		signed, err = signDynamicFeeTx(key, chain.ChainID, nonce, fees.Tip, fees.FeeCap, gasLimit, req.To, req.Value, req.Data)
	}
	if err != nil {
		return nil, err
	}

	hash, err := client.SendRawTransaction(ctx, signed.Raw)
	if err != nil {
		return nil, err
	}

	m.budget.Record(chainKey, chain.AvgGasUSD)

	m.logger.Info().
		Str("chain", chainKey).
		Str("tx_hash", hash).
		Uint64("nonce", nonce).
		Uint64("gas_limit", gasLimit).
		Msg("Transaction broadcast")

	return &TxResult{Hash: hash, Nonce: nonce, CostUSD: chain.AvgGasUSD}, nil
}

// WaitMined polls for the transaction receipt until mined or the context
// expires. Returns an error for reverted transactions.
func (m *Manager) WaitMined(ctx context.Context, chainKey, txHash string) error {
	client, err := m.Client(chainKey)
	if err != nil {
		return err
	}

	for {
		status, mined, err := client.Receipt(ctx, txHash)
		if err == nil && mined {
			if status != 1 {
				return fmt.Errorf("transaction %s reverted", txHash)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(receiptPoll):
		}
	}
}

// weiPerETH converts between wei and ether for display and sizing
var weiPerETH = new(big.Float).SetFloat64(1e18)

// EthToWei converts an ether amount to wei
func EthToWei(eth float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(eth), weiPerETH)
	wei, _ := f.Int(nil)
	return wei
}

// WeiToEth converts wei to a float ether amount
func WeiToEth(wei *big.Int) float64 {
	if wei == nil {
		return 0
	}
	f := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerETH)
	v, _ := f.Float64()
	return v
}
