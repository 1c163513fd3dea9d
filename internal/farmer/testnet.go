package farmer

import (
	"context"
	"math/big"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/wallet"
)

// Testnet activity costs nothing, so cycles are cheap volume on chains
// whose airdrops may reward early testnet users.

const (
	testnetMinTxPerCycle = 1
	testnetMaxTxPerCycle = 3

	// A wallet must hold at least this many times the transfer gas cost
	// before we spend from it.
	testnetBalanceHeadroom = 10
)

// TestnetAction kinds
const (
	testnetSelfTransfer = "self_transfer"
	testnetInterWallet  = "inter_wallet"
	testnetZeroValue    = "zero_value"
)

// TestnetFarmer cycles small transactions across funded testnets
type TestnetFarmer struct {
	mgr    *evm.Manager
	vault  *wallet.Vault
	rng    *rand.Rand
	sleep  func(time.Duration)
	logger zerolog.Logger
}

// NewTestnetFarmer creates a testnet farmer
func NewTestnetFarmer(mgr *evm.Manager, vault *wallet.Vault, logger zerolog.Logger) *TestnetFarmer {
	return &TestnetFarmer{
		mgr:    mgr,
		vault:  vault,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:  time.Sleep,
		logger: logger,
	}
}

// CycleResult summarizes one testnet pass
type CycleResult struct {
	TxnsByChain map[string]int
	TotalTxns   int
	Unfunded    []string
}

// ScanBalances returns the primary wallet's native balance per testnet
func (t *TestnetFarmer) ScanBalances(ctx context.Context) (map[string]*big.Int, error) {
	primary, ok := t.vault.Primary()
	if !ok {
		return nil, errNoPrimaryWallet
	}

	balances := make(map[string]*big.Int)
	for _, key := range evm.TestnetKeys() {
		client, err := t.mgr.Client(key)
		if err != nil {
			return nil, err
		}
		bal, err := client.Balance(ctx, primary.Address)
		if err != nil {
			t.logger.Warn().Str("chain", key).Err(err).Msg("Testnet balance scan failed")
			continue
		}
		balances[key] = bal
	}
	return balances, nil
}

// Cycle runs one pass: shuffle funded testnets and fire one to three
// small transactions on each, with short human-ish delays in between.
// Unfunded chains are reported so the operator can hit the faucets.
func (t *TestnetFarmer) Cycle(ctx context.Context) (*CycleResult, error) {
	primary, ok := t.vault.Primary()
	if !ok {
		return nil, errNoPrimaryWallet
	}
	key, err := primary.Key()
	if err != nil {
		return nil, err
	}

	res := &CycleResult{TxnsByChain: make(map[string]int)}

	chains := append([]string(nil), evm.TestnetKeys()...)
	t.rng.Shuffle(len(chains), func(i, j int) { chains[i], chains[j] = chains[j], chains[i] })

	for _, chainKey := range chains {
		client, err := t.mgr.Client(chainKey)
		if err != nil {
			return nil, err
		}

		balance, err := client.Balance(ctx, primary.Address)
		if err != nil {
			t.logger.Warn().Str("chain", chainKey).Err(err).Msg("Balance check failed, skipping chain")
			continue
		}

		gasPrice, err := client.GasPrice(ctx)
		if err != nil || gasPrice.Sign() == 0 {
			gasPrice = evm.DefaultPriorityFee
		}
		needed := new(big.Int).Mul(gasPrice, big.NewInt(21000*testnetBalanceHeadroom))
		if balance.Cmp(needed) < 0 {
			res.Unfunded = append(res.Unfunded, chainKey)
			t.logger.Info().
				Str("chain", chainKey).
				Str("balance_wei", balance.String()).
				Msg("Testnet wallet underfunded, needs a faucet top-up")
			continue
		}

		n := testnetMinTxPerCycle + t.rng.Intn(testnetMaxTxPerCycle-testnetMinTxPerCycle+1)
		for i := 0; i < n; i++ {
			if err := t.sendOne(ctx, chainKey, key); err != nil {
				t.logger.Warn().Str("chain", chainKey).Err(err).Msg("Testnet transaction failed")
				break
			}
			res.TxnsByChain[chainKey]++
			res.TotalTxns++

			t.sleep(time.Duration(3+t.rng.Intn(13)) * time.Second)
		}
	}

	t.logger.Info().
		Int("total_txns", res.TotalTxns).
		Strs("unfunded", res.Unfunded).
		Msg("Testnet cycle complete")

	return res, nil
}

func (t *TestnetFarmer) sendOne(ctx context.Context, chainKey string, key *evm.Key) error {
	to := key.Address()
	value := evm.EthToWei(0.00001)

	switch t.pickAction() {
	case testnetInterWallet:
		secondary, err := t.vault.Ensure("testnet_b")
		if err != nil {
			return err
		}
		to = secondary.Address
	case testnetZeroValue:
		value = big.NewInt(0)
	}

	_, err := t.mgr.SendTransaction(ctx, chainKey, key, evm.TxRequest{
		To:       to,
		Value:    value,
		GasLimit: 21000,
	})
	return err
}

func (t *TestnetFarmer) pickAction() string {
	switch t.rng.Intn(3) {
	case 0:
		return testnetSelfTransfer
	case 1:
		return testnetInterWallet
	default:
		return testnetZeroValue
	}
}
