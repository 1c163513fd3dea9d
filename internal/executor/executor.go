// Package executor turns planned farming actions into on-chain
// transactions. Actions degrade gracefully: a swap with nothing to sell
// becomes a self transfer, liquidity provision without token balance
// swaps first, and every path works in dry-run mode without touching a
// node.
package executor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/evm"
	"github.com/ajitpratap0/hyperfarm/internal/wallet"
)

// Action types the planner schedules
const (
	ActionSelfTransfer = "self_transfer"
	ActionSwapETHToTok = "swap_eth_to_token"
	ActionSwapTokToETH = "swap_token_to_eth"
	ActionLPAdd        = "lp_add"
	ActionLPRemove     = "lp_remove"
)

// DefaultSelfTransferETH is the amount a self transfer moves
const DefaultSelfTransferETH = 0.00005

// approvalSettle gives a fresh approval time to propagate before the
// swap that depends on it.
const approvalSettle = 5 * time.Second

// Action is one scheduled farming action
type Action struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	ChainKey  string  `json:"chain"`
	Token     string  `json:"token,omitempty"`
	AmountUSD float64 `json:"amount_usd,omitempty"`
}

// Result reports what actually happened, which may be a degraded form of
// what was asked for.
type Result struct {
	TxHashes []string
	Executed string // action type actually performed
	CostUSD  float64
}

// Executor runs actions against the chain manager
type Executor struct {
	mgr         *evm.Manager
	ethPriceUSD float64
	dryRun      bool
	logger      zerolog.Logger
	sleep       func(time.Duration)
}

// New creates an executor. ethPriceUSD converts planned USD amounts into
// native amounts.
func New(mgr *evm.Manager, ethPriceUSD float64, dryRun bool, logger zerolog.Logger) *Executor {
	return &Executor{
		mgr:         mgr,
		ethPriceUSD: ethPriceUSD,
		dryRun:      dryRun,
		logger:      logger,
		sleep:       time.Sleep,
	}
}

// Execute performs one action with the given wallet
func (e *Executor) Execute(ctx context.Context, a Action, w wallet.Wallet) (*Result, error) {
	if e.dryRun {
		e.logger.Info().
			Str("action_id", a.ID).
			Str("type", a.Type).
			Str("chain", a.ChainKey).
			Msg("Dry run, skipping execution")
		return &Result{TxHashes: []string{"dry_run_" + uuid.NewString()}, Executed: a.Type}, nil
	}

	key, err := w.Key()
	if err != nil {
		return nil, fmt.Errorf("bad wallet key: %w", err)
	}

	switch a.Type {
	case ActionSelfTransfer, ActionLPRemove:
		// lp_remove has no position tracking yet; the fallback keeps the
		// wallet active on schedule.
		return e.selfTransfer(ctx, a, key)
	case ActionSwapETHToTok:
		return e.swapETHToToken(ctx, a, key)
	case ActionSwapTokToETH:
		return e.swapTokenToETH(ctx, a, key)
	case ActionLPAdd:
		return e.lpAdd(ctx, a, key)
	default:
		return nil, fmt.Errorf("unknown action type %q", a.Type)
	}
}

func (e *Executor) selfTransfer(ctx context.Context, a Action, key *evm.Key) (*Result, error) {
	res, err := e.mgr.SendTransaction(ctx, a.ChainKey, key, evm.TxRequest{
		To:       key.Address(),
		Value:    evm.EthToWei(DefaultSelfTransferETH),
		GasLimit: selfTransferGas,
	})
	if err != nil {
		return nil, err
	}
	return &Result{TxHashes: []string{res.Hash}, Executed: ActionSelfTransfer, CostUSD: res.CostUSD}, nil
}

func (e *Executor) swapETHToToken(ctx context.Context, a Action, key *evm.Key) (*Result, error) {
	c, token, err := e.chainContracts(a)
	if err != nil {
		return nil, err
	}

	amountWei := e.usdToWei(a.AmountUSD)
	data, err := exactInputSingle(c.WETH, token, key.Address(), amountWei)
	if err != nil {
		return nil, err
	}

	res, err := e.mgr.SendTransaction(ctx, a.ChainKey, key, evm.TxRequest{
		To:    c.SwapRouter,
		Value: amountWei,
		Data:  data,
	})
	if err != nil {
		return nil, err
	}
	return &Result{TxHashes: []string{res.Hash}, Executed: ActionSwapETHToTok, CostUSD: res.CostUSD}, nil
}

func (e *Executor) swapTokenToETH(ctx context.Context, a Action, key *evm.Key) (*Result, error) {
	c, token, err := e.chainContracts(a)
	if err != nil {
		return nil, err
	}

	client, err := e.mgr.Client(a.ChainKey)
	if err != nil {
		return nil, err
	}
	balance, err := client.TokenBalance(ctx, token, key.Address())
	if err != nil {
		return nil, fmt.Errorf("token balance check failed: %w", err)
	}
	if balance.Sign() == 0 {
		e.logger.Info().
			Str("action_id", a.ID).
			Str("token", a.Token).
			Msg("No token balance to swap, degrading to self transfer")
		return e.selfTransfer(ctx, a, key)
	}

	var hashes []string
	cost := 0.0

	approved, res, err := e.ensureApproval(ctx, a.ChainKey, key, token, c.SwapRouter, balance)
	if err != nil {
		return nil, err
	}
	if !approved {
		hashes = append(hashes, res.Hash)
		cost += res.CostUSD
		e.sleep(approvalSettle)
	}

	data, err := exactInputSingle(token, c.WETH, key.Address(), balance)
	if err != nil {
		return nil, err
	}
	swapRes, err := e.mgr.SendTransaction(ctx, a.ChainKey, key, evm.TxRequest{
		To:   c.SwapRouter,
		Data: data,
	})
	if err != nil {
		return nil, err
	}
	hashes = append(hashes, swapRes.Hash)

	return &Result{TxHashes: hashes, Executed: ActionSwapTokToETH, CostUSD: cost + swapRes.CostUSD}, nil
}

func (e *Executor) lpAdd(ctx context.Context, a Action, key *evm.Key) (*Result, error) {
	c, token, err := e.chainContracts(a)
	if err != nil {
		return nil, err
	}
	if c.AerodromeRouter == "" {
		e.logger.Info().
			Str("action_id", a.ID).
			Str("chain", a.ChainKey).
			Msg("No liquidity router on chain, degrading to self transfer")
		return e.selfTransfer(ctx, a, key)
	}

	client, err := e.mgr.Client(a.ChainKey)
	if err != nil {
		return nil, err
	}
	balance, err := client.TokenBalance(ctx, token, key.Address())
	if err != nil {
		return nil, fmt.Errorf("token balance check failed: %w", err)
	}
	if balance.Sign() == 0 {
		// Acquire the token first; the position gets added next cycle
		e.logger.Info().
			Str("action_id", a.ID).
			Str("token", a.Token).
			Msg("No token balance for liquidity, swapping first")
		return e.swapETHToToken(ctx, a, key)
	}

	var hashes []string
	cost := 0.0

	approved, res, err := e.ensureApproval(ctx, a.ChainKey, key, token, c.AerodromeRouter, balance)
	if err != nil {
		return nil, err
	}
	if !approved {
		hashes = append(hashes, res.Hash)
		cost += res.CostUSD
		e.sleep(approvalSettle)
	}

	ethWei := e.usdToWei(a.AmountUSD)
	data, err := addLiquidityETH(token, balance, ethWei, key.Address())
	if err != nil {
		return nil, err
	}
	lpRes, err := e.mgr.SendTransaction(ctx, a.ChainKey, key, evm.TxRequest{
		To:    c.AerodromeRouter,
		Value: ethWei,
		Data:  data,
	})
	if err != nil {
		return nil, err
	}
	hashes = append(hashes, lpRes.Hash)

	return &Result{TxHashes: hashes, Executed: ActionLPAdd, CostUSD: cost + lpRes.CostUSD}, nil
}

// ensureApproval grants the spender an allowance when the current one is
// short. Returns approved=true when no transaction was needed.
func (e *Executor) ensureApproval(ctx context.Context, chainKey string, key *evm.Key, token, spender string, amount *big.Int) (bool, *evm.TxResult, error) {
	client, err := e.mgr.Client(chainKey)
	if err != nil {
		return false, nil, err
	}

	allowance, err := client.Allowance(ctx, token, key.Address(), spender)
	if err != nil {
		return false, nil, fmt.Errorf("allowance check failed: %w", err)
	}
	if allowance.Cmp(amount) >= 0 {
		e.logger.Debug().Str("token", token).Msg("Allowance already sufficient")
		return true, nil, nil
	}

	spenderWord, err := evm.AddressWord(spender)
	if err != nil {
		return false, nil, err
	}
	res, err := e.mgr.SendTransaction(ctx, chainKey, key, evm.TxRequest{
		To:   token,
		Data: evm.Pack("approve(address,uint256)", spenderWord, evm.BigWord(amount)),
	})
	if err != nil {
		return false, nil, fmt.Errorf("approval failed: %w", err)
	}
	return false, res, nil
}

func (e *Executor) chainContracts(a Action) (contracts, string, error) {
	c, ok := contractsByChain[a.ChainKey]
	if !ok {
		return contracts{}, "", fmt.Errorf("no contracts configured for chain %q", a.ChainKey)
	}
	tokenName := a.Token
	if tokenName == "" {
		tokenName = "USDC"
	}
	token, ok := c.Tokens[tokenName]
	if !ok {
		return contracts{}, "", fmt.Errorf("token %q not configured on %s", tokenName, a.ChainKey)
	}
	return c, token, nil
}

func (e *Executor) usdToWei(usd float64) *big.Int {
	if usd <= 0 || e.ethPriceUSD <= 0 {
		return evm.EthToWei(DefaultSelfTransferETH)
	}
	return evm.EthToWei(usd / e.ethPriceUSD)
}

// exactInputSingle encodes a Uniswap V3 single-hop swap with no output
// minimum; amounts this small are not worth quoting first.
func exactInputSingle(tokenIn, tokenOut, recipient string, amountIn *big.Int) ([]byte, error) {
	inWord, err := evm.AddressWord(tokenIn)
	if err != nil {
		return nil, err
	}
	outWord, err := evm.AddressWord(tokenOut)
	if err != nil {
		return nil, err
	}
	recWord, err := evm.AddressWord(recipient)
	if err != nil {
		return nil, err
	}

	deadline := uint64(time.Now().Unix()) + swapDeadlineSec
	return evm.Pack(
		"exactInputSingle((address,address,uint24,address,uint256,uint256,uint256,uint160))",
		inWord,
		outWord,
		evm.Uint64Word(uniswapPoolFee),
		recWord,
		evm.Uint64Word(deadline),
		evm.BigWord(amountIn),
		evm.Uint64Word(0), // amountOutMinimum
		evm.Uint64Word(0), // sqrtPriceLimitX96
	), nil
}

// addLiquidityETH encodes an Aerodrome volatile-pool deposit with 5%
// slippage minimums.
func addLiquidityETH(token string, tokenAmount, ethAmount *big.Int, recipient string) ([]byte, error) {
	tokenWord, err := evm.AddressWord(token)
	if err != nil {
		return nil, err
	}
	recWord, err := evm.AddressWord(recipient)
	if err != nil {
		return nil, err
	}

	deadline := uint64(time.Now().Unix()) + swapDeadlineSec
	return evm.Pack(
		"addLiquidityETH(address,bool,uint256,uint256,uint256,address,uint256)",
		tokenWord,
		evm.BoolWord(false), // volatile pool
		evm.BigWord(tokenAmount),
		evm.BigWord(pct(tokenAmount, 95)),
		evm.BigWord(pct(ethAmount, 95)),
		recWord,
		evm.Uint64Word(deadline),
	), nil
}

func pct(v *big.Int, percent int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(percent))
	return out.Div(out, big.NewInt(100))
}
