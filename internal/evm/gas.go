package evm

import (
	"context"
	"math/big"
	"time"
)

// DefaultPriorityFee is used when the node has no fee history: 1 gwei
var DefaultPriorityFee = big.NewInt(1_000_000_000)

const (
	lowGasPoll    = 30 * time.Second
	lowGasTimeout = time.Hour
)

// Fees is a fee quote for one transaction
type Fees struct {
	GasPrice *big.Int // legacy chains only
	Tip      *big.Int
	FeeCap   *big.Int
}

// SuggestFees quotes fees for the chain. On EIP-1559 chains the cap is
// twice the base fee plus the tip so the transaction survives a few full
// blocks of base-fee growth.
func (c *Client) SuggestFees(ctx context.Context) (Fees, error) {
	if !c.chain.EIP1559 {
		price, err := c.GasPrice(ctx)
		if err != nil {
			return Fees{}, err
		}
		return Fees{GasPrice: price}, nil
	}

	base, err := c.BaseFee(ctx)
	if err != nil || base == nil {
		// Node without 1559 support after all
		price, gpErr := c.GasPrice(ctx)
		if gpErr != nil {
			return Fees{}, gpErr
		}
		return Fees{GasPrice: price}, nil
	}

	tip := new(big.Int).Set(DefaultPriorityFee)
	var hexTip string
	if err := c.Call(ctx, &hexTip, "eth_maxPriorityFeePerGas"); err == nil {
		if v, err := decodeBig(hexTip); err == nil && v.Sign() > 0 {
			tip = v
		}
	}

	feeCap := new(big.Int).Mul(base, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return Fees{Tip: tip, FeeCap: feeCap}, nil
}

// WaitForLowGas polls the base fee until it drops to maxBaseFee or the
// timeout passes. Returns the last observed base fee.
func (c *Client) WaitForLowGas(ctx context.Context, maxBaseFee *big.Int) (*big.Int, error) {
	deadline := time.Now().Add(lowGasTimeout)

	for {
		base, err := c.BaseFee(ctx)
		if err == nil && (base == nil || base.Cmp(maxBaseFee) <= 0) {
			return base, nil
		}
		if err != nil {
			c.logger.Warn().Err(err).Msg("Base fee poll failed")
		}

		if time.Now().After(deadline) {
			c.logger.Warn().
				Str("chain", c.chain.Key).
				Msg("Gave up waiting for low gas, proceeding anyway")
			return base, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lowGasPoll):
		}
	}
}
