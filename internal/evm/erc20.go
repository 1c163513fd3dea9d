package evm

import (
	"context"
	"fmt"
	"math/big"
)

// ERC-20 read helpers used by the executor for balance and allowance
// checks before swaps.

// TokenBalance returns balanceOf(owner) for the token contract
func (c *Client) TokenBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	ownerWord, err := AddressWord(owner)
	if err != nil {
		return nil, err
	}
	data, err := c.CallContract(ctx, owner, token, Pack("balanceOf(address)", ownerWord))
	if err != nil {
		return nil, fmt.Errorf("balanceOf call failed: %w", err)
	}
	return DecodeWordBig(data)
}

// Allowance returns allowance(owner, spender) for the token contract
func (c *Client) Allowance(ctx context.Context, token, owner, spender string) (*big.Int, error) {
	ownerWord, err := AddressWord(owner)
	if err != nil {
		return nil, err
	}
	spenderWord, err := AddressWord(spender)
	if err != nil {
		return nil, err
	}
	data, err := c.CallContract(ctx, owner, token, Pack("allowance(address,address)", ownerWord, spenderWord))
	if err != nil {
		return nil, fmt.Errorf("allowance call failed: %w", err)
	}
	return DecodeWordBig(data)
}
