package evm

import (
	"context"
	"fmt"
	"math/big"
)

// Typed wrappers over Client.Call for the handful of methods the farming
// stack uses.

// ChainID fetches the node's chain id
func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	var hexID string
	if err := c.Call(ctx, &hexID, "eth_chainId"); err != nil {
		return 0, err
	}
	return decodeUint64(hexID)
}

// Nonce returns the pending-inclusive transaction count for an address
func (c *Client) Nonce(ctx context.Context, address string) (uint64, error) {
	var hexNonce string
	if err := c.Call(ctx, &hexNonce, "eth_getTransactionCount", address, "pending"); err != nil {
		return 0, err
	}
	return decodeUint64(hexNonce)
}

// Balance returns the native balance in wei
func (c *Client) Balance(ctx context.Context, address string) (*big.Int, error) {
	var hexBal string
	if err := c.Call(ctx, &hexBal, "eth_getBalance", address, "latest"); err != nil {
		return nil, err
	}
	return decodeBig(hexBal)
}

// GasPrice returns the legacy gas price in wei
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	var hexPrice string
	if err := c.Call(ctx, &hexPrice, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return decodeBig(hexPrice)
}

// BaseFee returns the latest block's base fee, or nil on pre-1559 chains
func (c *Client) BaseFee(ctx context.Context) (*big.Int, error) {
	var block struct {
		BaseFeePerGas string `json:"baseFeePerGas"`
	}
	if err := c.Call(ctx, &block, "eth_getBlockByNumber", "latest", false); err != nil {
		return nil, err
	}
	if block.BaseFeePerGas == "" {
		return nil, nil
	}
	return decodeBig(block.BaseFeePerGas)
}

type callMsg struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
}

func newCallMsg(from, to string, value *big.Int, data []byte) callMsg {
	msg := callMsg{From: from, To: to}
	if value != nil && value.Sign() > 0 {
		msg.Value = encodeBig(value)
	}
	if len(data) > 0 {
		msg.Data = encodeBytes(data)
	}
	return msg
}

// CallContract executes a read-only contract call
func (c *Client) CallContract(ctx context.Context, from, to string, data []byte) ([]byte, error) {
	var hexResult string
	if err := c.Call(ctx, &hexResult, "eth_call", newCallMsg(from, to, nil, data), "latest"); err != nil {
		return nil, err
	}
	return decodeData(hexResult)
}

// EstimateGas asks the node for a gas limit estimate
func (c *Client) EstimateGas(ctx context.Context, from, to string, value *big.Int, data []byte) (uint64, error) {
	var hexGas string
	if err := c.Call(ctx, &hexGas, "eth_estimateGas", newCallMsg(from, to, value, data)); err != nil {
		return 0, err
	}
	return decodeUint64(hexGas)
}

// SendRawTransaction broadcasts a signed transaction and returns its hash
func (c *Client) SendRawTransaction(ctx context.Context, raw []byte) (string, error) {
	var hash string
	if err := c.Call(ctx, &hash, "eth_sendRawTransaction", encodeBytes(raw)); err != nil {
		return "", fmt.Errorf("broadcast failed: %w", err)
	}
	return hash, nil
}

// Receipt fetches a transaction receipt; ok is false while pending
func (c *Client) Receipt(ctx context.Context, txHash string) (status uint64, ok bool, err error) {
	var receipt *struct {
		Status string `json:"status"`
	}
	if err := c.Call(ctx, &receipt, "eth_getTransactionReceipt", txHash); err != nil {
		return 0, false, err
	}
	if receipt == nil {
		return 0, false, nil
	}
	status, err = decodeUint64(receipt.Status)
	return status, err == nil, err
}
