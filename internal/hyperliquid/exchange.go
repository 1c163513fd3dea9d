package hyperliquid

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Wire types for the exchange endpoint.

type limitWire struct {
	Tif string `json:"tif"`
}

type triggerWire struct {
	TriggerPx string `json:"triggerPx"`
	IsMarket  bool   `json:"isMarket"`
	Tpsl      string `json:"tpsl"`
}

type orderTypeWire struct {
	Limit   *limitWire   `json:"limit,omitempty"`
	Trigger *triggerWire `json:"trigger,omitempty"`
}

type orderWire struct {
	Asset      int           `json:"a"`
	IsBuy      bool          `json:"b"`
	Price      string        `json:"p"`
	Size       string        `json:"s"`
	ReduceOnly bool          `json:"r"`
	Type       orderTypeWire `json:"t"`
}

type orderAction struct {
	Type     string      `json:"type"`
	Orders   []orderWire `json:"orders"`
	Grouping string      `json:"grouping"`
}

type exchangeRequest struct {
	Action    interface{} `json:"action"`
	Nonce     int64       `json:"nonce"`
	Signature signature   `json:"signature"`
}

type filledWire struct {
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
	Oid     int64  `json:"oid"`
}

type restingWire struct {
	Oid int64 `json:"oid"`
}

type orderStatusWire struct {
	Filled  *filledWire  `json:"filled"`
	Resting *restingWire `json:"resting"`
	Error   string       `json:"error"`
}

type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []orderStatusWire `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// DefaultSlippage is applied to market orders sent as aggressive IoC limits
const DefaultSlippage = 0.05

// sendAction signs and posts an exchange action
func (c *Client) sendAction(ctx context.Context, action interface{}) (*exchangeResponse, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("venue client has no signing key")
	}

	nonce := time.Now().UnixMilli()
	sig, err := c.signer.SignAction(action, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to sign action: %w", err)
	}

	var resp exchangeResponse
	if err := c.post(ctx, "/exchange", exchangeRequest{Action: action, Nonce: nonce, Signature: sig}, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "ok" {
		return nil, fmt.Errorf("exchange request rejected: %s", resp.Status)
	}
	return &resp, nil
}

// parseOrderResult extracts the first order status from an exchange response
func parseOrderResult(resp *exchangeResponse) OrderResult {
	statuses := resp.Response.Data.Statuses
	if len(statuses) == 0 {
		return OrderResult{Status: OrderError, Reason: "no order status in response"}
	}

	st := statuses[0]
	switch {
	case st.Filled != nil:
		avg, _ := strconv.ParseFloat(st.Filled.AvgPx, 64)
		sz, _ := strconv.ParseFloat(st.Filled.TotalSz, 64)
		return OrderResult{Status: OrderFilled, OrderID: st.Filled.Oid, AvgPrice: avg, FillSize: sz}
	case st.Resting != nil:
		return OrderResult{Status: OrderResting, OrderID: st.Resting.Oid}
	default:
		return OrderResult{Status: OrderError, Reason: st.Error}
	}
}

// MarketOpen opens a position with an aggressive IoC limit order at the
// current mid plus slippage. The venue rejection, if any, comes back as an
// OrderResult with Status == OrderError.
func (c *Client) MarketOpen(ctx context.Context, asset string, isBuy bool, size float64) (OrderResult, error) {
	mid, err := c.Mid(ctx, asset)
	if err != nil {
		return OrderResult{}, err
	}

	px := mid * (1 + DefaultSlippage)
	if !isBuy {
		px = mid * (1 - DefaultSlippage)
	}

	return c.placeOrder(ctx, asset, isBuy, size, px, false, orderTypeWire{Limit: &limitWire{Tif: "Ioc"}})
}

// MarketClose closes (part of) a position with a reduce-only IoC order.
// isBuy is the closing side, opposite of the position direction.
func (c *Client) MarketClose(ctx context.Context, asset string, isBuy bool, size float64) (OrderResult, error) {
	mid, err := c.Mid(ctx, asset)
	if err != nil {
		return OrderResult{}, err
	}

	px := mid * (1 + DefaultSlippage)
	if !isBuy {
		px = mid * (1 - DefaultSlippage)
	}

	return c.placeOrder(ctx, asset, isBuy, size, px, true, orderTypeWire{Limit: &limitWire{Tif: "Ioc"}})
}

// PlaceTrigger places a reduce-only trigger-market order. tpsl is "tp" or
// "sl".
func (c *Client) PlaceTrigger(ctx context.Context, asset string, isBuy bool, size, triggerPx float64, tpsl string) (OrderResult, error) {
	if tpsl != "tp" && tpsl != "sl" {
		return OrderResult{}, fmt.Errorf("tpsl must be \"tp\" or \"sl\", got %q", tpsl)
	}

	t := orderTypeWire{Trigger: &triggerWire{
		TriggerPx: FormatPrice(triggerPx),
		IsMarket:  true,
		Tpsl:      tpsl,
	}}
	return c.placeOrder(ctx, asset, isBuy, size, triggerPx, true, t)
}

func (c *Client) placeOrder(ctx context.Context, asset string, isBuy bool, size, px float64, reduceOnly bool, t orderTypeWire) (OrderResult, error) {
	entry, err := c.assetInfo(ctx, asset)
	if err != nil {
		return OrderResult{}, err
	}

	action := orderAction{
		Type: "order",
		Orders: []orderWire{{
			Asset:      entry.index,
			IsBuy:      isBuy,
			Price:      FormatPrice(px),
			Size:       FormatSize(size, entry.meta.SzDecimals),
			ReduceOnly: reduceOnly,
			Type:       t,
		}},
		Grouping: "na",
	}

	resp, err := c.sendAction(ctx, action)
	if err != nil {
		return OrderResult{}, err
	}

	result := parseOrderResult(resp)
	c.logger.Info().
		Str("asset", asset).
		Bool("is_buy", isBuy).
		Float64("size", size).
		Str("status", result.Status.String()).
		Str("reason", result.Reason).
		Msg("Order placed")

	return result, nil
}

// OpenOrders lists open order IDs for one namespace
func (c *Client) OpenOrders(ctx context.Context, dex string) (map[string][]int64, error) {
	payload := map[string]interface{}{
		"type": "openOrders",
		"user": c.address,
	}
	if dex != "" {
		payload["dex"] = dex
	}

	var raw []struct {
		Coin string `json:"coin"`
		Oid  int64  `json:"oid"`
	}
	if err := c.post(ctx, "/info", payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch open orders: %w", err)
	}

	orders := make(map[string][]int64)
	for _, o := range raw {
		orders[o.Coin] = append(orders[o.Coin], o.Oid)
	}
	return orders, nil
}

// CancelAllOrders cancels every open order in one namespace
func (c *Client) CancelAllOrders(ctx context.Context, dex string) (int, error) {
	open, err := c.OpenOrders(ctx, dex)
	if err != nil {
		return 0, err
	}
	if len(open) == 0 {
		return 0, nil
	}

	type cancelWire struct {
		Asset int   `json:"a"`
		Oid   int64 `json:"o"`
	}
	var cancels []cancelWire
	for coin, oids := range open {
		asset := coin
		if dex != "" {
			asset = dex + ":" + coin
		}
		entry, err := c.assetInfo(ctx, asset)
		if err != nil {
			c.logger.Warn().Str("asset", asset).Err(err).Msg("Skipping cancel for unknown asset")
			continue
		}
		for _, oid := range oids {
			cancels = append(cancels, cancelWire{Asset: entry.index, Oid: oid})
		}
	}
	if len(cancels) == 0 {
		return 0, nil
	}

	action := map[string]interface{}{
		"type":    "cancel",
		"cancels": cancels,
	}
	if _, err := c.sendAction(ctx, action); err != nil {
		return 0, fmt.Errorf("failed to cancel orders: %w", err)
	}

	c.logger.Info().
		Str("dex", dex).
		Int("cancelled", len(cancels)).
		Msg("Cancelled open orders")

	return len(cancels), nil
}

// UpdateLeverage sets leverage for an asset. Builder-dex assets use
// isolated margin.
func (c *Client) UpdateLeverage(ctx context.Context, asset string, leverage int, isolated bool) error {
	entry, err := c.assetInfo(ctx, asset)
	if err != nil {
		return err
	}

	action := map[string]interface{}{
		"type":     "updateLeverage",
		"asset":    entry.index,
		"isCross":  !isolated,
		"leverage": leverage,
	}
	if _, err := c.sendAction(ctx, action); err != nil {
		return fmt.Errorf("failed to update leverage for %s: %w", asset, err)
	}

	c.logger.Debug().
		Str("asset", asset).
		Int("leverage", leverage).
		Bool("isolated", isolated).
		Msg("Leverage updated")

	return nil
}

// DexTransfer moves USDC between the default perp dex and a builder dex.
// toDex is the destination namespace; empty means the default dex.
func (c *Client) DexTransfer(ctx context.Context, fromDex, toDex string, amount float64) error {
	action := map[string]interface{}{
		"type":    "perpDexClassTransfer",
		"dex":     toDex,
		"token":   "USDC",
		"amount":  strconv.FormatFloat(amount, 'f', 2, 64),
		"toPerp":  toDex != "",
		"fromDex": fromDex,
	}
	if _, err := c.sendAction(ctx, action); err != nil {
		return fmt.Errorf("failed to transfer %.2f USDC to dex %q: %w", amount, toDex, err)
	}

	c.logger.Info().
		Str("from_dex", fromDex).
		Str("to_dex", toDex).
		Float64("amount", amount).
		Msg("Dex transfer submitted")

	return nil
}

// FormatPrice rounds a price to the venue's significance by magnitude and
// renders it for the wire.
func FormatPrice(px float64) string {
	rounded := RoundPrice(px)
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}

// RoundPrice rounds by price magnitude: whole numbers above 1000, two
// decimals above 10, three above 1, four otherwise.
func RoundPrice(px float64) float64 {
	switch {
	case px > 1000:
		return math.Round(px)
	case px > 10:
		return math.Round(px*100) / 100
	case px > 1:
		return math.Round(px*1000) / 1000
	default:
		return math.Round(px*10000) / 10000
	}
}

// RoundSize truncates a size to the asset's size decimals
func RoundSize(size float64, szDecimals int) float64 {
	scale := math.Pow10(szDecimals)
	return math.Floor(size*scale) / scale
}

// FormatSize renders an order size for the wire
func FormatSize(size float64, szDecimals int) string {
	return strconv.FormatFloat(RoundSize(size, szDecimals), 'f', -1, 64)
}
