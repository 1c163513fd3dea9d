package hyperliquid

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// intervalDuration maps venue candle intervals to durations
func intervalDuration(interval string) (time.Duration, error) {
	switch interval {
	case "1m":
		return time.Minute, nil
	case "5m":
		return 5 * time.Minute, nil
	case "15m":
		return 15 * time.Minute, nil
	case "1h":
		return time.Hour, nil
	case "4h":
		return 4 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported candle interval %q", interval)
	}
}

// Candles fetches the most recent lookback bars for an asset
func (c *Client) Candles(ctx context.Context, asset, interval string, lookback int) ([]Candle, error) {
	dur, err := intervalDuration(interval)
	if err != nil {
		return nil, err
	}

	end := time.Now()
	start := end.Add(-time.Duration(lookback) * dur)

	payload := map[string]interface{}{
		"type": "candleSnapshot",
		"req": map[string]interface{}{
			"coin":      asset,
			"interval":  interval,
			"startTime": start.UnixMilli(),
			"endTime":   end.UnixMilli(),
		},
	}

	var raw []rawCandle
	if err := c.post(ctx, "/info", payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", asset, err)
	}

	candles := make([]Candle, len(raw))
	for i, r := range raw {
		if err := candles[i].fromRaw(r); err != nil {
			return nil, fmt.Errorf("bad candle for %s: %w", asset, err)
		}
	}
	return candles, nil
}

// Book fetches the L2 order book for an asset
func (c *Client) Book(ctx context.Context, asset string) (OrderBook, error) {
	payload := map[string]interface{}{
		"type": "l2Book",
		"coin": asset,
	}

	var resp struct {
		Levels [][]struct {
			Px string `json:"px"`
			Sz string `json:"sz"`
			N  int    `json:"n"`
		} `json:"levels"`
	}
	if err := c.post(ctx, "/info", payload, &resp); err != nil {
		return OrderBook{}, fmt.Errorf("failed to fetch book for %s: %w", asset, err)
	}
	if len(resp.Levels) != 2 {
		return OrderBook{}, fmt.Errorf("malformed book for %s: %d sides", asset, len(resp.Levels))
	}

	book := OrderBook{Coin: asset}
	for side, levels := range resp.Levels {
		parsed := make([]BookLevel, 0, len(levels))
		for _, lv := range levels {
			px, err := strconv.ParseFloat(lv.Px, 64)
			if err != nil {
				return OrderBook{}, fmt.Errorf("bad book price %q: %w", lv.Px, err)
			}
			sz, err := strconv.ParseFloat(lv.Sz, 64)
			if err != nil {
				return OrderBook{}, fmt.Errorf("bad book size %q: %w", lv.Sz, err)
			}
			parsed = append(parsed, BookLevel{Price: px, Size: sz, Count: lv.N})
		}
		if side == 0 {
			book.Bids = parsed
		} else {
			book.Asks = parsed
		}
	}
	return book, nil
}

// PerpState fetches account value, withdrawable and open positions for one
// namespace ("" for the default dex).
func (c *Client) PerpState(ctx context.Context, dex string) (AccountState, error) {
	payload := map[string]interface{}{
		"type": "clearinghouseState",
		"user": c.address,
	}
	if dex != "" {
		payload["dex"] = dex
	}

	var resp struct {
		MarginSummary struct {
			AccountValue string `json:"accountValue"`
		} `json:"marginSummary"`
		Withdrawable   string `json:"withdrawable"`
		AssetPositions []struct {
			Position struct {
				Coin          string `json:"coin"`
				Szi           string `json:"szi"`
				EntryPx       string `json:"entryPx"`
				UnrealizedPnl string `json:"unrealizedPnl"`
				MarginUsed    string `json:"marginUsed"`
				Leverage      struct {
					Value int `json:"value"`
				} `json:"leverage"`
			} `json:"position"`
		} `json:"assetPositions"`
	}
	if err := c.post(ctx, "/info", payload, &resp); err != nil {
		return AccountState{}, fmt.Errorf("failed to fetch perp state: %w", err)
	}

	state := AccountState{}
	state.AccountValue, _ = strconv.ParseFloat(resp.MarginSummary.AccountValue, 64)
	state.Withdrawable, _ = strconv.ParseFloat(resp.Withdrawable, 64)

	for _, ap := range resp.AssetPositions {
		size, err := strconv.ParseFloat(ap.Position.Szi, 64)
		if err != nil || size == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(ap.Position.EntryPx, 64)
		upnl, _ := strconv.ParseFloat(ap.Position.UnrealizedPnl, 64)
		margin, _ := strconv.ParseFloat(ap.Position.MarginUsed, 64)

		coin := ap.Position.Coin
		if dex != "" {
			coin = dex + ":" + coin
		}
		state.Positions = append(state.Positions, Position{
			Coin:          coin,
			Size:          size,
			EntryPrice:    entry,
			UnrealizedPnL: upnl,
			Leverage:      ap.Position.Leverage.Value,
			MarginUsed:    margin,
		})
	}
	return state, nil
}

// FillsSince fetches the user's fills starting at the given time
func (c *Client) FillsSince(ctx context.Context, start time.Time) ([]Fill, error) {
	payload := map[string]interface{}{
		"type":      "userFillsByTime",
		"user":      c.address,
		"startTime": start.UnixMilli(),
	}

	var raw []struct {
		Coin      string `json:"coin"`
		Px        string `json:"px"`
		Sz        string `json:"sz"`
		Side      string `json:"side"`
		Time      int64  `json:"time"`
		ClosedPnl string `json:"closedPnl"`
	}
	if err := c.post(ctx, "/info", payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch fills: %w", err)
	}

	fills := make([]Fill, 0, len(raw))
	for _, f := range raw {
		px, _ := strconv.ParseFloat(f.Px, 64)
		sz, _ := strconv.ParseFloat(f.Sz, 64)
		pnl, _ := strconv.ParseFloat(f.ClosedPnl, 64)
		fills = append(fills, Fill{
			Coin:      f.Coin,
			Price:     px,
			Size:      sz,
			Side:      f.Side,
			Time:      time.UnixMilli(f.Time),
			ClosedPnL: pnl,
		})
	}
	return fills, nil
}

// AllMids fetches current mid prices for one namespace
func (c *Client) AllMids(ctx context.Context, dex string) (map[string]float64, error) {
	payload := map[string]interface{}{"type": "allMids"}
	if dex != "" {
		payload["dex"] = dex
	}

	var raw map[string]string
	if err := c.post(ctx, "/info", payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch mids: %w", err)
	}

	mids := make(map[string]float64, len(raw))
	for coin, px := range raw {
		v, err := strconv.ParseFloat(px, 64)
		if err != nil {
			continue
		}
		if dex != "" {
			coin = dex + ":" + coin
		}
		mids[coin] = v
	}
	return mids, nil
}

// Mid fetches the current mid price for a single asset
func (c *Client) Mid(ctx context.Context, asset string) (float64, error) {
	dex, coin := SplitCoin(asset)
	mids, err := c.AllMids(ctx, dex)
	if err != nil {
		return 0, err
	}
	key := coin
	if dex != "" {
		key = asset
	}
	mid, ok := mids[key]
	if !ok {
		return 0, fmt.Errorf("no mid price for %s", asset)
	}
	return mid, nil
}
