package hyperliquid

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Candle is one OHLCV bar. The venue returns numeric fields as strings;
// UnmarshalJSON converts them once at the edge.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// rawCandle mirrors the wire format
type rawCandle struct {
	T int64  `json:"t"`
	O string `json:"o"`
	H string `json:"h"`
	L string `json:"l"`
	C string `json:"c"`
	V string `json:"v"`
}

func (c *Candle) fromRaw(r rawCandle) error {
	var err error
	if c.Open, err = strconv.ParseFloat(r.O, 64); err != nil {
		return fmt.Errorf("bad open %q: %w", r.O, err)
	}
	if c.High, err = strconv.ParseFloat(r.H, 64); err != nil {
		return fmt.Errorf("bad high %q: %w", r.H, err)
	}
	if c.Low, err = strconv.ParseFloat(r.L, 64); err != nil {
		return fmt.Errorf("bad low %q: %w", r.L, err)
	}
	if c.Close, err = strconv.ParseFloat(r.C, 64); err != nil {
		return fmt.Errorf("bad close %q: %w", r.C, err)
	}
	if c.Volume, err = strconv.ParseFloat(r.V, 64); err != nil {
		return fmt.Errorf("bad volume %q: %w", r.V, err)
	}
	c.OpenTime = time.UnixMilli(r.T)
	return nil
}

// BookLevel is one price level in the order book
type BookLevel struct {
	Price float64
	Size  float64
	Count int
}

// OrderBook holds the top of book for a coin. Bids are sorted best-first,
// asks likewise.
type OrderBook struct {
	Coin string
	Bids []BookLevel
	Asks []BookLevel
}

// Position is an open perp position
type Position struct {
	Coin          string
	Size          float64 // signed: positive long, negative short
	EntryPrice    float64
	UnrealizedPnL float64
	Leverage      int
	MarginUsed    float64
}

// IsLong reports position direction
func (p Position) IsLong() bool { return p.Size > 0 }

// AccountState is the margin summary for one namespace
type AccountState struct {
	AccountValue float64
	Withdrawable float64
	Positions    []Position
}

// Fill is one execution from the user's fill history
type Fill struct {
	Coin      string
	Price     float64
	Size      float64
	Side      string // "B" or "A"
	Time      time.Time
	ClosedPnL float64
}

// AssetMeta describes one tradable asset
type AssetMeta struct {
	Name        string `json:"name"`
	SzDecimals  int    `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage"`
}

// OrderStatus is the terminal status of an order request
type OrderStatus int

const (
	OrderFilled OrderStatus = iota
	OrderResting
	OrderError
)

func (s OrderStatus) String() string {
	switch s {
	case OrderFilled:
		return "filled"
	case OrderResting:
		return "resting"
	case OrderError:
		return "error"
	default:
		return "unknown"
	}
}

// OrderResult carries the parsed outcome of an order request. Rejections
// from the venue are values here, not Go errors; Go errors are reserved
// for transport failures.
type OrderResult struct {
	Status   OrderStatus
	OrderID  int64
	AvgPrice float64
	FillSize float64
	Reason   string // populated when Status == OrderError
}

// SplitCoin separates an asset name into its perp dex namespace and coin.
// "xyz:GOLD" → ("xyz", "GOLD"); plain names map to the default namespace.
func SplitCoin(asset string) (dex, coin string) {
	if ns, c, found := strings.Cut(asset, ":"); found {
		return ns, c
	}
	return "", asset
}

// IsAltDex reports whether the asset trades on a builder-deployed dex
func IsAltDex(asset string) bool {
	dex, _ := SplitCoin(asset)
	return dex != ""
}
