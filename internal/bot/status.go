package bot

import (
	"context"
	"time"

	"github.com/ajitpratap0/hyperfarm/internal/hyperliquid"
	"github.com/ajitpratap0/hyperfarm/internal/tracker"
)

// Status is the operator-facing view served by the HTTP API
type Status struct {
	Regime         string   `json:"regime"`
	ScoreThreshold int      `json:"score_threshold"`
	ActiveAssets   []string `json:"active_assets"`
	Paused         bool     `json:"paused"`
	PeakValue      float64  `json:"peak_value"`
	OpenTrades     int      `json:"open_trades"`
	ClosedTrades   int      `json:"closed_trades"`
}

// Status summarizes the bot's current state
func (b *Bot) Status() Status {
	s := Status{
		ScoreThreshold: b.adapter.Threshold(),
		ActiveAssets:   b.activeAssets(),
		Paused:         b.guard.Paused(),
		PeakValue:      b.guard.Peak(),
		OpenTrades:     len(b.tracker.OpenTrades()),
		ClosedTrades:   b.tracker.ClosedCount(),
	}
	if b.opt != nil {
		s.Regime = string(b.opt.Regime())
	}
	return s
}

// PositionView is one open position for the HTTP API
type PositionView struct {
	Asset         string  `json:"asset"`
	Size          float64 `json:"size"`
	EntryPrice    float64 `json:"entry_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	Leverage      int     `json:"leverage"`
}

// Positions reads the venue's open positions across namespaces. Errors
// surface as an empty list; the API stays read-only and best-effort.
func (b *Bot) Positions(ctx context.Context) []PositionView {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var states []hyperliquid.AccountState
	if main, err := b.venue.PerpState(ctx, ""); err == nil {
		states = append(states, main)
	}
	if b.hasAltAssets() {
		if alt, err := b.venue.PerpState(ctx, "xyz"); err == nil {
			states = append(states, hyperliquid.AccountState{Positions: prefixAlt(alt.Positions)})
		}
	}

	out := make([]PositionView, 0)
	for _, st := range states {
		for _, p := range st.Positions {
			if p.Size == 0 {
				continue
			}
			out = append(out, PositionView{
				Asset:         p.Coin,
				Size:          p.Size,
				EntryPrice:    p.EntryPrice,
				UnrealizedPnL: p.UnrealizedPnL,
				Leverage:      p.Leverage,
			})
		}
	}
	return out
}

func prefixAlt(positions []hyperliquid.Position) []hyperliquid.Position {
	out := make([]hyperliquid.Position, len(positions))
	for i, p := range positions {
		if !hyperliquid.IsAltDex(p.Coin) {
			p.Coin = "xyz:" + p.Coin
		}
		out[i] = p
	}
	return out
}

// Stats exposes tracker performance for the HTTP API
func (b *Bot) Stats() tracker.Stats {
	return b.tracker.Stats(0)
}
