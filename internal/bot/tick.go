package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/ajitpratap0/hyperfarm/internal/hyperliquid"
	"github.com/ajitpratap0/hyperfarm/internal/metrics"
	"github.com/ajitpratap0/hyperfarm/internal/risk"
	"github.com/ajitpratap0/hyperfarm/internal/tracker"
)

// openView pairs a venue position with its full asset name, including
// the dex prefix for alt-dex positions.
type openView struct {
	Asset string
	Pos   hyperliquid.Position
}

// runTick is one pass of the trading loop
func (b *Bot) runTick(ctx context.Context) error {
	main, err := b.venue.PerpState(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to read main account state: %w", err)
	}

	var alt hyperliquid.AccountState
	hasAlt := b.hasAltAssets()
	if hasAlt {
		if alt, err = b.venue.PerpState(ctx, "xyz"); err != nil {
			return fmt.Errorf("failed to read alt account state: %w", err)
		}
	}

	total := main.AccountValue + alt.AccountValue
	paused, dd := b.guard.Update(total)
	metrics.AccountValue.Set(total)
	metrics.CurrentDrawdown.Set(dd)
	metrics.SetPaused(paused)

	open := collectPositions(main, alt)
	metrics.OpenPositions.Set(float64(len(open)))

	// Position management runs even while paused: existing trades still
	// need their partial TPs and trailing stops.
	b.managePositions(ctx, open)

	if paused {
		b.logger.Warn().Float64("drawdown_pct", dd).Msg("Entries paused by drawdown guard")
		return nil
	}

	if b.opt != nil && b.opt.ShouldOptimize() {
		b.runOptimization(ctx)
	}

	openAssets := make(map[string]bool, len(open))
	altOpen := false
	for _, v := range open {
		openAssets[v.Asset] = true
		if hyperliquid.IsAltDex(v.Asset) {
			altOpen = true
		}
	}

	// Idle alt-dex margin flows back to the main account
	if hasAlt && !altOpen && alt.Withdrawable > altReclaimMinUSD {
		if err := b.venue.DexTransfer(ctx, "xyz", "", alt.Withdrawable); err != nil {
			b.logger.Warn().Err(err).Msg("Alt margin reclaim failed")
		} else {
			b.logger.Info().Float64("amount", alt.Withdrawable).Msg("Reclaimed idle alt-dex margin")
		}
	}

	b.detectCloses(ctx, openAssets)
	b.maybeAdapt()
	b.enterPositions(ctx, openAssets, len(open), main.Withdrawable)
	return nil
}

func collectPositions(main, alt hyperliquid.AccountState) []openView {
	var out []openView
	for _, p := range main.Positions {
		if p.Size == 0 {
			continue
		}
		out = append(out, openView{Asset: p.Coin, Pos: p})
	}
	for _, p := range alt.Positions {
		if p.Size == 0 {
			continue
		}
		asset := p.Coin
		if !hyperliquid.IsAltDex(asset) {
			asset = "xyz:" + asset
		}
		out = append(out, openView{Asset: asset, Pos: p})
	}
	return out
}

// managePositions applies partial take-profits and trailing stops via
// reduce-only market closes.
func (b *Bot) managePositions(ctx context.Context, open []openView) {
	if len(open) == 0 {
		return
	}

	views := make([]risk.OpenPosition, 0, len(open))
	entries := make(map[string]float64, len(open))
	for _, v := range open {
		views = append(views, risk.OpenPosition{
			Asset:         v.Asset,
			Size:          v.Pos.Size,
			EntryPrice:    v.Pos.EntryPrice,
			UnrealizedPnL: v.Pos.UnrealizedPnL,
		})
		entries[v.Asset] = v.Pos.EntryPrice
	}

	for _, a := range b.manager.Manage(views) {
		res, err := b.venue.MarketClose(ctx, a.Asset, !a.IsLong, a.CloseSize)
		if err != nil || res.Status == hyperliquid.OrderError {
			b.logger.Error().
				Str("asset", a.Asset).
				Str("kind", a.Kind.String()).
				Err(err).
				Str("reason", res.Reason).
				Msg("Position management close failed")
			metrics.OrderErrors.WithLabelValues(a.Asset).Inc()
			continue
		}

		realized := a.CloseSize * entries[a.Asset] * a.PnLPct / 100
		b.logger.Info().
			Str("asset", a.Asset).
			Str("kind", a.Kind.String()).
			Float64("close_size", a.CloseSize).
			Float64("pnl_pct", a.PnLPct).
			Msg("Position trimmed")
		b.notifier.TradeClosed(a.Asset, a.Kind.String(), realized, a.PnLPct)
		metrics.RecordTradeClosed(a.Asset, a.Kind.String(), realized)
	}
}

// detectCloses reconciles tracked trades against venue fills
func (b *Bot) detectCloses(ctx context.Context, openAssets map[string]bool) {
	openTrades := b.tracker.OpenTrades()
	if len(openTrades) == 0 {
		return
	}

	start := openTrades[0].EntryTime
	for _, tr := range openTrades[1:] {
		if tr.EntryTime.Before(start) {
			start = tr.EntryTime
		}
	}

	fills, err := b.venue.FillsSince(ctx, start)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Fill fetch failed")
		return
	}

	coinToAsset := make(map[string]string)
	for _, asset := range b.activeAssets() {
		_, coin := hyperliquid.SplitCoin(asset)
		coinToAsset[coin] = asset
	}

	trFills := make([]tracker.Fill, 0, len(fills))
	for _, f := range fills {
		asset := f.Coin
		if mapped, ok := coinToAsset[f.Coin]; ok {
			asset = mapped
		}
		trFills = append(trFills, tracker.Fill{Asset: asset, Price: f.Price, Time: f.Time})
	}

	closed, err := b.tracker.DetectClosed(openAssets, trFills)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Close detection failed")
	}
	for _, tr := range closed {
		b.notifier.TradeClosed(tr.Asset, tr.ExitReason, tr.PnL, tr.PnLPct)
		metrics.RecordTradeClosed(tr.Asset, tr.ExitReason, tr.PnL)
	}
	if len(closed) > 0 {
		metrics.WinRate.Set(b.tracker.Stats(0).WinRate)
	}
}

func (b *Bot) maybeAdapt() {
	total := b.tracker.ClosedCount()
	if !b.adapter.ShouldAdapt(total) {
		return
	}

	changes, err := b.adapter.Adapt(b.tracker.Stats(20), total)
	if err != nil {
		b.logger.Warn().Err(err).Msg("Adaptation pass failed")
		return
	}
	if len(changes) > 0 {
		b.notifier.Alert("Strategy adapted", strings.Join(changes, "\n"))
	}
}

func (b *Bot) runOptimization(ctx context.Context) {
	res, err := b.opt.Optimize(ctx, b.activeAssets(), b.tracker.Stats(0))
	if err != nil {
		b.logger.Warn().Err(err).Msg("Optimization pass failed")
		return
	}
	metrics.OptimizationRuns.Inc()

	if res.RemovedAsset != "" {
		b.removeAsset(res.RemovedAsset)
		b.notifier.Alert("Asset removed from rotation",
			fmt.Sprintf("%s dropped after persistent losses (regime %s)", res.RemovedAsset, res.Regime))
	}
}

// enterPositions walks the active assets and opens entries until the
// position cap is reached.
func (b *Bot) enterPositions(ctx context.Context, openAssets map[string]bool, openCount int, balance float64) {
	slots := b.cfg.MaxOpenPositions - openCount
	if slots <= 0 || balance <= 0 {
		return
	}

	for _, asset := range b.activeAssets() {
		if slots <= 0 {
			return
		}
		if openAssets[asset] || b.adapter.IsBlocked(asset) {
			continue
		}

		opened, err := b.tryEnter(ctx, asset, balance)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			b.logger.Warn().Str("asset", asset).Err(err).Msg("Entry attempt failed")
			continue
		}
		if opened {
			slots--
		}
	}
}
