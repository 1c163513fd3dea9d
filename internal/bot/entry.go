package bot

import (
	"context"
	"fmt"

	"github.com/ajitpratap0/hyperfarm/internal/hyperliquid"
	"github.com/ajitpratap0/hyperfarm/internal/indicators"
	"github.com/ajitpratap0/hyperfarm/internal/liquidity"
	"github.com/ajitpratap0/hyperfarm/internal/metrics"
	"github.com/ajitpratap0/hyperfarm/internal/optimizer"
	"github.com/ajitpratap0/hyperfarm/internal/risk"
	"github.com/ajitpratap0/hyperfarm/internal/signal"
)

// tryEnter evaluates one asset and places an entry when the confluence
// score clears the threshold. Returns whether a position was opened.
func (b *Bot) tryEnter(ctx context.Context, asset string, balance float64) (bool, error) {
	bars, err := b.venue.Candles(ctx, asset, primaryInterval, candleLookback)
	if err != nil {
		return false, fmt.Errorf("candle fetch failed: %w", err)
	}
	bars1h, err := b.venue.Candles(ctx, asset, "1h", htfLookback)
	if err != nil {
		return false, fmt.Errorf("1h candle fetch failed: %w", err)
	}
	bars4h, err := b.venue.Candles(ctx, asset, "4h", htfLookback)
	if err != nil {
		return false, fmt.Errorf("4h candle fetch failed: %w", err)
	}

	snap, err := indicators.Compute(asset, toIndicatorBars(bars), closesOf(bars1h), closesOf(bars4h))
	if err != nil {
		// Not enough history yet; nothing to score
		b.logger.Debug().Str("asset", asset).Err(err).Msg("Indicator snapshot unavailable")
		return false, nil
	}

	price := b.currentPrice(ctx, asset, snap.Price)

	book, err := b.venue.Book(ctx, asset)
	if err != nil {
		return false, fmt.Errorf("book fetch failed: %w", err)
	}
	var bidVol, askVol float64
	for _, l := range book.Bids {
		bidVol += l.Size
	}
	for _, l := range book.Asks {
		askVol += l.Size
	}

	// Liquidity needs deep 1h history; a nil read just drops that source
	liq, err := liquidity.Analyze(asset, toLiquidityBars(bars1h), price)
	if err != nil {
		liq = nil
	}

	_, coin := hyperliquid.SplitCoin(asset)
	reading := b.sentiment.Bias(ctx, coin)

	adj := b.opt.Adjustments()
	th := b.thresholds(adj)

	dec := signal.Score(asset, signal.Inputs{
		Snapshot:  snap,
		Liquidity: liq,
		AIBias:    reading.Bias,
		BidVolume: bidVol,
		AskVolume: askVol,
	}, th)
	if dec.Direction == signal.None {
		return false, nil
	}

	meta, err := b.venue.Meta(ctx, asset)
	if err != nil {
		return false, fmt.Errorf("meta lookup failed: %w", err)
	}

	plan := risk.ComputeSize(balance, price, meta.MaxLeverage, meta.SzDecimals)
	if !plan.Viable {
		b.logger.Info().Str("asset", asset).Str("reason", plan.Reason).Msg("Entry skipped, not viable")
		return false, nil
	}

	b.logger.Info().
		Str("asset", asset).
		Str("direction", dec.Direction.String()).
		Int("long_score", dec.LongScore).
		Int("short_score", dec.ShortScore).
		Strs("signals", dec.Signals).
		Float64("size", plan.Size).
		Msg("Entry signal")

	if err := b.placeEntry(ctx, asset, dec, plan, price, adjustTargets(plan, adj)); err != nil {
		return false, err
	}
	return true, nil
}

// thresholds merges the adapter's learned threshold with the optimizer's
// regime floor, taking the stricter side.
func (b *Bot) thresholds(adj optimizer.Adjustments) signal.Thresholds {
	base := b.adapter.Threshold()
	th := signal.Thresholds{Long: base, Short: base}
	if adj.LongThreshold > th.Long {
		th.Long = adj.LongThreshold
	}
	if adj.ShortThreshold > th.Short {
		th.Short = adj.ShortThreshold
	}
	return th
}

// targetPcts are the regime-adjusted TP/SL distances
type targetPcts struct {
	tp float64
	sl float64
}

func adjustTargets(plan risk.SizePlan, adj optimizer.Adjustments) targetPcts {
	t := targetPcts{tp: plan.TPPct, sl: plan.SLPct}
	if adj.TPMult > 0 {
		t.tp *= adj.TPMult
	}
	if adj.SLMult > 0 {
		t.sl *= adj.SLMult
	}
	return t
}

// placeEntry executes the full order flow: alt-dex margin transfer,
// market entry, then stop-loss and take-profit triggers.
func (b *Bot) placeEntry(ctx context.Context, asset string, dec signal.Decision, plan risk.SizePlan, price float64, targets targetPcts) error {
	isLong := dec.Direction == signal.Long

	// Alt-dex entries need isolated margin moved over first
	transferred := 0.0
	if hyperliquid.IsAltDex(asset) {
		altState, err := b.venue.PerpState(ctx, "xyz")
		if err != nil {
			return fmt.Errorf("alt state read failed: %w", err)
		}
		needed := plan.MarginRequired() + altMarginHeadroomUSD
		if delta := needed - altState.Withdrawable; delta > 0 {
			amount := delta + altTransferBufferUSD
			if err := b.venue.DexTransfer(ctx, "", "xyz", amount); err != nil {
				return fmt.Errorf("margin transfer failed: %w", err)
			}
			transferred = amount
			if err := b.sleep(ctx, transferSettle); err != nil {
				return err
			}
		}
	}

	res, err := b.venue.MarketOpen(ctx, asset, isLong, plan.Size)
	if err != nil || res.Status == hyperliquid.OrderError {
		metrics.OrderErrors.WithLabelValues(asset).Inc()
		b.rollbackTransfer(ctx, asset, transferred)
		if err != nil {
			return fmt.Errorf("market open failed: %w", err)
		}
		return fmt.Errorf("market open rejected: %s", res.Reason)
	}

	entry := res.AvgPrice
	if entry == 0 {
		entry = price
	}
	size := res.FillSize
	if size == 0 {
		size = plan.Size
	}

	var tp, sl float64
	if isLong {
		tp = hyperliquid.RoundPrice(entry * (1 + targets.tp))
		sl = hyperliquid.RoundPrice(entry * (1 - targets.sl))
	} else {
		tp = hyperliquid.RoundPrice(entry * (1 - targets.tp))
		sl = hyperliquid.RoundPrice(entry * (1 + targets.sl))
	}

	b.logger.Info().
		Str("asset", asset).
		Str("direction", dec.Direction.String()).
		Float64("entry", entry).
		Float64("size", size).
		Float64("tp", tp).
		Float64("sl", sl).
		Msg("Position opened")

	// Journal the trade before telling anyone about it
	if _, err := b.tracker.LogEntry(asset, dec.Direction, entry, size, plan.Leverage, tp, sl, dec.Signals); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to record trade entry")
	}
	if err := b.opt.LogTrade(asset, dec.Direction, plan.Notional); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to log trade for optimizer")
	}

	b.notifier.TradeOpened(asset, dec.Direction.String(), entry, size, plan.Notional, plan.Leverage, tp, sl)
	metrics.RecordTradeOpened(asset, dec.Direction.String())

	// Stop-loss goes in first; an unprotected position is the worst state
	if err := b.sleep(ctx, triggerDelay); err != nil {
		return err
	}
	if r, err := b.venue.PlaceTrigger(ctx, asset, !isLong, size, sl, "sl"); err != nil || r.Status == hyperliquid.OrderError {
		b.logger.Error().Str("asset", asset).Err(err).Str("reason", r.Reason).Msg("Stop-loss placement failed")
		metrics.OrderErrors.WithLabelValues(asset).Inc()
	}
	if err := b.sleep(ctx, triggerDelay); err != nil {
		return err
	}
	if r, err := b.venue.PlaceTrigger(ctx, asset, !isLong, size, tp, "tp"); err != nil || r.Status == hyperliquid.OrderError {
		b.logger.Error().Str("asset", asset).Err(err).Str("reason", r.Reason).Msg("Take-profit placement failed")
		metrics.OrderErrors.WithLabelValues(asset).Inc()
	}
	return nil
}

// rollbackTransfer returns margin moved for a failed alt-dex entry
func (b *Bot) rollbackTransfer(ctx context.Context, asset string, amount float64) {
	if amount <= 0 {
		return
	}
	if err := b.venue.DexTransfer(ctx, "xyz", "", amount); err != nil {
		b.logger.Error().Str("asset", asset).Float64("amount", amount).Err(err).Msg("Margin rollback failed")
	}
}

// currentPrice prefers the websocket mid, falling back to REST then the
// last candle close.
func (b *Bot) currentPrice(ctx context.Context, asset string, fallback float64) float64 {
	_, coin := hyperliquid.SplitCoin(asset)
	if b.mids != nil {
		if px, ok := b.mids.Get(coin, midMaxAge); ok {
			return px
		}
	}
	if px, err := b.venue.Mid(ctx, asset); err == nil && px > 0 {
		return px
	}
	return fallback
}

func toIndicatorBars(candles []hyperliquid.Candle) []indicators.Bar {
	out := make([]indicators.Bar, len(candles))
	for i, c := range candles {
		out[i] = indicators.Bar{Open: c.Open, High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}
	return out
}

func closesOf(candles []hyperliquid.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

func toLiquidityBars(candles []hyperliquid.Candle) []liquidity.Bar {
	out := make([]liquidity.Bar, len(candles))
	for i, c := range candles {
		out[i] = liquidity.Bar{High: c.High, Low: c.Low, Close: c.Close, Volume: c.Volume}
	}
	return out
}
