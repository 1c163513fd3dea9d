// Package bot runs the autonomous perp trading loop: read market state,
// score entries, size and place orders, manage open positions and keep
// the self-tuning layers (adapter, optimizer) fed.
package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/adapter"
	"github.com/ajitpratap0/hyperfarm/internal/config"
	"github.com/ajitpratap0/hyperfarm/internal/hyperliquid"
	"github.com/ajitpratap0/hyperfarm/internal/optimizer"
	"github.com/ajitpratap0/hyperfarm/internal/oracle"
	"github.com/ajitpratap0/hyperfarm/internal/risk"
	"github.com/ajitpratap0/hyperfarm/internal/tracker"
)

const (
	// Extra isolated margin parked with every alt-dex entry
	altMarginHeadroomUSD = 1.0
	// Buffer added on top of the computed transfer delta
	altTransferBufferUSD = 0.50
	// Dust floor below which idle alt-dex margin is left alone
	altReclaimMinUSD = 0.01

	// Pause after a dex transfer so the margin lands before the order
	transferSettle = 2 * time.Second
	// Pause between the market order and each trigger order
	triggerDelay = time.Second

	candleLookback  = 100
	htfLookback     = 60
	primaryInterval = "15m"

	midMaxAge = 10 * time.Second
)

// Venue is the exchange surface the bot trades through
type Venue interface {
	Meta(ctx context.Context, asset string) (hyperliquid.AssetMeta, error)
	Candles(ctx context.Context, asset, interval string, lookback int) ([]hyperliquid.Candle, error)
	Book(ctx context.Context, asset string) (hyperliquid.OrderBook, error)
	PerpState(ctx context.Context, dex string) (hyperliquid.AccountState, error)
	FillsSince(ctx context.Context, start time.Time) ([]hyperliquid.Fill, error)
	Mid(ctx context.Context, asset string) (float64, error)
	MarketOpen(ctx context.Context, asset string, isBuy bool, size float64) (hyperliquid.OrderResult, error)
	MarketClose(ctx context.Context, asset string, isBuy bool, size float64) (hyperliquid.OrderResult, error)
	PlaceTrigger(ctx context.Context, asset string, isBuy bool, size, triggerPx float64, tpsl string) (hyperliquid.OrderResult, error)
	CancelAllOrders(ctx context.Context, dex string) (int, error)
	UpdateLeverage(ctx context.Context, asset string, leverage int, isolated bool) error
	DexTransfer(ctx context.Context, fromDex, toDex string, amount float64) error
}

// Sentiment is the oracle surface the scorer consumes
type Sentiment interface {
	Bias(ctx context.Context, symbol string) oracle.Reading
}

// Notifier is the outbound message surface the loop uses
type Notifier interface {
	TradeOpened(asset, direction string, entry, size, notional float64, leverage int, tp, sl float64)
	TradeClosed(asset, reason string, pnl, pnlPct float64)
	Alert(title, body string)
}

// Deps bundles the bot's collaborators
type Deps struct {
	Venue     Venue
	Mids      *hyperliquid.MidCache
	Sentiment Sentiment
	Tracker   *tracker.Tracker
	Adapter   *adapter.Adapter
	Optimizer *optimizer.Optimizer
	Notifier  Notifier
}

// Bot is the trading loop state
type Bot struct {
	cfg       config.TradingConfig
	venue     Venue
	mids      *hyperliquid.MidCache
	sentiment Sentiment
	tracker   *tracker.Tracker
	adapter   *adapter.Adapter
	opt       *optimizer.Optimizer
	notifier  Notifier
	guard     *risk.DrawdownGuard
	manager   *risk.PositionManager
	logger    zerolog.Logger

	mu     sync.Mutex
	active []string // assets still in rotation; the optimizer prunes losers

	sleep func(context.Context, time.Duration) error
}

// New wires a bot from its collaborators
func New(cfg config.TradingConfig, deps Deps, logger zerolog.Logger) *Bot {
	b := &Bot{
		cfg:       cfg,
		venue:     deps.Venue,
		mids:      deps.Mids,
		sentiment: deps.Sentiment,
		tracker:   deps.Tracker,
		adapter:   deps.Adapter,
		opt:       deps.Optimizer,
		notifier:  deps.Notifier,
		guard:     risk.NewDrawdownGuard(cfg.DrawdownPause, cfg.DrawdownResume),
		manager:   risk.NewPositionManager(cfg.PartialTPPct, cfg.PartialTPSize, cfg.TrailingActivate, cfg.TrailingRetrace),
		logger:    logger.With().Str("component", "bot").Logger(),
		active:    append([]string(nil), cfg.Assets...),
	}
	b.sleep = func(ctx context.Context, d time.Duration) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
			return nil
		}
	}
	return b
}

// hasAltAssets reports whether any active asset trades on an alt dex
func (b *Bot) hasAltAssets() bool {
	for _, a := range b.activeAssets() {
		if hyperliquid.IsAltDex(a) {
			return true
		}
	}
	return false
}

func (b *Bot) activeAssets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.active...)
}

func (b *Bot) removeAsset(asset string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.active[:0]
	for _, a := range b.active {
		if !strings.EqualFold(a, asset) {
			kept = append(kept, a)
		}
	}
	b.active = kept
}

// Startup sweeps stale orders, pins leverage per asset and runs the
// initial optimization when one is due.
func (b *Bot) Startup(ctx context.Context) error {
	dexes := []string{""}
	if b.hasAltAssets() {
		dexes = append(dexes, "xyz")
	}
	for _, dex := range dexes {
		n, err := b.venue.CancelAllOrders(ctx, dex)
		if err != nil {
			return fmt.Errorf("startup order sweep failed: %w", err)
		}
		if n > 0 {
			b.logger.Info().Str("dex", dex).Int("cancelled", n).Msg("Cancelled stale orders")
		}
	}

	state, err := b.venue.PerpState(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to read account state: %w", err)
	}
	tier := risk.TierFor(state.AccountValue)

	for _, asset := range b.activeAssets() {
		meta, err := b.venue.Meta(ctx, asset)
		if err != nil {
			b.logger.Warn().Str("asset", asset).Err(err).Msg("Meta lookup failed, skipping leverage update")
			continue
		}
		lev := tier.Leverage
		if meta.MaxLeverage > 0 && lev > meta.MaxLeverage {
			lev = meta.MaxLeverage
		}
		// Alt-dex assets run isolated so a blowup cannot touch main margin
		if err := b.venue.UpdateLeverage(ctx, asset, lev, hyperliquid.IsAltDex(asset)); err != nil {
			b.logger.Warn().Str("asset", asset).Err(err).Msg("Leverage update failed")
		}
	}

	b.logger.Info().
		Float64("account_value", state.AccountValue).
		Int("leverage", tier.Leverage).
		Strs("assets", b.activeAssets()).
		Msg("Bot started")

	if b.opt != nil && b.opt.ShouldOptimize() {
		b.runOptimization(ctx)
	}
	return nil
}

// Run executes Startup then ticks until the context ends
func (b *Bot) Run(ctx context.Context) error {
	if err := b.Startup(ctx); err != nil {
		return err
	}

	interval := time.Duration(b.cfg.LoopInterval) * time.Second
	pausedSleep := time.Duration(b.cfg.PausedSleep) * time.Second

	for {
		if err := b.runTick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Error().Err(err).Msg("Trading tick failed")
		}

		d := interval
		if b.guard.Paused() {
			d = pausedSleep
		}
		if err := b.sleep(ctx, d); err != nil {
			return err
		}
	}
}
