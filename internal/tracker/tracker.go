// Package tracker records the lifecycle of every trade and derives the
// performance statistics the adapter and optimizer feed on.
package tracker

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/signal"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
)

// Exit reason tolerance: a fill within this fraction of the expected
// tp/sl band is attributed to that band.
const exitTolerance = 0.005

// Trade is one entry-to-exit record
type Trade struct {
	ID         string           `json:"id"`
	Asset      string           `json:"asset"`
	Direction  signal.Direction `json:"direction"`
	EntryPrice float64          `json:"entry_price"`
	Size       float64          `json:"size"` // unsigned
	Leverage   int              `json:"leverage"`
	TPPrice    float64          `json:"tp_price"`
	SLPrice    float64          `json:"sl_price"`
	Signals    []string         `json:"signals"`
	EntryTime  time.Time        `json:"entry_time"`
	Status     string           `json:"status"` // "open" or "closed"
	ExitPrice  float64          `json:"exit_price,omitempty"`
	ExitTime   time.Time        `json:"exit_time,omitempty"`
	ExitReason string           `json:"exit_reason,omitempty"` // "tp", "sl", "manual"
	PnL        float64          `json:"pnl,omitempty"`
	PnLPct     float64          `json:"pnl_pct,omitempty"`
}

// Fill is a venue execution used to detect closed trades
type Fill struct {
	Asset string
	Price float64
	Time  time.Time
}

// Tracker owns trades_history.json
type Tracker struct {
	mu     sync.Mutex
	store  *statefile.Store
	trades []Trade
	logger zerolog.Logger
}

type historyFile struct {
	Trades []Trade `json:"trades"`
}

// New creates a tracker backed by the given state file
func New(store *statefile.Store, logger zerolog.Logger) (*Tracker, error) {
	t := &Tracker{store: store, logger: logger}

	var file historyFile
	if err := store.Load(&file); err != nil {
		return nil, fmt.Errorf("failed to load trade history: %w", err)
	}
	t.trades = file.Trades

	logger.Info().
		Int("trades", len(t.trades)).
		Msg("Trade tracker loaded")

	return t, nil
}

func (t *Tracker) save() error {
	return t.store.Save(historyFile{Trades: t.trades})
}

// LogEntry records a new open trade and returns its ID
func (t *Tracker) LogEntry(asset string, dir signal.Direction, entry, size float64, leverage int, tpPrice, slPrice float64, signals []string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	trade := Trade{
		ID:         fmt.Sprintf("%s_%d", asset, time.Now().UnixMilli()),
		Asset:      asset,
		Direction:  dir,
		EntryPrice: entry,
		Size:       math.Abs(size),
		Leverage:   leverage,
		TPPrice:    tpPrice,
		SLPrice:    slPrice,
		Signals:    signals,
		EntryTime:  time.Now(),
		Status:     "open",
	}
	t.trades = append(t.trades, trade)

	t.logger.Info().
		Str("trade_id", trade.ID).
		Str("asset", asset).
		Str("direction", dir.String()).
		Float64("entry_price", entry).
		Float64("size", trade.Size).
		Msg("Trade entry logged")

	return trade.ID, t.save()
}

// OpenTrades returns the currently open trade records
func (t *Tracker) OpenTrades() []Trade {
	t.mu.Lock()
	defer t.mu.Unlock()

	var open []Trade
	for _, tr := range t.trades {
		if tr.Status == "open" {
			open = append(open, tr)
		}
	}
	return open
}

// DetectClosed closes tracked trades whose asset no longer has an open
// position, using the most recent fill after entry as the exit price.
// Returns the trades closed in this pass.
func (t *Tracker) DetectClosed(openAssets map[string]bool, fills []Fill) ([]Trade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var closed []Trade
	changed := false

	for i := range t.trades {
		tr := &t.trades[i]
		if tr.Status != "open" || openAssets[tr.Asset] {
			continue
		}

		exitPrice := lastFillPrice(fills, tr.Asset, tr.EntryTime)
		if exitPrice == 0 {
			// No fill seen yet; leave the trade open for the next pass
			continue
		}

		dir := 1.0
		if tr.Direction == signal.Short {
			dir = -1.0
		}
		tr.PnL = (exitPrice - tr.EntryPrice) * tr.Size * dir

		margin := tr.EntryPrice * tr.Size / float64(max(tr.Leverage, 1))
		if margin > 0 {
			tr.PnLPct = tr.PnL / margin * 100
		}

		tr.ExitPrice = exitPrice
		tr.ExitTime = time.Now()
		tr.ExitReason = classifyExit(tr, exitPrice)
		tr.Status = "closed"

		closed = append(closed, *tr)
		changed = true

		t.logger.Info().
			Str("trade_id", tr.ID).
			Str("asset", tr.Asset).
			Float64("exit_price", exitPrice).
			Float64("pnl", tr.PnL).
			Str("exit_reason", tr.ExitReason).
			Msg("Trade closed")
	}

	if changed {
		if err := t.save(); err != nil {
			return closed, err
		}
	}
	return closed, nil
}

// lastFillPrice returns the price of the latest fill for asset after the
// cutoff, or 0 when none exists.
func lastFillPrice(fills []Fill, asset string, after time.Time) float64 {
	var price float64
	var latest time.Time
	for _, f := range fills {
		if f.Asset != asset || f.Time.Before(after) {
			continue
		}
		if f.Time.After(latest) {
			latest = f.Time
			price = f.Price
		}
	}
	return price
}

// classifyExit attributes an exit to tp or sl when the fill lands within
// tolerance of the trigger band. Anything else was closed by hand or by
// the position manager and stays "manual".
func classifyExit(tr *Trade, exitPrice float64) string {
	if tr.TPPrice > 0 && math.Abs(exitPrice-tr.TPPrice)/tr.TPPrice <= exitTolerance {
		return "tp"
	}
	if tr.SLPrice > 0 && math.Abs(exitPrice-tr.SLPrice)/tr.SLPrice <= exitTolerance {
		return "sl"
	}
	return "manual"
}
