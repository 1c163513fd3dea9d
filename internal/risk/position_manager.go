package risk

import (
	"math"
	"sync"

	"github.com/rs/zerolog/log"
)

// Defaults for open-position management, in percent of notional.
const (
	PartialTPThreshold = 2.5
	PartialTPSize      = 0.5
	TrailingActivate   = 2.0
	TrailingRetrace    = 1.0
)

// OpenPosition is the manager's view of one live position
type OpenPosition struct {
	Asset         string
	Size          float64 // signed
	EntryPrice    float64
	UnrealizedPnL float64
}

// PnLPct is the unrealized return on notional, in percent
func (p OpenPosition) PnLPct() float64 {
	notional := math.Abs(p.Size) * p.EntryPrice
	if notional == 0 {
		return 0
	}
	return p.UnrealizedPnL / notional * 100
}

// ActionKind is what the manager wants done to a position
type ActionKind int

const (
	ActionPartialTP ActionKind = iota
	ActionTrailingStop
)

func (k ActionKind) String() string {
	switch k {
	case ActionPartialTP:
		return "partial_tp"
	case ActionTrailingStop:
		return "trailing_stop"
	default:
		return "unknown"
	}
}

// Action is one close instruction for the execution layer
type Action struct {
	Asset     string
	Kind      ActionKind
	CloseSize float64 // unsigned size to close
	IsLong    bool
	PnLPct    float64
}

// PositionManager applies partial take-profits and trailing stops to open
// positions. Per-asset bookkeeping is cleared when a position disappears.
type PositionManager struct {
	mu sync.Mutex

	partialTPPct    float64
	partialTPSize   float64
	trailingStart   float64
	trailingRetrace float64

	partialDone map[string]bool
	peakPnL     map[string]float64
}

// NewPositionManager creates a manager; zero thresholds fall back to the
// package defaults.
func NewPositionManager(partialTPPct, partialTPSize, trailingStart, trailingRetrace float64) *PositionManager {
	if partialTPPct == 0 {
		partialTPPct = PartialTPThreshold
	}
	if partialTPSize == 0 {
		partialTPSize = PartialTPSize
	}
	if trailingStart == 0 {
		trailingStart = TrailingActivate
	}
	if trailingRetrace == 0 {
		trailingRetrace = TrailingRetrace
	}
	return &PositionManager{
		partialTPPct:    partialTPPct,
		partialTPSize:   partialTPSize,
		trailingStart:   trailingStart,
		trailingRetrace: trailingRetrace,
		partialDone:     make(map[string]bool),
		peakPnL:         make(map[string]float64),
	}
}

// Manage inspects open positions and returns close instructions. A partial
// take-profit fires once per position lifetime; the trailing stop arms at
// the activation level and closes the rest when profit retraces.
func (m *PositionManager) Manage(positions []OpenPosition) []Action {
	m.mu.Lock()
	defer m.mu.Unlock()

	open := make(map[string]bool, len(positions))
	var actions []Action

	for _, pos := range positions {
		open[pos.Asset] = true
		pnlPct := pos.PnLPct()

		if pnlPct > m.peakPnL[pos.Asset] {
			m.peakPnL[pos.Asset] = pnlPct
		}
		peak := m.peakPnL[pos.Asset]

		// Trailing stop first: it closes the whole remainder
		if peak >= m.trailingStart && peak-pnlPct >= m.trailingRetrace {
			actions = append(actions, Action{
				Asset:     pos.Asset,
				Kind:      ActionTrailingStop,
				CloseSize: math.Abs(pos.Size),
				IsLong:    pos.Size > 0,
				PnLPct:    pnlPct,
			})
			log.Info().
				Str("asset", pos.Asset).
				Float64("peak_pnl_pct", peak).
				Float64("pnl_pct", pnlPct).
				Msg("Trailing stop triggered")
			continue
		}

		if !m.partialDone[pos.Asset] && pnlPct >= m.partialTPPct {
			m.partialDone[pos.Asset] = true
			actions = append(actions, Action{
				Asset:     pos.Asset,
				Kind:      ActionPartialTP,
				CloseSize: math.Abs(pos.Size) * m.partialTPSize,
				IsLong:    pos.Size > 0,
				PnLPct:    pnlPct,
			})
			log.Info().
				Str("asset", pos.Asset).
				Float64("pnl_pct", pnlPct).
				Msg("Partial take-profit triggered")
		}
	}

	// Drop bookkeeping for positions that no longer exist
	for asset := range m.peakPnL {
		if !open[asset] {
			delete(m.peakPnL, asset)
			delete(m.partialDone, asset)
		}
	}

	return actions
}
