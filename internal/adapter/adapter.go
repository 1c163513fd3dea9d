// Package adapter tunes scoring parameters from recent trade outcomes.
//
// Adaptation is deliberately slow and bounded: the score threshold moves
// by one step at a time inside a fixed band, signal weights drift by
// small multipliers, and assets that keep losing are blocked for a
// cooldown rather than removed. Everything lives in strategy_state.json
// so restarts pick up where the last run left off.
package adapter

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/statefile"
	"github.com/ajitpratap0/hyperfarm/internal/tracker"
)

const (
	// Adaptation cadence
	minTradesPerAdaptation = 20
	minHoursPerAdaptation  = 6
	minTradesFirstRun      = 5

	// Threshold band
	thresholdMin = 2
	thresholdMax = 4

	// Overall win-rate cutoffs that move the threshold
	winRateTighten = 40.0
	winRateLoosen  = 65.0

	// Per-signal weight drift
	signalMinActivations = 3
	signalWeakWinRate    = 35.0
	signalStrongWinRate  = 65.0
	weightDecay          = 0.7
	weightBoost          = 1.3
	weightFloor          = 0.5
	weightCap            = 2.0

	// Per-asset blocking
	assetMinTrades    = 5
	assetBlockWinRate = 30.0
	assetBlockHours   = 24

	maxLogEntries = 10
)

// Adaptation is one logged adjustment pass
type Adaptation struct {
	Time    time.Time `json:"time"`
	Changes []string  `json:"changes"`
}

type state struct {
	ScoreThreshold  int                  `json:"score_threshold"`
	SignalWeights   map[string]float64   `json:"signal_weights"`
	BlockedAssets   map[string]time.Time `json:"blocked_assets"`
	AdaptationLog   []Adaptation         `json:"adaptation_log"`
	TradesAtLastRun int                  `json:"trades_at_last_adaptation"`
	LastRun         time.Time            `json:"last_adaptation"`
}

// Adapter owns strategy_state.json
type Adapter struct {
	mu     sync.Mutex
	store  *statefile.Store
	state  state
	logger zerolog.Logger
}

// New loads adapter state, seeding the threshold from defaultThreshold on
// first run.
func New(store *statefile.Store, defaultThreshold int, logger zerolog.Logger) (*Adapter, error) {
	a := &Adapter{
		store: store,
		state: state{
			ScoreThreshold: defaultThreshold,
			SignalWeights:  make(map[string]float64),
			BlockedAssets:  make(map[string]time.Time),
		},
		logger: logger,
	}

	if err := store.Load(&a.state); err != nil {
		return nil, fmt.Errorf("failed to load adapter state: %w", err)
	}
	if a.state.SignalWeights == nil {
		a.state.SignalWeights = make(map[string]float64)
	}
	if a.state.BlockedAssets == nil {
		a.state.BlockedAssets = make(map[string]time.Time)
	}
	if a.state.ScoreThreshold < thresholdMin || a.state.ScoreThreshold > thresholdMax {
		a.state.ScoreThreshold = defaultThreshold
	}

	logger.Info().
		Int("score_threshold", a.state.ScoreThreshold).
		Int("blocked_assets", len(a.state.BlockedAssets)).
		Msg("Strategy adapter loaded")

	return a, nil
}

// Threshold returns the current score threshold
func (a *Adapter) Threshold() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.ScoreThreshold
}

// Weight returns the advisory weight for a signal key (1.0 when untouched)
func (a *Adapter) Weight(key string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if w, ok := a.state.SignalWeights[key]; ok {
		return w
	}
	return 1.0
}

// IsBlocked reports whether an asset is in its losing-streak cooldown.
// Expired blocks are pruned on the way through.
func (a *Adapter) IsBlocked(asset string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	until, ok := a.state.BlockedAssets[asset]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(a.state.BlockedAssets, asset)
		return false
	}
	return true
}

// ShouldAdapt reports whether enough new evidence has accumulated since
// the last pass: a batch of new trades, or a trickle plus elapsed time.
func (a *Adapter) ShouldAdapt(totalClosed int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.LastRun.IsZero() {
		return totalClosed >= minTradesFirstRun
	}

	newTrades := totalClosed - a.state.TradesAtLastRun
	if newTrades >= minTradesPerAdaptation {
		return true
	}
	return newTrades >= 1 && time.Since(a.state.LastRun) > minHoursPerAdaptation*time.Hour
}

// Adapt applies one adjustment pass from the given stats window and
// returns the changes made (possibly none).
func (a *Adapter) Adapt(stats tracker.Stats, totalClosed int) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var changes []string

	// Overall win rate moves the score threshold one step at a time
	switch {
	case stats.WinRate < winRateTighten && a.state.ScoreThreshold < thresholdMax:
		a.state.ScoreThreshold++
		changes = append(changes, fmt.Sprintf("threshold raised to %d (win rate %.1f%%)", a.state.ScoreThreshold, stats.WinRate))
	case stats.WinRate > winRateLoosen && a.state.ScoreThreshold > thresholdMin:
		a.state.ScoreThreshold--
		changes = append(changes, fmt.Sprintf("threshold lowered to %d (win rate %.1f%%)", a.state.ScoreThreshold, stats.WinRate))
	}

	// Signal weights drift toward what actually wins
	for key, sig := range stats.PerSignal {
		if sig.Activations < signalMinActivations {
			continue
		}
		w := a.state.SignalWeights[key]
		if w == 0 {
			w = 1.0
		}
		wr := sig.WinRate()
		switch {
		case wr < signalWeakWinRate && w > weightFloor:
			w *= weightDecay
			if w < weightFloor {
				w = weightFloor
			}
			a.state.SignalWeights[key] = w
			changes = append(changes, fmt.Sprintf("weight %s lowered to %.2f (win rate %.1f%%)", key, w, wr))
		case wr > signalStrongWinRate && w < weightCap:
			w *= weightBoost
			if w > weightCap {
				w = weightCap
			}
			a.state.SignalWeights[key] = w
			changes = append(changes, fmt.Sprintf("weight %s raised to %.2f (win rate %.1f%%)", key, w, wr))
		}
	}

	// Persistent losers get a cooldown
	now := time.Now()
	for asset, as := range stats.PerAsset {
		if as.Trades < assetMinTrades {
			continue
		}
		wr := float64(as.Wins) / float64(as.Trades) * 100
		if wr < assetBlockWinRate {
			if until, ok := a.state.BlockedAssets[asset]; ok && now.Before(until) {
				continue
			}
			a.state.BlockedAssets[asset] = now.Add(assetBlockHours * time.Hour)
			changes = append(changes, fmt.Sprintf("asset %s blocked for %dh (win rate %.1f%%)", asset, assetBlockHours, wr))
		}
	}

	a.state.TradesAtLastRun = totalClosed
	a.state.LastRun = now

	if len(changes) > 0 {
		a.state.AdaptationLog = append(a.state.AdaptationLog, Adaptation{Time: now, Changes: changes})
		if len(a.state.AdaptationLog) > maxLogEntries {
			a.state.AdaptationLog = a.state.AdaptationLog[len(a.state.AdaptationLog)-maxLogEntries:]
		}
		for _, c := range changes {
			a.logger.Info().Str("change", c).Msg("Strategy adapted")
		}
	} else {
		a.logger.Debug().Float64("win_rate", stats.WinRate).Msg("Adaptation pass made no changes")
	}

	return changes, a.store.Save(a.state)
}

// Log returns the recorded adaptation history, newest last
func (a *Adapter) Log() []Adaptation {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Adaptation, len(a.state.AdaptationLog))
	copy(out, a.state.AdaptationLog)
	return out
}
