// Package optimizer runs the slow macro loop: every few hours it asks the
// research model for a market regime read and retunes stop/target
// multipliers, score thresholds and the active asset set.
package optimizer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajitpratap0/hyperfarm/internal/signal"
	"github.com/ajitpratap0/hyperfarm/internal/statefile"
	"github.com/ajitpratap0/hyperfarm/internal/tracker"
)

// Analyst produces a free-text market read for a prompt. The sentiment
// oracle satisfies this.
type Analyst interface {
	Completion(ctx context.Context, prompt string) (string, error)
}

// Regime labels the current market environment
type Regime string

const (
	RegimeStrongBear Regime = "STRONG_BEAR"
	RegimeMildBear   Regime = "MILD_BEAR"
	RegimeRanging    Regime = "RANGING"
	RegimeMildBull   Regime = "MILD_BULL"
	RegimeStrongBull Regime = "STRONG_BULL"
)

// Adjustments are the regime-dependent tuning knobs applied on top of the
// risk tier values.
type Adjustments struct {
	SLMult         float64 `json:"sl_mult"`
	TPMult         float64 `json:"tp_mult"`
	LongThreshold  int     `json:"long_th"`
	ShortThreshold int     `json:"short_th"`
}

var regimeAdjustments = map[Regime]Adjustments{
	RegimeStrongBear: {SLMult: 0.8, TPMult: 1.2, LongThreshold: 3, ShortThreshold: 2},
	RegimeMildBear:   {SLMult: 1.0, TPMult: 1.0, LongThreshold: 2, ShortThreshold: 2},
	RegimeRanging:    {SLMult: 0.8, TPMult: 0.8, LongThreshold: 2, ShortThreshold: 2},
	RegimeMildBull:   {SLMult: 1.0, TPMult: 1.0, LongThreshold: 2, ShortThreshold: 2},
	RegimeStrongBull: {SLMult: 1.2, TPMult: 0.8, LongThreshold: 2, ShortThreshold: 3},
}

const (
	// Interval between optimization passes
	Interval = 5 * time.Hour

	// An asset is dropped when it has this many trades and its total pnl
	// is below the loss floor.
	assetDropMinTrades = 5
	assetDropPnLFloor  = -1.0

	maxSnapshots      = 50
	maxHistoryEntries = 500
)

var regimeScoreRe = regexp.MustCompile(`(?i)REGIME_SCORE[:\s]+([+-]?\d+\.?\d*)`)

// Snapshot is one recorded optimization pass
type Snapshot struct {
	Time     time.Time `json:"time"`
	Regime   Regime    `json:"regime"`
	Score    float64   `json:"score"`
	WinRate  float64   `json:"win_rate"`
	TotalPnL float64   `json:"total_pnl"`
}

// Result is what one optimization pass decided
type Result struct {
	Regime       Regime
	Score        float64
	Adjustments  Adjustments
	RemovedAsset string
}

type optState struct {
	Regime      Regime      `json:"regime"`
	Score       float64     `json:"score"`
	Adjustments Adjustments `json:"adjustments"`
	LastRun     time.Time   `json:"last_run"`
	Snapshots   []Snapshot  `json:"performance_snapshots"`
}

// HistoryEntry is one trade record fed to future optimization prompts
type HistoryEntry struct {
	Time      time.Time        `json:"time"`
	Asset     string           `json:"asset"`
	Direction signal.Direction `json:"direction"`
	Notional  float64          `json:"notional"`
	Regime    Regime           `json:"regime"`
}

type historyFile struct {
	Entries []HistoryEntry `json:"entries"`
}

// Optimizer owns optimizer_state.json and trade_history.json
type Optimizer struct {
	mu           sync.Mutex
	stateStore   *statefile.Store
	historyStore *statefile.Store
	analyst      Analyst
	state        optState
	history      historyFile
	logger       zerolog.Logger
}

// New loads optimizer state. The regime defaults to RANGING until the
// first pass completes.
func New(stateStore, historyStore *statefile.Store, analyst Analyst, logger zerolog.Logger) (*Optimizer, error) {
	o := &Optimizer{
		stateStore:   stateStore,
		historyStore: historyStore,
		analyst:      analyst,
		state: optState{
			Regime:      RegimeRanging,
			Adjustments: regimeAdjustments[RegimeRanging],
		},
		logger: logger,
	}

	if err := stateStore.Load(&o.state); err != nil {
		return nil, fmt.Errorf("failed to load optimizer state: %w", err)
	}
	if err := historyStore.Load(&o.history); err != nil {
		return nil, fmt.Errorf("failed to load trade history: %w", err)
	}
	if _, ok := regimeAdjustments[o.state.Regime]; !ok {
		o.state.Regime = RegimeRanging
		o.state.Adjustments = regimeAdjustments[RegimeRanging]
	}

	logger.Info().
		Str("regime", string(o.state.Regime)).
		Time("last_run", o.state.LastRun).
		Msg("Optimizer loaded")

	return o, nil
}

// ShouldOptimize reports whether the optimization interval has elapsed
func (o *Optimizer) ShouldOptimize() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return time.Since(o.state.LastRun) >= Interval
}

// Regime returns the current regime label
func (o *Optimizer) Regime() Regime {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Regime
}

// Adjustments returns the current regime adjustments
func (o *Optimizer) Adjustments() Adjustments {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Adjustments
}

// Optimize runs one pass: query the analyst, classify the regime, pick
// adjustments and drop the worst persistent loser from the active set.
// The pass timestamp is stamped up front so a failing analyst does not
// get hammered every tick.
func (o *Optimizer) Optimize(ctx context.Context, activeAssets []string, stats tracker.Stats) (Result, error) {
	o.mu.Lock()
	o.state.LastRun = time.Now()
	prompt := o.buildPrompt(activeAssets, stats)
	o.mu.Unlock()

	text, err := o.analyst.Completion(ctx, prompt)
	if err != nil {
		o.mu.Lock()
		saveErr := o.stateStore.Save(o.state)
		o.mu.Unlock()
		if saveErr != nil {
			o.logger.Warn().Err(saveErr).Msg("Failed to persist optimizer state")
		}
		return Result{}, fmt.Errorf("regime query failed: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	score := parseRegimeScore(text)
	regime := classifyRegime(score)

	o.state.Regime = regime
	o.state.Score = score
	o.state.Adjustments = regimeAdjustments[regime]

	o.state.Snapshots = append(o.state.Snapshots, Snapshot{
		Time:     o.state.LastRun,
		Regime:   regime,
		Score:    score,
		WinRate:  stats.WinRate,
		TotalPnL: stats.TotalPnL,
	})
	if len(o.state.Snapshots) > maxSnapshots {
		o.state.Snapshots = o.state.Snapshots[len(o.state.Snapshots)-maxSnapshots:]
	}

	res := Result{
		Regime:       regime,
		Score:        score,
		Adjustments:  o.state.Adjustments,
		RemovedAsset: worstAsset(stats),
	}

	o.logger.Info().
		Str("regime", string(regime)).
		Float64("score", score).
		Str("removed_asset", res.RemovedAsset).
		Msg("Optimization pass complete")

	return res, o.stateStore.Save(o.state)
}

// LogTrade records an opened trade for future optimization context
func (o *Optimizer) LogTrade(asset string, dir signal.Direction, notional float64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.history.Entries = append(o.history.Entries, HistoryEntry{
		Time:      time.Now(),
		Asset:     asset,
		Direction: dir,
		Notional:  notional,
		Regime:    o.state.Regime,
	})
	if len(o.history.Entries) > maxHistoryEntries {
		o.history.Entries = o.history.Entries[len(o.history.Entries)-maxHistoryEntries:]
	}
	return o.historyStore.Save(o.history)
}

func (o *Optimizer) buildPrompt(activeAssets []string, stats tracker.Stats) string {
	var b strings.Builder
	b.WriteString("You are analyzing crypto perpetual futures market conditions.\n")
	fmt.Fprintf(&b, "Active assets: %s\n", strings.Join(activeAssets, ", "))
	fmt.Fprintf(&b, "Recent performance: %d trades, %.1f%% win rate, %.2f USD total pnl.\n",
		stats.Total, stats.WinRate, stats.TotalPnL)

	recent := o.history.Entries
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	for _, e := range recent {
		fmt.Fprintf(&b, "- %s %s notional %.0f during %s\n", e.Asset, e.Direction, e.Notional, e.Regime)
	}

	b.WriteString("\nAssess the overall market regime for the next several hours. ")
	b.WriteString("End your answer with a line of the exact form REGIME_SCORE: <value> ")
	b.WriteString("where <value> is between -1.0 (strongly bearish) and 1.0 (strongly bullish).")
	return b.String()
}

// parseRegimeScore extracts the REGIME_SCORE value, clamped to [-1, 1].
// The last occurrence wins: analysts tend to restate the score at the
// end of the answer. Missing or unparseable scores read as 0 (ranging).
func parseRegimeScore(text string) float64 {
	all := regimeScoreRe.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return 0
	}
	m := all[len(all)-1]
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return v
}

func classifyRegime(score float64) Regime {
	switch {
	case score <= -0.5:
		return RegimeStrongBear
	case score <= -0.2:
		return RegimeMildBear
	case score >= 0.5:
		return RegimeStrongBull
	case score >= 0.2:
		return RegimeMildBull
	default:
		return RegimeRanging
	}
}

// worstAsset picks the asset to drop: enough trades, losing more than the
// floor, and the worst of any such candidates.
func worstAsset(stats tracker.Stats) string {
	var worst string
	worstPnL := assetDropPnLFloor
	for asset, as := range stats.PerAsset {
		if as.Trades >= assetDropMinTrades && as.TotalPnL < worstPnL {
			worst = asset
			worstPnL = as.TotalPnL
		}
	}
	return worst
}
