package risk

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// DrawdownGuard pauses new entries when the account draws down too far
// from its high-water mark and resumes once it recovers to half the pause
// level. Managing and closing existing positions is never paused.
type DrawdownGuard struct {
	mu        sync.Mutex
	pausePct  float64
	resumePct float64
	peak      float64
	paused    bool
}

// NewDrawdownGuard creates a guard with pause/resume thresholds in percent
func NewDrawdownGuard(pausePct, resumePct float64) *DrawdownGuard {
	return &DrawdownGuard{pausePct: pausePct, resumePct: resumePct}
}

// Update feeds the current account value and returns whether entries are
// paused plus the current drawdown percentage.
func (g *DrawdownGuard) Update(accountValue float64) (paused bool, drawdownPct float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if accountValue > g.peak {
		g.peak = accountValue
	}
	if g.peak <= 0 {
		return g.paused, 0
	}

	drawdownPct = (g.peak - accountValue) / g.peak * 100

	if !g.paused && drawdownPct > g.pausePct {
		g.paused = true
		log.Warn().
			Float64("drawdown_pct", drawdownPct).
			Float64("peak", g.peak).
			Float64("account_value", accountValue).
			Msg("Drawdown limit hit, pausing new entries")
	} else if g.paused && drawdownPct < g.resumePct {
		g.paused = false
		log.Info().
			Float64("drawdown_pct", drawdownPct).
			Msg("Drawdown recovered, resuming entries")
	}

	return g.paused, drawdownPct
}

// Paused reports the current pause state without updating
func (g *DrawdownGuard) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// Peak returns the high-water mark
func (g *DrawdownGuard) Peak() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}
