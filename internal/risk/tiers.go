// Package risk owns position sizing, the balance tier table, the account
// drawdown guard and open-position management.
package risk

import "math"

// Tier maps an account balance band to leverage and risk parameters
type Tier struct {
	MinBalance float64
	MaxBalance float64 // exclusive; +Inf for the top tier
	Leverage   int
	RiskPct    float64 // fraction of balance risked per trade
	TPPct      float64 // take-profit distance from entry
	SLPct      float64 // stop-loss distance from entry
}

// tiers is the balance ladder. Small accounts run conservative leverage
// and tighter targets; larger accounts widen both.
var tiers = []Tier{
	{MinBalance: 0, MaxBalance: 30, Leverage: 3, RiskPct: 0.30, TPPct: 0.03, SLPct: 0.015},
	{MinBalance: 30, MaxBalance: 70, Leverage: 5, RiskPct: 0.40, TPPct: 0.035, SLPct: 0.018},
	{MinBalance: 70, MaxBalance: math.Inf(1), Leverage: 5, RiskPct: 0.50, TPPct: 0.04, SLPct: 0.02},
}

// TierFor returns the tier for an account balance
func TierFor(balance float64) Tier {
	for _, t := range tiers {
		if balance >= t.MinBalance && balance < t.MaxBalance {
			return t
		}
	}
	return tiers[len(tiers)-1]
}

// Tiers returns a copy of the tier table
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}
