package risk

import (
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
)

const (
	// MinNotional is the smallest order the venue accepts
	MinNotional = 10.0
	// MaxNotionalFactor caps notional at this fraction of balance times leverage
	MaxNotionalFactor = 0.6
)

// SizePlan is the outcome of position sizing. A non-viable plan is a
// normal result, not an error: the entry is skipped and the reason logged.
type SizePlan struct {
	Viable   bool
	Reason   string
	Size     float64 // in asset units, rounded to szDecimals
	Notional float64 // in USD
	Leverage int     // effective leverage after the venue cap
	TPPct    float64
	SLPct    float64
}

// ComputeSize sizes an entry from the account balance and the asset's
// constraints. Leverage is the tier value clamped to the venue maximum.
func ComputeSize(balance, price float64, assetMaxLeverage, szDecimals int) SizePlan {
	if balance <= 0 || price <= 0 {
		return SizePlan{Reason: fmt.Sprintf("invalid balance %.2f or price %.4f", balance, price)}
	}

	tier := TierFor(balance)
	leverage := tier.Leverage
	if assetMaxLeverage > 0 && leverage > assetMaxLeverage {
		leverage = assetMaxLeverage
	}

	notional := balance * tier.RiskPct * float64(leverage)
	cap := MaxNotionalFactor * balance * float64(leverage)
	if notional > cap {
		notional = cap
	}

	if notional < MinNotional {
		log.Debug().
			Float64("balance", balance).
			Float64("notional", notional).
			Msg("Sized notional below venue minimum, skipping entry")
		return SizePlan{Reason: fmt.Sprintf("notional %.2f below minimum %.2f", notional, MinNotional)}
	}

	scale := math.Pow10(szDecimals)
	size := math.Floor(notional/price*scale) / scale
	if size <= 0 {
		return SizePlan{Reason: "size rounds to zero at asset precision"}
	}

	return SizePlan{
		Viable:   true,
		Size:     size,
		Notional: size * price,
		Leverage: leverage,
		TPPct:    tier.TPPct,
		SLPct:    tier.SLPct,
	}
}

// TargetPrices computes the take-profit and stop-loss trigger prices for
// an entry.
func (p SizePlan) TargetPrices(entry float64, isLong bool) (tp, sl float64) {
	if isLong {
		return entry * (1 + p.TPPct), entry * (1 - p.SLPct)
	}
	return entry * (1 - p.TPPct), entry * (1 + p.SLPct)
}

// MarginRequired is the collateral the position consumes
func (p SizePlan) MarginRequired() float64 {
	if p.Leverage == 0 {
		return 0
	}
	return p.Notional / float64(p.Leverage)
}
