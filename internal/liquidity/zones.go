// Package liquidity maps price levels where resting liquidity clusters:
// swing points, high-volume nodes, round numbers and estimated
// liquidation bands.
package liquidity

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"
)

const (
	// MinBars is the shortest 1h history the analyzer accepts
	MinBars = 30
	// SwingLookback is the bar count on each side of a swing point
	SwingLookback = 5
	// ProfileBins is the number of volume profile buckets
	ProfileBins = 20
	// TopVolumeNodes is how many profile bins become levels
	TopVolumeNodes = 3
	// MaxLevels caps supports and resistances each
	MaxLevels = 5
	// FallbackDistance is used when no level exists on a side
	FallbackDistance = 0.03
	// BiasRatio: a side wins when its distance is under half the other's
	BiasRatio = 0.5
	// DedupeEpsilon is the relative gap under which two levels are one zone
	DedupeEpsilon = 1e-4
)

// Bias is the directional lean implied by nearby liquidity
type Bias int

const (
	BiasNeutral Bias = iota
	BiasLong
	BiasShort
)

func (b Bias) String() string {
	switch b {
	case BiasLong:
		return "LONG"
	case BiasShort:
		return "SHORT"
	default:
		return "NEUTRAL"
	}
}

// Bar is one 1h OHLCV input bar
type Bar struct {
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Analysis is the liquidity picture around the current price
type Analysis struct {
	Supports          []float64 `json:"supports"`    // sorted best (highest) first
	Resistances       []float64 `json:"resistances"` // sorted best (lowest) first
	NearestSupport    float64   `json:"nearest_support"`
	NearestResistance float64   `json:"nearest_resistance"`
	Bias              Bias      `json:"-"`
	LongLiquidations  []float64 `json:"long_liquidations"`
	ShortLiquidations []float64 `json:"short_liquidations"`
}

// Analyze builds the liquidity picture from 1h bars. Needs MinBars of
// history; shorter histories return an error the caller treats as
// "no read".
func Analyze(asset string, bars []Bar, price float64) (*Analysis, error) {
	if len(bars) < MinBars {
		return nil, fmt.Errorf("%s: need %d bars for liquidity analysis, got %d", asset, MinBars, len(bars))
	}
	if price <= 0 {
		return nil, fmt.Errorf("%s: invalid price %.4f", asset, price)
	}

	levels := swingLevels(bars)
	levels = append(levels, volumeNodes(bars)...)
	levels = append(levels, roundNumbers(price)...)

	a := &Analysis{}
	for _, lv := range levels {
		if lv <= 0 {
			continue
		}
		if lv < price {
			a.Supports = append(a.Supports, lv)
		} else if lv > price {
			a.Resistances = append(a.Resistances, lv)
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(a.Supports)))
	sort.Float64s(a.Resistances)
	a.Supports = dedupeSorted(a.Supports)
	a.Resistances = dedupeSorted(a.Resistances)
	if len(a.Supports) > MaxLevels {
		a.Supports = a.Supports[:MaxLevels]
	}
	if len(a.Resistances) > MaxLevels {
		a.Resistances = a.Resistances[:MaxLevels]
	}

	a.NearestSupport = price * (1 - FallbackDistance)
	if len(a.Supports) > 0 {
		a.NearestSupport = a.Supports[0]
	}
	a.NearestResistance = price * (1 + FallbackDistance)
	if len(a.Resistances) > 0 {
		a.NearestResistance = a.Resistances[0]
	}

	distSupport := price - a.NearestSupport
	distResistance := a.NearestResistance - price
	switch {
	case distSupport < distResistance*BiasRatio:
		a.Bias = BiasLong
	case distResistance < distSupport*BiasRatio:
		a.Bias = BiasShort
	default:
		a.Bias = BiasNeutral
	}

	a.LongLiquidations, a.ShortLiquidations = LiquidationClusters(price)

	log.Debug().
		Str("asset", asset).
		Float64("nearest_support", a.NearestSupport).
		Float64("nearest_resistance", a.NearestResistance).
		Str("bias", a.Bias.String()).
		Msg("Liquidity analysis complete")

	return a, nil
}

// dedupeSorted collapses adjacent levels within DedupeEpsilon of each
// other; a swing point and a round number at the same price are one zone.
func dedupeSorted(levels []float64) []float64 {
	out := levels[:0]
	for _, lv := range levels {
		if len(out) > 0 && math.Abs(lv-out[len(out)-1]) <= out[len(out)-1]*DedupeEpsilon {
			continue
		}
		out = append(out, lv)
	}
	return out
}

// swingLevels finds swing highs and lows with SwingLookback bars on each side
func swingLevels(bars []Bar) []float64 {
	var levels []float64
	for i := SwingLookback; i < len(bars)-SwingLookback; i++ {
		isHigh, isLow := true, true
		for j := 1; j <= SwingLookback; j++ {
			if bars[i].High <= bars[i-j].High || bars[i].High <= bars[i+j].High {
				isHigh = false
			}
			if bars[i].Low >= bars[i-j].Low || bars[i].Low >= bars[i+j].Low {
				isLow = false
			}
		}
		if isHigh {
			levels = append(levels, bars[i].High)
		}
		if isLow {
			levels = append(levels, bars[i].Low)
		}
	}
	return levels
}

// volumeNodes bins traded volume by price and returns the centers of the
// heaviest bins. Bars without volume fall back to a range-times-close
// proxy.
func volumeNodes(bars []Bar) []float64 {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, b := range bars {
		lo = math.Min(lo, b.Low)
		hi = math.Max(hi, b.High)
	}
	if hi <= lo {
		return nil
	}

	binSize := (hi - lo) / ProfileBins
	volumes := make([]float64, ProfileBins)
	for _, b := range bars {
		mid := (b.High + b.Low) / 2
		idx := int((mid - lo) / binSize)
		if idx >= ProfileBins {
			idx = ProfileBins - 1
		}
		vol := b.Volume
		if vol == 0 {
			vol = (b.High - b.Low) * b.Close
		}
		volumes[idx] += vol
	}

	type bin struct {
		idx int
		vol float64
	}
	ranked := make([]bin, ProfileBins)
	for i, v := range volumes {
		ranked[i] = bin{i, v}
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].vol > ranked[j].vol })

	nodes := make([]float64, 0, TopVolumeNodes)
	for _, b := range ranked[:TopVolumeNodes] {
		if b.vol == 0 {
			continue
		}
		nodes = append(nodes, lo+(float64(b.idx)+0.5)*binSize)
	}
	return nodes
}

// roundStep picks the round-number grid step for a price magnitude
func roundStep(price float64) float64 {
	switch {
	case price >= 10000:
		return 1000
	case price >= 1000:
		return 100
	case price >= 100:
		return 10
	case price >= 10:
		return 5
	case price >= 1:
		return 0.5
	default:
		return 0.05
	}
}

// roundNumbers returns the nearest round level and two steps either side
func roundNumbers(price float64) []float64 {
	step := roundStep(price)
	base := math.Round(price/step) * step

	levels := make([]float64, 0, 5)
	for i := -2; i <= 2; i++ {
		levels = append(levels, base+float64(i)*step)
	}
	return levels
}

// LiquidationClusters estimates where leveraged positions liquidate:
// entry*(1 - 1/lev) below for longs, entry*(1 + 1/lev) above for shorts,
// for common leverage tiers.
func LiquidationClusters(price float64) (longs, shorts []float64) {
	for lev := 3; lev <= 20; lev += 2 {
		frac := 1.0 / float64(lev)
		longs = append(longs, round2(price*(1-frac)))
		shorts = append(shorts, round2(price*(1+frac)))
	}
	return longs, shorts
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
