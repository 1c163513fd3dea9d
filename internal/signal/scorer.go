package signal

import (
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/hyperfarm/internal/indicators"
	"github.com/ajitpratap0/hyperfarm/internal/liquidity"
)

// Orderbook imbalance cutoffs on the top-of-book bid/ask volume ratio.
const (
	ImbalanceLong  = 1.5
	ImbalanceShort = 0.67
)

// Default confluence thresholds; the adapter and optimizer move these.
const (
	DefaultThreshold = 2
	MinThreshold     = 2
	MaxThreshold     = 4
)

// Inputs are the per-asset readings the scorer consumes
type Inputs struct {
	Snapshot  *indicators.Snapshot
	Liquidity *liquidity.Analysis // may be nil when history is short
	AIBias    Direction
	BidVolume float64 // summed top-of-book bid size
	AskVolume float64 // summed top-of-book ask size
}

// Thresholds are the score cutoffs per side
type Thresholds struct {
	Long  int
	Short int
}

// DefaultThresholds returns the starting cutoffs
func DefaultThresholds() Thresholds {
	return Thresholds{Long: DefaultThreshold, Short: DefaultThreshold}
}

// Decision is the scorer output. Venue rejections and no-trade outcomes
// are values, never errors.
type Decision struct {
	Direction  Direction
	LongScore  int
	ShortScore int
	Signals    []string // keys of the sources that fired for the winning side
	Extreme    bool     // extreme-RSI short circuit fired
}

// Score runs the confluence count. Each source contributes at most one
// point to one side, except the higher-timeframe RSI pair where the 1h
// and 4h readings each carry a point. An extreme oversold RSI reading on
// the primary or 1h timeframe short-circuits to LONG; there is
// deliberately no symmetric overbought short circuit.
func Score(asset string, in Inputs, th Thresholds) Decision {
	snap := in.Snapshot
	if snap == nil {
		return Decision{Direction: None}
	}
	flags := snap.Flags()

	if flags.ExtremeOversold {
		log.Info().
			Str("asset", asset).
			Float64("rsi", snap.RSI).
			Float64("rsi_1h", snap.RSI1h).
			Msg("Extreme oversold, forcing long entry signal")
		return Decision{
			Direction: Long,
			Signals:   []string{KeyExtremeRSI, KeyRSIOversold},
			Extreme:   true,
		}
	}

	var longScore, shortScore int
	var longSignals, shortSignals []string

	// Bollinger touch, gated on volume
	if flags.BelowLowerBB && flags.VolumeConfirmed {
		longScore++
		longSignals = append(longSignals, KeyBelowLowerBB)
	} else if flags.AboveUpperBB && flags.VolumeConfirmed {
		shortScore++
		shortSignals = append(shortSignals, KeyAboveUpperBB)
	}

	// RSI extremes, gated on volume
	if flags.RSIOversold && flags.VolumeConfirmed {
		longScore++
		longSignals = append(longSignals, KeyRSIOversold)
	} else if flags.RSIOverbought && flags.VolumeConfirmed {
		shortScore++
		shortSignals = append(shortSignals, KeyRSIOverbought)
	}

	// Directional index, only when trending
	if flags.Trending {
		if snap.PlusDI > snap.MinusDI {
			longScore++
			longSignals = append(longSignals, KeyTrending)
		} else if snap.MinusDI > snap.PlusDI {
			shortScore++
			shortSignals = append(shortSignals, KeyTrending)
		}
	}

	// Sentiment oracle bias
	switch in.AIBias {
	case Long:
		longScore++
		longSignals = append(longSignals, KeyAIBiasAligned)
	case Short:
		shortScore++
		shortSignals = append(shortSignals, KeyAIBiasAligned)
	}

	// Momentum vs short moving average
	if snap.Price > snap.SMA5 {
		longScore++
		longSignals = append(longSignals, KeyMomentum)
	} else if snap.Price < snap.SMA5 {
		shortScore++
		shortSignals = append(shortSignals, KeyMomentum)
	}

	// Liquidity bias
	if in.Liquidity != nil {
		switch in.Liquidity.Bias {
		case liquidity.BiasLong:
			longScore++
			longSignals = append(longSignals, KeyLiquidityBias)
		case liquidity.BiasShort:
			shortScore++
			shortSignals = append(shortSignals, KeyLiquidityBias)
		}
	}

	// Orderbook imbalance across the top levels
	if in.AskVolume > 0 {
		ratio := in.BidVolume / in.AskVolume
		if ratio > ImbalanceLong {
			longScore++
			longSignals = append(longSignals, KeyBookImbalance)
		} else if ratio < ImbalanceShort {
			shortScore++
			shortSignals = append(shortSignals, KeyBookImbalance)
		}
	}

	// Higher-timeframe RSI mean reversion; each timeframe contributes
	// its own point. Missing history reads as a neutral 50 and scores
	// neither side.
	for _, rsi := range []float64{snap.RSI1h, snap.RSI4h} {
		if rsi < 50 {
			longScore++
			longSignals = append(longSignals, KeyMultiTFRSI)
		} else if rsi > 50 {
			shortScore++
			shortSignals = append(shortSignals, KeyMultiTFRSI)
		}
	}

	d := Decision{LongScore: longScore, ShortScore: shortScore}
	switch {
	case longScore >= th.Long && longScore > shortScore:
		d.Direction = Long
		d.Signals = longSignals
	case shortScore >= th.Short && shortScore > longScore:
		d.Direction = Short
		d.Signals = shortSignals
	default:
		d.Direction = None
	}

	log.Debug().
		Str("asset", asset).
		Int("long_score", longScore).
		Int("short_score", shortScore).
		Int("long_threshold", th.Long).
		Int("short_threshold", th.Short).
		Str("direction", d.Direction.String()).
		Msg("Confluence scored")

	return d
}
