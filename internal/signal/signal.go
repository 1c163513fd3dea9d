// Package signal turns indicator, liquidity, orderbook and sentiment
// readings into a single directional decision.
package signal

import (
	"encoding/json"
	"fmt"
)

// Direction is the decided trade direction
type Direction int

const (
	None Direction = iota
	Long
	Short
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "NONE"
	}
}

// MarshalJSON renders the direction by name
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON parses a direction name
func (d *Direction) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "LONG":
		*d = Long
	case "SHORT":
		*d = Short
	case "NONE", "NEUTRAL", "":
		*d = None
	default:
		return fmt.Errorf("unknown direction %q", s)
	}
	return nil
}

// Opposite returns the other trading direction; None maps to None
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	default:
		return None
	}
}

// Signal name keys shared with the tracker and adapter state files.
const (
	KeyBelowLowerBB  = "below_lower_bb"
	KeyAboveUpperBB  = "above_upper_bb"
	KeyRSIOversold   = "rsi_oversold"
	KeyRSIOverbought = "rsi_overbought"
	KeyTrending      = "trending"
	KeyAIBiasAligned = "ai_bias_aligned"
	KeyMomentum      = "momentum"
	KeyLiquidityBias = "liquidity_bias"
	KeyBookImbalance = "book_imbalance"
	KeyMultiTFRSI    = "multi_tf_rsi"
	KeyExtremeRSI    = "extreme_rsi"
)
