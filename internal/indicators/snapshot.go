package indicators

import (
	"fmt"

	"github.com/cinar/indicator/v2/trend"
	"github.com/rs/zerolog/log"
)

// Snapshot defaults.
const (
	SMAPeriod    = 5
	VolumePeriod = 20
	// MinBars is the shortest candle history the snapshot accepts
	MinBars = VolumePeriod + 5
	// VolumeConfirmRatio is the volume-to-mean multiple that counts as
	// confirmation for the gated signals
	VolumeConfirmRatio = 1.0
)

// Bar is one OHLCV input to the snapshot engine
type Bar struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Snapshot is a full indicator reading for one asset at one instant
type Snapshot struct {
	Price      float64 `json:"price"`
	RSI        float64 `json:"rsi"`
	RSI1h      float64 `json:"rsi_1h"`
	RSI4h      float64 `json:"rsi_4h"`
	BBUpper    float64 `json:"bb_upper"`
	BBMiddle   float64 `json:"bb_middle"`
	BBLower    float64 `json:"bb_lower"`
	BBWidth    float64 `json:"bb_width"`
	ADX        float64 `json:"adx"`
	PlusDI     float64 `json:"plus_di"`
	MinusDI    float64 `json:"minus_di"`
	SMA5       float64 `json:"sma5"`
	Volume     float64 `json:"volume"`
	VolumeMean float64 `json:"volume_mean"`
	// VolumeRatio is Volume over VolumeMean, 0 when the mean is empty
	VolumeRatio float64 `json:"volume_ratio"`
}

// SignalFlags are the derived booleans the scorer consumes. The JSON keys
// double as signal names in trade records and adapter weights.
type SignalFlags struct {
	BelowLowerBB    bool `json:"below_lower_bb"`
	AboveUpperBB    bool `json:"above_upper_bb"`
	RSIOversold     bool `json:"rsi_oversold"`
	RSIOverbought   bool `json:"rsi_overbought"`
	Trending        bool `json:"trending"`
	VolumeConfirmed bool `json:"volume_confirmed"`
	ExtremeOversold bool `json:"extreme_oversold"`
}

// Flags derives the boolean signal view from the raw readings
func (s *Snapshot) Flags() SignalFlags {
	return SignalFlags{
		BelowLowerBB:    s.Price < s.BBLower,
		AboveUpperBB:    s.Price > s.BBUpper,
		RSIOversold:     s.RSI < RSIOversold,
		RSIOverbought:   s.RSI > RSIOverbought,
		Trending:        s.ADX > ADXTrending,
		VolumeConfirmed: s.Volume > s.VolumeMean*VolumeConfirmRatio,
		ExtremeOversold: s.RSI < ExtremeRSI || s.RSI1h < ExtremeRSI,
	}
}

// Compute builds a snapshot from primary bars plus 1h and 4h closes for
// the multi-timeframe RSI. Returns an error when history is too short for
// a reliable reading; callers treat that as "no signal", not a fault.
func Compute(asset string, bars []Bar, closes1h, closes4h []float64) (*Snapshot, error) {
	if len(bars) < MinBars {
		return nil, fmt.Errorf("%s: need %d bars for snapshot, got %d", asset, MinBars, len(bars))
	}

	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
		volumes[i] = b.Volume
	}

	rsi, err := RSI(closes, RSIPeriod)
	if err != nil {
		return nil, err
	}

	bands, err := Bollinger(closes, BBPeriod, BBStdDev)
	if err != nil {
		return nil, err
	}

	di, err := ADX(highs, lows, closes, ADXPeriod)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Price:      closes[len(closes)-1],
		RSI:        rsi,
		BBUpper:    bands.Upper,
		BBMiddle:   bands.Middle,
		BBLower:    bands.Lower,
		ADX:        di.ADX,
		PlusDI:     di.PlusDI,
		MinusDI:    di.MinusDI,
		SMA5:       lastSMA(closes, SMAPeriod),
		Volume:     volumes[len(volumes)-1],
		VolumeMean: lastSMA(volumes, VolumePeriod),
	}
	if snap.BBMiddle > 0 {
		snap.BBWidth = (snap.BBUpper - snap.BBLower) / snap.BBMiddle
	}
	if snap.VolumeMean > 0 {
		snap.VolumeRatio = snap.Volume / snap.VolumeMean
	}

	// Missing higher-timeframe history degrades to a neutral reading
	snap.RSI1h, snap.RSI4h = 50, 50
	if r, err := RSI(closes1h, RSIPeriod); err == nil {
		snap.RSI1h = r
	}
	if r, err := RSI(closes4h, RSIPeriod); err == nil {
		snap.RSI4h = r
	}

	log.Debug().
		Str("asset", asset).
		Float64("price", snap.Price).
		Float64("rsi", snap.RSI).
		Float64("adx", snap.ADX).
		Msg("Indicator snapshot computed")

	return snap, nil
}

// lastSMA returns the final value of a simple moving average stream
func lastSMA(data []float64, period int) float64 {
	if len(data) < period {
		period = len(data)
	}
	in := make(chan float64, len(data))
	for _, v := range data {
		in <- v
	}
	close(in)

	sma := trend.NewSmaWithPeriod[float64](period)
	var last float64
	for v := range sma.Compute(in) {
		last = v
	}
	return last
}
