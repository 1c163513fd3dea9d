package indicators

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSIMonotonicGainsSaturates(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}

	rsi, err := RSI(prices, RSIPeriod)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi, "no losses means RSI saturates at 100")
}

func TestRSIMonotonicLossesNearZero(t *testing.T) {
	prices := make([]float64, 30)
	for i := range prices {
		prices[i] = 100 - float64(i)
	}

	rsi, err := RSI(prices, RSIPeriod)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, rsi, 1e-9)
}

func TestRSIBounds(t *testing.T) {
	prices := []float64{
		44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00,
		46.03, 46.41, 46.22, 45.64,
	}

	rsi, err := RSI(prices, RSIPeriod)
	require.NoError(t, err)
	assert.Greater(t, rsi, 0.0)
	assert.Less(t, rsi, 100.0)
	// Known Wilder fixture: RSI after this series sits near 58
	assert.InDelta(t, 58.0, rsi, 6.0)
}

func TestRSIRejectsShortHistory(t *testing.T) {
	_, err := RSI([]float64{1, 2, 3}, 14)
	assert.Error(t, err)
}

func TestBollingerFlatSeries(t *testing.T) {
	prices := make([]float64, 25)
	for i := range prices {
		prices[i] = 50.0
	}

	bands, err := Bollinger(prices, BBPeriod, BBStdDev)
	require.NoError(t, err)
	assert.Equal(t, 50.0, bands.Middle)
	assert.Equal(t, 50.0, bands.Upper, "zero variance collapses the bands")
	assert.Equal(t, 50.0, bands.Lower)
}

func TestBollingerPopulationStd(t *testing.T) {
	// Alternating series with known population std
	prices := make([]float64, BBPeriod)
	for i := range prices {
		if i%2 == 0 {
			prices[i] = 90
		} else {
			prices[i] = 110
		}
	}

	bands, err := Bollinger(prices, BBPeriod, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, bands.Middle, 1e-9)
	assert.InDelta(t, 100.0+2*10.0, bands.Upper, 1e-9)
	assert.InDelta(t, 100.0-2*10.0, bands.Lower, 1e-9)
}

func TestADXTrendingMarket(t *testing.T) {
	n := 40
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i := 0; i < n; i++ {
		base := 100 + 2*float64(i)
		highs[i] = base + 1
		lows[i] = base - 1
		closes[i] = base
	}

	di, err := ADX(highs, lows, closes, ADXPeriod)
	require.NoError(t, err)
	assert.Greater(t, di.ADX, ADXTrending, "steady uptrend should register as trending")
	assert.Greater(t, di.PlusDI, di.MinusDI)
}

func TestADXRejectsShortHistory(t *testing.T) {
	short := make([]float64, ADXPeriod+2)
	_, err := ADX(short, short, short, ADXPeriod)
	assert.Error(t, err)
}

func TestSmoothWilderSeed(t *testing.T) {
	data := []float64{2, 4, 6, 8, 10}
	out := smoothWilder(data, 4)
	require.Len(t, out, 5)
	assert.InDelta(t, 5.0, out[3], 1e-9, "seed is the simple average")
	assert.InDelta(t, (5.0*3+10)/4, out[4], 1e-9)
}

func makeBars(n int, trendPerBar float64) []Bar {
	bars := make([]Bar, n)
	for i := range bars {
		base := 100 + trendPerBar*float64(i) + 0.5*math.Sin(float64(i))
		bars[i] = Bar{
			Open:   base - 0.2,
			High:   base + 1,
			Low:    base - 1,
			Close:  base,
			Volume: 1000 + 10*float64(i),
		}
	}
	return bars
}

func TestComputeSnapshot(t *testing.T) {
	bars := makeBars(60, 0.5)
	closes1h := make([]float64, 30)
	closes4h := make([]float64, 30)
	for i := range closes1h {
		closes1h[i] = 100 + float64(i)
		closes4h[i] = 100 - float64(i)
	}

	snap, err := Compute("BTC", bars, closes1h, closes4h)
	require.NoError(t, err)

	assert.Equal(t, bars[len(bars)-1].Close, snap.Price)
	assert.Greater(t, snap.RSI, 50.0)
	assert.Equal(t, 100.0, snap.RSI1h)
	assert.InDelta(t, 0.0, snap.RSI4h, 1e-9)
	assert.Greater(t, snap.BBUpper, snap.BBMiddle)
	assert.Less(t, snap.BBLower, snap.BBMiddle)
	assert.InDelta(t, (snap.BBUpper-snap.BBLower)/snap.BBMiddle, snap.BBWidth, 1e-9)
	assert.Greater(t, snap.Volume, snap.VolumeMean, "rising volume beats its rolling mean")
	assert.InDelta(t, snap.Volume/snap.VolumeMean, snap.VolumeRatio, 1e-9)
	assert.Greater(t, snap.VolumeRatio, VolumeConfirmRatio)
}

func TestComputeSnapshotShortHistory(t *testing.T) {
	_, err := Compute("BTC", makeBars(10, 0), nil, nil)
	assert.Error(t, err)
}

func TestComputeSnapshotNeutralHigherTimeframes(t *testing.T) {
	snap, err := Compute("BTC", makeBars(60, 0.1), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 50.0, snap.RSI1h)
	assert.Equal(t, 50.0, snap.RSI4h)
}

func TestSignalFlags(t *testing.T) {
	snap := &Snapshot{
		Price:      95,
		RSI:        24,
		RSI1h:      50,
		BBUpper:    110,
		BBLower:    96,
		ADX:        25,
		Volume:     2000,
		VolumeMean: 1500,
	}

	flags := snap.Flags()
	assert.True(t, flags.BelowLowerBB)
	assert.False(t, flags.AboveUpperBB)
	assert.True(t, flags.RSIOversold)
	assert.True(t, flags.Trending)
	assert.True(t, flags.VolumeConfirmed)
	assert.True(t, flags.ExtremeOversold)
}

func TestSignalFlagsJSONKeys(t *testing.T) {
	data, err := json.Marshal(SignalFlags{BelowLowerBB: true, Trending: true})
	require.NoError(t, err)

	var m map[string]bool
	require.NoError(t, json.Unmarshal(data, &m))
	assert.True(t, m["below_lower_bb"])
	assert.True(t, m["trending"])
	assert.Contains(t, m, "rsi_oversold")
	assert.Contains(t, m, "volume_confirmed")
}
