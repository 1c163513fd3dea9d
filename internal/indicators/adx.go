package indicators

import (
	"fmt"
	"math"
)

// ADX defaults.
const (
	ADXPeriod   = 14
	ADXTrending = 20.0
)

// DirectionalIndex holds ADX and the directional indicator pair
type DirectionalIndex struct {
	ADX     float64
	PlusDI  float64
	MinusDI float64
}

// smoothWilder applies Wilder smoothing: the value at period-1 is a simple
// average of the seed window, then (prev*(period-1)+x)/period.
func smoothWilder(data []float64, period int) []float64 {
	if len(data) < period {
		return nil
	}

	out := make([]float64, len(data))
	var seed float64
	for i := 0; i < period; i++ {
		seed += data[i]
	}
	out[period-1] = seed / float64(period)

	for i := period; i < len(data); i++ {
		out[i] = (out[i-1]*float64(period-1) + data[i]) / float64(period)
	}
	return out
}

// ADX calculates the average directional index from OHLC bars. Requires at
// least period+5 bars beyond the differencing step so the DX tail has
// enough samples to average. The final ADX is the mean of the last period
// DX values.
func ADX(highs, lows, closes []float64, period int) (DirectionalIndex, error) {
	n := len(closes)
	if len(highs) != n || len(lows) != n {
		return DirectionalIndex{}, fmt.Errorf("mismatched OHLC lengths: %d/%d/%d", len(highs), len(lows), n)
	}
	if n < period+5 {
		return DirectionalIndex{}, fmt.Errorf("need at least %d bars for ADX, got %d", period+5, n)
	}

	tr := make([]float64, n-1)
	plusDM := make([]float64, n-1)
	minusDM := make([]float64, n-1)

	for i := 1; i < n; i++ {
		highDiff := highs[i] - highs[i-1]
		lowDiff := lows[i-1] - lows[i]

		// +DM and -DM mask each other: only the larger positive move counts
		if highDiff > lowDiff && highDiff > 0 {
			plusDM[i-1] = highDiff
		}
		if lowDiff > highDiff && lowDiff > 0 {
			minusDM[i-1] = lowDiff
		}

		tr[i-1] = math.Max(highs[i]-lows[i],
			math.Max(math.Abs(highs[i]-closes[i-1]), math.Abs(lows[i]-closes[i-1])))
	}

	smTR := smoothWilder(tr, period)
	smPlus := smoothWilder(plusDM, period)
	smMinus := smoothWilder(minusDM, period)

	var dx []float64
	var lastPlusDI, lastMinusDI float64
	for i := period - 1; i < len(tr); i++ {
		if smTR[i] == 0 {
			continue
		}
		plusDI := 100 * smPlus[i] / smTR[i]
		minusDI := 100 * smMinus[i] / smTR[i]
		lastPlusDI, lastMinusDI = plusDI, minusDI

		sum := plusDI + minusDI
		if sum == 0 {
			continue
		}
		dx = append(dx, 100*math.Abs(plusDI-minusDI)/sum)
	}

	if len(dx) == 0 {
		return DirectionalIndex{}, fmt.Errorf("no DX samples for ADX")
	}

	tail := dx
	if len(tail) > period {
		tail = tail[len(tail)-period:]
	}
	var adx float64
	for _, v := range tail {
		adx += v
	}
	adx /= float64(len(tail))

	return DirectionalIndex{ADX: adx, PlusDI: lastPlusDI, MinusDI: lastMinusDI}, nil
}
