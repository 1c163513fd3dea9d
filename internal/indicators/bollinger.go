package indicators

import (
	"fmt"
	"math"
)

// Bollinger band defaults.
const (
	BBPeriod = 20
	BBStdDev = 2.0
)

// Bands holds one Bollinger band reading
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger calculates Bollinger bands over the trailing window. The middle
// band is a simple moving average; the width uses population standard
// deviation.
func Bollinger(prices []float64, period int, stdDev float64) (Bands, error) {
	if period < 1 {
		return Bands{}, fmt.Errorf("invalid Bollinger period %d", period)
	}
	if len(prices) < period {
		return Bands{}, fmt.Errorf("need at least %d prices for Bollinger, got %d", period, len(prices))
	}

	window := prices[len(prices)-period:]

	var sum float64
	for _, p := range window {
		sum += p
	}
	mean := sum / float64(period)

	var variance float64
	for _, p := range window {
		d := p - mean
		variance += d * d
	}
	variance /= float64(period)
	sd := math.Sqrt(variance)

	return Bands{
		Upper:  mean + stdDev*sd,
		Middle: mean,
		Lower:  mean - stdDev*sd,
	}, nil
}
