package indicators

import "fmt"

// Default periods and thresholds for the signal engine.
const (
	RSIPeriod     = 14
	RSIOversold   = 35.0
	RSIOverbought = 65.0
	ExtremeRSI    = 25.0
)

// RSI calculates the Relative Strength Index with Wilder smoothing.
// The first average uses a simple mean over the seed window; later values
// use the classic (prev*(period-1)+x)/period recurrence. When the average
// loss is zero the RSI saturates at 100.
func RSI(prices []float64, period int) (float64, error) {
	if period < 1 {
		return 0, fmt.Errorf("invalid RSI period %d", period)
	}
	if len(prices) < period+1 {
		return 0, fmt.Errorf("need at least %d prices for RSI, got %d", period+1, len(prices))
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		diff := prices[i] - prices[i-1]
		if diff > 0 {
			avgGain += diff
		} else {
			avgLoss -= diff
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period + 1; i < len(prices); i++ {
		diff := prices[i] - prices[i-1]
		gain, loss := 0.0, 0.0
		if diff > 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, nil
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), nil
}
