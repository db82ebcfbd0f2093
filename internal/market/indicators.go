package market

import "math"

// Indicator windows. RSI and volatility need rsiPeriod+1 points; the full
// regime classifier needs fullWindow.
const (
	rsiPeriod    = 14
	emaFast      = 12
	emaSlow      = 26
	bollPeriod   = 20
	fullWindow   = 30
	swingLookback = 2
)

// RSI computes a Wilder-style relative strength index over the last period
// price changes. It returns the neutral value 50 when the series is too
// short and is bounded to [0,100].
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return 50
	}

	var gains, losses float64
	for i := len(prices) - period; i < len(prices); i++ {
		change := prices[i] - prices[i-1]
		if change > 0 {
			gains += change
		} else {
			losses -= change
		}
	}

	if losses == 0 {
		if gains == 0 {
			return 50
		}
		return 100
	}

	rs := (gains / float64(period)) / (losses / float64(period))
	return 100 - (100 / (1 + rs))
}

// EMA computes an exponential moving average seeded with the SMA of the
// first period points. Returns 0 for series shorter than period.
func EMA(prices []float64, period int) float64 {
	if len(prices) < period {
		return 0
	}

	mult := 2.0 / float64(period+1)
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	ema := sum / float64(period)

	for i := period; i < len(prices); i++ {
		ema = (prices[i]-ema)*mult + ema
	}
	return ema
}

// MACD returns the moving average convergence divergence line (fast EMA
// minus slow EMA) normalized by the slow EMA so it is comparable across
// price scales. Returns 0 for short series.
func MACD(prices []float64) float64 {
	slow := EMA(prices, emaSlow)
	if slow == 0 {
		return 0
	}
	fast := EMA(prices, emaFast)
	return (fast - slow) / slow
}

// BollingerBandwidth returns (upper-lower)/middle for a period-point window
// with 2 standard deviation bands. Returns 0 for short series or a zero
// midline.
func BollingerBandwidth(prices []float64, period int) float64 {
	if len(prices) < period {
		return 0
	}

	var sum float64
	for i := len(prices) - period; i < len(prices); i++ {
		sum += prices[i]
	}
	sma := sum / float64(period)
	if sma == 0 {
		return 0
	}

	var variance float64
	for i := len(prices) - period; i < len(prices); i++ {
		d := prices[i] - sma
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))

	return (4 * sd) / sma
}

// NormalizedVolatility maps Bollinger bandwidth into [0,1], saturating at a
// 10% bandwidth which is extreme for the window sizes used here.
func NormalizedVolatility(prices []float64) float64 {
	bw := BollingerBandwidth(prices, bollPeriod)
	return clamp01(bw / 0.10)
}

// TrendSlope fits a least-squares line through the series and returns the
// per-step slope normalized by the mean price, so +0.01 means the price
// drifts up 1% per observation.
func TrendSlope(prices []float64) float64 {
	n := len(prices)
	if n < 2 {
		return 0
	}

	var sumX, sumY, sumXY, sumXX float64
	for i, p := range prices {
		x := float64(i)
		sumX += x
		sumY += p
		sumXY += x * p
		sumXX += x * x
	}
	fn := float64(n)
	denom := fn*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (fn*sumXY - sumX*sumY) / denom

	mean := sumY / fn
	if mean == 0 {
		return 0
	}
	return slope / mean
}

// TrendStrength is a Kaufman-style efficiency ratio in [0,1]: net movement
// over the sum of absolute movements. 1 means every step moved the same
// direction (ADX-strong trend), 0 means pure chop.
func TrendStrength(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}

	net := math.Abs(prices[len(prices)-1] - prices[0])
	var total float64
	for i := 1; i < len(prices); i++ {
		total += math.Abs(prices[i] - prices[i-1])
	}
	if total == 0 {
		return 0
	}
	return clamp01(net / total)
}

// Divergence reports whether recent price extrema disagree with the RSI
// oscillator: a higher price high on a lower RSI high (bearish) or a lower
// price low on a higher RSI low (bullish). Either disagreement returns true.
func Divergence(prices []float64) bool {
	if len(prices) < rsiPeriod*2 {
		return false
	}

	half := len(prices) / 2
	early, late := prices[:half], prices[half:]

	earlyHigh, earlyLow := extrema(early)
	lateHigh, lateLow := extrema(late)

	earlyRSI := RSI(early, rsiPeriod)
	lateRSI := RSI(late, rsiPeriod)

	if lateHigh > earlyHigh && lateRSI < earlyRSI {
		return true
	}
	if lateLow < earlyLow && lateRSI > earlyRSI {
		return true
	}
	return false
}

func extrema(prices []float64) (high, low float64) {
	high, low = prices[0], prices[0]
	for _, p := range prices[1:] {
		if p > high {
			high = p
		}
		if p < low {
			low = p
		}
	}
	return high, low
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
