package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// zigzag alternates up/down around a midpoint, i.e. pure chop.
func zigzag(n int, mid, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		if i%2 == 0 {
			out[i] = mid + amp
		} else {
			out[i] = mid - amp
		}
	}
	return out
}

func TestRSI(t *testing.T) {
	// Too short: neutral.
	assert.Equal(t, 50.0, RSI(ramp(10, 100, 1), 14))

	// All gains: saturated at 100.
	assert.Equal(t, 100.0, RSI(ramp(20, 100, 1), 14))

	// All losses: 0.
	assert.Equal(t, 0.0, RSI(ramp(20, 100, -1), 14))

	// Flat series: neutral.
	assert.Equal(t, 50.0, RSI(flat(20, 100), 14))

	// Mixed series stays inside the bounds.
	v := RSI(zigzag(30, 100, 1), 14)
	assert.GreaterOrEqual(t, v, 0.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestEMA(t *testing.T) {
	assert.Equal(t, 0.0, EMA(ramp(5, 1, 1), 12))

	// Constant series: EMA equals the constant.
	assert.InDelta(t, 7.0, EMA(flat(30, 7), 12), 1e-9)

	// Rising series: EMA lags the last price but exceeds the mean.
	prices := ramp(30, 100, 1)
	ema := EMA(prices, 12)
	assert.Less(t, ema, prices[len(prices)-1])
	assert.Greater(t, ema, 114.5) // mean of the series
}

func TestMACD(t *testing.T) {
	// Too short for the slow EMA.
	assert.Equal(t, 0.0, MACD(ramp(10, 1, 1)))

	// Uptrend: fast EMA above slow EMA.
	assert.Greater(t, MACD(ramp(60, 100, 1)), 0.0)

	// Downtrend: fast below slow.
	assert.Less(t, MACD(ramp(60, 200, -1)), 0.0)

	// Flat: zero.
	assert.InDelta(t, 0.0, MACD(flat(60, 50)), 1e-12)
}

func TestBollingerBandwidth(t *testing.T) {
	assert.Equal(t, 0.0, BollingerBandwidth(ramp(5, 1, 1), 20))
	assert.InDelta(t, 0.0, BollingerBandwidth(flat(25, 100), 20), 1e-12)

	// Known case: alternating ±1 around 100. SD = 1, SMA = 100,
	// bandwidth = 4*1/100 = 0.04.
	assert.InDelta(t, 0.04, BollingerBandwidth(zigzag(20, 100, 1), 20), 1e-9)

	// Wider swings widen the bands.
	assert.Greater(t,
		BollingerBandwidth(zigzag(20, 100, 5), 20),
		BollingerBandwidth(zigzag(20, 100, 1), 20),
	)
}

func TestNormalizedVolatility(t *testing.T) {
	// 0.04 bandwidth maps to 0.4.
	assert.InDelta(t, 0.4, NormalizedVolatility(zigzag(20, 100, 1)), 1e-9)

	// Saturates at 1.
	assert.Equal(t, 1.0, NormalizedVolatility(zigzag(20, 100, 20)))

	// Quiet market: near zero.
	assert.InDelta(t, 0.0, NormalizedVolatility(flat(25, 100)), 1e-12)
}

func TestTrendSlope(t *testing.T) {
	assert.Equal(t, 0.0, TrendSlope([]float64{5}))
	assert.InDelta(t, 0.0, TrendSlope(flat(20, 100)), 1e-12)

	// 1-per-step rise on ~100 mean is about +1% per step.
	assert.InDelta(t, 0.0095, TrendSlope(ramp(20, 100, 1)), 0.002)

	assert.Less(t, TrendSlope(ramp(20, 100, -1)), 0.0)
}

func TestTrendStrength(t *testing.T) {
	// Monotone series: perfectly efficient.
	assert.Equal(t, 1.0, TrendStrength(ramp(20, 100, 1)))

	// Pure chop: no net movement.
	assert.InDelta(t, 0.0, TrendStrength(zigzag(21, 100, 1)), 0.1)

	assert.Equal(t, 0.0, TrendStrength(flat(20, 100)))
	assert.Equal(t, 0.0, TrendStrength([]float64{1}))
}

func TestDivergence(t *testing.T) {
	// Too short.
	assert.False(t, Divergence(ramp(20, 100, 1)))

	// Steady uptrend: no divergence (RSI saturates at 100 in both halves).
	assert.False(t, Divergence(ramp(60, 100, 1)))

	// Higher high in the late half on a weaker RSI: bearish divergence.
	// Early half climbs strongly to 129; late half chops mostly down but
	// spikes above the early high.
	early := ramp(30, 100, 1)
	late := ramp(30, 131, -0.5)
	late[1] = 135 // higher high, then decay
	assert.True(t, Divergence(append(append([]float64{}, early...), late...)))
}
