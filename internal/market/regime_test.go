package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

func pointsFromPrices(prices []float64) []PricePoint {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]PricePoint, len(prices))
	for i, p := range prices {
		out[i] = PricePoint{
			Network:   "ethereum",
			Token:     "ETH",
			Price:     p,
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}
	}
	return out
}

func TestClassifyRegime_ShortSeries(t *testing.T) {
	assert.Equal(t, RegimeUnknown, ClassifyRegime(nil))
	assert.Equal(t, RegimeUnknown, ClassifyRegime(pointsFromPrices(ramp(10, 100, 1))))

	// Enough for RSI but not the full window.
	assert.Equal(t, RegimeEarlyFormation, ClassifyRegime(pointsFromPrices(ramp(20, 100, 1))))
}

func TestClassifyRegime_StrongTrends(t *testing.T) {
	assert.Equal(t, RegimeStrongUptrend, ClassifyRegime(pointsFromPrices(ramp(40, 100, 1))))
	assert.Equal(t, RegimeStrongDowntrend, ClassifyRegime(pointsFromPrices(ramp(40, 200, -1))))
}

func TestClassifyRegime_CoiledSpring(t *testing.T) {
	// Near-flat chop: tiny volatility, no directional efficiency.
	assert.Equal(t, RegimeCoiledSpring, ClassifyRegime(pointsFromPrices(zigzag(40, 100, 0.1))))
}

func TestClassifyRegime_VolatileContinuation(t *testing.T) {
	// Wild chop: high normalized volatility without trend efficiency.
	assert.Equal(t, RegimeVolatileContinuation, ClassifyRegime(pointsFromPrices(zigzag(40, 100, 3))))
}

func TestClassifyRegime_BalancedRange(t *testing.T) {
	// Moderate chop: neither squeezed nor volatile nor trending.
	assert.Equal(t, RegimeBalancedRange, ClassifyRegime(pointsFromPrices(zigzag(40, 100, 1))))
}

func TestRegimeTiming(t *testing.T) {
	assert.Equal(t, domain.TimingImmediate, RegimeStrongUptrend.Timing())
	assert.Equal(t, domain.TimingDelayed, RegimeVolatileReversal.Timing())
	assert.Equal(t, domain.TimingDelayed, RegimeVolatileContinuation.Timing())
	assert.Equal(t, domain.TimingStandard, RegimeStrongDowntrend.Timing())
	assert.Equal(t, domain.TimingStandard, RegimeBalancedRange.Timing())
	assert.Equal(t, domain.TimingStandard, RegimeUnknown.Timing())
}

func TestSeriesVolatility(t *testing.T) {
	assert.InDelta(t, 0.4, SeriesVolatility(pointsFromPrices(zigzag(20, 100, 1))), 1e-9)
	assert.Equal(t, 0.0, SeriesVolatility(nil))
}
