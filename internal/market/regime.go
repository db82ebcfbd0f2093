package market

import "github.com/alanyoungcy/chainarb/internal/domain"

// Regime is a discrete label summarizing recent price-series behavior.
type Regime string

const (
	RegimeStrongUptrend        Regime = "strong_uptrend"
	RegimeStrongDowntrend      Regime = "strong_downtrend"
	RegimeVolatileReversal     Regime = "volatile_reversal"
	RegimeVolatileContinuation Regime = "volatile_continuation"
	RegimeCoiledSpring         Regime = "coiled_spring"
	RegimeBalancedRange        Regime = "balanced_range"
	RegimeEarlyFormation       Regime = "early_formation"
	RegimeUnknown              Regime = "unknown"
)

// Classification thresholds. Tuned against the window sizes in
// indicators.go; all sub-indicators are bounded so the cutoffs are stable.
const (
	strongStrength  = 0.55  // efficiency ratio above which a trend is "strong"
	strongSlope     = 0.001 // minimum per-step drift for a strong trend
	highVolatility  = 0.60  // normalized volatility above which the market is "volatile"
	squeezeVol      = 0.12  // normalized volatility below which bands are "squeezed"
	squeezeStrength = 0.30  // max strength compatible with a coiled spring
)

// ClassifyRegime maps a chronological price series onto one of the regime
// labels. Series shorter than the RSI window classify as unknown; series
// shorter than the full window classify as early_formation. Short input is
// the defined fallback, never an error.
func ClassifyRegime(points []PricePoint) Regime {
	prices := Closes(points)
	return classify(prices)
}

func classify(prices []float64) Regime {
	if len(prices) < rsiPeriod+1 {
		return RegimeUnknown
	}
	if len(prices) < fullWindow {
		return RegimeEarlyFormation
	}

	slope := TrendSlope(prices)
	strength := TrendStrength(prices)
	vol := NormalizedVolatility(prices)
	diverging := Divergence(prices)

	switch {
	case strength >= strongStrength && slope >= strongSlope:
		return RegimeStrongUptrend
	case strength >= strongStrength && slope <= -strongSlope:
		return RegimeStrongDowntrend
	case vol >= highVolatility && diverging:
		return RegimeVolatileReversal
	case vol >= highVolatility:
		return RegimeVolatileContinuation
	case vol <= squeezeVol && strength <= squeezeStrength:
		return RegimeCoiledSpring
	default:
		return RegimeBalancedRange
	}
}

// Timing derives the execution-timing hint attached to opportunities for a
// token in this regime.
func (r Regime) Timing() domain.ExecutionTiming {
	switch r {
	case RegimeVolatileReversal, RegimeVolatileContinuation:
		return domain.TimingDelayed
	case RegimeStrongUptrend:
		return domain.TimingImmediate
	default:
		return domain.TimingStandard
	}
}

// Closes extracts the price values from a point series in order.
func Closes(points []PricePoint) []float64 {
	if len(points) == 0 {
		return nil
	}
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Price
	}
	return out
}

// SeriesVolatility is the normalized volatility of a point series, used by
// the scorer as the marketVolatility input.
func SeriesVolatility(points []PricePoint) float64 {
	return NormalizedVolatility(Closes(points))
}
