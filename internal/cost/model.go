// Package cost models per-network trade costs: slippage, gas, and liquidity.
// The model is deliberately table-driven and deterministic; ethereum is the
// reference network against which every other network's parameters are
// ordered.
package cost

import (
	"math"
	"strings"
)

// ReferenceNetwork anchors the ordering invariants: it has the deepest
// liquidity (score 1.0, slippage multiplier 1.0) and the highest gas cost.
const ReferenceNetwork = "ethereum"

// maxSlippage caps the slippage fraction regardless of trade size.
const maxSlippage = 0.05

// networkProfile holds the static per-network cost parameters.
type networkProfile struct {
	// slippageMult scales the base slippage curve; >= 1.0 for every
	// non-reference network.
	slippageMult float64
	// gasUnits approximates the gas consumed by a two-leg swap.
	gasUnits float64
	// gasMult scales gas cost relative to the base chain; < 1.0 for L2s.
	gasMult float64
	// liquidity is the network's depth score in [0,1].
	liquidity float64
	// depth is the notional size (in token units) at which slippage reaches
	// half of its asymptotic maximum on this network.
	depth float64
}

// profiles covers the networks the engine trades across. Unknown networks
// fall back to the most conservative entry.
var profiles = map[string]networkProfile{
	"ethereum": {slippageMult: 1.0, gasUnits: 210_000, gasMult: 1.0, liquidity: 1.0, depth: 400},
	"arbitrum": {slippageMult: 1.15, gasUnits: 210_000, gasMult: 0.04, liquidity: 0.85, depth: 220},
	"optimism": {slippageMult: 1.2, gasUnits: 210_000, gasMult: 0.05, liquidity: 0.80, depth: 200},
	"base":     {slippageMult: 1.25, gasUnits: 210_000, gasMult: 0.03, liquidity: 0.75, depth: 180},
	"polygon":  {slippageMult: 1.4, gasUnits: 210_000, gasMult: 0.02, liquidity: 0.70, depth: 150},
}

// conservative is used for networks missing from the table.
var conservative = networkProfile{slippageMult: 1.6, gasUnits: 210_000, gasMult: 0.9, liquidity: 0.4, depth: 80}

// tokenTier discounts liquidity for tokens outside the majors. The discount
// is uniform across networks so the reference network stays maximal.
var tokenTier = map[string]float64{
	"ETH":  1.0,
	"WETH": 1.0,
	"BTC":  1.0,
	"WBTC": 0.95,
	"USDC": 1.0,
	"USDT": 0.95,
}

const defaultTokenTier = 0.7

// Model estimates trade costs from the static network tables and a gas
// price source. The zero value is not usable; use NewModel.
type Model struct {
	gasPriceUSDPerGwei float64
}

// NewModel creates a cost model. gasPriceUSDPerGwei converts a gwei gas
// price into dollars per gas unit (i.e. the native-token price divided by
// 1e9); it must be positive.
func NewModel(gasPriceUSDPerGwei float64) *Model {
	if gasPriceUSDPerGwei <= 0 {
		gasPriceUSDPerGwei = 3000.0 / 1e9 // ETH at $3000
	}
	return &Model{gasPriceUSDPerGwei: gasPriceUSDPerGwei}
}

func profileFor(network string) networkProfile {
	p, ok := profiles[strings.ToLower(network)]
	if !ok {
		return conservative
	}
	return p
}

// Slippage estimates the fractional price impact of trading tradeSize token
// units on the network. The curve is a saturating size/(size+depth) shape:
// monotonically non-decreasing in size, bounded to [0, 0.05], and always at
// least the reference network's slippage for the same size.
func (m *Model) Slippage(network, token string, tradeSize float64) float64 {
	if tradeSize <= 0 {
		return 0
	}
	p := profileFor(network)

	base := 0.0005 + 0.045*(tradeSize/(tradeSize+p.depth))
	s := base * p.slippageMult
	if s > maxSlippage {
		return maxSlippage
	}
	return s
}

// GasCost estimates the dollar cost of executing one trade at the given gas
// price (gwei). The result is strictly positive and finite; L2 networks cost
// strictly less than the base chain for the same gas price.
func (m *Model) GasCost(network string, gasPriceGwei float64) float64 {
	if gasPriceGwei <= 0 || math.IsNaN(gasPriceGwei) || math.IsInf(gasPriceGwei, 0) {
		gasPriceGwei = 20
	}
	p := profileFor(network)
	cost := gasPriceGwei * p.gasUnits * p.gasMult * m.gasPriceUSDPerGwei
	if cost <= 0 {
		// Floor keeps the invariant cost > 0 even for degenerate inputs.
		return 1e-6
	}
	return cost
}

// LiquidityScore reports the network's depth score for the token in [0,1].
// The reference network is maximal for every token.
func (m *Model) LiquidityScore(network, token string) float64 {
	p := profileFor(network)
	tier, ok := tokenTier[strings.ToUpper(token)]
	if !ok {
		tier = defaultTokenTier
	}
	score := p.liquidity * tier
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// KnownNetworks lists the networks present in the static table, reference
// first, remainder sorted by descending liquidity.
func KnownNetworks() []string {
	out := []string{ReferenceNetwork}
	rest := make([]string, 0, len(profiles)-1)
	for name := range profiles {
		if name != ReferenceNetwork {
			rest = append(rest, name)
		}
	}
	// Insertion sort by liquidity; the table is tiny.
	for i := 1; i < len(rest); i++ {
		for j := i; j > 0 && profiles[rest[j]].liquidity > profiles[rest[j-1]].liquidity; j-- {
			rest[j], rest[j-1] = rest[j-1], rest[j]
		}
	}
	return append(out, rest...)
}
