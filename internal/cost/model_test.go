package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlippage_MonotoneAndCapped(t *testing.T) {
	m := NewModel(0)

	assert.Equal(t, 0.0, m.Slippage("ethereum", "ETH", 0))
	assert.Equal(t, 0.0, m.Slippage("ethereum", "ETH", -5))

	prev := 0.0
	for _, size := range []float64{0.1, 1, 10, 100, 1000, 100000} {
		s := m.Slippage("ethereum", "ETH", size)
		assert.GreaterOrEqual(t, s, prev, "slippage must not decrease with size")
		assert.LessOrEqual(t, s, 0.05)
		prev = s
	}

	// Huge sizes saturate at the cap on thin networks.
	assert.Equal(t, 0.05, m.Slippage("polygon", "ETH", 1e9))
}

func TestSlippage_ReferenceNetworkIsMinimal(t *testing.T) {
	m := NewModel(0)
	for _, network := range []string{"arbitrum", "optimism", "base", "polygon", "somechain"} {
		assert.Greater(t,
			m.Slippage(network, "ETH", 10),
			m.Slippage("ethereum", "ETH", 10),
			"network %s must slip more than the reference chain", network,
		)
	}
}

func TestGasCost_L2CheaperThanBase(t *testing.T) {
	m := NewModel(3000.0 / 1e9)

	base := m.GasCost("ethereum", 25)
	assert.Greater(t, base, 0.0)

	for _, network := range []string{"arbitrum", "optimism", "base", "polygon"} {
		assert.Less(t, m.GasCost(network, 25), base,
			"L2 %s must cost less gas than ethereum", network)
	}
}

func TestGasCost_DegenerateInputs(t *testing.T) {
	m := NewModel(3000.0 / 1e9)

	// Non-positive gas prices fall back to a sane default, so cost stays
	// positive.
	assert.Greater(t, m.GasCost("ethereum", 0), 0.0)
	assert.Greater(t, m.GasCost("ethereum", -3), 0.0)

	// 25 gwei * 210k units at $3000 ETH is about $15.75.
	assert.InDelta(t, 15.75, m.GasCost("ethereum", 25), 0.01)
}

func TestLiquidityScore(t *testing.T) {
	m := NewModel(0)

	assert.Equal(t, 1.0, m.LiquidityScore("ethereum", "ETH"))

	// Reference network is maximal for every token.
	for _, network := range []string{"arbitrum", "optimism", "base", "polygon", "unknown"} {
		for _, token := range []string{"ETH", "WBTC", "USDT", "PEPE"} {
			assert.LessOrEqual(t,
				m.LiquidityScore(network, token),
				m.LiquidityScore("ethereum", token),
			)
		}
	}

	// Unlisted tokens are discounted uniformly.
	assert.Less(t, m.LiquidityScore("ethereum", "PEPE"), m.LiquidityScore("ethereum", "ETH"))

	// Scores stay in [0,1].
	s := m.LiquidityScore("somechain", "SOMETOKEN")
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 1.0)
}

func TestDeterminism(t *testing.T) {
	m := NewModel(3000.0 / 1e9)
	for i := 0; i < 3; i++ {
		assert.Equal(t, m.Slippage("arbitrum", "ETH", 12.5), m.Slippage("arbitrum", "ETH", 12.5))
		assert.Equal(t, m.GasCost("base", 0.05), m.GasCost("base", 0.05))
	}
}

func TestKnownNetworks(t *testing.T) {
	nets := KnownNetworks()
	require.NotEmpty(t, nets)
	assert.Equal(t, ReferenceNetwork, nets[0])
	assert.ElementsMatch(t, []string{"ethereum", "arbitrum", "optimism", "base", "polygon"}, nets)

	// Remainder ordered by descending liquidity.
	assert.Equal(t, []string{"ethereum", "arbitrum", "optimism", "base", "polygon"}, nets)
}
