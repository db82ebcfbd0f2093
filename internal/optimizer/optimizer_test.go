package optimizer

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/cost"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/market"
)

// fakeFeed serves static prices; missing pairs return ErrPriceUnavailable.
type fakeFeed struct {
	prices map[string]float64 // network -> price
}

func (f *fakeFeed) GetPrice(_ context.Context, network, _ string) (float64, error) {
	p, ok := f.prices[network]
	if !ok {
		return 0, domain.ErrPriceUnavailable
	}
	return p, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newOptimizer(prices map[string]float64, cfg Config) *PathOptimizer {
	return New(
		&fakeFeed{prices: prices},
		cost.NewModel(3000.0/1e9),
		cost.StaticGasSource{},
		market.NewHistoryStore(10),
		cfg,
		discardLogger(),
	)
}

func TestFindOpportunities_SurfacesSpread(t *testing.T) {
	// ETH at 3000 on arbitrum, 3100 on ethereum: $100 gross on a 1-unit
	// trade comfortably clears costs and the 2% threshold.
	opt := newOptimizer(map[string]float64{
		"arbitrum": 3000,
		"ethereum": 3100,
	}, Config{Networks: []string{"ethereum", "arbitrum"}})

	opps := opt.FindOpportunities(context.Background(), "ETH", 1.0)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "arbitrum", opp.BuyNetwork)
	assert.Equal(t, "ethereum", opp.SellNetwork)
	assert.Equal(t, 100.0, opp.GrossProfit)
	assert.Greater(t, opp.NetProfit, 60.0)
	assert.Less(t, opp.NetProfit, opp.GrossProfit)
	assert.Greater(t, opp.GasCost, 0.0)
	assert.Greater(t, opp.SlippageCost, 0.0)
	assert.NotEmpty(t, opp.ID)
	require.NoError(t, opp.Validate())
}

func TestFindOpportunities_ThresholdFiltersThinSpreads(t *testing.T) {
	// 0.1% spread is under the 2% default threshold after costs.
	opt := newOptimizer(map[string]float64{
		"arbitrum": 3000,
		"ethereum": 3003,
	}, Config{Networks: []string{"ethereum", "arbitrum"}})

	assert.Empty(t, opt.FindOpportunities(context.Background(), "ETH", 1.0))
}

func TestFindOpportunities_SkipsUnavailableNetworks(t *testing.T) {
	opt := newOptimizer(map[string]float64{
		"arbitrum": 3000,
		"ethereum": 3100,
		// base has no feed entry
	}, Config{Networks: []string{"base", "ethereum", "arbitrum"}})

	opps := opt.FindOpportunities(context.Background(), "ETH", 1.0)
	require.NotEmpty(t, opps)
	for _, opp := range opps {
		assert.NotEqual(t, "base", opp.BuyNetwork)
		assert.NotEqual(t, "base", opp.SellNetwork)
	}
}

func TestFindOpportunities_SinglePriceReturnsNothing(t *testing.T) {
	opt := newOptimizer(map[string]float64{
		"ethereum": 3100,
	}, Config{Networks: []string{"ethereum", "arbitrum"}})

	assert.Nil(t, opt.FindOpportunities(context.Background(), "ETH", 1.0))
}

func TestFindOpportunities_InvalidTradeSize(t *testing.T) {
	opt := newOptimizer(map[string]float64{
		"arbitrum": 3000,
		"ethereum": 3100,
	}, Config{})

	assert.Nil(t, opt.FindOpportunities(context.Background(), "ETH", 0))
	assert.Nil(t, opt.FindOpportunities(context.Background(), "ETH", -1))
}

func TestFindOpportunities_OrderingAndTopK(t *testing.T) {
	// Three networks with a price ladder produce multiple profitable routes;
	// the widest spread ranks first.
	opt := newOptimizer(map[string]float64{
		"polygon":  2800,
		"arbitrum": 3000,
		"ethereum": 3200,
	}, Config{
		Networks: []string{"ethereum", "arbitrum", "polygon"},
		TopK:     2,
	})

	opps := opt.FindOpportunities(context.Background(), "ETH", 1.0)
	require.Len(t, opps, 2)

	assert.Equal(t, "polygon", opps[0].BuyNetwork)
	assert.Equal(t, "ethereum", opps[0].SellNetwork)

	// Ranked by liquidity-weighted net profit, non-increasing.
	s0 := opps[0].NetProfit * opps[0].LiquidityConfidence
	s1 := opps[1].NetProfit * opps[1].LiquidityConfidence
	assert.GreaterOrEqual(t, s0, s1)
}

func TestFindOpportunities_RepeatScanStable(t *testing.T) {
	// With static prices, two scans must surface the same routes in the same
	// order with the same economics. Only the generated ID and detection
	// timestamp differ between scans.
	opt := newOptimizer(map[string]float64{
		"polygon":  2800,
		"arbitrum": 3000,
		"ethereum": 3200,
	}, Config{Networks: []string{"ethereum", "arbitrum", "polygon"}})

	first := opt.FindOpportunities(context.Background(), "ETH", 1.0)
	second := opt.FindOpportunities(context.Background(), "ETH", 1.0)
	require.NotEmpty(t, first)
	require.Len(t, second, len(first))

	for i := range first {
		a, b := first[i], second[i]
		assert.NotEqual(t, a.ID, b.ID)
		b.ID = a.ID
		b.DetectedAt = a.DetectedAt
		assert.Equal(t, a, b)
	}
}

func TestSetMinProfitThreshold(t *testing.T) {
	opt := newOptimizer(map[string]float64{
		"arbitrum": 3000,
		"ethereum": 3100,
	}, Config{Networks: []string{"ethereum", "arbitrum"}})

	require.NotEmpty(t, opt.FindOpportunities(context.Background(), "ETH", 1.0))

	// Raising the threshold above the route's margin suppresses it.
	opt.SetMinProfitThreshold(0.5)
	assert.Equal(t, 0.5, opt.MinProfitThreshold())
	assert.Empty(t, opt.FindOpportunities(context.Background(), "ETH", 1.0))

	// Non-positive updates are ignored.
	opt.SetMinProfitThreshold(0)
	assert.Equal(t, 0.5, opt.MinProfitThreshold())
}
