// Package optimizer enumerates cross-network trade routes for a token and
// surfaces the ones that clear the profitability invariants.
package optimizer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/chainarb/internal/cost"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/market"
)

// Config holds the optimizer's tunable parameters.
type Config struct {
	// Networks to scan. Empty means every network known to the cost model.
	Networks []string
	// MinProfitThreshold is the minimum net profit as a fraction of
	// trade notional (threshold × size × buy price) for an opportunity to be
	// surfaced. Default 0.02.
	MinProfitThreshold float64
	// TopK caps the number of returned opportunities. Default 5.
	TopK int
	// RegimeWindow is how many history points feed regime classification.
	RegimeWindow int
}

// PathOptimizer finds arbitrage routes between networks using live prices,
// the cost model, and the market model's regime classification. Scans are
// side-effect free and idempotent for unchanged feed and history state.
type PathOptimizer struct {
	feed    domain.PriceFeed
	costs   *cost.Model
	gas     domain.GasPriceSource
	history *market.HistoryStore
	logger  *slog.Logger

	networks     []string
	topK         int
	regimeWindow int

	mu        sync.RWMutex
	threshold float64
}

// New creates a PathOptimizer. The history store may be shared with the feed
// loop; series reads are copies.
func New(
	feed domain.PriceFeed,
	costs *cost.Model,
	gas domain.GasPriceSource,
	history *market.HistoryStore,
	cfg Config,
	logger *slog.Logger,
) *PathOptimizer {
	networks := cfg.Networks
	if len(networks) == 0 {
		networks = cost.KnownNetworks()
	}
	// Deterministic enumeration order regardless of config order.
	networks = append([]string(nil), networks...)
	sort.Strings(networks)

	threshold := cfg.MinProfitThreshold
	if threshold <= 0 {
		threshold = 0.02
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	regimeWindow := cfg.RegimeWindow
	if regimeWindow <= 0 {
		regimeWindow = 60
	}

	return &PathOptimizer{
		feed:         feed,
		costs:        costs,
		gas:          gas,
		history:      history,
		logger:       logger.With(slog.String("component", "path_optimizer")),
		networks:     networks,
		topK:         topK,
		regimeWindow: regimeWindow,
		threshold:    threshold,
	}
}

// MinProfitThreshold returns the current threshold.
func (p *PathOptimizer) MinProfitThreshold() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.threshold
}

// SetMinProfitThreshold updates the threshold; the learning loop calls this
// when recent outcomes justify loosening or tightening the filter.
func (p *PathOptimizer) SetMinProfitThreshold(t float64) {
	if t <= 0 {
		return
	}
	p.mu.Lock()
	p.threshold = t
	p.mu.Unlock()
}

// FindOpportunities scans every ordered pair of distinct networks for the
// token and returns up to TopK opportunities sorted by net profit weighted
// by liquidity confidence (ties broken by buy/sell network names). Networks
// whose price is unavailable are skipped, never fatal.
func (p *PathOptimizer) FindOpportunities(ctx context.Context, token string, tradeSize float64) []domain.Opportunity {
	if tradeSize <= 0 {
		return nil
	}
	threshold := p.MinProfitThreshold()

	prices := p.collectPrices(ctx, token)
	if len(prices) < 2 {
		return nil
	}

	timing := p.timingFor(token)

	var found []domain.Opportunity
	for _, buyNet := range p.networks {
		buyPrice, ok := prices[buyNet]
		if !ok {
			continue
		}
		for _, sellNet := range p.networks {
			if sellNet == buyNet {
				continue
			}
			sellPrice, ok := prices[sellNet]
			if !ok {
				continue
			}

			gross := (sellPrice - buyPrice) * tradeSize
			if gross <= 0 {
				continue
			}

			buyGwei, _ := p.gas.GasPriceGwei(ctx, buyNet)
			sellGwei, _ := p.gas.GasPriceGwei(ctx, sellNet)
			gasCost := p.costs.GasCost(buyNet, buyGwei) + p.costs.GasCost(sellNet, sellGwei)

			slip := p.costs.Slippage(buyNet, token, tradeSize)*buyPrice*tradeSize +
				p.costs.Slippage(sellNet, token, tradeSize)*sellPrice*tradeSize

			net := gross - gasCost - slip
			if net < threshold*tradeSize*buyPrice {
				continue
			}

			buyLiq := p.costs.LiquidityScore(buyNet, token)
			sellLiq := p.costs.LiquidityScore(sellNet, token)

			opp := domain.Opportunity{
				ID:                  uuid.New().String(),
				Token:               token,
				BuyNetwork:          buyNet,
				SellNetwork:         sellNet,
				BuyPrice:            buyPrice,
				SellPrice:           sellPrice,
				TradeSize:           tradeSize,
				GasCost:             gasCost,
				SlippageCost:        slip,
				GrossProfit:         gross,
				NetProfit:           net,
				LiquidityConfidence: min2(buyLiq, sellLiq),
				Timing:              timing,
				DetectedAt:          time.Now().UTC(),
			}
			if err := opp.Validate(); err != nil {
				// A failed invariant here is a cost-model bug; drop the
				// opportunity before it can reach decision synthesis.
				p.logger.Error("dropping invalid opportunity",
					slog.String("token", token),
					slog.String("buy", buyNet),
					slog.String("sell", sellNet),
					slog.String("error", err.Error()),
				)
				continue
			}
			found = append(found, opp)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		si := found[i].NetProfit * found[i].LiquidityConfidence
		sj := found[j].NetProfit * found[j].LiquidityConfidence
		if si != sj {
			return si > sj
		}
		if found[i].BuyNetwork != found[j].BuyNetwork {
			return found[i].BuyNetwork < found[j].BuyNetwork
		}
		return found[i].SellNetwork < found[j].SellNetwork
	})

	if len(found) > p.topK {
		found = found[:p.topK]
	}
	return found
}

// collectPrices fetches the token's price on every configured network,
// skipping unavailable feeds.
func (p *PathOptimizer) collectPrices(ctx context.Context, token string) map[string]float64 {
	prices := make(map[string]float64, len(p.networks))
	for _, network := range p.networks {
		price, err := p.feed.GetPrice(ctx, network, token)
		if err != nil {
			p.logger.Debug("price unavailable, skipping network",
				slog.String("network", network),
				slog.String("token", token),
				slog.String("error", err.Error()),
			)
			continue
		}
		if price <= 0 {
			continue
		}
		prices[network] = price
	}
	return prices
}

// timingFor classifies the token's regime on its deepest-history network and
// maps it to an execution-timing hint.
func (p *PathOptimizer) timingFor(token string) domain.ExecutionTiming {
	if p.history == nil {
		return domain.TimingStandard
	}

	var best []market.PricePoint
	for _, network := range p.networks {
		series := p.history.Series(network, token, p.regimeWindow)
		if len(series) > len(best) {
			best = series
		}
	}
	return market.ClassifyRegime(best).Timing()
}

func min2(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
