package executor

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// DryRunExecutor implements domain.TradeExecutor without touching any
// external service. It reports a deterministic partial fill so the feedback
// and learning stages see realistic deltas while the engine runs sandboxed.
type DryRunExecutor struct {
	fillRate    float64
	gasVariance float64
	logger      *slog.Logger
}

// NewDryRunExecutor creates a DryRunExecutor. fillRate is the fraction of
// expected profit realised (default 0.9); gasVariance inflates the gas
// estimate (default 0.15).
func NewDryRunExecutor(fillRate, gasVariance float64, logger *slog.Logger) *DryRunExecutor {
	if fillRate <= 0 || fillRate > 1 {
		fillRate = 0.9
	}
	if gasVariance < 0 {
		gasVariance = 0.15
	}
	return &DryRunExecutor{
		fillRate:    fillRate,
		gasVariance: gasVariance,
		logger:      logger.With(slog.String("component", "dryrun_executor")),
	}
}

// Execute simulates the trade. The context deadline is honoured so timeout
// behaviour is exercised end to end.
func (e *DryRunExecutor) Execute(ctx context.Context, opp domain.Opportunity, adj domain.StrategyAdjustments) (domain.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ExecutionResult{}, err
	}

	started := time.Now()

	gasActual := opp.GasCost * (1 + e.gasVariance)
	profit := opp.NetProfit*e.fillRate*adj.PositionSizeMultiplier - (gasActual - opp.GasCost)

	e.logger.Info("dry-run trade simulated",
		slog.String("token", opp.Token),
		slog.String("buy_network", opp.BuyNetwork),
		slog.String("sell_network", opp.SellNetwork),
		slog.Float64("expected_profit", opp.NetProfit),
		slog.Float64("simulated_profit", profit),
	)

	return domain.ExecutionResult{
		Success:       profit > 0,
		Profit:        profit,
		GasCostActual: gasActual,
		Duration:      time.Since(started),
	}, nil
}

// Compile-time interface check.
var _ domain.TradeExecutor = (*DryRunExecutor)(nil)
