// Package domain contains the core value objects and collaborator contracts
// for the cross-network arbitrage engine. It is deliberately free of
// third-party imports so that every adapter package can depend on it without
// cycles.
package domain

import (
	"fmt"
	"time"
)

// ExecutionTiming is a hint derived from the market regime of the traded
// token, telling the executor how urgently an opportunity should be acted on.
type ExecutionTiming string

const (
	TimingImmediate ExecutionTiming = "immediate"
	TimingStandard  ExecutionTiming = "standard"
	TimingDelayed   ExecutionTiming = "delayed"
)

// Opportunity is a scored candidate cross-network buy/sell trade. It is an
// immutable value object produced by the path optimizer and discarded once a
// Decision has been made; it is never persisted.
type Opportunity struct {
	ID          string
	Token       string
	BuyNetwork  string
	SellNetwork string
	BuyPrice    float64
	SellPrice   float64
	TradeSize   float64

	GasCost      float64
	SlippageCost float64
	GrossProfit  float64
	NetProfit    float64

	// LiquidityConfidence is min(buy-side, sell-side liquidity score), in [0,1].
	LiquidityConfidence float64

	Timing     ExecutionTiming
	DetectedAt time.Time
}

// Validate checks the construction-time invariants. A violation means a bug
// in the cost or optimizer code, not bad market data, so invalid
// opportunities must be rejected before they reach decision synthesis.
func (o Opportunity) Validate() error {
	if o.BuyNetwork == o.SellNetwork {
		return fmt.Errorf("%w: buy and sell network are both %q", ErrInvalidOpportunity, o.BuyNetwork)
	}
	if o.TradeSize <= 0 {
		return fmt.Errorf("%w: non-positive trade size %f", ErrInvalidOpportunity, o.TradeSize)
	}
	if o.GasCost < 0 {
		return fmt.Errorf("%w: negative gas cost %f", ErrInvalidOpportunity, o.GasCost)
	}
	if o.SlippageCost < 0 {
		return fmt.Errorf("%w: negative slippage cost %f", ErrInvalidOpportunity, o.SlippageCost)
	}
	if o.NetProfit > o.GrossProfit {
		return fmt.Errorf("%w: net profit %f exceeds gross %f", ErrInvalidOpportunity, o.NetProfit, o.GrossProfit)
	}
	if got := o.GrossProfit - o.GasCost - o.SlippageCost; !almostEqual(got, o.NetProfit) {
		return fmt.Errorf("%w: net profit %f does not reconcile (expected %f)", ErrInvalidOpportunity, o.NetProfit, got)
	}
	if o.LiquidityConfidence < 0 || o.LiquidityConfidence > 1 {
		return fmt.Errorf("%w: liquidity confidence %f out of range", ErrInvalidOpportunity, o.LiquidityConfidence)
	}
	return nil
}

// NetMargin is the net profit expressed as a fraction of the deployed
// capital (trade size at the buy price). Returns 0 when capital is zero.
func (o Opportunity) NetMargin() float64 {
	capital := o.TradeSize * o.BuyPrice
	if capital <= 0 {
		return 0
	}
	return o.NetProfit / capital
}

func almostEqual(a, b float64) bool {
	const eps = 1e-9
	d := a - b
	return d < eps && d > -eps
}
