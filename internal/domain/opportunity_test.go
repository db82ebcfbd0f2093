package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOpportunity() Opportunity {
	return Opportunity{
		ID:                  "opp-1",
		Token:               "ETH",
		BuyNetwork:          "arbitrum",
		SellNetwork:         "ethereum",
		BuyPrice:            3000,
		SellPrice:           3100,
		TradeSize:           1,
		GasCost:             15,
		SlippageCost:        5,
		GrossProfit:         100,
		NetProfit:           80,
		LiquidityConfidence: 0.85,
	}
}

func TestOpportunityValidate(t *testing.T) {
	require.NoError(t, validOpportunity().Validate())
}

func TestOpportunityValidate_Violations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Opportunity)
	}{
		{"same network both sides", func(o *Opportunity) { o.SellNetwork = o.BuyNetwork }},
		{"zero trade size", func(o *Opportunity) { o.TradeSize = 0 }},
		{"negative gas", func(o *Opportunity) { o.GasCost = -1 }},
		{"negative slippage", func(o *Opportunity) { o.SlippageCost = -0.5 }},
		{"net exceeds gross", func(o *Opportunity) { o.NetProfit = 200 }},
		{"net does not reconcile", func(o *Opportunity) { o.NetProfit = 79 }},
		{"liquidity above one", func(o *Opportunity) { o.LiquidityConfidence = 1.2 }},
		{"liquidity below zero", func(o *Opportunity) { o.LiquidityConfidence = -0.1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opp := validOpportunity()
			tc.mutate(&opp)
			err := opp.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidOpportunity)
		})
	}
}

func TestNetMargin(t *testing.T) {
	opp := validOpportunity()
	assert.InDelta(t, 80.0/3000.0, opp.NetMargin(), 1e-12)

	opp.TradeSize = 0
	assert.Zero(t, opp.NetMargin())

	opp = validOpportunity()
	opp.BuyPrice = 0
	assert.Zero(t, opp.NetMargin())
}
