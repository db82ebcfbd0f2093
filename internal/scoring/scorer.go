package scoring

import (
	"github.com/alanyoungcy/chainarb/internal/domain"
)

// fullMargin is the net margin at which profit potential saturates at 1.0.
const fullMargin = 0.05

// Scores are the bounded sub-scores computed for one opportunity. Every
// field, including Overall, lies in [0,1]; an out-of-range value would be a
// programming defect in the clamp logic, not a runtime condition.
type Scores struct {
	RiskIntuition     float64
	ProfitProbability float64
	HumanBenefit      float64
	LiberationImpact  float64
	Overall           float64
}

// Scorer computes opportunity scores against an engine-state snapshot. It is
// stateless; all adaptivity lives in EngineState.
type Scorer struct{}

// NewScorer creates a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Score evaluates one opportunity. marketVolatility is the normalized [0,1]
// volatility of the token's price series; pass 0 when history is too short,
// which is the neutral (not pessimistic) input.
func (s *Scorer) Score(opp domain.Opportunity, snap Snapshot, marketVolatility float64) Scores {
	margin := opp.NetMargin()

	// Inputs derived from the opportunity itself, each bounded before the
	// spec formulas apply.
	baseRisk := clamp01(0.5 - margin*2 + (1-opp.LiquidityConfidence)*0.3)
	baseProbability := clamp01(0.45 + margin*4 + opp.LiquidityConfidence*0.1)
	profitPotential := clamp01(margin / fullMargin)
	accessibility := opp.LiquidityConfidence

	risk := clamp01(baseRisk - snap.AwarenessLevel*0.2 + marketVolatility*0.1)
	probability := clamp01(baseProbability + snap.AwarenessLevel*0.15)
	benefit := clamp01(profitPotential * 0.7 * (1 - risk*0.3))
	liberation := clamp01(profitPotential*0.6 + accessibility*0.4)

	overall := (risk + probability + benefit + liberation + snap.AwarenessLevel) / 5

	return Scores{
		RiskIntuition:     risk,
		ProfitProbability: probability,
		HumanBenefit:      benefit,
		LiberationImpact:  liberation,
		Overall:           clamp01(overall),
	}
}
